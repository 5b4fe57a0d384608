package pipeline

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/snarg/clipforge/internal/database"
	"github.com/snarg/clipforge/internal/media"
	"github.com/snarg/clipforge/internal/storage"
	"github.com/snarg/clipforge/internal/transcribe"
)

// Store is the persistence surface the pipelines need. *database.DB
// satisfies it; tests substitute an in-memory fake.
type Store interface {
	GetVideo(ctx context.Context, id string) (*database.VideoDoc, error)
	PatchVideo(ctx context.Context, id string, patch map[string]any) error
	PatchClip(ctx context.Context, id string, patch map[string]any) error
}

// Toolchain abstracts the external media tool invocations.
type Toolchain interface {
	Duration(ctx context.Context, path string) (float64, error)
	ExtractAudio(ctx context.Context, videoPath, audioPath string) error
	Assemble(ctx context.Context, inputPath, outputPath string, ranges []media.Range) error
}

// FFTools is the ffmpeg/ffprobe-backed Toolchain.
type FFTools struct{}

func (FFTools) Duration(ctx context.Context, path string) (float64, error) {
	return media.Duration(ctx, path)
}

func (FFTools) ExtractAudio(ctx context.Context, videoPath, audioPath string) error {
	return media.ExtractAudio(ctx, videoPath, audioPath)
}

func (FFTools) Assemble(ctx context.Context, inputPath, outputPath string, ranges []media.Range) error {
	return media.Assemble(ctx, inputPath, outputPath, ranges)
}

// Archiver receives finished clip paths for background archival.
type Archiver interface {
	Enqueue(path string)
}

// Options configures the job pipeline.
type Options struct {
	Store             Store
	Roots             storage.Roots
	Provider          transcribe.Provider
	Tools             Toolchain
	TranscribeTimeout time.Duration
	AssembleTimeout   time.Duration
	Workers           int
	Archiver          Archiver // optional
	Log               zerolog.Logger
}

// Pipeline drives Video and Clip jobs through their lifecycles. Each job
// runs as one background unit of work; requests that create jobs return
// immediately and clients poll job status.
type Pipeline struct {
	runner *Runner
	opts   Options
	log    zerolog.Logger
}

// New creates a pipeline with its own bounded runner.
func New(opts Options) *Pipeline {
	if opts.Tools == nil {
		opts.Tools = FFTools{}
	}
	return &Pipeline{
		runner: NewRunner(opts.Workers, opts.Log),
		opts:   opts,
		log:    opts.Log,
	}
}

// ActiveJobs reports the number of currently running job pipelines.
func (p *Pipeline) ActiveJobs() int {
	return p.runner.Stats().Active
}

// Stats returns runner statistics.
func (p *Pipeline) Stats() RunnerStats {
	return p.runner.Stats()
}

// Shutdown drains running pipelines, cancelling them if ctx expires first.
func (p *Pipeline) Shutdown(ctx context.Context) {
	p.runner.Shutdown(ctx)
}
