package pipeline

import (
	"context"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/snarg/clipforge/internal/database"
	"github.com/snarg/clipforge/internal/media"
	"github.com/snarg/clipforge/internal/storage"
	"github.com/snarg/clipforge/internal/transcribe"
)

// fakeStore is an in-memory Store that records every patch in order.
type fakeStore struct {
	mu           sync.Mutex
	video        *database.VideoDoc
	videoPatches []map[string]any
	clipPatches  map[string][]map[string]any
}

func newFakeStore(video *database.VideoDoc) *fakeStore {
	return &fakeStore{
		video:       video,
		clipPatches: make(map[string][]map[string]any),
	}
}

func (s *fakeStore) GetVideo(ctx context.Context, id string) (*database.VideoDoc, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.video == nil || s.video.ID != id {
		return nil, database.ErrNotFound
	}
	v := *s.video
	return &v, nil
}

func (s *fakeStore) PatchVideo(ctx context.Context, id string, patch map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.videoPatches = append(s.videoPatches, patch)
	return nil
}

func (s *fakeStore) PatchClip(ctx context.Context, id string, patch map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clipPatches[id] = append(s.clipPatches[id], patch)
	return nil
}

func (s *fakeStore) videoStatuses() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var statuses []string
	for _, p := range s.videoPatches {
		if st, ok := p["status"].(string); ok {
			statuses = append(statuses, st)
		}
	}
	return statuses
}

func (s *fakeStore) lastVideoPatch() map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.videoPatches) == 0 {
		return nil
	}
	return s.videoPatches[len(s.videoPatches)-1]
}

func (s *fakeStore) clipStatuses(id string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var statuses []string
	for _, p := range s.clipPatches[id] {
		if st, ok := p["status"].(string); ok {
			statuses = append(statuses, st)
		}
	}
	return statuses
}

// fakeTools is a Toolchain that touches real files in the test roots so
// scratch cleanup can be observed.
type fakeTools struct {
	duration    float64
	durationErr error
	extractErr  error
	assembleErr error

	assembleDelay time.Duration

	mu        sync.Mutex
	assembled [][]media.Range
}

func (f *fakeTools) Duration(ctx context.Context, path string) (float64, error) {
	return f.duration, f.durationErr
}

func (f *fakeTools) ExtractAudio(ctx context.Context, videoPath, audioPath string) error {
	if f.extractErr != nil {
		return f.extractErr
	}
	return os.WriteFile(audioPath, []byte("audio"), 0o644)
}

func (f *fakeTools) Assemble(ctx context.Context, inputPath, outputPath string, ranges []media.Range) error {
	if f.assembleDelay > 0 {
		select {
		case <-time.After(f.assembleDelay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	f.mu.Lock()
	f.assembled = append(f.assembled, ranges)
	f.mu.Unlock()
	if f.assembleErr != nil {
		return f.assembleErr
	}
	return os.WriteFile(outputPath, []byte("clip"), 0o644)
}

// fakeProvider is a Transcriber returning a canned raw transcript.
type fakeProvider struct {
	raw   *transcribe.RawTranscript
	err   error
	block bool // block until ctx is done, for timeout tests
}

func (f *fakeProvider) Transcribe(ctx context.Context, audioPath string) (*transcribe.RawTranscript, error) {
	if f.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if f.err != nil {
		return nil, f.err
	}
	return f.raw, nil
}

func (f *fakeProvider) Name() string  { return "fake" }
func (f *fakeProvider) Model() string { return "fake-1" }

// fakeArchiver records enqueued clip paths.
type fakeArchiver struct {
	mu    sync.Mutex
	paths []string
}

func (a *fakeArchiver) Enqueue(path string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.paths = append(a.paths, path)
}

type testHarness struct {
	store *fakeStore
	tools *fakeTools
	roots storage.Roots
	pipe  *Pipeline
}

func newHarness(tb interface {
	Helper()
	TempDir() string
	Fatalf(string, ...any)
}, video *database.VideoDoc, tools *fakeTools, provider transcribe.Provider, archiver Archiver) *testHarness {
	tb.Helper()
	base := tb.TempDir()
	roots := storage.NewRoots(base+"/uploads", base+"/audio", base+"/clips")
	if err := roots.Ensure(); err != nil {
		tb.Fatalf("roots: %v", err)
	}

	store := newFakeStore(video)
	pipe := New(Options{
		Store:             store,
		Roots:             roots,
		Provider:          provider,
		Tools:             tools,
		TranscribeTimeout: time.Second,
		AssembleTimeout:   time.Second,
		Workers:           2,
		Archiver:          archiver,
		Log:               zerolog.Nop(),
	})
	return &testHarness{store: store, tools: tools, roots: roots, pipe: pipe}
}
