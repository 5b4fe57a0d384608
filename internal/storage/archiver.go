package storage

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

// AsyncArchiver uploads finished clips to S3 without blocking the clip
// pipeline. The clip is already on local disk before enqueueing, so a
// dropped upload only loses the backstop copy, never the clip itself.
type AsyncArchiver struct {
	archive  *S3Archive
	ch       chan archiveJob
	log      zerolog.Logger
	stopped  atomic.Bool
	stopOnce sync.Once
	wg       sync.WaitGroup
}

type archiveJob struct {
	path string
}

// NewAsyncArchiver creates an async clip archiver with the given buffer size.
func NewAsyncArchiver(archive *S3Archive, bufferSize int, log zerolog.Logger) *AsyncArchiver {
	return &AsyncArchiver{
		archive: archive,
		ch:      make(chan archiveJob, bufferSize),
		log:     log.With().Str("component", "async-archiver").Logger(),
	}
}

// Enqueue adds a clip upload. Non-blocking — drops with a warning if the
// queue is full or the archiver is stopped (the clip is safe on local disk).
func (a *AsyncArchiver) Enqueue(path string) {
	if a.stopped.Load() {
		return
	}
	select {
	case a.ch <- archiveJob{path: path}:
	default:
		a.log.Warn().Str("path", path).Msg("archive queue full, skipping (clip safe on disk)")
	}
}

// Start launches worker goroutines.
func (a *AsyncArchiver) Start(workers int) {
	for i := 0; i < workers; i++ {
		a.wg.Add(1)
		go a.worker()
	}
	a.log.Info().Int("workers", workers).Int("buffer", cap(a.ch)).Msg("async archiver started")
}

// Stop signals workers to drain and waits for in-flight uploads.
func (a *AsyncArchiver) Stop() {
	a.stopped.Store(true)
	a.stopOnce.Do(func() { close(a.ch) })
	a.wg.Wait()
}

func (a *AsyncArchiver) worker() {
	defer a.wg.Done()
	for job := range a.ch {
		a.upload(job.path)
	}
}

func (a *AsyncArchiver) upload(path string) {
	f, err := os.Open(path)
	if err != nil {
		a.log.Error().Err(err).Str("path", path).Msg("archive open failed")
		return
	}
	defer f.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	key := filepath.Base(path)
	if err := a.archive.Save(ctx, key, f, "video/mp4"); err != nil {
		a.log.Error().Err(err).Str("key", key).Msg("archive upload failed (clip safe on disk)")
		return
	}
	a.log.Debug().Str("key", key).Msg("clip archived")
}
