package storage

import (
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// ScratchJanitor sweeps stale files out of the scratch audio root.
// A successful pipeline removes its own extracted audio; a crashed or
// killed pipeline leaves it behind, and the janitor reclaims it once the
// file is older than the retention window. Removal is always best-effort.
type ScratchJanitor struct {
	dir       string
	retention time.Duration
	interval  time.Duration
	log       zerolog.Logger
	stop      chan struct{}
	stopOnce  sync.Once
}

// NewScratchJanitor creates a janitor for the scratch audio root.
// A zero retention disables sweeping.
func NewScratchJanitor(dir string, retention time.Duration, log zerolog.Logger) *ScratchJanitor {
	return &ScratchJanitor{
		dir:       dir,
		retention: retention,
		interval:  1 * time.Hour,
		log:       log.With().Str("component", "scratch-janitor").Logger(),
		stop:      make(chan struct{}),
	}
}

func (j *ScratchJanitor) Start() {
	if j.retention == 0 {
		j.log.Debug().Msg("scratch retention disabled, janitor idle")
		return
	}
	go j.loop()
}

func (j *ScratchJanitor) Stop() {
	j.stopOnce.Do(func() { close(j.stop) })
}

func (j *ScratchJanitor) loop() {
	// Run once on startup to clear any backlog from downtime
	j.sweep()

	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			j.sweep()
		case <-j.stop:
			return
		}
	}
}

func (j *ScratchJanitor) sweep() {
	cutoff := time.Now().Add(-j.retention)
	var swept int
	var sweptBytes int64

	filepath.WalkDir(j.dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return nil
		}
		if info.ModTime().After(cutoff) {
			return nil
		}
		if err := os.Remove(path); err != nil {
			j.log.Warn().Err(err).Str("path", path).Msg("sweep failed")
			return nil
		}
		swept++
		sweptBytes += info.Size()
		return nil
	})

	if swept > 0 {
		j.log.Info().
			Int("files", swept).
			Int64("bytes", sweptBytes).
			Msg("swept stale scratch audio")
	}
}
