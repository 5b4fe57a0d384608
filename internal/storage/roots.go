package storage

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// Roots holds the three resolved storage areas: uploaded originals, scratch
// extracted audio, and finished clips. Passed explicitly into the components
// that need them; there are no ambient directory globals.
type Roots struct {
	Uploads string
	Audio   string
	Clips   string
}

func NewRoots(uploads, audio, clips string) Roots {
	return Roots{Uploads: uploads, Audio: audio, Clips: clips}
}

// Ensure creates the storage roots if missing. Called once at startup.
func (r Roots) Ensure() error {
	for _, dir := range []string{r.Uploads, r.Audio, r.Clips} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("mkdir %s: %w", dir, err)
		}
	}
	return nil
}

// UploadPath returns the on-disk path of an uploaded original.
func (r Roots) UploadPath(filename string) string {
	return filepath.Join(r.Uploads, filename)
}

// AudioPath returns the scratch path for a video's extracted audio.
func (r Roots) AudioPath(videoID string) string {
	return filepath.Join(r.Audio, videoID+".mp3")
}

// ClipPath returns the on-disk path of a finished clip.
func (r Roots) ClipPath(filename string) string {
	return filepath.Join(r.Clips, filename)
}

// SaveUpload streams src into the uploads root under filename.
// Atomic write: temp file + rename, so a crashed upload never leaves a
// half-written file under the final name. Returns the byte count written.
func (r Roots) SaveUpload(filename string, src io.Reader) (int64, error) {
	path := r.UploadPath(filename)

	tmp, err := os.CreateTemp(r.Uploads, ".upload-*.tmp")
	if err != nil {
		return 0, fmt.Errorf("create temp: %w", err)
	}
	tmpPath := tmp.Name()

	n, err := io.Copy(tmp, src)
	if err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return 0, fmt.Errorf("write: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return 0, fmt.Errorf("close: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return 0, fmt.Errorf("rename: %w", err)
	}
	return n, nil
}
