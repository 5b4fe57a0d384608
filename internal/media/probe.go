package media

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
)

// CheckTools verifies ffmpeg and ffprobe are in PATH. Call once at startup.
func CheckTools() error {
	for _, tool := range []string{"ffmpeg", "ffprobe"} {
		if _, err := exec.LookPath(tool); err != nil {
			return fmt.Errorf("%s not found in PATH: %w", tool, err)
		}
	}
	return nil
}

// Duration returns the container duration of a media file in seconds,
// read from ffprobe format metadata.
func Duration(ctx context.Context, path string) (float64, error) {
	cmd := exec.CommandContext(ctx, "ffprobe",
		"-v", "quiet",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		path,
	)
	out, err := cmd.Output()
	if err != nil {
		return 0, fmt.Errorf("ffprobe %s: %w", path, err)
	}

	d, err := strconv.ParseFloat(strings.TrimSpace(string(out)), 64)
	if err != nil {
		return 0, fmt.Errorf("ffprobe %s: parse duration %q: %w", path, strings.TrimSpace(string(out)), err)
	}
	return d, nil
}

// ExtractAudio demuxes the audio track of videoPath into an mp3 at audioPath.
func ExtractAudio(ctx context.Context, videoPath, audioPath string) error {
	cmd := exec.CommandContext(ctx, "ffmpeg",
		"-i", videoPath,
		"-vn",
		"-acodec", "libmp3lame",
		"-q:a", "2",
		"-y", audioPath,
	)
	if err := runCapture(cmd); err != nil {
		return fmt.Errorf("extract audio: %w", err)
	}
	return nil
}

// runCapture runs cmd and, on failure, folds the tail of stderr into the
// returned error so the toolchain diagnostic survives into the job record.
func runCapture(cmd *exec.Cmd) error {
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if diag := stderrTail(stderr.String()); diag != "" {
			return fmt.Errorf("%w: %s", err, diag)
		}
		return err
	}
	return nil
}

// stderrTail returns the last few non-empty lines of ffmpeg stderr, which is
// where the actual failure reason lands.
func stderrTail(s string) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	var tail []string
	for i := len(lines) - 1; i >= 0 && len(tail) < 3; i-- {
		if l := strings.TrimSpace(lines[i]); l != "" {
			tail = append([]string{l}, tail...)
		}
	}
	return strings.Join(tail, "; ")
}
