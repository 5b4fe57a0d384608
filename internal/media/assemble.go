package media

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"sort"
	"strconv"
	"strings"
)

// Range is one (start, end) span of the source, in seconds.
type Range struct {
	Start float64
	End   float64
}

// SortRanges returns a copy of ranges ordered by start time. The sort is
// stable, so ranges with equal starts keep their input order. Sorted-by-start
// is the canonical assembly order; callers are not re-ordered back.
func SortRanges(ranges []Range) []Range {
	sorted := make([]Range, len(ranges))
	copy(sorted, ranges)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Start < sorted[j].Start
	})
	return sorted
}

// concatFilter builds the ffmpeg filter_complex that trims each range out of
// the source's video and audio streams, resets every trimmed segment's
// timestamp origin to zero, and concatenates the pairs into one interleaved
// [outv]/[outa] stream.
func concatFilter(ranges []Range) string {
	var filters []string
	var pads strings.Builder

	for i, r := range ranges {
		start := formatSeconds(r.Start)
		end := formatSeconds(r.End)
		filters = append(filters, fmt.Sprintf(
			"[0:v]trim=start=%s:end=%s,setpts=PTS-STARTPTS[v%d];[0:a]atrim=start=%s:end=%s,asetpts=PTS-STARTPTS[a%d]",
			start, end, i, start, end, i,
		))
		fmt.Fprintf(&pads, "[v%d][a%d]", i, i)
	}

	return strings.Join(filters, ";") + ";" + pads.String() +
		fmt.Sprintf("concat=n=%d:v=1:a=1[outv][outa]", len(ranges))
}

func formatSeconds(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// Assemble trims the given ranges out of inputPath and concatenates them,
// sorted by start time, into a single mp4 at outputPath with one video and
// one audio track. Ranges must be non-empty with start < end; the caller
// validates that before a clip job is ever created. On failure any partial
// output file is removed.
func Assemble(ctx context.Context, inputPath, outputPath string, ranges []Range) error {
	if len(ranges) == 0 {
		return fmt.Errorf("assemble: no ranges")
	}

	sorted := SortRanges(ranges)

	cmd := exec.CommandContext(ctx, "ffmpeg",
		"-i", inputPath,
		"-filter_complex", concatFilter(sorted),
		"-map", "[outv]",
		"-map", "[outa]",
		"-c:v", "libx264",
		"-c:a", "aac",
		"-y", outputPath,
	)
	if err := runCapture(cmd); err != nil {
		os.Remove(outputPath)
		return fmt.Errorf("assemble: %w", err)
	}
	return nil
}
