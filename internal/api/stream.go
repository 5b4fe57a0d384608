package api

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/snarg/clipforge/internal/database"
)

// streamChunkSize is the copy granularity for range responses. A stalled
// or disconnected client stops the copy at the next chunk boundary.
const streamChunkSize = 1 << 20

var mediaTypes = map[string]string{
	".mp4":  "video/mp4",
	".mov":  "video/quicktime",
	".avi":  "video/x-msvideo",
	".mkv":  "video/x-matroska",
	".webm": "video/webm",
}

// Stream handles GET /api/v1/videos/{id}/stream. It serves the stored
// original with byte-range support so browser players can seek.
func (h *VideosHandler) Stream(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	video, err := h.store.GetVideo(r.Context(), id)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			WriteError(w, http.StatusNotFound, "video not found")
			return
		}
		h.log.Error().Err(err).Str("video_id", id).Msg("video lookup failed")
		WriteError(w, http.StatusInternalServerError, "lookup failed")
		return
	}

	path := h.roots.UploadPath(video.Filename)
	f, err := os.Open(path)
	if err != nil {
		WriteError(w, http.StatusNotFound, "video file not found on disk")
		return
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		WriteError(w, http.StatusInternalServerError, "stat failed")
		return
	}
	size := info.Size()

	contentType := mediaTypes[strings.ToLower(filepath.Ext(video.Filename))]
	if contentType == "" {
		contentType = "video/mp4"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Accept-Ranges", "bytes")

	start, end, ok := parseByteRange(r.Header.Get("Range"), size)
	if !ok {
		w.Header().Set("Content-Length", strconv.FormatInt(size, 10))
		w.WriteHeader(http.StatusOK)
		copyChunks(w, f, size)
		return
	}

	if start >= size {
		w.Header().Set("Content-Range", fmt.Sprintf("bytes */%d", size))
		WriteError(w, http.StatusRequestedRangeNotSatisfiable, "range start beyond end of file")
		return
	}

	length := end - start + 1
	w.Header().Set("Content-Range", fmt.Sprintf("bytes %d-%d/%d", start, end, size))
	w.Header().Set("Content-Length", strconv.FormatInt(length, 10))
	w.WriteHeader(http.StatusPartialContent)

	if _, err := f.Seek(start, io.SeekStart); err != nil {
		return
	}
	copyChunks(w, f, length)
}

// parseByteRange parses a "bytes=<start>-[<end>]" header against the file
// size. Only the first range clause is honored; the end offset is clamped
// to the last byte. Malformed headers are treated as no range at all.
// A start beyond the file is reported as a range (start >= size) so the
// caller can answer 416.
func parseByteRange(header string, size int64) (start, end int64, ok bool) {
	if !strings.HasPrefix(header, "bytes=") {
		return 0, 0, false
	}
	spec := strings.TrimPrefix(header, "bytes=")
	if i := strings.Index(spec, ","); i >= 0 {
		spec = spec[:i]
	}

	startStr, endStr, found := strings.Cut(spec, "-")
	if !found {
		return 0, 0, false
	}

	start, err := strconv.ParseInt(strings.TrimSpace(startStr), 10, 64)
	if err != nil || start < 0 {
		return 0, 0, false
	}

	end = size - 1
	if s := strings.TrimSpace(endStr); s != "" {
		end, err = strconv.ParseInt(s, 10, 64)
		if err != nil || end < start {
			return 0, 0, false
		}
		if end > size-1 {
			end = size - 1
		}
	}

	return start, end, true
}

// copyChunks copies up to length bytes from src to the client in fixed-size
// chunks, stopping as soon as a client write fails.
func copyChunks(w io.Writer, src io.Reader, length int64) {
	buf := make([]byte, streamChunkSize)
	remaining := length
	for remaining > 0 {
		n := int64(len(buf))
		if remaining < n {
			n = remaining
		}
		read, err := src.Read(buf[:n])
		if read > 0 {
			if _, werr := w.Write(buf[:read]); werr != nil {
				return
			}
			remaining -= int64(read)
		}
		if err != nil {
			return
		}
	}
}
