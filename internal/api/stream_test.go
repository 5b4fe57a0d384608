package api

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/rs/zerolog"

	"github.com/snarg/clipforge/internal/database"
	"github.com/snarg/clipforge/internal/storage"
)

// streamFixture returns a handler whose store holds one video backed by a
// real 1000-byte file.
func streamFixture(t *testing.T) (http.Handler, storage.Roots, []byte) {
	t.Helper()
	roots := newTestRoots(t)

	content := make([]byte, 1000)
	for i := range content {
		content[i] = byte(i % 251)
	}
	if err := os.WriteFile(roots.UploadPath("v1.mp4"), content, 0o644); err != nil {
		t.Fatal(err)
	}

	store := &mockVideoStore{videos: map[string]*database.VideoDoc{
		"v1": {ID: "v1", Filename: "v1.mp4", Status: database.VideoReady},
		"gone": {ID: "gone", Filename: "missing.mp4", Status: database.VideoReady},
	}}
	h := NewVideosHandler(store, &mockVideoScheduler{}, roots, 1<<20, zerolog.Nop())
	return newVideosRouter(h), roots, content
}

func streamRequest(router http.Handler, id, rangeHeader string) *httptest.ResponseRecorder {
	req := httptest.NewRequest("GET", "/videos/"+id+"/stream", nil)
	if rangeHeader != "" {
		req.Header.Set("Range", rangeHeader)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestStream_FullFile(t *testing.T) {
	router, _, content := streamFixture(t)

	rec := streamRequest(router, "v1", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	if got := rec.Header().Get("Accept-Ranges"); got != "bytes" {
		t.Errorf("Accept-Ranges = %q", got)
	}
	if got := rec.Header().Get("Content-Type"); got != "video/mp4" {
		t.Errorf("Content-Type = %q", got)
	}
	if got := rec.Header().Get("Content-Length"); got != "1000" {
		t.Errorf("Content-Length = %q", got)
	}
	if !bytes.Equal(rec.Body.Bytes(), content) {
		t.Error("body does not match file content")
	}
}

func TestStream_OpenEndedRange(t *testing.T) {
	router, _, content := streamFixture(t)

	rec := streamRequest(router, "v1", "bytes=900-")
	if rec.Code != http.StatusPartialContent {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusPartialContent)
	}
	if got := rec.Header().Get("Content-Range"); got != "bytes 900-999/1000" {
		t.Errorf("Content-Range = %q", got)
	}
	if got := rec.Header().Get("Content-Length"); got != "100" {
		t.Errorf("Content-Length = %q", got)
	}
	if !bytes.Equal(rec.Body.Bytes(), content[900:]) {
		t.Error("body does not match requested span")
	}
}

func TestStream_BoundedRange(t *testing.T) {
	router, _, content := streamFixture(t)

	rec := streamRequest(router, "v1", "bytes=100-299")
	if rec.Code != http.StatusPartialContent {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusPartialContent)
	}
	if got := rec.Header().Get("Content-Range"); got != "bytes 100-299/1000" {
		t.Errorf("Content-Range = %q", got)
	}
	if !bytes.Equal(rec.Body.Bytes(), content[100:300]) {
		t.Error("body does not match requested span")
	}
}

func TestStream_EndClampedToFileSize(t *testing.T) {
	router, _, content := streamFixture(t)

	rec := streamRequest(router, "v1", "bytes=950-5000")
	if rec.Code != http.StatusPartialContent {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusPartialContent)
	}
	if got := rec.Header().Get("Content-Range"); got != "bytes 950-999/1000" {
		t.Errorf("Content-Range = %q", got)
	}
	if !bytes.Equal(rec.Body.Bytes(), content[950:]) {
		t.Error("body does not match clamped span")
	}
}

func TestStream_StartBeyondEnd(t *testing.T) {
	router, _, _ := streamFixture(t)

	rec := streamRequest(router, "v1", "bytes=2000-")
	if rec.Code != http.StatusRequestedRangeNotSatisfiable {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusRequestedRangeNotSatisfiable)
	}
	if got := rec.Header().Get("Content-Range"); got != "bytes */1000" {
		t.Errorf("Content-Range = %q", got)
	}
}

func TestStream_MalformedRangeServesFullFile(t *testing.T) {
	router, _, _ := streamFixture(t)

	for _, header := range []string{"bytes=abc-", "items=0-99", "bytes=-"} {
		rec := streamRequest(router, "v1", header)
		if rec.Code != http.StatusOK {
			t.Errorf("range %q: status = %d, want %d", header, rec.Code, http.StatusOK)
		}
	}
}

func TestStream_UnknownVideo(t *testing.T) {
	router, _, _ := streamFixture(t)

	if rec := streamRequest(router, "nope", ""); rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusNotFound)
	}
}

func TestStream_MissingBackingFile(t *testing.T) {
	router, _, _ := streamFixture(t)

	if rec := streamRequest(router, "gone", ""); rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusNotFound)
	}
}

func TestParseByteRange(t *testing.T) {
	tests := []struct {
		header     string
		size       int64
		start, end int64
		ok         bool
	}{
		{"bytes=0-", 1000, 0, 999, true},
		{"bytes=500-", 1000, 500, 999, true},
		{"bytes=0-0", 1000, 0, 0, true},
		{"bytes=100-199", 1000, 100, 199, true},
		{"bytes=100-9999", 1000, 100, 999, true},
		{"bytes=2000-", 1000, 2000, 999, true}, // caller answers 416
		{"bytes=0-99,200-299", 1000, 0, 99, true},
		{"", 1000, 0, 0, false},
		{"bytes=-", 1000, 0, 0, false},
		{"bytes=a-b", 1000, 0, 0, false},
		{"bytes=200-100", 1000, 0, 0, false},
	}

	for _, tt := range tests {
		start, end, ok := parseByteRange(tt.header, tt.size)
		if ok != tt.ok {
			t.Errorf("%q: ok = %v, want %v", tt.header, ok, tt.ok)
			continue
		}
		if ok && (start != tt.start || end != tt.end) {
			t.Errorf("%q: span = %d-%d, want %d-%d", tt.header, start, end, tt.start, tt.end)
		}
	}
}
