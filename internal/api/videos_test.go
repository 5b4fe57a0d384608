package api

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/snarg/clipforge/internal/database"
	"github.com/snarg/clipforge/internal/storage"
)

// mockVideoStore implements VideoStore for testing.
type mockVideoStore struct {
	videos    map[string]*database.VideoDoc
	inserted  []*database.VideoDoc
	insertErr error
}

func (m *mockVideoStore) InsertVideo(ctx context.Context, v *database.VideoDoc) error {
	if m.insertErr != nil {
		return m.insertErr
	}
	m.inserted = append(m.inserted, v)
	return nil
}

func (m *mockVideoStore) GetVideo(ctx context.Context, id string) (*database.VideoDoc, error) {
	if v, ok := m.videos[id]; ok {
		return v, nil
	}
	return nil, database.ErrNotFound
}

// mockVideoScheduler implements VideoScheduler.
type mockVideoScheduler struct {
	submitted []string
}

func (m *mockVideoScheduler) SubmitVideo(id string) bool {
	m.submitted = append(m.submitted, id)
	return true
}

func newTestRoots(t *testing.T) storage.Roots {
	t.Helper()
	base := t.TempDir()
	roots := storage.NewRoots(
		filepath.Join(base, "uploads"),
		filepath.Join(base, "audio"),
		filepath.Join(base, "clips"),
	)
	if err := roots.Ensure(); err != nil {
		t.Fatal(err)
	}
	return roots
}

func newVideosRouter(h *VideosHandler) http.Handler {
	r := chi.NewRouter()
	h.Routes(r)
	return r
}

func uploadForm(t *testing.T, filename string, data []byte) (*bytes.Buffer, string) {
	t.Helper()
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile("file", filename)
	if err != nil {
		t.Fatal(err)
	}
	part.Write(data)
	writer.Close()
	return body, writer.FormDataContentType()
}

func TestUpload_Success(t *testing.T) {
	store := &mockVideoStore{}
	sched := &mockVideoScheduler{}
	roots := newTestRoots(t)
	h := NewVideosHandler(store, sched, roots, 1<<20, zerolog.Nop())

	body, ct := uploadForm(t, "holiday.mp4", []byte("fake-video-bytes"))
	req := httptest.NewRequest("POST", "/videos/upload", body)
	req.Header.Set("Content-Type", ct)
	rec := httptest.NewRecorder()

	newVideosRouter(h).ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want %d; body = %s", rec.Code, http.StatusCreated, rec.Body.String())
	}

	var resp map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp["status"] != database.VideoUploading {
		t.Errorf("status = %q, want %q", resp["status"], database.VideoUploading)
	}
	if resp["id"] == "" {
		t.Error("response has no id")
	}

	if len(store.inserted) != 1 {
		t.Fatalf("inserted %d videos, want 1", len(store.inserted))
	}
	v := store.inserted[0]
	if v.ID != resp["id"] {
		t.Errorf("stored id = %q, response id = %q", v.ID, resp["id"])
	}
	if v.OriginalFilename != "holiday.mp4" {
		t.Errorf("original filename = %q", v.OriginalFilename)
	}
	if v.FileSize != int64(len("fake-video-bytes")) {
		t.Errorf("file size = %d", v.FileSize)
	}
	if v.CreatedAt.IsZero() {
		t.Error("video has no creation timestamp")
	}

	if len(sched.submitted) != 1 || sched.submitted[0] != v.ID {
		t.Errorf("scheduled ids = %v, want [%s]", sched.submitted, v.ID)
	}

	data, err := os.ReadFile(roots.UploadPath(v.Filename))
	if err != nil {
		t.Fatalf("stored file: %v", err)
	}
	if string(data) != "fake-video-bytes" {
		t.Errorf("stored content = %q", data)
	}
}

func TestUpload_UnsupportedExtension(t *testing.T) {
	store := &mockVideoStore{}
	h := NewVideosHandler(store, &mockVideoScheduler{}, newTestRoots(t), 1<<20, zerolog.Nop())

	body, ct := uploadForm(t, "notes.txt", []byte("plain text"))
	req := httptest.NewRequest("POST", "/videos/upload", body)
	req.Header.Set("Content-Type", ct)
	rec := httptest.NewRecorder()

	newVideosRouter(h).ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
	if len(store.inserted) != 0 {
		t.Error("rejected upload was stored")
	}
}

func TestUpload_MissingFileField(t *testing.T) {
	h := NewVideosHandler(&mockVideoStore{}, &mockVideoScheduler{}, newTestRoots(t), 1<<20, zerolog.Nop())

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	writer.WriteField("name", "no file here")
	writer.Close()

	req := httptest.NewRequest("POST", "/videos/upload", body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	rec := httptest.NewRecorder()

	newVideosRouter(h).ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
}

func TestUpload_TooLarge(t *testing.T) {
	sched := &mockVideoScheduler{}
	h := NewVideosHandler(&mockVideoStore{}, sched, newTestRoots(t), 64, zerolog.Nop())

	body, ct := uploadForm(t, "big.mp4", bytes.Repeat([]byte("x"), 4096))
	req := httptest.NewRequest("POST", "/videos/upload", body)
	req.Header.Set("Content-Type", ct)
	rec := httptest.NewRecorder()

	newVideosRouter(h).ServeHTTP(rec, req)

	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusRequestEntityTooLarge)
	}
	if len(sched.submitted) != 0 {
		t.Error("oversized upload was scheduled")
	}
}

func TestGetVideo(t *testing.T) {
	store := &mockVideoStore{videos: map[string]*database.VideoDoc{
		"v1": {ID: "v1", Status: database.VideoReady, Transcript: json.RawMessage(`{"text":"hi"}`)},
	}}
	h := NewVideosHandler(store, &mockVideoScheduler{}, newTestRoots(t), 1<<20, zerolog.Nop())
	router := newVideosRouter(h)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest("GET", "/videos/v1", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	var doc database.VideoDoc
	if err := json.Unmarshal(rec.Body.Bytes(), &doc); err != nil {
		t.Fatal(err)
	}
	if doc.ID != "v1" || doc.Status != database.VideoReady {
		t.Errorf("doc = %+v", doc)
	}
	if string(doc.Transcript) != `{"text":"hi"}` {
		t.Errorf("transcript = %s", doc.Transcript)
	}

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest("GET", "/videos/nope", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("unknown id: status = %d, want %d", rec.Code, http.StatusNotFound)
	}
}
