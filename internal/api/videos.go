package api

import (
	"context"
	"errors"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/snarg/clipforge/internal/database"
	"github.com/snarg/clipforge/internal/metrics"
	"github.com/snarg/clipforge/internal/storage"
)

// videoExtensions is the upload allowlist. Everything else is rejected
// before any bytes hit disk.
var videoExtensions = map[string]bool{
	".mp4":  true,
	".mov":  true,
	".avi":  true,
	".mkv":  true,
	".webm": true,
}

// VideoStore is the database surface the video handlers need.
type VideoStore interface {
	InsertVideo(ctx context.Context, v *database.VideoDoc) error
	GetVideo(ctx context.Context, id string) (*database.VideoDoc, error)
}

// VideoScheduler schedules the background processing pipeline for an
// uploaded video.
type VideoScheduler interface {
	SubmitVideo(id string) bool
}

// VideosHandler serves video upload, metadata, and streaming endpoints.
type VideosHandler struct {
	store    VideoStore
	pipe     VideoScheduler
	roots    storage.Roots
	maxBytes int64
	log      zerolog.Logger
}

func NewVideosHandler(store VideoStore, pipe VideoScheduler, roots storage.Roots, maxBytes int64, log zerolog.Logger) *VideosHandler {
	return &VideosHandler{
		store:    store,
		pipe:     pipe,
		roots:    roots,
		maxBytes: maxBytes,
		log:      log.With().Str("handler", "videos").Logger(),
	}
}

// Routes registers the video endpoints.
func (h *VideosHandler) Routes(r chi.Router) {
	r.Post("/videos/upload", h.Upload)
	r.Get("/videos/{id}", h.Get)
	r.Get("/videos/{id}/stream", h.Stream)
}

// Upload handles POST /api/v1/videos/upload.
// Accepts a multipart form with a "file" field, stores the original, and
// schedules transcription in the background. The response returns
// immediately with the job in its uploading state.
func (h *VideosHandler) Upload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxBytes)

	file, header, err := r.FormFile("file")
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			WriteError(w, http.StatusRequestEntityTooLarge, "file too large")
			return
		}
		WriteError(w, http.StatusBadRequest, "missing file field")
		return
	}
	defer file.Close()

	ext := strings.ToLower(filepath.Ext(header.Filename))
	if !videoExtensions[ext] {
		WriteError(w, http.StatusBadRequest, "unsupported file type: "+ext)
		return
	}

	id := uuid.NewString()
	storedName := id + ext

	size, err := h.roots.SaveUpload(storedName, file)
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			WriteError(w, http.StatusRequestEntityTooLarge, "file too large")
			return
		}
		h.log.Error().Err(err).Str("filename", storedName).Msg("upload save failed")
		WriteError(w, http.StatusInternalServerError, "failed to store upload")
		return
	}

	video := &database.VideoDoc{
		ID:               id,
		Filename:         storedName,
		OriginalFilename: header.Filename,
		FileSize:         size,
		Status:           database.VideoUploading,
		CreatedAt:        time.Now().UTC(),
	}
	if err := h.store.InsertVideo(r.Context(), video); err != nil {
		h.log.Error().Err(err).Str("video_id", id).Msg("video insert failed")
		WriteError(w, http.StatusInternalServerError, "failed to record upload")
		return
	}

	metrics.UploadsTotal.Inc()
	h.pipe.SubmitVideo(id)

	h.log.Info().
		Str("video_id", id).
		Str("filename", header.Filename).
		Int64("size", size).
		Msg("video uploaded")

	WriteJSON(w, http.StatusCreated, map[string]string{
		"id":     id,
		"status": database.VideoUploading,
	})
}

// Get handles GET /api/v1/videos/{id}, returning the full job document
// including the transcript once transcription finishes.
func (h *VideosHandler) Get(w http.ResponseWriter, r *http.Request) {
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

	WriteJSON(w, http.StatusOK, video)
}
