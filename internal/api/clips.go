package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/snarg/clipforge/internal/database"
	"github.com/snarg/clipforge/internal/storage"
)

// ClipStore is the database surface the clip handlers need.
type ClipStore interface {
	GetVideo(ctx context.Context, id string) (*database.VideoDoc, error)
	InsertClip(ctx context.Context, c *database.ClipDoc) error
	GetClip(ctx context.Context, id string) (*database.ClipDoc, error)
}

// ClipScheduler schedules the background assembly pipeline for a clip.
type ClipScheduler interface {
	SubmitClip(clip *database.ClipDoc, sourceFilename string) bool
}

// ClipArchive locates archived clip copies when the local file is gone.
// *storage.S3Archive satisfies it; nil means no archive is configured.
type ClipArchive interface {
	Exists(ctx context.Context, key string) bool
	URL(ctx context.Context, key string) (string, error)
}

// ClipsHandler serves clip generation, metadata, and download endpoints.
type ClipsHandler struct {
	store   ClipStore
	pipe    ClipScheduler
	roots   storage.Roots
	archive ClipArchive
	log     zerolog.Logger
}

func NewClipsHandler(store ClipStore, pipe ClipScheduler, roots storage.Roots, archive ClipArchive, log zerolog.Logger) *ClipsHandler {
	return &ClipsHandler{
		store:   store,
		pipe:    pipe,
		roots:   roots,
		archive: archive,
		log:     log.With().Str("handler", "clips").Logger(),
	}
}

// Routes registers the clip endpoints.
func (h *ClipsHandler) Routes(r chi.Router) {
	r.Post("/videos/{id}/generate-clip", h.Generate)
	r.Get("/clips/{id}", h.Get)
	r.Get("/clips/{id}/download", h.Download)
}

type generateClipRequest struct {
	Segments []database.ClipRange `json:"segments"`
}

// Generate handles POST /api/v1/videos/{id}/generate-clip.
// Validation happens here, before the job document exists: the source video
// must be ready and every requested segment must be a forward interval.
// Segments are persisted in request order; the assembler sorts its own copy.
func (h *ClipsHandler) Generate(w http.ResponseWriter, r *http.Request) {
	videoID := chi.URLParam(r, "id")

	var req generateClipRequest
	if err := DecodeJSON(r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if len(req.Segments) == 0 {
		WriteError(w, http.StatusBadRequest, "segments must not be empty")
		return
	}
	for i, seg := range req.Segments {
		if seg.Start < 0 || seg.Start >= seg.End {
			WriteErrorDetail(w, http.StatusBadRequest, "invalid segment",
				fmt.Sprintf("segment %d (%g-%g): start must be >= 0 and before end", i, seg.Start, seg.End))
			return
		}
	}

	video, err := h.store.GetVideo(r.Context(), videoID)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			WriteError(w, http.StatusNotFound, "video not found")
			return
		}
		h.log.Error().Err(err).Str("video_id", videoID).Msg("video lookup failed")
		WriteError(w, http.StatusInternalServerError, "lookup failed")
		return
	}
	if video.Status != database.VideoReady {
		WriteError(w, http.StatusBadRequest, "video is not ready for clipping")
		return
	}

	id := uuid.NewString()
	clip := &database.ClipDoc{
		ID:        id,
		VideoID:   videoID,
		Filename:  "clip_" + id + ".mp4",
		Segments:  req.Segments,
		Status:    database.ClipProcessing,
		CreatedAt: time.Now().UTC(),
	}
	if err := h.store.InsertClip(r.Context(), clip); err != nil {
		h.log.Error().Err(err).Str("clip_id", id).Msg("clip insert failed")
		WriteError(w, http.StatusInternalServerError, "failed to record clip job")
		return
	}

	h.pipe.SubmitClip(clip, video.Filename)

	h.log.Info().
		Str("clip_id", id).
		Str("video_id", videoID).
		Int("segments", len(req.Segments)).
		Msg("clip job scheduled")

	WriteJSON(w, http.StatusCreated, map[string]string{
		"id":     id,
		"status": database.ClipProcessing,
	})
}

// Get handles GET /api/v1/clips/{id}.
func (h *ClipsHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	clip, err := h.store.GetClip(r.Context(), id)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			WriteError(w, http.StatusNotFound, "clip not found")
			return
		}
		h.log.Error().Err(err).Str("clip_id", id).Msg("clip lookup failed")
		WriteError(w, http.StatusInternalServerError, "lookup failed")
		return
	}

	WriteJSON(w, http.StatusOK, clip)
}

// Download handles GET /api/v1/clips/{id}/download, serving the finished
// clip as an attachment.
func (h *ClipsHandler) Download(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	clip, err := h.store.GetClip(r.Context(), id)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			WriteError(w, http.StatusNotFound, "clip not found")
			return
		}
		h.log.Error().Err(err).Str("clip_id", id).Msg("clip lookup failed")
		WriteError(w, http.StatusInternalServerError, "lookup failed")
		return
	}
	if clip.Status != database.ClipReady {
		WriteError(w, http.StatusBadRequest, "clip is not ready")
		return
	}

	path := h.roots.ClipPath(clip.Filename)
	if _, err := os.Stat(path); err != nil {
		// The local copy can be gone (pruned disk, host rebuild) while the
		// archive still has it; hand the client a presigned URL instead.
		if h.archive != nil && h.archive.Exists(r.Context(), clip.Filename) {
			url, uerr := h.archive.URL(r.Context(), clip.Filename)
			if uerr != nil {
				h.log.Error().Err(uerr).Str("clip_id", id).Msg("presign failed")
				WriteError(w, http.StatusInternalServerError, "archive link failed")
				return
			}
			h.log.Info().Str("clip_id", id).Msg("serving clip from archive")
			http.Redirect(w, r, url, http.StatusFound)
			return
		}
		WriteError(w, http.StatusNotFound, "clip file not found on disk")
		return
	}

	w.Header().Set("Content-Type", "video/mp4")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, clip.Filename))
	http.ServeFile(w, r, path)
}
