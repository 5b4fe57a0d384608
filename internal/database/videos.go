package database

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// Video job statuses. The pipeline only ever moves a video forward through
// uploading → processing → transcribing → ready, with error terminal from
// the two middle states.
const (
	VideoUploading    = "uploading"
	VideoProcessing   = "processing"
	VideoTranscribing = "transcribing"
	VideoReady        = "ready"
	VideoError        = "error"
)

// VideoDoc is the Video job document stored in the videos table.
// Transcript is kept as raw JSON: the aligner produces it, the API returns
// it verbatim, and nothing in between needs to decode it.
type VideoDoc struct {
	ID               string          `json:"id"`
	Filename         string          `json:"filename"`
	OriginalFilename string          `json:"original_filename"`
	FileSize         int64           `json:"file_size"`
	Duration         *float64        `json:"duration,omitempty"`
	Status           string          `json:"status"`
	Transcript       json.RawMessage `json:"transcript,omitempty"`
	ErrorMessage     string          `json:"error_message,omitempty"`
	CreatedAt        time.Time       `json:"created_at"`
}

// InsertVideo stores a new video job document.
func (db *DB) InsertVideo(ctx context.Context, v *VideoDoc) error {
	doc, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal video doc: %w", err)
	}
	_, err = db.Pool.Exec(ctx,
		`INSERT INTO videos (id, doc, created_at) VALUES ($1, $2, $3)`,
		v.ID, doc, v.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert video: %w", err)
	}
	return nil
}

// GetVideo fetches a video job document by id.
func (db *DB) GetVideo(ctx context.Context, id string) (*VideoDoc, error) {
	var doc []byte
	err := db.Pool.QueryRow(ctx,
		`SELECT doc FROM videos WHERE id = $1`, id,
	).Scan(&doc)
	if err != nil {
		if isNoRows(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get video: %w", err)
	}

	var v VideoDoc
	if err := json.Unmarshal(doc, &v); err != nil {
		return nil, fmt.Errorf("decode video doc: %w", err)
	}
	return &v, nil
}

// PatchVideo merges patch into the stored document in a single UPDATE.
// Readers never observe a partially applied transition.
func (db *DB) PatchVideo(ctx context.Context, id string, patch map[string]any) error {
	return db.patchDoc(ctx, "videos", id, patch)
}

func (db *DB) patchDoc(ctx context.Context, table, id string, patch map[string]any) error {
	p, err := json.Marshal(patch)
	if err != nil {
		return fmt.Errorf("marshal patch: %w", err)
	}
	tag, err := db.Pool.Exec(ctx,
		`UPDATE `+table+` SET doc = doc || $2::jsonb WHERE id = $1`,
		id, p,
	)
	if err != nil {
		return fmt.Errorf("patch %s: %w", table, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
