package database

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
)

// Clip job statuses. Clips are created in processing and end at ready or error.
const (
	ClipProcessing = "processing"
	ClipReady      = "ready"
	ClipError      = "error"
)

// ClipRange is one requested (start, end) span in seconds.
type ClipRange struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

// ClipDoc is the Clip job document stored in the clips table.
// Segments are persisted in request order; the assembler works on a
// sorted copy.
type ClipDoc struct {
	ID           string      `json:"id"`
	VideoID      string      `json:"video_id"`
	Filename     string      `json:"filename"`
	Segments     []ClipRange `json:"segments"`
	Status       string      `json:"status"`
	ErrorMessage string      `json:"error_message,omitempty"`
	CreatedAt    time.Time   `json:"created_at"`
}

// InsertClip stores a new clip job document.
func (db *DB) InsertClip(ctx context.Context, c *ClipDoc) error {
	doc, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal clip doc: %w", err)
	}
	_, err = db.Pool.Exec(ctx,
		`INSERT INTO clips (id, doc, created_at) VALUES ($1, $2, $3)`,
		c.ID, doc, c.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert clip: %w", err)
	}
	return nil
}

// GetClip fetches a clip job document by id.
func (db *DB) GetClip(ctx context.Context, id string) (*ClipDoc, error) {
	var doc []byte
	err := db.Pool.QueryRow(ctx,
		`SELECT doc FROM clips WHERE id = $1`, id,
	).Scan(&doc)
	if err != nil {
		if isNoRows(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get clip: %w", err)
	}

	var c ClipDoc
	if err := json.Unmarshal(doc, &c); err != nil {
		return nil, fmt.Errorf("decode clip doc: %w", err)
	}
	return &c, nil
}

// PatchClip merges patch into the stored document in a single UPDATE.
func (db *DB) PatchClip(ctx context.Context, id string, patch map[string]any) error {
	return db.patchDoc(ctx, "clips", id, patch)
}

func isNoRows(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}
