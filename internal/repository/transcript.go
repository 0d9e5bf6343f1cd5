package repository

import (
	"context"
	"time"

	"github.com/momoso/api/internal/database"
	"github.com/momoso/api/internal/model"
)

// TranscriptRepository handles recognized speech data access
type TranscriptRepository struct {
	db database.Database
}

// NewTranscriptRepository creates a new transcript repository
func NewTranscriptRepository(db database.Database) *TranscriptRepository {
	return &TranscriptRepository{db: db}
}

// Create stores a transcript. CreatedOn is kept when set so chunk order
// follows recording time rather than recognition time.
func (r *TranscriptRepository) Create(ctx context.Context, t *model.Transcript) error {
	if t.CreatedOn.IsZero() {
		t.CreatedOn = time.Now()
	}

	query := `
		CREATE transcript CONTENT {
			room: $room,
			speaker: $speaker,
			file: $file,
			text: $text,
			created_on: <datetime>$created_on
		}
	`
	vars := map[string]interface{}{
		"room":       t.Room,
		"speaker":    t.Speaker,
		"file":       t.File,
		"text":       t.Text,
		"created_on": t.CreatedOn.UTC().Format(time.RFC3339Nano),
	}

	result, err := r.db.Query(ctx, query, vars)
	if err != nil {
		return err
	}

	created, err := extractCreatedRecord(result)
	if err != nil {
		return err
	}
	t.ID = created.ID
	return nil
}

// ListByRoom retrieves a room's transcripts in time order
func (r *TranscriptRepository) ListByRoom(ctx context.Context, room string) ([]*model.Transcript, error) {
	query := `SELECT * FROM transcript WHERE room = $room ORDER BY created_on ASC`
	vars := map[string]interface{}{"room": room}

	results, err := r.db.Query(ctx, query, vars)
	if err != nil {
		return nil, err
	}
	return decodeRows[model.Transcript](results)
}

// CountByRoom counts a room's transcripts
func (r *TranscriptRepository) CountByRoom(ctx context.Context, room string) (int, error) {
	query := `SELECT count() AS count FROM transcript WHERE room = $room GROUP ALL`
	vars := map[string]interface{}{"room": room}

	result, err := r.db.QueryOne(ctx, query, vars)
	if err != nil {
		if isNotFound(err) {
			return 0, nil
		}
		return 0, err
	}
	return extractCount(result), nil
}
