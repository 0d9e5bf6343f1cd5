package repository

import (
	"context"

	"github.com/momoso/api/internal/database"
	"github.com/momoso/api/internal/model"
)

// NoteRepository handles meeting note data access
type NoteRepository struct {
	db database.Database
}

// NewNoteRepository creates a new note repository
func NewNoteRepository(db database.Database) *NoteRepository {
	return &NoteRepository{db: db}
}

// Create stores a generated note
func (r *NoteRepository) Create(ctx context.Context, note *model.Note) error {
	query := `
		CREATE note CONTENT {
			discussion_id: type::record($discussion_id),
			content: $content,
			created_on: time::now()
		}
	`
	vars := map[string]interface{}{
		"discussion_id": note.DiscussionID,
		"content":       note.Content,
	}

	result, err := r.db.Query(ctx, query, vars)
	if err != nil {
		return err
	}

	created, err := extractCreatedRecord(result)
	if err != nil {
		return err
	}

	note.ID = created.ID
	note.CreatedOn = created.CreatedOn
	return nil
}

// ListByDiscussion retrieves notes for a discussion, newest first
func (r *NoteRepository) ListByDiscussion(ctx context.Context, discussionID string) ([]*model.Note, error) {
	query := `SELECT * FROM note WHERE discussion_id = type::record($discussion_id) ORDER BY created_on DESC`
	vars := map[string]interface{}{"discussion_id": discussionID}

	results, err := r.db.Query(ctx, query, vars)
	if err != nil {
		return nil, err
	}
	return decodeRows[model.Note](results)
}
