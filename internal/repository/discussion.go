package repository

import (
	"context"
	"time"

	"github.com/momoso/api/internal/database"
	"github.com/momoso/api/internal/model"
)

// DiscussionRepository handles discussion data access
type DiscussionRepository struct {
	db database.Database
}

// NewDiscussionRepository creates a new discussion repository
func NewDiscussionRepository(db database.Database) *DiscussionRepository {
	return &DiscussionRepository{db: db}
}

// Create creates a discussion with its creator as the first participant
func (r *DiscussionRepository) Create(ctx context.Context, d *model.Discussion) error {
	query := `
		CREATE discussion CONTENT {
			novel_id: type::record($novel_id),
			creator_id: type::record($creator_id),
			topic: $topic,
			category: $category,
			start_time: <datetime>$start_time,
			end_time: <datetime>$end_time,
			max_participants: $max_participants,
			participants: [type::record($creator_id)],
			status: $status,
			created_on: time::now(),
			updated_on: time::now()
		}
	`

	vars := map[string]interface{}{
		"novel_id":         d.NovelID,
		"creator_id":       d.CreatorID,
		"topic":            d.Topic,
		"category":         d.Category,
		"start_time":       d.StartTime.UTC().Format(time.RFC3339Nano),
		"end_time":         d.EndTime.UTC().Format(time.RFC3339Nano),
		"max_participants": d.MaxParticipants,
		"status":           d.Status,
	}

	result, err := r.db.Query(ctx, query, vars)
	if err != nil {
		return err
	}

	created, err := extractCreatedRecord(result)
	if err != nil {
		return err
	}

	d.ID = created.ID
	d.CreatedOn = created.CreatedOn
	d.UpdatedOn = created.UpdatedOn
	d.Participants = []string{d.CreatorID}
	return nil
}

// GetByID retrieves a discussion by ID
func (r *DiscussionRepository) GetByID(ctx context.Context, id string) (*model.Discussion, error) {
	query := `SELECT * FROM type::record($id) WHERE meta::tb(id) = "discussion"`
	vars := map[string]interface{}{"id": id}

	return decodeOne[model.Discussion](r.db.QueryOne(ctx, query, vars))
}

// ListByNovel retrieves discussions about a novel, soonest first
func (r *DiscussionRepository) ListByNovel(ctx context.Context, novelID string) ([]*model.Discussion, error) {
	query := `SELECT * FROM discussion WHERE novel_id = type::record($novel_id) ORDER BY start_time ASC`
	vars := map[string]interface{}{"novel_id": novelID}

	results, err := r.db.Query(ctx, query, vars)
	if err != nil {
		return nil, err
	}
	return decodeRows[model.Discussion](results)
}

// AddParticipant appends userID when the discussion still has room. The
// capacity and membership checks run inside the UPDATE so two concurrent
// joins cannot overshoot the cap. Returns false when nothing changed.
func (r *DiscussionRepository) AddParticipant(ctx context.Context, id, userID string) (bool, error) {
	query := `
		UPDATE type::record($id) SET
			participants += type::record($user_id),
			updated_on = time::now()
		WHERE array::len(participants) < max_participants
			AND participants CONTAINSNOT type::record($user_id)
			AND status = "scheduled"
		RETURN AFTER
	`
	vars := map[string]interface{}{
		"id":      id,
		"user_id": userID,
	}

	result, err := r.db.Query(ctx, query, vars)
	if err != nil {
		return false, err
	}
	return len(extractRows(result)) > 0, nil
}

// RemoveParticipant removes userID. Returns false when the user was not in.
func (r *DiscussionRepository) RemoveParticipant(ctx context.Context, id, userID string) (bool, error) {
	query := `
		UPDATE type::record($id) SET
			participants -= type::record($user_id),
			updated_on = time::now()
		WHERE participants CONTAINS type::record($user_id)
		RETURN AFTER
	`
	vars := map[string]interface{}{
		"id":      id,
		"user_id": userID,
	}

	result, err := r.db.Query(ctx, query, vars)
	if err != nil {
		return false, err
	}
	return len(extractRows(result)) > 0, nil
}

// ListExpired retrieves scheduled discussions whose end time has passed
func (r *DiscussionRepository) ListExpired(ctx context.Context, now time.Time) ([]*model.Discussion, error) {
	query := `SELECT * FROM discussion WHERE status = "scheduled" AND end_time <= <datetime>$now`
	vars := map[string]interface{}{"now": now.UTC().Format(time.RFC3339Nano)}

	results, err := r.db.Query(ctx, query, vars)
	if err != nil {
		return nil, err
	}
	return decodeRows[model.Discussion](results)
}

// SetStatus updates the lifecycle status
func (r *DiscussionRepository) SetStatus(ctx context.Context, id string, status model.DiscussionStatus) error {
	query := `UPDATE type::record($id) SET status = $status, updated_on = time::now()`
	vars := map[string]interface{}{
		"id":     id,
		"status": status,
	}

	return r.db.Execute(ctx, query, vars)
}
