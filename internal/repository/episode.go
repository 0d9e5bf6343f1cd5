package repository

import (
	"context"

	"github.com/momoso/api/internal/database"
	"github.com/momoso/api/internal/model"
)

// EpisodeRepository handles generated chapter data access
type EpisodeRepository struct {
	db database.Database
}

// NewEpisodeRepository creates a new episode repository
func NewEpisodeRepository(db database.Database) *EpisodeRepository {
	return &EpisodeRepository{db: db}
}

// Append stores an episode and bumps the novel's episode count in one
// transaction. episode.Number must already be set by the caller.
func (r *EpisodeRepository) Append(ctx context.Context, episode *model.Episode) error {
	batch := database.NewAtomicBatch().
		Add(`
			CREATE episode CONTENT {
				novel_id: type::record($novel_id),
				number: $number,
				title: $title,
				content: $content,
				created_on: time::now()
			}
		`, map[string]interface{}{
			"novel_id": episode.NovelID,
			"number":   episode.Number,
			"title":    episode.Title,
			"content":  episode.Content,
		}).
		Add(`UPDATE type::record($novel_id) SET episode_count = $number, updated_on = time::now()`,
			map[string]interface{}{
				"novel_id": episode.NovelID,
				"number":   episode.Number,
			})

	if err := batch.Execute(ctx, r.db); err != nil {
		if isUniqueConstraintError(err) {
			return database.ErrDuplicate
		}
		return err
	}

	// The batch does not hand back the created record; read it by its
	// unique (novel_id, number) pair
	stored, err := r.GetByNumber(ctx, episode.NovelID, episode.Number)
	if err != nil {
		return err
	}
	if stored != nil {
		episode.ID = stored.ID
		episode.CreatedOn = stored.CreatedOn
	}
	return nil
}

// GetByNumber retrieves one episode of a novel
func (r *EpisodeRepository) GetByNumber(ctx context.Context, novelID string, number int) (*model.Episode, error) {
	query := `SELECT * FROM episode WHERE novel_id = type::record($novel_id) AND number = $number LIMIT 1`
	vars := map[string]interface{}{
		"novel_id": novelID,
		"number":   number,
	}

	return decodeOne[model.Episode](r.db.QueryOne(ctx, query, vars))
}

// GetLast retrieves the highest-numbered episode of a novel
func (r *EpisodeRepository) GetLast(ctx context.Context, novelID string) (*model.Episode, error) {
	query := `SELECT * FROM episode WHERE novel_id = type::record($novel_id) ORDER BY number DESC LIMIT 1`
	vars := map[string]interface{}{"novel_id": novelID}

	return decodeOne[model.Episode](r.db.QueryOne(ctx, query, vars))
}

// ListByNovel retrieves every episode of a novel in reading order
func (r *EpisodeRepository) ListByNovel(ctx context.Context, novelID string) ([]*model.Episode, error) {
	query := `SELECT * FROM episode WHERE novel_id = type::record($novel_id) ORDER BY number ASC`
	vars := map[string]interface{}{"novel_id": novelID}

	results, err := r.db.Query(ctx, query, vars)
	if err != nil {
		return nil, err
	}
	return decodeRows[model.Episode](results)
}
