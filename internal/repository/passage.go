package repository

import (
	"context"

	"github.com/momoso/api/internal/database"
	"github.com/momoso/api/internal/model"
)

// PassageRepository handles embedded passage storage and similarity search
type PassageRepository struct {
	db database.Database
}

// NewPassageRepository creates a new passage repository
func NewPassageRepository(db database.Database) *PassageRepository {
	return &PassageRepository{db: db}
}

// ReplaceForNovel swaps a novel's passages for a fresh set in one transaction
func (r *PassageRepository) ReplaceForNovel(ctx context.Context, novelID string, passages []*model.Passage) error {
	batch := database.NewAtomicBatch().
		Add(`DELETE passage WHERE novel_id = type::record($novel_id)`,
			map[string]interface{}{"novel_id": novelID})

	for _, p := range passages {
		batch.Add(`
			CREATE passage CONTENT {
				novel_id: type::record($novel_id),
				episode_id: type::record($episode_id),
				seq: $seq,
				text: $text,
				embedding: $embedding
			}
		`, map[string]interface{}{
			"novel_id":   novelID,
			"episode_id": p.EpisodeID,
			"seq":        p.Seq,
			"text":       p.Text,
			"embedding":  p.Embedding,
		})
	}

	return batch.Execute(ctx, r.db)
}

// CountByNovel counts a novel's passages
func (r *PassageRepository) CountByNovel(ctx context.Context, novelID string) (int, error) {
	query := `SELECT count() AS count FROM passage WHERE novel_id = type::record($novel_id) GROUP ALL`
	vars := map[string]interface{}{"novel_id": novelID}

	result, err := r.db.QueryOne(ctx, query, vars)
	if err != nil {
		if isNotFound(err) {
			return 0, nil
		}
		return 0, err
	}
	return extractCount(result), nil
}

// Search returns the k passages of a novel closest to vector by cosine
// similarity, best first
func (r *PassageRepository) Search(ctx context.Context, novelID string, vector []float32, k int) ([]*model.Passage, error) {
	query := `
		SELECT id, novel_id, episode_id, seq, text,
			vector::similarity::cosine(embedding, $vector) AS score
		FROM passage
		WHERE novel_id = type::record($novel_id)
		ORDER BY score DESC
		LIMIT $k
	`
	vars := map[string]interface{}{
		"novel_id": novelID,
		"vector":   vector,
		"k":        k,
	}

	results, err := r.db.Query(ctx, query, vars)
	if err != nil {
		return nil, err
	}
	return decodeRows[model.Passage](results)
}
