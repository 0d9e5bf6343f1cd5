package repository

import (
	"context"

	"github.com/momoso/api/internal/database"
	"github.com/momoso/api/internal/model"
)

// NovelRepository handles novel draft data access
type NovelRepository struct {
	db database.Database
}

// NewNovelRepository creates a new novel repository
func NewNovelRepository(db database.Database) *NovelRepository {
	return &NovelRepository{db: db}
}

// Create creates a new novel draft
func (r *NovelRepository) Create(ctx context.Context, novel *model.Novel) error {
	query := `
		CREATE novel CONTENT {
			owner_id: type::record($owner_id),
			title: $title,
			genres: $genres,
			worldview: "",
			synopsis: "",
			characters: [],
			episode_count: 0,
			completed: false,
			created_on: time::now(),
			updated_on: time::now()
		}
	`

	vars := map[string]interface{}{
		"owner_id": novel.OwnerID,
		"title":    novel.Title,
		"genres":   novel.Genres,
	}

	result, err := r.db.Query(ctx, query, vars)
	if err != nil {
		return err
	}

	created, err := extractCreatedRecord(result)
	if err != nil {
		return err
	}

	novel.ID = created.ID
	novel.CreatedOn = created.CreatedOn
	novel.UpdatedOn = created.UpdatedOn
	if novel.Characters == nil {
		novel.Characters = []model.Character{}
	}
	return nil
}

// GetByID retrieves a novel by ID
func (r *NovelRepository) GetByID(ctx context.Context, id string) (*model.Novel, error) {
	query := `SELECT * FROM type::record($id) WHERE meta::tb(id) = "novel"`
	vars := map[string]interface{}{"id": id}

	return decodeOne[model.Novel](r.db.QueryOne(ctx, query, vars))
}

// UpdateWorldview stores the generated worldview
func (r *NovelRepository) UpdateWorldview(ctx context.Context, id, worldview string) error {
	return r.setField(ctx, id, "worldview", worldview)
}

// UpdateSynopsis stores the generated synopsis
func (r *NovelRepository) UpdateSynopsis(ctx context.Context, id, synopsis string) error {
	return r.setField(ctx, id, "synopsis", synopsis)
}

// SetCharacters replaces the cast
func (r *NovelRepository) SetCharacters(ctx context.Context, id string, characters []model.Character) error {
	return r.setField(ctx, id, "characters", characters)
}

func (r *NovelRepository) setField(ctx context.Context, id, field string, value interface{}) error {
	// field is always one of the constants above, never user input
	query := `UPDATE type::record($id) SET ` + field + ` = $value, updated_on = time::now()`
	vars := map[string]interface{}{
		"id":    id,
		"value": value,
	}

	return r.db.Execute(ctx, query, vars)
}
