package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/momoso/api/internal/ai"
	"github.com/momoso/api/internal/model"
)

// NovelRepository defines the interface for novel draft storage
type NovelRepository interface {
	Create(ctx context.Context, novel *model.Novel) error
	GetByID(ctx context.Context, id string) (*model.Novel, error)
	UpdateWorldview(ctx context.Context, id, worldview string) error
	UpdateSynopsis(ctx context.Context, id, synopsis string) error
	SetCharacters(ctx context.Context, id string, characters []model.Character) error
}

// EpisodeRepository defines the interface for episode storage
type EpisodeRepository interface {
	Append(ctx context.Context, episode *model.Episode) error
	GetLast(ctx context.Context, novelID string) (*model.Episode, error)
	ListByNovel(ctx context.Context, novelID string) ([]*model.Episode, error)
}

// NovelService runs the step-by-step generation of a novel draft. Each
// step is a single generator call whose result is stored on the draft.
type NovelService struct {
	novelRepo   NovelRepository
	episodeRepo EpisodeRepository
	generator   ai.Generator
}

// NovelServiceConfig holds configuration for the novel service
type NovelServiceConfig struct {
	NovelRepo   NovelRepository
	EpisodeRepo EpisodeRepository
	Generator   ai.Generator
}

// NewNovelService creates a new novel service
func NewNovelService(cfg NovelServiceConfig) *NovelService {
	return &NovelService{
		novelRepo:   cfg.NovelRepo,
		episodeRepo: cfg.EpisodeRepo,
		generator:   cfg.Generator,
	}
}

// CreateDraft starts an empty draft owned by ownerID. The request must
// already be validated.
func (s *NovelService) CreateDraft(ctx context.Context, ownerID string, req model.CreateNovelRequest) (*model.Novel, error) {
	genres := make([]string, 0, len(req.Genres))
	for _, g := range req.Genres {
		genres = append(genres, strings.TrimSpace(g))
	}

	novel := &model.Novel{
		OwnerID:    ownerID,
		Title:      strings.TrimSpace(req.Title),
		Genres:     genres,
		Characters: []model.Character{},
	}
	if err := s.novelRepo.Create(ctx, novel); err != nil {
		return nil, err
	}
	return novel, nil
}

// Get retrieves a novel by ID
func (s *NovelService) Get(ctx context.Context, novelID string) (*model.Novel, error) {
	novel, err := s.novelRepo.GetByID(ctx, novelID)
	if err != nil {
		return nil, err
	}
	if novel == nil {
		return nil, ErrNovelNotFound
	}
	return novel, nil
}

// ListEpisodes returns a novel's episodes in order
func (s *NovelService) ListEpisodes(ctx context.Context, novelID string) ([]*model.Episode, error) {
	if _, err := s.Get(ctx, novelID); err != nil {
		return nil, err
	}
	return s.episodeRepo.ListByNovel(ctx, novelID)
}

// RecommendWorldview generates the world of the novel from its genre and title
func (s *NovelService) RecommendWorldview(ctx context.Context, userID, novelID string) (*model.Novel, error) {
	novel, err := s.getOwned(ctx, userID, novelID)
	if err != nil {
		return nil, err
	}

	worldview, err := s.generate(ctx, "worldview", worldviewInstruction, worldviewPrompt(novel))
	if err != nil {
		return nil, err
	}
	if err := s.novelRepo.UpdateWorldview(ctx, novel.ID, worldview); err != nil {
		return nil, err
	}

	novel.Worldview = worldview
	return novel, nil
}

// RecommendSynopsis generates the synopsis; the worldview must exist
func (s *NovelService) RecommendSynopsis(ctx context.Context, userID, novelID string) (*model.Novel, error) {
	novel, err := s.getOwned(ctx, userID, novelID)
	if err != nil {
		return nil, err
	}
	if novel.Worldview == "" {
		return nil, fmt.Errorf("%w: worldview", ErrGenerationPrecondition)
	}

	synopsis, err := s.generate(ctx, "synopsis", synopsisInstruction, synopsisPrompt(novel))
	if err != nil {
		return nil, err
	}
	if err := s.novelRepo.UpdateSynopsis(ctx, novel.ID, synopsis); err != nil {
		return nil, err
	}

	novel.Synopsis = synopsis
	return novel, nil
}

// RecommendCharacters generates new characters and appends them to the cast
func (s *NovelService) RecommendCharacters(ctx context.Context, userID, novelID string) (*model.Novel, error) {
	novel, err := s.getOwned(ctx, userID, novelID)
	if err != nil {
		return nil, err
	}
	if novel.Worldview == "" || novel.Synopsis == "" {
		return nil, fmt.Errorf("%w: synopsis", ErrGenerationPrecondition)
	}

	raw, err := s.generate(ctx, "characters", charactersInstruction, charactersPrompt(novel))
	if err != nil {
		return nil, err
	}
	generated, err := parseCharacters(raw)
	if err != nil {
		return nil, err
	}

	characters := append(append([]model.Character{}, novel.Characters...), generated...)
	if err := s.novelRepo.SetCharacters(ctx, novel.ID, characters); err != nil {
		return nil, err
	}

	novel.Characters = characters
	return novel, nil
}

// WriteEpisode writes the first chapter, or the chapter after the last one
// steered by an optional direction
func (s *NovelService) WriteEpisode(ctx context.Context, userID, novelID string, req model.WriteEpisodeRequest) (*model.Episode, error) {
	novel, err := s.getOwned(ctx, userID, novelID)
	if err != nil {
		return nil, err
	}
	if novel.Worldview == "" || novel.Synopsis == "" || len(novel.Characters) == 0 {
		return nil, fmt.Errorf("%w: characters", ErrGenerationPrecondition)
	}

	last, err := s.episodeRepo.GetLast(ctx, novel.ID)
	if err != nil {
		return nil, err
	}

	number := 1
	instruction, prompt := firstEpisodeInstruction, firstEpisodePrompt(novel)
	if last != nil {
		number = last.Number + 1
		instruction, prompt = nextEpisodeInstruction, nextEpisodePrompt(novel, last, strings.TrimSpace(req.Direction))
	}

	text, err := s.generate(ctx, "episode", instruction, prompt)
	if err != nil {
		return nil, err
	}

	title, content := splitEpisode(text, number)
	episode := &model.Episode{
		NovelID: novel.ID,
		Number:  number,
		Title:   title,
		Content: content,
	}
	if err := s.episodeRepo.Append(ctx, episode); err != nil {
		return nil, err
	}
	return episode, nil
}

func (s *NovelService) getOwned(ctx context.Context, userID, novelID string) (*model.Novel, error) {
	novel, err := s.Get(ctx, novelID)
	if err != nil {
		return nil, err
	}
	if novel.OwnerID != userID {
		return nil, ErrNotNovelOwner
	}
	return novel, nil
}

func (s *NovelService) generate(ctx context.Context, step, instruction, prompt string) (string, error) {
	out, err := s.generator.Generate(ctx, instruction, prompt)
	if err != nil {
		return "", fmt.Errorf("generate %s: %w", step, err)
	}
	out = strings.TrimSpace(out)
	if out == "" {
		return "", fmt.Errorf("generate %s: %w", step, ai.ErrEmptyResponse)
	}
	return out, nil
}

// parseCharacters reads the JSON array the generator was asked for. Code
// fences and surrounding prose are tolerated, and non-string values are
// kept in their JSON form.
func parseCharacters(raw string) ([]model.Character, error) {
	body := stripCodeFence(raw)
	if start, end := strings.Index(body, "["), strings.LastIndex(body, "]"); start >= 0 && end > start {
		body = body[start : end+1]
	}

	var items []map[string]interface{}
	if err := json.Unmarshal([]byte(body), &items); err != nil {
		return nil, fmt.Errorf("%w: characters are not a JSON array", ErrMalformedGeneration)
	}

	characters := make([]model.Character, 0, len(items))
	for _, item := range items {
		c := model.Character{
			Name:    jsonString(item["name"]),
			Role:    jsonString(item["role"]),
			Age:     jsonString(item["age"]),
			Sex:     jsonString(item["sex"]),
			Job:     jsonString(item["job"]),
			Profile: jsonString(item["profile"]),
		}
		if c.Name == "" {
			continue
		}
		characters = append(characters, c)
	}
	if len(characters) == 0 {
		return nil, fmt.Errorf("%w: no named characters", ErrMalformedGeneration)
	}
	return characters, nil
}

func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		s = s[nl+1:]
	} else {
		s = strings.TrimPrefix(s, "```")
	}
	s = strings.TrimSpace(s)
	return strings.TrimSpace(strings.TrimSuffix(s, "```"))
}

func jsonString(v interface{}) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(t)
	default:
		b, err := json.Marshal(t)
		if err != nil {
			return ""
		}
		return string(b)
	}
}

// splitEpisode takes the first line as the chapter title. Markdown heading
// and emphasis markers around it are dropped.
func splitEpisode(text string, number int) (string, string) {
	text = strings.TrimSpace(text)
	first, rest, found := strings.Cut(text, "\n")
	title := strings.TrimSpace(strings.Trim(strings.TrimSpace(first), "#*_ "))
	rest = strings.TrimSpace(rest)

	if !found || title == "" || rest == "" {
		return fmt.Sprintf("Episode %d", number), text
	}
	return title, rest
}
