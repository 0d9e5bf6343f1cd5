package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/momoso/api/internal/ai"
	"github.com/momoso/api/internal/model"
	"golang.org/x/sync/singleflight"
)

const (
	passageRunes   = 800
	passageOverlap = 100
	topPassages    = 4
	embedBatchSize = 64
)

// PassageRepository defines the interface for embedded passage storage
type PassageRepository interface {
	ReplaceForNovel(ctx context.Context, novelID string, passages []*model.Passage) error
	CountByNovel(ctx context.Context, novelID string) (int, error)
	Search(ctx context.Context, novelID string, vector []float32, k int) ([]*model.Passage, error)
}

// EpisodeLister lists a novel's episodes in order
type EpisodeLister interface {
	ListByNovel(ctx context.Context, novelID string) ([]*model.Episode, error)
}

// AssistantService answers discussion questions from a novel's own text.
// Episodes are split into overlapping passages, embedded once, and the
// closest passages are handed to the generator as context.
type AssistantService struct {
	novelRepo   NovelRepository
	episodeRepo EpisodeLister
	passageRepo PassageRepository
	embedder    ai.Embedder
	generator   ai.Generator
	indexing    singleflight.Group
}

// AssistantServiceConfig holds configuration for the assistant service
type AssistantServiceConfig struct {
	NovelRepo   NovelRepository
	EpisodeRepo EpisodeLister
	PassageRepo PassageRepository
	Embedder    ai.Embedder
	Generator   ai.Generator
}

// NewAssistantService creates a new assistant service
func NewAssistantService(cfg AssistantServiceConfig) *AssistantService {
	return &AssistantService{
		novelRepo:   cfg.NovelRepo,
		episodeRepo: cfg.EpisodeRepo,
		passageRepo: cfg.PassageRepo,
		embedder:    cfg.Embedder,
		generator:   cfg.Generator,
	}
}

// IndexNovel rebuilds the passage index of a novel and returns the number
// of passages stored. Concurrent calls for the same novel share one run.
func (s *AssistantService) IndexNovel(ctx context.Context, novelID string) (int, error) {
	v, err, _ := s.indexing.Do(novelID, func() (interface{}, error) {
		return s.index(ctx, novelID)
	})
	if err != nil {
		return 0, err
	}
	return v.(int), nil
}

func (s *AssistantService) index(ctx context.Context, novelID string) (int, error) {
	novel, err := s.novelRepo.GetByID(ctx, novelID)
	if err != nil {
		return 0, err
	}
	if novel == nil {
		return 0, ErrNovelNotFound
	}

	episodes, err := s.episodeRepo.ListByNovel(ctx, novel.ID)
	if err != nil {
		return 0, err
	}

	var passages []*model.Passage
	for _, ep := range episodes {
		for _, text := range chunkRunes(ep.Content, passageRunes, passageOverlap) {
			passages = append(passages, &model.Passage{
				NovelID:   novel.ID,
				EpisodeID: ep.ID,
				Seq:       len(passages),
				Text:      text,
			})
		}
	}
	if len(passages) == 0 {
		return 0, ErrNothingToIndex
	}

	for start := 0; start < len(passages); start += embedBatchSize {
		end := min(start+embedBatchSize, len(passages))
		batch := passages[start:end]

		texts := make([]string, len(batch))
		for i, p := range batch {
			texts[i] = p.Text
		}
		vectors, err := s.embedder.Embed(ctx, texts)
		if err != nil {
			return 0, fmt.Errorf("embed passages: %w", err)
		}
		if len(vectors) != len(batch) {
			return 0, fmt.Errorf("embed passages: %w", ai.ErrEmptyResponse)
		}
		for i, p := range batch {
			p.Embedding = vectors[i]
		}
	}

	if err := s.passageRepo.ReplaceForNovel(ctx, novel.ID, passages); err != nil {
		return 0, err
	}
	return len(passages), nil
}

// RecommendTopics suggests discussion topics related to query
func (s *AssistantService) RecommendTopics(ctx context.Context, novelID, query string) (*model.AssistantAnswer, error) {
	return s.answer(ctx, novelID, topicInstruction, "Participant's remark", query)
}

// FactCheck judges a claim against the novel's text
func (s *AssistantService) FactCheck(ctx context.Context, novelID, claim string) (*model.AssistantAnswer, error) {
	return s.answer(ctx, novelID, factCheckInstruction, "Claim", claim)
}

func (s *AssistantService) answer(ctx context.Context, novelID, instruction, label, query string) (*model.AssistantAnswer, error) {
	query = strings.TrimSpace(query)

	count, err := s.passageRepo.CountByNovel(ctx, novelID)
	if err != nil {
		return nil, err
	}
	if count == 0 {
		if _, err := s.IndexNovel(ctx, novelID); err != nil {
			return nil, err
		}
	}

	vector, err := s.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	if len(vector) == 0 {
		return nil, fmt.Errorf("embed query: %w", ai.ErrEmptyResponse)
	}

	passages, err := s.passageRepo.Search(ctx, novelID, vector, topPassages)
	if err != nil {
		return nil, err
	}

	out, err := s.generator.Generate(ctx, instruction, passagesPrompt(label, query, passages))
	if err != nil {
		return nil, fmt.Errorf("generate answer: %w", err)
	}
	out = strings.TrimSpace(out)
	if out == "" {
		return nil, fmt.Errorf("generate answer: %w", ai.ErrEmptyResponse)
	}

	return &model.AssistantAnswer{Answer: out, Passages: passages}, nil
}

// chunkRunes splits text into windows of size runes, each starting
// size-overlap runes after the previous one. Blank windows are dropped.
func chunkRunes(text string, size, overlap int) []string {
	runes := []rune(strings.TrimSpace(text))
	if len(runes) == 0 {
		return nil
	}
	if len(runes) <= size {
		return []string{string(runes)}
	}

	step := size - overlap
	var chunks []string
	for start := 0; start < len(runes); start += step {
		end := min(start+size, len(runes))
		if chunk := strings.TrimSpace(string(runes[start:end])); chunk != "" {
			chunks = append(chunks, chunk)
		}
		if end == len(runes) {
			break
		}
	}
	return chunks
}
