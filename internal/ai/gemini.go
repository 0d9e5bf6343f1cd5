package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"google.golang.org/genai"
)

// GeminiConfig holds Gemini settings
type GeminiConfig struct {
	APIKey         string
	Model          string
	EmbeddingModel string
	BaseURL        string // optional, overrides the public endpoint
}

// Gemini implements Provider on the Gemini API
type Gemini struct {
	client         *genai.Client
	model          string
	embeddingModel string
}

// NewGemini creates a Gemini provider
func NewGemini(ctx context.Context, cfg GeminiConfig) (*Gemini, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("gemini api key is required")
	}
	if cfg.Model == "" {
		cfg.Model = "gemini-2.0-flash"
	}
	if cfg.EmbeddingModel == "" {
		cfg.EmbeddingModel = "text-embedding-004"
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:      cfg.APIKey,
		Backend:     genai.BackendGeminiAPI,
		HTTPOptions: genai.HTTPOptions{BaseURL: cfg.BaseURL},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}

	return &Gemini{
		client:         client,
		model:          cfg.Model,
		embeddingModel: cfg.EmbeddingModel,
	}, nil
}

// Name returns the provider name
func (g *Gemini) Name() string {
	return "gemini:" + g.model
}

// Generate runs one completion with system as the system instruction
func (g *Gemini) Generate(ctx context.Context, system, prompt string) (string, error) {
	var config *genai.GenerateContentConfig
	if system != "" {
		config = &genai.GenerateContentConfig{
			SystemInstruction: genai.NewContentFromText(system, genai.RoleUser),
		}
	}

	resp, err := g.client.Models.GenerateContent(ctx, g.model, genai.Text(prompt), config)
	if err != nil {
		return "", unavailable(ctx, "gemini generate", err)
	}

	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return "", ErrEmptyResponse
	}
	return text, nil
}

// Embedding task types. Indexed passages and search text use different ones.
const (
	taskRetrievalDocument = "RETRIEVAL_DOCUMENT"
	taskRetrievalQuery    = "RETRIEVAL_QUERY"
)

// Embed embeds texts as retrieval documents in one batch call
func (g *Gemini) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	return g.embed(ctx, texts, taskRetrievalDocument)
}

// EmbedQuery embeds a search query
func (g *Gemini) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vectors, err := g.embed(ctx, []string{text}, taskRetrievalQuery)
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

func (g *Gemini) embed(ctx context.Context, texts []string, task string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	contents := make([]*genai.Content, len(texts))
	for i, text := range texts {
		contents[i] = genai.NewContentFromText(text, genai.RoleUser)
	}

	result, err := g.client.Models.EmbedContent(ctx, g.embeddingModel, contents, &genai.EmbedContentConfig{
		TaskType: task,
	})
	if err != nil {
		return nil, unavailable(ctx, "gemini embed", err)
	}
	if len(result.Embeddings) != len(texts) {
		return nil, fmt.Errorf("gemini embed: %w: got %d vectors for %d texts", ErrEmptyResponse, len(result.Embeddings), len(texts))
	}

	embeddings := make([][]float32, len(result.Embeddings))
	for i, emb := range result.Embeddings {
		embeddings[i] = emb.Values
	}
	return embeddings, nil
}

// Transcribe sends the audio inline and asks for a verbatim transcript
func (g *Gemini) Transcribe(ctx context.Context, audio []byte, mimeType, language string) (string, error) {
	instruction := fmt.Sprintf(
		"Transcribe this recording verbatim in language %s. Reply with the transcript only. "+
			"If there is no intelligible speech, reply with an empty message.", language)

	contents := []*genai.Content{
		genai.NewContentFromParts([]*genai.Part{
			genai.NewPartFromText(instruction),
			genai.NewPartFromBytes(audio, mimeType),
		}, genai.RoleUser),
	}

	resp, err := g.client.Models.GenerateContent(ctx, g.model, contents, nil)
	if err != nil {
		return "", unavailable(ctx, "gemini transcribe", err)
	}
	return strings.TrimSpace(resp.Text()), nil
}
