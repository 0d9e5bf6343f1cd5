package ai

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

// OpenAIConfig holds OpenAI settings
type OpenAIConfig struct {
	APIKey         string
	BaseURL        string
	Model          string
	EmbeddingModel string
	WhisperModel   string

	RetryCount       int
	RetryWaitTime    time.Duration
	RetryMaxWaitTime time.Duration
	Timeout          time.Duration
}

// OpenAI implements Provider on the OpenAI REST API
type OpenAI struct {
	client         *resty.Client
	audioClient    *resty.Client
	model          string
	embeddingModel string
	whisperModel   string
}

// NewOpenAI creates an OpenAI provider
func NewOpenAI(cfg OpenAIConfig) (*OpenAI, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("openai api key is required")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.openai.com/v1"
	}
	if cfg.Model == "" {
		cfg.Model = "gpt-4o-mini"
	}
	if cfg.EmbeddingModel == "" {
		cfg.EmbeddingModel = "text-embedding-3-small"
	}
	if cfg.WhisperModel == "" {
		cfg.WhisperModel = "whisper-1"
	}
	if cfg.RetryCount == 0 {
		cfg.RetryCount = 3
	}
	if cfg.RetryWaitTime == 0 {
		cfg.RetryWaitTime = 500 * time.Millisecond
	}
	if cfg.RetryMaxWaitTime == 0 {
		cfg.RetryMaxWaitTime = 10 * time.Second
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 2 * time.Minute
	}

	client := newOpenAIClient(cfg).
		SetRetryCount(cfg.RetryCount).
		SetRetryWaitTime(cfg.RetryWaitTime).
		SetRetryMaxWaitTime(cfg.RetryMaxWaitTime).
		SetRetryAfter(retryAfter).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			if err != nil {
				return true
			}
			return r.StatusCode() == http.StatusTooManyRequests || r.StatusCode() >= http.StatusInternalServerError
		})

	// Multipart bodies are consumed on the first attempt, so audio
	// uploads go through a client without retries
	audioClient := newOpenAIClient(cfg)

	return &OpenAI{
		client:         client,
		audioClient:    audioClient,
		model:          cfg.Model,
		embeddingModel: cfg.EmbeddingModel,
		whisperModel:   cfg.WhisperModel,
	}, nil
}

func newOpenAIClient(cfg OpenAIConfig) *resty.Client {
	return resty.New().
		SetBaseURL(strings.TrimRight(cfg.BaseURL, "/")).
		SetAuthToken(cfg.APIKey).
		SetTimeout(cfg.Timeout).
		SetHeader("Accept", "application/json")
}

// retryAfter honours a Retry-After header on 429. Returning zero lets
// resty fall back to exponential backoff with jitter.
func retryAfter(_ *resty.Client, resp *resty.Response) (time.Duration, error) {
	if resp == nil || resp.StatusCode() != http.StatusTooManyRequests {
		return 0, nil
	}
	if v := resp.Header().Get("Retry-After"); v != "" {
		if seconds, err := time.ParseDuration(v + "s"); err == nil {
			return seconds, nil
		}
		if t, err := http.ParseTime(v); err == nil {
			return time.Until(t), nil
		}
	}
	return 0, nil
}

// Name returns the provider name
func (o *OpenAI) Name() string {
	return "openai:" + o.model
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

type embeddingRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type embeddingResponse struct {
	Data []struct {
		Index     int       `json:"index"`
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
}

type transcriptionResponse struct {
	Text string `json:"text"`
}

type apiError struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

// Generate runs one chat completion
func (o *OpenAI) Generate(ctx context.Context, system, prompt string) (string, error) {
	messages := make([]chatMessage, 0, 2)
	if system != "" {
		messages = append(messages, chatMessage{Role: "system", Content: system})
	}
	messages = append(messages, chatMessage{Role: "user", Content: prompt})

	var result chatResponse
	resp, err := o.client.R().
		SetContext(ctx).
		SetBody(chatRequest{Model: o.model, Messages: messages}).
		SetResult(&result).
		SetError(&apiError{}).
		Post("/chat/completions")
	if err := checkResponse(ctx, "openai chat", resp, err); err != nil {
		return "", err
	}

	if len(result.Choices) == 0 {
		return "", ErrEmptyResponse
	}
	text := strings.TrimSpace(result.Choices[0].Message.Content)
	if text == "" {
		return "", ErrEmptyResponse
	}
	return text, nil
}

// Embed embeds texts in one request
func (o *OpenAI) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	var result embeddingResponse
	resp, err := o.client.R().
		SetContext(ctx).
		SetBody(embeddingRequest{Model: o.embeddingModel, Input: texts}).
		SetResult(&result).
		SetError(&apiError{}).
		Post("/embeddings")
	if err := checkResponse(ctx, "openai embed", resp, err); err != nil {
		return nil, err
	}

	if len(result.Data) != len(texts) {
		return nil, fmt.Errorf("openai embed: %w: got %d vectors for %d texts", ErrEmptyResponse, len(result.Data), len(texts))
	}

	// The API documents index as the position in the input
	sort.Slice(result.Data, func(i, j int) bool { return result.Data[i].Index < result.Data[j].Index })
	embeddings := make([][]float32, len(result.Data))
	for i, d := range result.Data {
		embeddings[i] = d.Embedding
	}
	return embeddings, nil
}

// EmbedQuery embeds a search query. OpenAI embeddings have no task type, so
// queries and documents share one space.
func (o *OpenAI) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vectors, err := o.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// Transcribe uploads the audio to the transcription endpoint
func (o *OpenAI) Transcribe(ctx context.Context, audio []byte, mimeType, language string) (string, error) {
	fileName := "chunk.wav"
	if mimeType != "" && !strings.Contains(mimeType, "wav") {
		fileName = "chunk"
	}

	var result transcriptionResponse
	req := o.audioClient.R().
		SetContext(ctx).
		SetMultipartField("file", fileName, mimeType, bytes.NewReader(audio)).
		SetFormData(map[string]string{"model": o.whisperModel}).
		SetResult(&result).
		SetError(&apiError{})
	if code := languageCode(language); code != "" {
		req.SetFormData(map[string]string{"language": code})
	}

	resp, err := req.Post("/audio/transcriptions")
	if err := checkResponse(ctx, "openai transcribe", resp, err); err != nil {
		return "", err
	}
	return strings.TrimSpace(result.Text), nil
}

func checkResponse(ctx context.Context, op string, resp *resty.Response, err error) error {
	if err != nil {
		return unavailable(ctx, op, err)
	}
	if resp.IsError() {
		msg := resp.Status()
		if e, ok := resp.Error().(*apiError); ok && e.Error.Message != "" {
			msg = e.Error.Message
		}
		return fmt.Errorf("%s: %w: status %d: %s", op, ErrProviderUnavailable, resp.StatusCode(), msg)
	}
	return nil
}
