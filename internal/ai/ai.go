// Package ai wraps the generative model providers behind three small
// interfaces: Generator for text, Embedder for vectors and Recognizer for
// speech. Gemini is served through google.golang.org/genai and OpenAI
// through its REST API.
//
// Every upstream failure is reported as ErrProviderUnavailable and an empty
// completion as ErrEmptyResponse, so callers can map both to 502 without
// knowing which provider is configured.
package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrEmptyResponse indicates the provider answered without content.
	ErrEmptyResponse = errors.New("ai provider returned an empty response")

	// ErrProviderUnavailable indicates the provider call failed.
	ErrProviderUnavailable = errors.New("ai provider unavailable")
)

// Generator produces text from a system instruction and a user prompt
type Generator interface {
	Generate(ctx context.Context, system, prompt string) (string, error)
}

// Embedder turns texts into vectors. Embed is for the documents being
// indexed, one vector per input in input order; EmbedQuery is for the
// search text compared against them.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// Recognizer turns recorded speech into text. An empty string with a nil
// error means no speech was detected.
type Recognizer interface {
	Transcribe(ctx context.Context, audio []byte, mimeType, language string) (string, error)
}

// Provider is a single backend serving all three capabilities
type Provider interface {
	Generator
	Embedder
	Recognizer
	Name() string
}

// Config selects and configures a provider
type Config struct {
	Provider string // gemini, openai
	Gemini   GeminiConfig
	OpenAI   OpenAIConfig
}

// New creates the configured provider
func New(ctx context.Context, cfg Config) (Provider, error) {
	switch cfg.Provider {
	case "gemini":
		return NewGemini(ctx, cfg.Gemini)
	case "openai":
		return NewOpenAI(cfg.OpenAI)
	default:
		return nil, fmt.Errorf("unknown ai provider %q", cfg.Provider)
	}
}

// languageCode reduces a BCP 47 tag such as "ko-KR" to its primary
// subtag ("ko")
func languageCode(tag string) string {
	tag = strings.TrimSpace(tag)
	if i := strings.IndexAny(tag, "-_"); i > 0 {
		tag = tag[:i]
	}
	return strings.ToLower(tag)
}

// unavailable wraps err as ErrProviderUnavailable unless the caller gave up
func unavailable(ctx context.Context, op string, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	return fmt.Errorf("%s: %w: %v", op, ErrProviderUnavailable, err)
}
