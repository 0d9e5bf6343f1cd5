package ai

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// geminiPart and geminiRequest decode the fields of a generateContent or
// batchEmbedContents body that the provider controls
type geminiPart struct {
	Text       string `json:"text"`
	InlineData *struct {
		MimeType string `json:"mimeType"`
		Data     []byte `json:"data"`
	} `json:"inlineData"`
}

type geminiContent struct {
	Role  string       `json:"role"`
	Parts []geminiPart `json:"parts"`
}

type geminiRequest struct {
	Contents          []geminiContent `json:"contents"`
	SystemInstruction *geminiContent  `json:"systemInstruction"`
	Requests          []struct {
		Model    string        `json:"model"`
		Content  geminiContent `json:"content"`
		TaskType string        `json:"taskType"`
	} `json:"requests"`
}

func newTestGemini(t *testing.T, handler http.HandlerFunc) *Gemini {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	client, err := NewGemini(context.Background(), GeminiConfig{
		APIKey:  "gm-test",
		BaseURL: srv.URL,
	})
	require.NoError(t, err)
	return client
}

func writeJSON(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = io.WriteString(w, body)
}

func TestNewGemini_RequiresAPIKey(t *testing.T) {
	t.Parallel()

	_, err := NewGemini(context.Background(), GeminiConfig{})
	assert.Error(t, err)
}

// ============================================================================
// Generate Tests
// ============================================================================

func TestGemini_Generate_SendsSystemInstruction(t *testing.T) {
	t.Parallel()

	var got geminiRequest
	client := newTestGemini(t, func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.HasSuffix(r.URL.Path, "models/gemini-2.0-flash:generateContent"), r.URL.Path)
		assert.Equal(t, "gm-test", r.Header.Get("x-goog-api-key"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		writeJSON(w, http.StatusOK, `{"candidates":[{"content":{"role":"model","parts":[{"text":"  세계관  "}]}}]}`)
	})

	text, err := client.Generate(context.Background(), "you are a novelist", "write a worldview")
	require.NoError(t, err)

	assert.Equal(t, "세계관", text)
	require.NotNil(t, got.SystemInstruction)
	require.Len(t, got.SystemInstruction.Parts, 1)
	assert.Equal(t, "you are a novelist", got.SystemInstruction.Parts[0].Text)
	require.Len(t, got.Contents, 1)
	assert.Equal(t, "write a worldview", got.Contents[0].Parts[0].Text)
}

func TestGemini_Generate_NoSystemInstruction(t *testing.T) {
	t.Parallel()

	var got geminiRequest
	client := newTestGemini(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		writeJSON(w, http.StatusOK, `{"candidates":[{"content":{"role":"model","parts":[{"text":"ok"}]}}]}`)
	})

	_, err := client.Generate(context.Background(), "", "prompt")
	require.NoError(t, err)
	assert.Nil(t, got.SystemInstruction)
}

func TestGemini_Generate_EmptyText(t *testing.T) {
	t.Parallel()

	client := newTestGemini(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, `{"candidates":[{"content":{"role":"model","parts":[{"text":"   "}]}}]}`)
	})

	_, err := client.Generate(context.Background(), "sys", "prompt")
	assert.ErrorIs(t, err, ErrEmptyResponse)
}

func TestGemini_Generate_ServerError(t *testing.T) {
	t.Parallel()

	client := newTestGemini(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusInternalServerError, `{"error":{"code":500,"message":"backend failure","status":"INTERNAL"}}`)
	})

	_, err := client.Generate(context.Background(), "sys", "prompt")
	assert.ErrorIs(t, err, ErrProviderUnavailable)
}

func TestGemini_Generate_CanceledContext(t *testing.T) {
	t.Parallel()

	client := newTestGemini(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, `{"candidates":[]}`)
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := client.Generate(ctx, "sys", "prompt")
	assert.ErrorIs(t, err, context.Canceled)
	assert.NotErrorIs(t, err, ErrProviderUnavailable)
}

// ============================================================================
// Embedding Tests
// ============================================================================

func TestGemini_Embed_DocumentTaskType(t *testing.T) {
	t.Parallel()

	var got geminiRequest
	client := newTestGemini(t, func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.HasSuffix(r.URL.Path, "models/text-embedding-004:batchEmbedContents"), r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		writeJSON(w, http.StatusOK, `{"embeddings":[{"values":[0.1,0.2]},{"values":[0.3,0.4]}]}`)
	})

	vecs, err := client.Embed(context.Background(), []string{"first passage", "second passage"})
	require.NoError(t, err)

	assert.Equal(t, [][]float32{{0.1, 0.2}, {0.3, 0.4}}, vecs)
	require.Len(t, got.Requests, 2)
	for i, req := range got.Requests {
		assert.Equal(t, "RETRIEVAL_DOCUMENT", req.TaskType)
		assert.Equal(t, []string{"first passage", "second passage"}[i], req.Content.Parts[0].Text)
	}
}

func TestGemini_EmbedQuery_QueryTaskType(t *testing.T) {
	t.Parallel()

	var got geminiRequest
	client := newTestGemini(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		writeJSON(w, http.StatusOK, `{"embeddings":[{"values":[0.5,0.6]}]}`)
	})

	vec, err := client.EmbedQuery(context.Background(), "who is the heroine?")
	require.NoError(t, err)

	assert.Equal(t, []float32{0.5, 0.6}, vec)
	require.Len(t, got.Requests, 1)
	assert.Equal(t, "RETRIEVAL_QUERY", got.Requests[0].TaskType)
	assert.Equal(t, "who is the heroine?", got.Requests[0].Content.Parts[0].Text)
}

func TestGemini_Embed_CountMismatch(t *testing.T) {
	t.Parallel()

	client := newTestGemini(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, `{"embeddings":[{"values":[0.1]}]}`)
	})

	_, err := client.Embed(context.Background(), []string{"a", "b"})
	assert.ErrorIs(t, err, ErrEmptyResponse)

	_, err = newTestGemini(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, `{"embeddings":[]}`)
	}).EmbedQuery(context.Background(), "q")
	assert.ErrorIs(t, err, ErrEmptyResponse)
}

func TestGemini_Embed_ServerError(t *testing.T) {
	t.Parallel()

	client := newTestGemini(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusServiceUnavailable, `{"error":{"code":503,"message":"overloaded","status":"UNAVAILABLE"}}`)
	})

	_, err := client.Embed(context.Background(), []string{"a"})
	assert.ErrorIs(t, err, ErrProviderUnavailable)
}

func TestGemini_Embed_EmptyInput(t *testing.T) {
	t.Parallel()

	client := newTestGemini(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("no request expected for empty input")
	})

	vecs, err := client.Embed(context.Background(), nil)
	require.NoError(t, err)
	assert.Nil(t, vecs)
}

// ============================================================================
// Transcription Tests
// ============================================================================

func TestGemini_Transcribe_SendsInlineAudio(t *testing.T) {
	t.Parallel()

	var got geminiRequest
	client := newTestGemini(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		writeJSON(w, http.StatusOK, `{"candidates":[{"content":{"role":"model","parts":[{"text":" 안녕하세요 \n"}]}}]}`)
	})

	text, err := client.Transcribe(context.Background(), []byte("RIFFdata"), "audio/wav", "ko-KR")
	require.NoError(t, err)
	assert.Equal(t, "안녕하세요", text)

	require.Len(t, got.Contents, 1)
	parts := got.Contents[0].Parts
	require.Len(t, parts, 2)
	assert.Contains(t, parts[0].Text, "ko-KR")
	require.NotNil(t, parts[1].InlineData)
	assert.Equal(t, "audio/wav", parts[1].InlineData.MimeType)
	assert.Equal(t, []byte("RIFFdata"), parts[1].InlineData.Data)
}

func TestGemini_Transcribe_NoSpeech(t *testing.T) {
	t.Parallel()

	client := newTestGemini(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, `{"candidates":[{"content":{"role":"model","parts":[{"text":""}]}}]}`)
	})

	text, err := client.Transcribe(context.Background(), []byte("RIFF"), "audio/wav", "ko-KR")
	require.NoError(t, err)
	assert.Empty(t, text)
}
