package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jinford/faq-rag/internal/core/ask"
	"github.com/jinford/faq-rag/internal/core/embedding"
)

func embeddingsHandler(t *testing.T, status int) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		require.True(t, strings.HasSuffix(r.URL.Path, "/embeddings"))
		w.Header().Set("Content-Type", "application/json")

		if status != http.StatusOK {
			w.WriteHeader(status)
			_, _ = w.Write([]byte(`{"error":{"message":"slow down","type":"rate_limit","code":"rate_limited"}}`))
			return
		}

		var body struct {
			Input []string `json:"input"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))

		// 順序が入れ替わっても index で元の順序に戻ること
		type item struct {
			Object    string    `json:"object"`
			Index     int       `json:"index"`
			Embedding []float64 `json:"embedding"`
		}
		data := make([]item, 0, len(body.Input))
		for i := len(body.Input) - 1; i >= 0; i-- {
			data = append(data, item{Object: "embedding", Index: i, Embedding: []float64{float64(i), 0.5}})
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"object": "list",
			"data":   data,
			"model":  "text-embedding-3-small",
			"usage":  map[string]int{"prompt_tokens": 1, "total_tokens": 1},
		})
	}
}

func TestEmbedder_CreateEmbeddings(t *testing.T) {
	server := httptest.NewServer(embeddingsHandler(t, http.StatusOK))
	defer server.Close()

	e, err := NewEmbedder("dummy-key",
		WithEmbeddingBaseURL(server.URL+"/v1/"),
		WithEmbeddingDimension(2),
	)
	require.NoError(t, err)

	vectors, err := e.CreateEmbeddings(context.Background(), []string{"a", "b", "c"})
	require.NoError(t, err)
	assert.Equal(t, [][]float32{{0, 0.5}, {1, 0.5}, {2, 0.5}}, vectors)
}

func TestEmbedder_RateLimitIsTransient(t *testing.T) {
	server := httptest.NewServer(embeddingsHandler(t, http.StatusTooManyRequests))
	defer server.Close()

	e, err := NewEmbedder("dummy-key", WithEmbeddingBaseURL(server.URL+"/v1/"))
	require.NoError(t, err)

	_, err = e.CreateEmbeddings(context.Background(), []string{"a"})
	assert.ErrorIs(t, err, embedding.ErrTransient)
}

func TestEmbedder_BadRequestIsNotTransient(t *testing.T) {
	server := httptest.NewServer(embeddingsHandler(t, http.StatusBadRequest))
	defer server.Close()

	e, err := NewEmbedder("dummy-key", WithEmbeddingBaseURL(server.URL+"/v1/"))
	require.NoError(t, err)

	_, err = e.CreateEmbeddings(context.Background(), []string{"a"})
	require.Error(t, err)
	assert.NotErrorIs(t, err, embedding.ErrTransient)
}

func TestEmbedder_WithClientAttemptBudget(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			embeddingsHandler(t, http.StatusTooManyRequests)(w, r)
			return
		}
		embeddingsHandler(t, http.StatusOK)(w, r)
	}))
	defer server.Close()

	e, err := NewEmbedder("dummy-key", WithEmbeddingBaseURL(server.URL+"/v1/"), WithEmbeddingDimension(2))
	require.NoError(t, err)

	client, err := embedding.NewClient(
		embedding.WithProvider(e),
		embedding.WithDimension(2),
		embedding.WithMaxAttempts(1),
	)
	require.NoError(t, err)

	// 1回しか試行しないので枯渇して ErrUnavailable
	_, err = client.Embed(context.Background(), "a")
	assert.ErrorIs(t, err, embedding.ErrUnavailable)

	v, err := client.Embed(context.Background(), "a")
	require.NoError(t, err)
	assert.Equal(t, []float32{0, 0.5}, v)
}

func TestNewEmbedder_RequiresAPIKey(t *testing.T) {
	_, err := NewEmbedder("")
	assert.ErrorIs(t, err, ErrAPIKeyNotSet)
}

func TestNewEmbedderOptionsOverrideDefaults(t *testing.T) {
	e, err := NewEmbedder("dummy-key",
		WithEmbeddingModel("custom-model"),
		WithEmbeddingDimension(42),
	)
	require.NoError(t, err)

	assert.Equal(t, "custom-model", e.ModelName())
	assert.Equal(t, 42, e.Dimension())
}

func TestClient_Generate(t *testing.T) {
	var got struct {
		Model       string  `json:"model"`
		Temperature float64 `json:"temperature"`
		MaxTokens   int     `json:"max_tokens"`
		Messages    []struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"messages"`
	}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.True(t, strings.HasSuffix(r.URL.Path, "/chat/completions"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"id": "chatcmpl-1",
			"object": "chat.completion",
			"created": 1,
			"model": "gpt-3.5-turbo",
			"choices": [{"index": 0, "finish_reason": "stop", "message": {"role": "assistant", "content": "Tap Cancel."}}],
			"usage": {"prompt_tokens": 10, "completion_tokens": 2, "total_tokens": 12}
		}`))
	}))
	defer server.Close()

	c, err := NewClient("dummy-key", WithBaseURL(server.URL+"/v1/"))
	require.NoError(t, err)

	answer, err := c.Generate(context.Background(), ask.GenerationRequest{
		System: ask.DefaultPreamble,
		Prompt: "Question: How do I cancel?",
	})
	require.NoError(t, err)

	assert.Equal(t, "Tap Cancel.", answer)
	assert.Equal(t, DefaultModel, got.Model)
	assert.InDelta(t, DefaultTemperature, got.Temperature, 1e-9)
	assert.Equal(t, DefaultMaxTokens, got.MaxTokens)
	require.Len(t, got.Messages, 2)
	assert.Equal(t, "system", got.Messages[0].Role)
	assert.Equal(t, ask.DefaultPreamble, got.Messages[0].Content)
	assert.Equal(t, "user", got.Messages[1].Role)
}

func TestClient_GenerateServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":{"message":"boom"}}`))
	}))
	defer server.Close()

	c, err := NewClient("dummy-key", WithBaseURL(server.URL+"/v1/"))
	require.NoError(t, err)

	_, err = c.Generate(context.Background(), ask.GenerationRequest{Prompt: "hi"})
	assert.Error(t, err)
}

func TestEstimateTokens(t *testing.T) {
	assert.Equal(t, 0, EstimateTokens(""))
	assert.Equal(t, 1, EstimateTokens("abc"))
	assert.Equal(t, 2, EstimateTokens("abcdefgh"))

	// エンコーディング未初期化時は推定値
	var tc TokenCounter
	assert.Equal(t, 2, tc.CountTokens("abcdefgh"))
}
