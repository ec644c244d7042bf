package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jinford/faq-rag/internal/core/embedding"
)

// setupTestCache creates a miniredis-backed EmbeddingCache
func setupTestCache(t *testing.T, ttl time.Duration) (*EmbeddingCache, *miniredis.Miniredis) {
	t.Helper()

	mr, err := miniredis.Run()
	require.NoError(t, err)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		client.Close()
		mr.Close()
	})

	return NewEmbeddingCache(client, ttl), mr
}

func TestEmbeddingCache_SetGet(t *testing.T) {
	cache, _ := setupTestCache(t, time.Minute)
	ctx := context.Background()

	vector := []float32{0.25, -1.5, 3}
	require.NoError(t, cache.Set(ctx, "k1", vector))

	got, ok, err := cache.Get(ctx, "k1")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, vector, got)
}

func TestEmbeddingCache_Miss(t *testing.T) {
	cache, _ := setupTestCache(t, time.Minute)

	got, ok, err := cache.Get(context.Background(), "missing")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Nil(t, got)
}

func TestEmbeddingCache_Expiry(t *testing.T) {
	cache, mr := setupTestCache(t, time.Minute)
	ctx := context.Background()

	require.NoError(t, cache.Set(ctx, "k1", []float32{1}))
	mr.FastForward(2 * time.Minute)

	_, ok, err := cache.Get(ctx, "k1")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestEmbeddingCache_ServerDown(t *testing.T) {
	cache, mr := setupTestCache(t, time.Minute)
	mr.Close()

	_, _, err := cache.Get(context.Background(), "k1")
	assert.Error(t, err)
}

func TestEmbeddingCache_WithClient(t *testing.T) {
	cache, _ := setupTestCache(t, 0)
	assert.Equal(t, DefaultTTL, cache.ttl)

	client, err := embedding.NewClient(
		embedding.WithSource(embedding.SourceMock),
		embedding.WithDimension(8),
		embedding.WithCache(cache),
	)
	require.NoError(t, err)

	first, err := client.Embed(context.Background(), "How do I cancel?")
	require.NoError(t, err)
	second, err := client.Embed(context.Background(), "How do I cancel?")
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestNewClientFromURL(t *testing.T) {
	_, err := NewClientFromURL("not a url")
	assert.Error(t, err)

	c, err := NewClientFromURL("redis://localhost:6379/0")
	require.NoError(t, err)
	assert.NoError(t, c.Close())
}
