package embedding

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubProvider struct {
	dimension int
	failures  []error
	calls     int
	batches   [][]string
}

func (p *stubProvider) CreateEmbeddings(ctx context.Context, texts []string) ([][]float32, error) {
	p.calls++
	p.batches = append(p.batches, texts)
	if len(p.failures) > 0 {
		err := p.failures[0]
		p.failures = p.failures[1:]
		if err != nil {
			return nil, err
		}
	}

	vectors := make([][]float32, len(texts))
	for i, text := range texts {
		vectors[i] = MockVector(text, p.dimension)
	}
	return vectors, nil
}

type memoryCache struct {
	data   map[string][]float32
	getErr error
	gets   int
}

func (c *memoryCache) Get(ctx context.Context, key string) ([]float32, bool, error) {
	c.gets++
	if c.getErr != nil {
		return nil, false, c.getErr
	}
	v, ok := c.data[key]
	return v, ok, nil
}

func (c *memoryCache) Set(ctx context.Context, key string, vector []float32) error {
	c.data[key] = vector
	return nil
}

func newTestClient(t *testing.T, provider Provider, opts ...ClientOption) (*Client, *[]time.Duration) {
	t.Helper()

	base := []ClientOption{
		WithProvider(provider),
		WithDimension(4),
		WithClientLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	}
	client, err := NewClient(append(base, opts...)...)
	require.NoError(t, err)

	var waits []time.Duration
	client.sleep = func(ctx context.Context, d time.Duration) error {
		waits = append(waits, d)
		return ctx.Err()
	}
	client.jitter = func() float64 { return 0.5 }

	return client, &waits
}

func TestClient_RetriesTransientThenSucceeds(t *testing.T) {
	provider := &stubProvider{
		dimension: 4,
		failures:  []error{fmt.Errorf("429: %w", ErrTransient), fmt.Errorf("429: %w", ErrTransient)},
	}
	client, waits := newTestClient(t, provider)

	vector, err := client.Embed(context.Background(), "hello")

	require.NoError(t, err)
	assert.Len(t, vector, 4)
	assert.Equal(t, 3, provider.calls)
	// 2^0+0.5 秒, 2^1+0.5 秒
	assert.Equal(t, []time.Duration{1500 * time.Millisecond, 2500 * time.Millisecond}, *waits)
}

func TestClient_TransientExhaustion(t *testing.T) {
	transient := fmt.Errorf("rate limited: %w", ErrTransient)
	provider := &stubProvider{
		dimension: 4,
		failures:  []error{transient, transient, transient},
	}
	client, waits := newTestClient(t, provider, WithMaxAttempts(3))

	_, err := client.Embed(context.Background(), "hello")

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.Equal(t, 3, provider.calls)
	assert.Len(t, *waits, 2)
}

func TestClient_NonTransientFailsImmediately(t *testing.T) {
	provider := &stubProvider{
		dimension: 4,
		failures:  []error{errors.New("invalid api key")},
	}
	client, waits := newTestClient(t, provider)

	_, err := client.Embed(context.Background(), "hello")

	assert.ErrorIs(t, err, ErrUnavailable)
	assert.Equal(t, 1, provider.calls)
	assert.Empty(t, *waits)
}

func TestClient_RejectsWrongDimension(t *testing.T) {
	provider := &stubProvider{dimension: 3}
	client, _ := newTestClient(t, provider)

	_, err := client.Embed(context.Background(), "hello")

	assert.ErrorIs(t, err, ErrUnavailable)
	assert.Equal(t, 1, provider.calls)
}

func TestClient_EmbedBatchSplitsIntoSubBatches(t *testing.T) {
	provider := &stubProvider{dimension: 4}
	client, _ := newTestClient(t, provider, WithBatchSize(2))

	texts := []string{"a", "b", "c", "d", "e"}
	vectors, err := client.EmbedBatch(context.Background(), texts)

	require.NoError(t, err)
	require.Len(t, vectors, 5)
	assert.Equal(t, [][]string{{"a", "b"}, {"c", "d"}, {"e"}}, provider.batches)
	for i, text := range texts {
		assert.Equal(t, MockVector(text, 4), vectors[i])
	}
}

func TestClient_PacingHonoursCancellation(t *testing.T) {
	provider := &stubProvider{dimension: 4}
	client, _ := newTestClient(t, provider, WithBatchSize(1), WithPaceInterval(time.Hour))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := client.EmbedBatch(ctx, []string{"a", "b"})

	assert.ErrorIs(t, err, ErrUnavailable)
	assert.Equal(t, 1, provider.calls)
}

func TestClient_MockModeIsDeterministic(t *testing.T) {
	client, err := NewClient(WithSource(SourceMock), WithDimension(8))
	require.NoError(t, err)

	a1, err := client.Embed(context.Background(), "How do I cancel?")
	require.NoError(t, err)
	a2, err := client.Embed(context.Background(), "How do I cancel?")
	require.NoError(t, err)
	b, err := client.Embed(context.Background(), "How do I pay?")
	require.NoError(t, err)

	assert.Len(t, a1, 8)
	assert.Equal(t, a1, a2)
	assert.NotEqual(t, a1, b)
	for _, v := range a1 {
		assert.GreaterOrEqual(t, v, float32(0))
		assert.Less(t, v, float32(1))
	}
}

func TestClient_CacheHitSkipsProvider(t *testing.T) {
	provider := &stubProvider{dimension: 4}
	cache := &memoryCache{data: map[string][]float32{}}
	client, _ := newTestClient(t, provider, WithCache(cache))

	first, err := client.Embed(context.Background(), "hello")
	require.NoError(t, err)
	second, err := client.Embed(context.Background(), "hello")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, provider.calls)
	assert.Equal(t, 2, cache.gets)
}

func TestClient_CacheErrorIsIgnored(t *testing.T) {
	provider := &stubProvider{dimension: 4}
	cache := &memoryCache{data: map[string][]float32{}, getErr: errors.New("connection refused")}
	client, _ := newTestClient(t, provider, WithCache(cache))

	vector, err := client.Embed(context.Background(), "hello")

	require.NoError(t, err)
	assert.Len(t, vector, 4)
}

func TestNewClient_RequiresProviderForOpenAI(t *testing.T) {
	_, err := NewClient(WithSource(SourceOpenAI))
	assert.Error(t, err)
}

func TestParseSource(t *testing.T) {
	s, err := ParseSource(" Mock ")
	require.NoError(t, err)
	assert.Equal(t, SourceMock, s)

	_, err = ParseSource("faiss")
	assert.Error(t, err)
}
