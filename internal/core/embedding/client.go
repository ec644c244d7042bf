package embedding

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"hash/fnv"
	"log/slog"
	"math"
	"math/rand/v2"
	"time"

	"golang.org/x/time/rate"
)

// Client はテキストを固定次元のベクトルに変換する
// 生成元は openai と mock を設定で切り替える
type Client struct {
	source      Source
	provider    Provider
	dimension   int
	maxAttempts int
	batchSize   int
	limiter     *rate.Limiter
	cache       Cache
	logger      *slog.Logger

	sleep  func(ctx context.Context, d time.Duration) error
	jitter func() float64
}

// ClientOption は Client の設定オプション
type ClientOption func(*Client)

// WithSource は生成元を設定する
func WithSource(source Source) ClientOption {
	return func(c *Client) {
		c.source = source
	}
}

// WithProvider は実モードで使う Provider を設定する
func WithProvider(provider Provider) ClientOption {
	return func(c *Client) {
		c.provider = provider
	}
}

// WithDimension はベクトル次元を設定する
func WithDimension(dimension int) ClientOption {
	return func(c *Client) {
		if dimension > 0 {
			c.dimension = dimension
		}
	}
}

// WithMaxAttempts は一時的な失敗に対する最大試行回数を設定する
func WithMaxAttempts(attempts int) ClientOption {
	return func(c *Client) {
		if attempts > 0 {
			c.maxAttempts = attempts
		}
	}
}

// WithBatchSize は1リクエストあたりの最大テキスト数を設定する
func WithBatchSize(size int) ClientOption {
	return func(c *Client) {
		if size > 0 {
			c.batchSize = size
		}
	}
}

// WithPaceInterval はバッチリクエスト間の最小間隔を設定する（0以下でペーシングなし）
func WithPaceInterval(interval time.Duration) ClientOption {
	return func(c *Client) {
		if interval <= 0 {
			c.limiter = nil
			return
		}
		c.limiter = rate.NewLimiter(rate.Every(interval), 1)
	}
}

// WithCache はクエリEmbeddingのキャッシュを設定する
func WithCache(cache Cache) ClientOption {
	return func(c *Client) {
		c.cache = cache
	}
}

// WithClientLogger はロガーを差し替える
func WithClientLogger(logger *slog.Logger) ClientOption {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// NewClient は新しい Client を作成する
func NewClient(opts ...ClientOption) (*Client, error) {
	c := &Client{
		source:      SourceOpenAI,
		dimension:   DefaultDimension,
		maxAttempts: DefaultMaxAttempts,
		batchSize:   DefaultBatchSize,
		logger:      slog.Default(),
		sleep:       sleepContext,
		jitter:      rand.Float64,
	}
	for _, opt := range opts {
		opt(c)
	}

	switch c.source {
	case SourceOpenAI:
		if c.provider == nil {
			return nil, fmt.Errorf("embedding provider is required for source %q", c.source)
		}
	case SourceMock:
	default:
		return nil, fmt.Errorf("unknown embedding source: %q", c.source)
	}

	return c, nil
}

// Source は生成元を返す
func (c *Client) Source() Source { return c.source }

// Dimension はベクトル次元を返す
func (c *Client) Dimension() int { return c.dimension }

// Embed は単一テキストのEmbeddingを生成する
// キャッシュが設定されていれば先に参照し、キャッシュのエラーはログに残して無視する
func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	key := c.cacheKey(text)
	if c.cache != nil {
		vector, ok, err := c.cache.Get(ctx, key)
		switch {
		case err != nil:
			c.logger.Warn("embedding cache lookup failed", "error", err)
		case ok && len(vector) == c.dimension:
			return vector, nil
		}
	}

	vectors, err := c.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	vector := vectors[0]

	if c.cache != nil {
		if err := c.cache.Set(ctx, key, vector); err != nil {
			c.logger.Warn("embedding cache store failed", "error", err)
		}
	}

	return vector, nil
}

// EmbedBatch は複数テキストのEmbeddingを入力順に生成する
// 実モードでは batchSize 件ずつ分割し、リクエスト間でペーシングする
func (c *Client) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	if c.source == SourceMock {
		vectors := make([][]float32, len(texts))
		for i, text := range texts {
			vectors[i] = MockVector(text, c.dimension)
		}
		return vectors, nil
	}

	vectors := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += c.batchSize {
		end := min(start+c.batchSize, len(texts))

		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				return nil, fmt.Errorf("%w: pacing interrupted: %w", ErrUnavailable, err)
			}
		}

		batch, err := c.requestWithRetry(ctx, texts[start:end])
		if err != nil {
			return nil, err
		}
		vectors = append(vectors, batch...)
	}

	return vectors, nil
}

func (c *Client) requestWithRetry(ctx context.Context, texts []string) ([][]float32, error) {
	var lastErr error

	for attempt := 0; attempt < c.maxAttempts; attempt++ {
		vectors, err := c.provider.CreateEmbeddings(ctx, texts)
		if err == nil {
			if err := c.validate(vectors, len(texts)); err != nil {
				return nil, fmt.Errorf("%w: %w", ErrUnavailable, err)
			}
			return vectors, nil
		}

		if !errors.Is(err, ErrTransient) {
			return nil, fmt.Errorf("%w: %w", ErrUnavailable, err)
		}
		lastErr = err

		if attempt == c.maxAttempts-1 {
			break
		}

		wait := backoff(attempt, c.jitter())
		c.logger.Warn("embedding request rate limited, retrying",
			"attempt", attempt+1,
			"maxAttempts", c.maxAttempts,
			"wait", wait,
		)
		if err := c.sleep(ctx, wait); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrUnavailable, err)
		}
	}

	return nil, fmt.Errorf("%w: gave up after %d attempts: %w", ErrUnavailable, c.maxAttempts, lastErr)
}

func (c *Client) validate(vectors [][]float32, want int) error {
	if len(vectors) != want {
		return fmt.Errorf("expected %d embeddings, got %d", want, len(vectors))
	}
	for i, v := range vectors {
		if len(v) != c.dimension {
			return fmt.Errorf("embedding %d has dimension %d, expected %d", i, len(v), c.dimension)
		}
	}
	return nil
}

func (c *Client) cacheKey(text string) string {
	sum := sha256.Sum256([]byte(text))
	return fmt.Sprintf("%s:%d:%s", c.source, c.dimension, hex.EncodeToString(sum[:]))
}

// backoff は 2^attempt 秒に [0,1) 秒のジッターを加えた待機時間を返す
func backoff(attempt int, jitter float64) time.Duration {
	seconds := math.Pow(2, float64(attempt)) + jitter
	return time.Duration(seconds * float64(time.Second))
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// MockVector はテキストのFNV-64aハッシュをシードにした決定的なベクトルを返す
func MockVector(text string, dimension int) []float32 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(text))
	seed := h.Sum64()

	r := rand.New(rand.NewPCG(seed, seed))
	vector := make([]float32, dimension)
	for i := range vector {
		vector[i] = r.Float32()
	}
	return vector
}
