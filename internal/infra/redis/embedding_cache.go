package redis

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/jinford/faq-rag/internal/core/embedding"
)

// Verify interface compliance
var _ embedding.Cache = (*EmbeddingCache)(nil)

const embeddingPrefix = "faq-rag:embedding:"

// DefaultTTL はキャッシュエントリの既定の有効期間
const DefaultTTL = 24 * time.Hour

// EmbeddingCache はクエリEmbeddingを Redis に保存する embedding.Cache 実装
// ベクトルは float32 のリトルエンディアン列として保存する
type EmbeddingCache struct {
	client redis.UniversalClient
	ttl    time.Duration
}

// NewEmbeddingCache は新しい EmbeddingCache を作成する
// ttl が0以下の場合は DefaultTTL を使う
func NewEmbeddingCache(client redis.UniversalClient, ttl time.Duration) *EmbeddingCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &EmbeddingCache{client: client, ttl: ttl}
}

// NewClientFromURL は redis:// 形式のURLからクライアントを作成する
func NewClientFromURL(url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	return redis.NewClient(opts), nil
}

// Get はキャッシュ済みのベクトルを返す
func (c *EmbeddingCache) Get(ctx context.Context, key string) ([]float32, bool, error) {
	data, err := c.client.Get(ctx, embeddingPrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to get embedding: %w", err)
	}

	vector, err := decodeVector(data)
	if err != nil {
		return nil, false, err
	}
	return vector, true, nil
}

// Set はベクトルを TTL 付きで保存する
func (c *EmbeddingCache) Set(ctx context.Context, key string, vector []float32) error {
	if err := c.client.Set(ctx, embeddingPrefix+key, encodeVector(vector), c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to set embedding: %w", err)
	}
	return nil
}

func encodeVector(v []float32) []byte {
	buf := make([]byte, 4*len(v))
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

func decodeVector(data []byte) ([]float32, error) {
	if len(data)%4 != 0 {
		return nil, fmt.Errorf("corrupt cached embedding: %d bytes", len(data))
	}
	v := make([]float32, len(data)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
	}
	return v, nil
}
