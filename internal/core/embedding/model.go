package embedding

import (
	"context"
	"fmt"
	"strings"
)

// Source はEmbeddingの生成元
type Source string

const (
	SourceOpenAI Source = "openai"
	SourceMock   Source = "mock"
)

// ParseSource は設定値を Source に変換する
func ParseSource(s string) (Source, error) {
	switch Source(strings.ToLower(strings.TrimSpace(s))) {
	case SourceOpenAI:
		return SourceOpenAI, nil
	case SourceMock:
		return SourceMock, nil
	default:
		return "", fmt.Errorf("unknown embedding source: %q", s)
	}
}

const (
	DefaultDimension   = 1536
	DefaultMaxAttempts = 5
	DefaultBatchSize   = 16
)

// Provider は外部のEmbeddingサービスへの1リクエストを表す
// リトライ可能な失敗は ErrTransient をラップして返す
type Provider interface {
	CreateEmbeddings(ctx context.Context, texts []string) ([][]float32, error)
}

// Cache はクエリEmbeddingのキャッシュ
type Cache interface {
	Get(ctx context.Context, key string) ([]float32, bool, error)
	Set(ctx context.Context, key string, vector []float32) error
}
