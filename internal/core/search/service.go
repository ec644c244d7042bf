package search

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/samber/mo"

	"github.com/jinford/faq-rag/internal/core/index"
	"github.com/jinford/faq-rag/internal/core/ingestion/chunk"
)

// Embedder はテキストのEmbedding生成インターフェース
type Embedder interface {
	// Embed は単一テキストのEmbeddingを生成する
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Index は検索対象のコーパス
type Index interface {
	Search(ctx context.Context, query []float32, k int) ([]index.Match, error)
	Len() int
}

// Service は検索のビジネスロジックを提供する
type Service struct {
	index     Index
	embedder  Embedder
	overFetch int
	weights   Weights
	logger    *slog.Logger
}

// ServiceOption は Service の設定オプション
type ServiceOption func(*Service)

// WithOverFetch は取得倍率を設定する
func WithOverFetch(factor int) ServiceOption {
	return func(s *Service) {
		if factor > 0 {
			s.overFetch = factor
		}
	}
}

// WithWeights はスコア補正係数を設定する
func WithWeights(w Weights) ServiceOption {
	return func(s *Service) {
		s.weights = w
	}
}

// WithSearchLogger はロガーを差し替える
func WithSearchLogger(logger *slog.Logger) ServiceOption {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewService は新しい Service を作成する
func NewService(idx Index, embedder Embedder, opts ...ServiceOption) *Service {
	s := &Service{
		index:     idx,
		embedder:  embedder,
		overFetch: DefaultOverFetch,
		weights:   DefaultWeights(),
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Retrieve はクエリに関連するチャンクを最大 k 件返す
//
// 同じ質問を持つ構造化QAチャンクは最も近い1件だけを残し、
// 構造化QAとクエリ文字列を含むチャンクの距離を係数で補正してから並べ替える。
// Embedding に失敗した場合は空の結果とエラーを返す。
func (s *Service) Retrieve(ctx context.Context, query string, k int) ([]Result, error) {
	if k <= 0 {
		k = DefaultTopK
	}

	size := s.index.Len()
	if size == 0 {
		return []Result{}, nil
	}

	trimmed := strings.TrimSpace(query)
	queryVector, err := s.embedder.Embed(ctx, QueryText(trimmed))
	if err != nil {
		return []Result{}, fmt.Errorf("failed to embed query: %w", err)
	}

	// k*overFetch の桁あふれを避けるため先にコーパス件数で抑える
	fetch := min(min(k, size)*s.overFetch, size)
	matches, err := s.index.Search(ctx, queryVector, fetch)
	if err != nil {
		return []Result{}, fmt.Errorf("search failed: %w", err)
	}

	needle := strings.ToLower(trimmed)
	seen := make(map[string]struct{})
	results := make([]Result, 0, len(matches))

	for _, m := range matches {
		score := float64(m.Distance)

		if q, ok := ExtractQuestion(m.Document).Get(); ok {
			if _, dup := seen[q]; dup {
				continue
			}
			seen[q] = struct{}{}
		}
		if IsStructured(m.Document) {
			score *= s.weights.QABoost
		}

		if needle != "" && strings.Contains(strings.ToLower(m.Document), needle) {
			score *= s.weights.ExactMatchBoost
		}

		results = append(results, Result{
			Document: m.Document,
			Score:    score,
			Ordinal:  m.Ordinal,
		})
	}

	slices.SortStableFunc(results, func(a, b Result) int {
		switch {
		case a.Score < b.Score:
			return -1
		case a.Score > b.Score:
			return 1
		default:
			return 0
		}
	})

	if len(results) > k {
		results = results[:k]
	}

	s.logger.Debug("retrieval completed",
		"query", trimmed,
		"fetched", len(matches),
		"returned", len(results),
	)

	return results, nil
}

// QueryText は検索に使うクエリ文字列を組み立てる
// 既に Question: で始まっていない場合は接頭辞を付ける
func QueryText(query string) string {
	if strings.HasPrefix(strings.ToLower(query), strings.ToLower(chunk.QuestionMarker)) {
		return query
	}
	return chunk.QuestionMarker + " " + query
}

// IsStructured はチャンクが構造化QA形式かを判定する
func IsStructured(document string) bool {
	return strings.Contains(document, chunk.QuestionMarker) && strings.Contains(document, chunk.AnswerMarker)
}

// ExtractQuestion は構造化QAチャンクから質問文を取り出す
// 構造化されていないチャンクでは None を返す
func ExtractQuestion(document string) mo.Option[string] {
	if !IsStructured(document) {
		return mo.None[string]()
	}

	_, rest, _ := strings.Cut(document, chunk.QuestionMarker)
	question, _, _ := strings.Cut(rest, chunk.AnswerMarker)
	question = strings.TrimSpace(question)
	if question == "" {
		return mo.None[string]()
	}
	return mo.Some(question)
}
