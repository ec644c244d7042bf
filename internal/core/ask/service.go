package ask

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/jinford/faq-rag/internal/core/search"
)

// Retriever は質問に関連するチャンクを取得する
type Retriever interface {
	Retrieve(ctx context.Context, query string, k int) ([]search.Result, error)
}

// Generator はLLM通信インターフェース
type Generator interface {
	Generate(ctx context.Context, req GenerationRequest) (string, error)
}

// TokenCounter はコンテキストのトークン数を数える
type TokenCounter interface {
	CountTokens(text string) int
}

// Service は質問応答のビジネスロジックを提供する
type Service struct {
	retriever        Retriever
	generator        Generator
	tokenCounter     TokenCounter
	preamble         string
	topK             int
	maxContextTokens int
	logger           *slog.Logger
}

// ServiceOption は Service の設定オプション
type ServiceOption func(*Service)

// WithAskLogger は Service にロガーを設定する
func WithAskLogger(logger *slog.Logger) ServiceOption {
	return func(s *Service) {
		s.logger = logger
	}
}

// WithTokenCounter はコンテキスト切り詰めに使う TokenCounter を設定する
func WithTokenCounter(counter TokenCounter) ServiceOption {
	return func(s *Service) {
		s.tokenCounter = counter
	}
}

// WithPreamble はシステムメッセージの固定文を差し替える
func WithPreamble(preamble string) ServiceOption {
	return func(s *Service) {
		if preamble != "" {
			s.preamble = preamble
		}
	}
}

// WithTopK は取得するチャンク数を設定する
func WithTopK(k int) ServiceOption {
	return func(s *Service) {
		if k > 0 {
			s.topK = k
		}
	}
}

// WithMaxContextTokens はコンテキストの最大トークン数を設定する
func WithMaxContextTokens(n int) ServiceOption {
	return func(s *Service) {
		s.maxContextTokens = n
	}
}

// NewService は新しい Service を作成する
func NewService(retriever Retriever, generator Generator, opts ...ServiceOption) *Service {
	svc := &Service{
		retriever:        retriever,
		generator:        generator,
		preamble:         DefaultPreamble,
		topK:             search.DefaultTopK,
		maxContextTokens: DefaultMaxContextTokens,
		logger:           slog.Default(),
	}

	for _, opt := range opts {
		opt(svc)
	}

	if svc.logger == nil {
		svc.logger = slog.Default()
	}

	return svc
}

// AnswerQuestion は質問に対してRAGベースで回答を生成する
// 検索失敗時はコンテキストなしで生成し、生成失敗時は ApologyMessage を返す
func (s *Service) AnswerQuestion(ctx context.Context, question string) (*AskResult, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, ErrEmptyQuestion
	}

	// 1. 関連チャンクの取得
	results, err := s.retriever.Retrieve(ctx, question, s.topK)
	if err != nil {
		s.logger.Warn("retrieval failed, answering without context",
			"question", question,
			"error", err,
		)
		results = nil
	}

	passages := make([]string, 0, len(results))
	for _, r := range results {
		passages = append(passages, r.Document)
	}
	passages = fitPassages(passages, s.tokenCounter, s.maxContextTokens)

	s.logger.Info("retrieval completed",
		"results", len(results),
		"passages", len(passages),
	)

	// 2. プロンプト構築
	prompt := BuildAskPrompt(s.preamble, question, passages)

	// 3. LLMで回答生成
	answer, err := s.generator.Generate(ctx, GenerationRequest{
		System: s.preamble,
		Prompt: prompt,
	})
	if err != nil {
		s.logger.Error("answer generation failed",
			"error", fmt.Errorf("%w: %w", ErrGeneration, err),
		)
		answer = ApologyMessage
	}

	sources := make([]SourceReference, 0, len(passages))
	for _, r := range results[:len(passages)] {
		sources = append(sources, SourceReference{
			Document: r.Document,
			Score:    r.Score,
		})
	}

	s.logger.Info("ask completed",
		"answerLength", len(answer),
		"sources", len(sources),
	)

	return &AskResult{
		Answer:  strings.TrimSpace(answer),
		Sources: sources,
	}, nil
}
