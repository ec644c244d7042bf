package ask

import "errors"

// ApologyMessage は回答生成に失敗した場合に返す固定文言
const ApologyMessage = "I'm sorry, I encountered an error while generating an answer. Please try again later."

// DefaultPreamble はシステムメッセージ兼プロンプト冒頭の固定文
const DefaultPreamble = "You are a helpful assistant for Leechy, a rental marketplace app."

// DefaultMaxContextTokens はプロンプトに含めるコンテキストの最大トークン数
const DefaultMaxContextTokens = 3000

// ErrGeneration は回答生成の失敗を表す（ログにのみ記録し、呼び出し元には返さない）
var ErrGeneration = errors.New("ask: answer generation failed")

// ErrEmptyQuestion は質問が空の場合のエラー
var ErrEmptyQuestion = errors.New("ask: question is required")

// AskResult は質問応答の結果を表す
type AskResult struct {
	Answer  string            `json:"answer"`  // LLMによる回答
	Sources []SourceReference `json:"sources"` // 参照したチャンク
}

// SourceReference は回答の根拠となったチャンクを表す
type SourceReference struct {
	Document string  `json:"document"`
	Score    float64 `json:"score"` // 補正後の距離（小さいほど関連度が高い）
}

// GenerationRequest は Generator への入力
type GenerationRequest struct {
	System string
	Prompt string
}
