package ingestion

import (
	"context"
	"errors"
	"fmt"

	"github.com/jinford/faq-rag/internal/core/ingestion/chunk"
)

// ErrExtraction は文書・ページからのテキスト抽出失敗を表す
// 失敗した単位は読み飛ばし、処理は継続する
var ErrExtraction = errors.New("ingestion: extraction failed")

// ExtractionError は抽出に失敗した単位を保持する
type ExtractionError struct {
	Source string
	Err    error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("extraction failed for %s: %v", e.Source, e.Err)
}

// Unwrap は原因エラーを返す
func (e *ExtractionError) Unwrap() error {
	return e.Err
}

// Is は errors.Is(err, ErrExtraction) を満たすために使う
func (e *ExtractionError) Is(target error) bool {
	return target == ErrExtraction
}

// Page は文書の1ページ分の生テキスト
type Page struct {
	Number int
	Text   string
}

// WebPage は取得したWebページのテキスト
type WebPage struct {
	URL   string `json:"url"`
	Title string `json:"title"`
	Text  string `json:"text"`
}

// DocumentExtractor は文書ファイルからページ単位の生テキストを抽出する
// 読めないページは読み飛ばし、文書全体が読めない場合は ErrExtraction を返す
type DocumentExtractor interface {
	Extract(ctx context.Context, path string) ([]Page, error)
}

// PageFetcher はWebページを取得してテキストを抽出する
type PageFetcher interface {
	Fetch(ctx context.Context, url string) (*WebPage, error)
}

// Embedder はチャンクのEmbedding生成インターフェース
type Embedder interface {
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Dimension() int
}

// DocumentResult は文書処理の結果
type DocumentResult struct {
	Source  string
	Pages   int
	Text    string
	Chunks  []string
	QAPairs []chunk.QAPair
}

// WebResult はWebページ処理の結果
type WebResult struct {
	Pages  []WebPage
	Failed []string
	Chunks []string
}

// BuildStats はコーパス構築の統計情報
type BuildStats struct {
	InputChunks int // 入力チャンク数
	Documents   int // コーパスに登録された Document 数
	Empty       int // 整形後に空となり除外した数
	Skipped     int // Embedding に失敗し除外した数
}
