package document

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"

	"github.com/jinford/faq-rag/internal/core/ingestion"
)

// PDFToolName はPDFからテキストを取り出す外部コマンド
const PDFToolName = "pdftotext"

// ErrPDFToolNotFound は pdftotext が PATH に存在しない場合のエラー
var ErrPDFToolNotFound = errors.New("pdftotext not found: install poppler-utils")

// CommandRunner は外部コマンドを実行して標準出力を返す
type CommandRunner interface {
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
}

type execRunner struct{}

func (execRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).Output()
}

// CheckAvailable は pdftotext が利用可能かを確認する
func CheckAvailable() error {
	if _, err := exec.LookPath(PDFToolName); err != nil {
		return ErrPDFToolNotFound
	}
	return nil
}

// PDFExtractor は pdftotext でPDFをページ単位のテキストに変換する
type PDFExtractor struct {
	runner CommandRunner
	logger *slog.Logger
}

// PDFExtractorOption は PDFExtractor のオプション設定
type PDFExtractorOption func(*PDFExtractor)

// WithRunner はコマンド実行を差し替える
func WithRunner(runner CommandRunner) PDFExtractorOption {
	return func(e *PDFExtractor) {
		if runner != nil {
			e.runner = runner
		}
	}
}

// WithPDFLogger はロガーを設定する
func WithPDFLogger(logger *slog.Logger) PDFExtractorOption {
	return func(e *PDFExtractor) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// NewPDFExtractor は新しい PDFExtractor を作成する
func NewPDFExtractor(opts ...PDFExtractorOption) *PDFExtractor {
	e := &PDFExtractor{
		runner: execRunner{},
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Extract はPDFの各ページのテキストを返す
// pdftotext はページ区切りにフォームフィードを出力する
// テキストが取れないページは読み飛ばす
func (e *PDFExtractor) Extract(ctx context.Context, path string) ([]ingestion.Page, error) {
	out, err := e.runner.Run(ctx, PDFToolName, "-layout", "-enc", "UTF-8", path, "-")
	if err != nil {
		return nil, &ingestion.ExtractionError{Source: path, Err: fmt.Errorf("pdftotext failed: %w", err)}
	}

	raw := strings.Split(string(out), "\f")
	pages := make([]ingestion.Page, 0, len(raw))
	for i, text := range raw {
		number := i + 1
		if strings.TrimSpace(text) == "" {
			// 末尾のフォームフィード後の空要素はページではない
			if i == len(raw)-1 {
				continue
			}
			e.logger.Warn("ページからテキストを抽出できませんでした", "path", path, "page", number)
			continue
		}
		pages = append(pages, ingestion.Page{Number: number, Text: text})
	}

	if len(pages) == 0 {
		return nil, &ingestion.ExtractionError{Source: path, Err: errors.New("no extractable text")}
	}

	e.logger.Debug("PDFを読み込みました", "path", path, "pages", len(pages))
	return pages, nil
}

var _ ingestion.DocumentExtractor = (*PDFExtractor)(nil)
