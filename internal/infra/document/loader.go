package document

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-enry/go-enry/v2"

	"github.com/jinford/faq-rag/internal/core/ingestion"
)

// ErrBinaryFile はテキストとして扱えないファイルを表す
var ErrBinaryFile = errors.New("binary file")

// Loader は拡張子で抽出方法を切り替える ingestion.DocumentExtractor
// .pdf は PDFExtractor に委譲し、それ以外はテキストファイルとして1ページで読む
type Loader struct {
	pdf ingestion.DocumentExtractor
}

// NewLoader は新しい Loader を作成する
func NewLoader(pdf ingestion.DocumentExtractor) *Loader {
	if pdf == nil {
		pdf = NewPDFExtractor()
	}
	return &Loader{pdf: pdf}
}

// Extract はファイルをページ単位のテキストに変換する
func (l *Loader) Extract(ctx context.Context, path string) ([]ingestion.Page, error) {
	if strings.EqualFold(filepath.Ext(path), ".pdf") {
		return l.pdf.Extract(ctx, path)
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return nil, &ingestion.ExtractionError{Source: path, Err: fmt.Errorf("failed to read file: %w", err)}
	}
	if enry.IsBinary(content) {
		return nil, &ingestion.ExtractionError{Source: path, Err: ErrBinaryFile}
	}
	if strings.TrimSpace(string(content)) == "" {
		return nil, &ingestion.ExtractionError{Source: path, Err: errors.New("empty file")}
	}

	return []ingestion.Page{{Number: 1, Text: string(content)}}, nil
}

var _ ingestion.DocumentExtractor = (*Loader)(nil)
