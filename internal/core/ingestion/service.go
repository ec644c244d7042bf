package ingestion

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/jinford/faq-rag/internal/core/index"
	"github.com/jinford/faq-rag/internal/core/ingestion/chunk"
)

// DefaultEmbeddingBatchSize はコーパス構築時に1回の EmbedBatch に渡すチャンク数
const DefaultEmbeddingBatchSize = 64

// Service は文書・Webページからコーパスを構築する
type Service struct {
	extractor  DocumentExtractor
	fetcher    PageFetcher
	embedder   Embedder
	store      index.Store
	docChunker *chunk.Chunker
	webChunker *chunk.Chunker
	batchSize  int
	logger     *slog.Logger
}

// ServiceOption は Service の設定オプション
type ServiceOption func(*Service)

// WithExtractor は文書抽出器を設定する
func WithExtractor(extractor DocumentExtractor) ServiceOption {
	return func(s *Service) {
		s.extractor = extractor
	}
}

// WithFetcher はWebページ取得器を設定する
func WithFetcher(fetcher PageFetcher) ServiceOption {
	return func(s *Service) {
		s.fetcher = fetcher
	}
}

// WithStore はコーパスの保存先を設定する
func WithStore(store index.Store) ServiceOption {
	return func(s *Service) {
		s.store = store
	}
}

// WithDocumentChunker は文書用のチャンカーを差し替える
func WithDocumentChunker(c *chunk.Chunker) ServiceOption {
	return func(s *Service) {
		if c != nil {
			s.docChunker = c
		}
	}
}

// WithWebChunker はWebページ用のチャンカーを差し替える
func WithWebChunker(c *chunk.Chunker) ServiceOption {
	return func(s *Service) {
		if c != nil {
			s.webChunker = c
		}
	}
}

// WithEmbeddingBatchSize は EmbedBatch 1回あたりのチャンク数を設定する
func WithEmbeddingBatchSize(size int) ServiceOption {
	return func(s *Service) {
		if size > 0 {
			s.batchSize = size
		}
	}
}

// WithIngestionLogger はロガーを差し替える
func WithIngestionLogger(logger *slog.Logger) ServiceOption {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewService は新しい Service を作成する
func NewService(embedder Embedder, opts ...ServiceOption) *Service {
	s := &Service{
		embedder:   embedder,
		docChunker: chunk.NewChunker(),
		webChunker: chunk.NewChunker(
			chunk.WithChunkSize(chunk.DefaultWebChunkSize),
			chunk.WithChunkOverlap(chunk.DefaultWebChunkOverlap),
			chunk.WithSeparators(chunk.WebSeparators),
		),
		batchSize: DefaultEmbeddingBatchSize,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ProcessDocument は文書を抽出・正規化・チャンク化する
// QAペアは改行を保った生テキストから、チャンクは正規化済みテキストから作る
func (s *Service) ProcessDocument(ctx context.Context, path string) (*DocumentResult, error) {
	if s.extractor == nil {
		return nil, errors.New("document extractor is not configured")
	}

	pages, err := s.extractor.Extract(ctx, path)
	if err != nil {
		if errors.Is(err, ErrExtraction) {
			return nil, err
		}
		return nil, &ExtractionError{Source: path, Err: err}
	}

	raw := make([]string, 0, len(pages))
	texts := make([]string, 0, len(pages))
	for _, page := range pages {
		raw = append(raw, page.Text)
		if normalized := chunk.Normalize(page.Text); normalized != "" {
			texts = append(texts, normalized)
		}
	}

	// ページをまたぐ質問と回答を拾えるよう、全ページを1つの行ストリームとして走査する
	pairs := chunk.ExtractQAPairs(strings.Join(raw, "\n"))
	if pairs == nil {
		pairs = []chunk.QAPair{}
	}

	fullText := strings.Join(texts, " ")
	chunks := s.docChunker.Chunk(fullText)

	s.logger.Info("文書を処理しました",
		"source", path,
		"pages", len(pages),
		"chunks", len(chunks),
		"qaPairs", len(pairs),
	)

	return &DocumentResult{
		Source:  path,
		Pages:   len(pages),
		Text:    fullText,
		Chunks:  chunks,
		QAPairs: pairs,
	}, nil
}

// ProcessWebPages はWebページを取得し、1つのテキストにまとめてからチャンク化する
// 取得に失敗したページは読み飛ばす（リトライしない）
func (s *Service) ProcessWebPages(ctx context.Context, urls []string) (*WebResult, error) {
	if s.fetcher == nil {
		return nil, errors.New("page fetcher is not configured")
	}

	result := &WebResult{}
	for _, url := range urls {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		page, err := s.fetcher.Fetch(ctx, url)
		if err != nil {
			s.logger.Warn("Webページの取得に失敗、スキップします",
				"url", url,
				"error", &ExtractionError{Source: url, Err: err},
			)
			result.Failed = append(result.Failed, url)
			continue
		}
		result.Pages = append(result.Pages, *page)
	}

	result.Chunks = s.webChunker.Chunk(CombineWebPages(result.Pages))

	s.logger.Info("Webページを処理しました",
		"pages", len(result.Pages),
		"failed", len(result.Failed),
		"chunks", len(result.Chunks),
	)

	return result, nil
}

// CombineWebPages はページ群を区切り付きの1テキストにまとめる
func CombineWebPages(pages []WebPage) string {
	var sb strings.Builder
	for _, p := range pages {
		sb.WriteString("Title: ")
		sb.WriteString(p.Title)
		sb.WriteString("\n\n")
		sb.WriteString(p.Text)
		sb.WriteString("\n\nSource: ")
		sb.WriteString(p.URL)
		sb.WriteString("\n\n---\n\n")
	}
	return sb.String()
}

// BuildCorpus はチャンク列を Document に整形し、Embedding を生成してコーパスを組み立てる
//
// バッチ単位の Embedding に失敗した場合は1件ずつやり直し、それでも失敗したチャンクは除外する。
func (s *Service) BuildCorpus(ctx context.Context, chunks []string) (*index.Corpus, *BuildStats, error) {
	stats := &BuildStats{InputChunks: len(chunks)}

	documents := make([]string, 0, len(chunks))
	for _, c := range chunks {
		doc := chunk.CleanDocument(c)
		if doc == "" {
			stats.Empty++
			continue
		}
		documents = append(documents, doc)
	}

	corpus := index.NewCorpus(s.embedder.Dimension())

	for start := 0; start < len(documents); start += s.batchSize {
		end := min(start+s.batchSize, len(documents))
		batch := documents[start:end]

		vectors, err := s.embedder.EmbedBatch(ctx, batch)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, stats, ctxErr
			}
			s.logger.Warn("バッチEmbeddingに失敗、1件ずつ再試行します",
				"batchStart", start,
				"batchSize", len(batch),
				"error", err,
			)
			batch, vectors = s.embedOneByOne(ctx, batch, stats)
			if len(batch) == 0 {
				continue
			}
		}

		if err := corpus.Add(batch, vectors); err != nil {
			return nil, stats, fmt.Errorf("failed to add documents to corpus: %w", err)
		}

		s.logger.Debug("Embeddingを登録しました",
			"progress", end,
			"total", len(documents),
		)
	}

	stats.Documents = corpus.Len()

	s.logger.Info("コーパスを構築しました",
		"inputChunks", stats.InputChunks,
		"documents", stats.Documents,
		"empty", stats.Empty,
		"skipped", stats.Skipped,
	)

	return corpus, stats, nil
}

func (s *Service) embedOneByOne(ctx context.Context, batch []string, stats *BuildStats) ([]string, [][]float32) {
	docs := make([]string, 0, len(batch))
	vectors := make([][]float32, 0, len(batch))

	for _, doc := range batch {
		v, err := s.embedder.EmbedBatch(ctx, []string{doc})
		if err != nil || len(v) != 1 {
			stats.Skipped++
			s.logger.Warn("Embeddingに失敗したチャンクを除外します",
				"preview", preview(doc),
				"error", err,
			)
			continue
		}
		docs = append(docs, doc)
		vectors = append(vectors, v[0])
	}

	return docs, vectors
}

// Ingest はコーパスを構築して保存する
func (s *Service) Ingest(ctx context.Context, chunks []string) (*index.Corpus, *BuildStats, error) {
	corpus, stats, err := s.BuildCorpus(ctx, chunks)
	if err != nil {
		return nil, stats, err
	}

	if s.store != nil {
		if err := s.store.Save(ctx, corpus); err != nil {
			return nil, stats, fmt.Errorf("failed to save corpus: %w", err)
		}
	}

	return corpus, stats, nil
}

// BuildFromChunkFiles は保存済みのチャンクファイルからコーパスを構築して保存する
// 文書チャンクを先に、Webチャンクを後に連結する。パスが空のファイルは読み飛ばす
func (s *Service) BuildFromChunkFiles(ctx context.Context, docChunksPath, webChunksPath string) (*index.Corpus, *BuildStats, error) {
	var all []string
	for _, path := range []string{docChunksPath, webChunksPath} {
		if path == "" {
			continue
		}
		chunks, err := ReadChunkFile(path)
		if err != nil {
			return nil, nil, err
		}
		s.logger.Info("チャンクファイルを読み込みました", "path", path, "chunks", len(chunks))
		all = append(all, chunks...)
	}

	return s.Ingest(ctx, all)
}

func preview(s string) string {
	r := []rune(s)
	if len(r) <= 50 {
		return s
	}
	return string(r[:50]) + "..."
}
