package container

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	goredis "github.com/redis/go-redis/v9"

	"github.com/jinford/faq-rag/internal/core/ask"
	"github.com/jinford/faq-rag/internal/core/embedding"
	"github.com/jinford/faq-rag/internal/core/index"
	"github.com/jinford/faq-rag/internal/core/ingestion"
	"github.com/jinford/faq-rag/internal/core/ingestion/chunk"
	"github.com/jinford/faq-rag/internal/core/search"
	"github.com/jinford/faq-rag/internal/infra/document"
	"github.com/jinford/faq-rag/internal/infra/filestore"
	"github.com/jinford/faq-rag/internal/infra/openai"
	"github.com/jinford/faq-rag/internal/infra/postgres"
	"github.com/jinford/faq-rag/internal/infra/redis"
	"github.com/jinford/faq-rag/internal/infra/web"
	"github.com/jinford/faq-rag/internal/platform/database"
	"github.com/jinford/faq-rag/pkg/config"
)

// Container は起動時に一度だけ組み立てる依存関係を保持する。
// CLI のアクションと HTTP ハンドラーはここから各サービスを受け取る。
type Container struct {
	Config    *config.Config
	Embedding *embedding.Client
	Store     index.Store
	Ingestion *ingestion.Service

	generator    ask.Generator
	tokenCounter ask.TokenCounter
	logger       *slog.Logger
	database     *database.Database
	redisClient  goredis.UniversalClient
}

// Serving はロード済みコーパスに対する検索・質問応答サービス
type Serving struct {
	Corpus *index.Corpus
	Search *search.Service
	Ask    *ask.Service
}

type containerOptions struct {
	logger    *slog.Logger
	provider  embedding.Provider
	generator ask.Generator
	extractor ingestion.DocumentExtractor
	fetcher   ingestion.PageFetcher
	store     index.Store
}

// ContainerOption は Container 構築時のオプション
type ContainerOption func(*containerOptions)

// WithContainerLogger はロガーを差し替える
func WithContainerLogger(logger *slog.Logger) ContainerOption {
	return func(opts *containerOptions) {
		opts.logger = logger
	}
}

// WithContainerEmbeddingProvider はカスタム Embedding プロバイダーを注入する
func WithContainerEmbeddingProvider(provider embedding.Provider) ContainerOption {
	return func(opts *containerOptions) {
		opts.provider = provider
	}
}

// WithContainerGenerator は回答生成クライアントを差し替える
func WithContainerGenerator(generator ask.Generator) ContainerOption {
	return func(opts *containerOptions) {
		opts.generator = generator
	}
}

// WithContainerExtractor は文書抽出を差し替える
func WithContainerExtractor(extractor ingestion.DocumentExtractor) ContainerOption {
	return func(opts *containerOptions) {
		opts.extractor = extractor
	}
}

// WithContainerFetcher はWebページ取得を差し替える
func WithContainerFetcher(fetcher ingestion.PageFetcher) ContainerOption {
	return func(opts *containerOptions) {
		opts.fetcher = fetcher
	}
}

// WithContainerStore はコーパスの保存先を差し替える
func WithContainerStore(store index.Store) ContainerOption {
	return func(opts *containerOptions) {
		opts.store = store
	}
}

// New は設定からコンテナを生成する。
func New(ctx context.Context, cfg *config.Config, opts ...ContainerOption) (*Container, error) {
	options := containerOptions{logger: slog.Default()}
	for _, opt := range opts {
		opt(&options)
	}
	if options.logger == nil {
		options.logger = slog.Default()
	}

	c := &Container{Config: cfg, logger: options.logger}
	built := false
	defer func() {
		// 途中で失敗した場合は確保済みの接続を閉じる
		if !built {
			c.Close()
		}
	}()

	// Embedding クライアント (OpenAI / mock + Redis キャッシュ)
	embeddingClient, err := c.newEmbeddingClient(options.provider)
	if err != nil {
		return nil, err
	}
	c.Embedding = embeddingClient

	// コーパス保存先 (ファイル / PostgreSQL)
	store := options.store
	if store == nil {
		store, err = c.newStore(ctx)
		if err != nil {
			return nil, err
		}
	}
	c.Store = store

	// 文書抽出 / Webページ取得
	extractor := options.extractor
	if extractor == nil {
		extractor = document.NewLoader(document.NewPDFExtractor(document.WithPDFLogger(c.logger)))
	}
	fetcher := options.fetcher
	if fetcher == nil {
		fetcher = web.NewFetcher(
			web.WithUserAgent(cfg.Web.UserAgent),
			web.WithDelay(cfg.Web.Delay),
			web.WithLogger(c.logger),
		)
	}

	// IngestionService
	c.Ingestion = ingestion.NewService(
		embeddingClient,
		ingestion.WithExtractor(extractor),
		ingestion.WithFetcher(fetcher),
		ingestion.WithStore(store),
		ingestion.WithDocumentChunker(chunk.NewChunker(
			chunk.WithChunkSize(cfg.Chunking.DocumentSize),
			chunk.WithChunkOverlap(cfg.Chunking.DocumentOverlap),
		)),
		ingestion.WithWebChunker(chunk.NewChunker(
			chunk.WithChunkSize(cfg.Chunking.WebSize),
			chunk.WithChunkOverlap(cfg.Chunking.WebOverlap),
			chunk.WithSeparators(chunk.WebSeparators),
		)),
		ingestion.WithIngestionLogger(c.logger),
	)

	// Generator (OpenAI)
	c.generator = options.generator
	if c.generator == nil {
		c.generator, err = c.newGenerator()
		if err != nil {
			return nil, err
		}
	}

	tokenCounter, err := openai.NewTokenCounter()
	if err != nil {
		// 推定値で代替できるので起動は止めない
		c.logger.Warn("TokenCounter 初期化に失敗、推定値を使用します", "error", err)
		tokenCounter = &openai.TokenCounter{}
	}
	c.tokenCounter = tokenCounter

	built = true
	return c, nil
}

func (c *Container) newEmbeddingClient(provider embedding.Provider) (*embedding.Client, error) {
	cfg := c.Config

	source, err := embedding.ParseSource(cfg.Embedding.Source)
	if err != nil {
		return nil, err
	}

	clientOpts := []embedding.ClientOption{
		embedding.WithSource(source),
		embedding.WithDimension(cfg.OpenAI.EmbeddingDimension),
		embedding.WithMaxAttempts(cfg.Embedding.MaxAttempts),
		embedding.WithBatchSize(cfg.Embedding.BatchSize),
		embedding.WithPaceInterval(cfg.Embedding.PaceInterval),
		embedding.WithClientLogger(c.logger),
	}

	if source == embedding.SourceOpenAI && provider == nil {
		provider, err = openai.NewEmbedder(
			cfg.OpenAI.APIKey,
			openai.WithEmbeddingModel(cfg.OpenAI.EmbeddingModel),
			openai.WithEmbeddingDimension(cfg.OpenAI.EmbeddingDimension),
			openai.WithEmbeddingBaseURL(cfg.OpenAI.BaseURL),
		)
		if err != nil {
			return nil, fmt.Errorf("OpenAI Embedder 初期化に失敗しました: %w", err)
		}
	}
	if provider != nil {
		clientOpts = append(clientOpts, embedding.WithProvider(provider))
	}

	if url, ok := cfg.Redis.URL.Get(); ok {
		redisClient, err := redis.NewClientFromURL(url)
		if err != nil {
			return nil, fmt.Errorf("Redis 初期化に失敗しました: %w", err)
		}
		c.redisClient = redisClient
		clientOpts = append(clientOpts, embedding.WithCache(redis.NewEmbeddingCache(redisClient, cfg.Redis.TTL)))
	}

	return embedding.NewClient(clientOpts...)
}

func (c *Container) newStore(ctx context.Context) (index.Store, error) {
	cfg := c.Config

	switch cfg.Corpus.Store {
	case config.CorpusStorePostgres:
		db, err := database.New(ctx, database.ConnectionParams{
			Host:     cfg.Database.Host,
			Port:     cfg.Database.Port,
			User:     cfg.Database.User,
			Password: cfg.Database.Password,
			DBName:   cfg.Database.DBName,
			SSLMode:  cfg.Database.SSLMode,
		})
		if err != nil {
			return nil, fmt.Errorf("データベース初期化に失敗しました: %w", err)
		}
		c.database = db

		store := postgres.NewCorpusStore(db,
			postgres.WithEmbeddingSource(cfg.Embedding.Source),
			postgres.WithLogger(c.logger),
		)
		if err := store.EnsureSchema(ctx); err != nil {
			return nil, fmt.Errorf("スキーマ作成に失敗しました: %w", err)
		}
		return store, nil
	default:
		return filestore.New(cfg.Corpus.Dir,
			filestore.WithEmbeddingSource(cfg.Embedding.Source),
			filestore.WithLogger(c.logger),
		), nil
	}
}

func (c *Container) newGenerator() (ask.Generator, error) {
	cfg := c.Config

	client, err := openai.NewClient(
		cfg.OpenAI.APIKey,
		openai.WithModel(cfg.OpenAI.LLMModel),
		openai.WithTemperature(cfg.OpenAI.Temperature),
		openai.WithMaxTokens(cfg.OpenAI.MaxTokens),
		openai.WithTimeout(cfg.OpenAI.Timeout),
		openai.WithBaseURL(cfg.OpenAI.BaseURL),
	)
	if errors.Is(err, openai.ErrAPIKeyNotSet) {
		// 検索だけなら API キーなしで動かせる。回答生成は失敗扱いになる
		c.logger.Warn("OPENAI_API_KEY が未設定のため回答生成は利用できません")
		return unavailableGenerator{err: err}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("OpenAI クライアント初期化に失敗しました: %w", err)
	}
	return client, nil
}

// LoadServing は保存済みコーパスを読み込み、検索・質問応答サービスを組み立てる。
func (c *Container) LoadServing(ctx context.Context) (*Serving, error) {
	corpus, err := c.Store.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("コーパスの読み込みに失敗しました: %w", err)
	}
	return c.NewServing(corpus)
}

// NewServing は与えられたコーパスに対する検索・質問応答サービスを組み立てる。
func (c *Container) NewServing(corpus *index.Corpus) (*Serving, error) {
	if corpus == nil {
		return nil, errors.New("corpus is nil")
	}
	if corpus.Dimension() != c.Embedding.Dimension() {
		return nil, fmt.Errorf("%w: corpus has dimension %d but embedding client produces %d",
			index.ErrDimensionMismatch, corpus.Dimension(), c.Embedding.Dimension())
	}

	cfg := c.Config

	searchService := search.NewService(corpus, c.Embedding,
		search.WithOverFetch(cfg.Retrieval.OverFetch),
		search.WithWeights(search.Weights{
			QABoost:         cfg.Retrieval.QABoost,
			ExactMatchBoost: cfg.Retrieval.ExactMatchBoost,
		}),
		search.WithSearchLogger(c.logger),
	)

	askService := ask.NewService(searchService, c.generator,
		ask.WithTopK(cfg.Retrieval.TopK),
		ask.WithPreamble(cfg.Ask.Preamble),
		ask.WithMaxContextTokens(cfg.Ask.MaxContextTokens),
		ask.WithTokenCounter(c.tokenCounter),
		ask.WithAskLogger(c.logger),
	)

	return &Serving{
		Corpus: corpus,
		Search: searchService,
		Ask:    askService,
	}, nil
}

// Close は内部リソースを解放する。
func (c *Container) Close() {
	if c == nil {
		return
	}
	if c.database != nil {
		c.database.Close()
	}
	if c.redisClient != nil {
		if err := c.redisClient.Close(); err != nil {
			c.Logger().Warn("Redis 切断に失敗しました", "error", err)
		}
	}
}

// Logger はロガーを返す。
func (c *Container) Logger() *slog.Logger {
	if c == nil || c.logger == nil {
		return slog.Default()
	}
	return c.logger
}

// unavailableGenerator は API キー未設定時の Generator
type unavailableGenerator struct {
	err error
}

func (g unavailableGenerator) Generate(context.Context, ask.GenerationRequest) (string, error) {
	return "", g.err
}
