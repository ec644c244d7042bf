package config

import (
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/samber/mo"
)

// 設定値で使う列挙
const (
	EmbeddingSourceOpenAI = "openai"
	EmbeddingSourceMock   = "mock"

	CorpusStoreFile     = "file"
	CorpusStorePostgres = "postgres"
)

// Config はアプリケーション全体の設定を保持します
type Config struct {
	// OpenAI設定（Embeddings + 回答生成）
	OpenAI OpenAIConfig

	// Embedding クライアント設定
	Embedding EmbeddingConfig

	// チャンク分割設定
	Chunking ChunkingConfig

	// Web取得設定
	Web WebConfig

	// 検索設定
	Retrieval RetrievalConfig

	// コーパス保存先設定
	Corpus CorpusConfig

	// Database設定（Corpus.Store が postgres の場合のみ使用）
	Database DatabaseConfig

	// Redis設定（クエリEmbeddingのキャッシュ）
	Redis RedisConfig

	// 質問応答設定
	Ask AskConfig

	// HTTPサーバー設定
	Server ServerConfig

	// ログ設定
	Log LogConfig
}

// OpenAIConfig はOpenAI API設定
type OpenAIConfig struct {
	APIKey             string
	BaseURL            string
	EmbeddingModel     string
	EmbeddingDimension int
	LLMModel           string
	Temperature        float64
	MaxTokens          int
	Timeout            time.Duration
}

// EmbeddingConfig は Embedding クライアントの設定
type EmbeddingConfig struct {
	Source       string // "openai" or "mock"
	MaxAttempts  int
	BatchSize    int
	PaceInterval time.Duration
}

// ChunkingConfig はチャンク分割設定
type ChunkingConfig struct {
	DocumentSize    int
	DocumentOverlap int
	WebSize         int
	WebOverlap      int
}

// WebConfig はWebページ取得設定
type WebConfig struct {
	UserAgent string
	Delay     time.Duration
	Timeout   time.Duration
}

// RetrievalConfig は検索とスコア補正の設定
type RetrievalConfig struct {
	TopK            int
	OverFetch       int
	QABoost         float64
	ExactMatchBoost float64
}

// CorpusConfig はコーパス保存先の設定
type CorpusConfig struct {
	Store string // "file" or "postgres"
	Dir   string
}

// DatabaseConfig はデータベース接続設定
type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// RedisConfig はRedis接続設定
type RedisConfig struct {
	URL mo.Option[string] // 未設定ならキャッシュを使わない
	TTL time.Duration
}

// AskConfig は質問応答の設定
type AskConfig struct {
	Preamble         string
	MaxContextTokens int
}

// ServerConfig はHTTPサーバー設定
type ServerConfig struct {
	Host string
	Port int
}

// LogConfig はログ設定
type LogConfig struct {
	Level  string
	Format string
}

// Load は環境変数または.envファイルから設定を読み込みます
func Load(envFilePath string) (*Config, error) {
	// .envファイルが存在する場合は読み込む
	if envFilePath != "" {
		if err := godotenv.Load(envFilePath); err != nil {
			// ファイルが存在しない場合はエラーとしない（環境変数のみで動作可能）
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("failed to load .env file: %w", err)
			}
		}
	}

	cfg := &Config{
		OpenAI: OpenAIConfig{
			APIKey:             getEnv("OPENAI_API_KEY", ""),
			BaseURL:            getEnv("OPENAI_BASE_URL", ""),
			EmbeddingModel:     getEnv("OPENAI_EMBEDDING_MODEL", "text-embedding-3-small"),
			EmbeddingDimension: getEnvAsInt("OPENAI_EMBEDDING_DIMENSION", 1536),
			LLMModel:           getEnv("OPENAI_LLM_MODEL", "gpt-3.5-turbo"),
			Temperature:        getEnvAsFloat("OPENAI_LLM_TEMPERATURE", 0.3),
			MaxTokens:          getEnvAsInt("OPENAI_LLM_MAX_TOKENS", 500),
			Timeout:            getEnvAsDuration("OPENAI_TIMEOUT", 60*time.Second),
		},
		Embedding: EmbeddingConfig{
			Source:       strings.ToLower(getEnv("EMBEDDING_SOURCE", EmbeddingSourceOpenAI)),
			MaxAttempts:  getEnvAsInt("EMBEDDING_MAX_ATTEMPTS", 5),
			BatchSize:    getEnvAsInt("EMBEDDING_BATCH_SIZE", 16),
			PaceInterval: getEnvAsDuration("EMBEDDING_PACE_INTERVAL", 0),
		},
		Chunking: ChunkingConfig{
			DocumentSize:    getEnvAsInt("CHUNK_SIZE", 500),
			DocumentOverlap: getEnvAsInt("CHUNK_OVERLAP", 50),
			WebSize:         getEnvAsInt("WEB_CHUNK_SIZE", 1000),
			WebOverlap:      getEnvAsInt("WEB_CHUNK_OVERLAP", 200),
		},
		Web: WebConfig{
			UserAgent: getEnv("WEB_USER_AGENT", ""),
			Delay:     getEnvAsDuration("WEB_FETCH_DELAY", time.Second),
			Timeout:   getEnvAsDuration("WEB_FETCH_TIMEOUT", 30*time.Second),
		},
		Retrieval: RetrievalConfig{
			TopK:            getEnvAsInt("RETRIEVAL_TOP_K", 5),
			OverFetch:       getEnvAsInt("RETRIEVAL_OVER_FETCH", 3),
			QABoost:         getEnvAsFloat("RETRIEVAL_QA_BOOST", 0.8),
			ExactMatchBoost: getEnvAsFloat("RETRIEVAL_EXACT_MATCH_BOOST", 0.8),
		},
		Corpus: CorpusConfig{
			Store: strings.ToLower(getEnv("CORPUS_STORE", CorpusStoreFile)),
			Dir:   getEnv("CORPUS_DIR", "./data/vector_db"),
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnvAsInt("DB_PORT", 5432),
			User:     getEnv("DB_USER", "faqrag"),
			Password: getEnv("DB_PASSWORD", ""),
			DBName:   getEnv("DB_NAME", "faqrag"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		Redis: RedisConfig{
			URL: getEnvAsOption("REDIS_URL"),
			TTL: getEnvAsDuration("REDIS_EMBEDDING_TTL", 24*time.Hour),
		},
		Ask: AskConfig{
			Preamble:         getEnv("ASK_PREAMBLE", ""),
			MaxContextTokens: getEnvAsInt("ASK_MAX_CONTEXT_TOKENS", 3000),
		},
		Server: ServerConfig{
			Host: getEnv("SERVER_HOST", "0.0.0.0"),
			Port: getEnvAsInt("SERVER_PORT", 5000),
		},
		Log: LogConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "text"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate は列挙値と検索パラメータを検証します
func (c *Config) Validate() error {
	switch c.Embedding.Source {
	case EmbeddingSourceOpenAI, EmbeddingSourceMock:
	default:
		return fmt.Errorf("invalid EMBEDDING_SOURCE %q: must be %q or %q", c.Embedding.Source, EmbeddingSourceOpenAI, EmbeddingSourceMock)
	}

	switch c.Corpus.Store {
	case CorpusStoreFile, CorpusStorePostgres:
	default:
		return fmt.Errorf("invalid CORPUS_STORE %q: must be %q or %q", c.Corpus.Store, CorpusStoreFile, CorpusStorePostgres)
	}

	if c.Retrieval.OverFetch < 1 {
		return fmt.Errorf("invalid RETRIEVAL_OVER_FETCH %d: must be at least 1", c.Retrieval.OverFetch)
	}
	if !isPositiveFinite(c.Retrieval.QABoost) {
		return fmt.Errorf("invalid RETRIEVAL_QA_BOOST %v: must be a finite positive number", c.Retrieval.QABoost)
	}
	if !isPositiveFinite(c.Retrieval.ExactMatchBoost) {
		return fmt.Errorf("invalid RETRIEVAL_EXACT_MATCH_BOOST %v: must be a finite positive number", c.Retrieval.ExactMatchBoost)
	}

	return nil
}

func isPositiveFinite(v float64) bool {
	return v > 0 && !math.IsInf(v, 1)
}

// getEnv は環境変数を取得し、存在しない場合はデフォルト値を返します
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsOption は環境変数が設定されていれば Some を返します
func getEnvAsOption(key string) mo.Option[string] {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return mo.Some(value)
	}
	return mo.None[string]()
}

// getEnvAsInt は環境変数を整数として取得します
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsFloat は環境変数を浮動小数点数として取得します
func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsDuration は環境変数を time.Duration として取得します（例: "500ms", "2s"）
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}
