package http

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/jinford/faq-rag/internal/core/ask"
	"github.com/jinford/faq-rag/internal/core/search"
)

// Asker は質問応答を行う
type Asker interface {
	AnswerQuestion(ctx context.Context, question string) (*ask.AskResult, error)
}

// Searcher は検索を行う
type Searcher interface {
	Retrieve(ctx context.Context, query string, k int) ([]search.Result, error)
}

// Config はサーバー設定
type Config struct {
	Host            string
	Port            int
	ShutdownTimeout time.Duration
}

// DefaultConfig はデフォルト設定を返す
func DefaultConfig() Config {
	return Config{
		Host:            "0.0.0.0",
		Port:            8080,
		ShutdownTimeout: 30 * time.Second,
	}
}

// Server はチャットAPIを提供するHTTPサーバー
type Server struct {
	httpServer      *http.Server
	router          *http.ServeMux
	shutdownTimeout time.Duration

	asker    Asker
	searcher Searcher
	logger   *slog.Logger
}

// ServerOption は Server のオプション設定
type ServerOption func(*Server)

// WithSearcher は検索エンドポイントを有効にする
func WithSearcher(searcher Searcher) ServerOption {
	return func(s *Server) {
		s.searcher = searcher
	}
}

// WithLogger はロガーを設定する
func WithLogger(logger *slog.Logger) ServerOption {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewServer は新しい Server を作成する
func NewServer(cfg Config, asker Asker, opts ...ServerOption) *Server {
	s := &Server{
		router:          http.NewServeMux(),
		shutdownTimeout: cfg.ShutdownTimeout,
		asker:           asker,
		logger:          slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.shutdownTimeout <= 0 {
		s.shutdownTimeout = DefaultConfig().ShutdownTimeout
	}

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:      s.Handler(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 90 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.HandleFunc("GET /healthz", s.handleHealth)
	s.router.HandleFunc("POST /api/chat", s.handleChat)
	if s.searcher != nil {
		s.router.HandleFunc("POST /api/search", s.handleSearch)
	}
}

// Handler はミドルウェア適用済みのハンドラーを返す
func (s *Server) Handler() http.Handler {
	return requestLogger(s.logger, s.router)
}

// Addr は待ち受けアドレスを返す
func (s *Server) Addr() string {
	return s.httpServer.Addr
}

// Run はサーバーを起動し、ctx がキャンセルされたらグレースフルに停止する
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("HTTPサーバーを起動します", "addr", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	s.logger.Info("HTTPサーバーを停止します")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	return nil
}
