package web

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"golang.org/x/net/html"
	"golang.org/x/time/rate"

	"github.com/jinford/faq-rag/internal/core/ingestion"
)

const (
	// DefaultUserAgent はリクエストに付与する User-Agent
	DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36"

	// DefaultDelay はページ取得の間隔
	DefaultDelay = time.Second

	// DefaultTimeout は1ページ取得のタイムアウト
	DefaultTimeout = 30 * time.Second

	// maxBodyBytes は読み込むレスポンスボディの上限
	maxBodyBytes = 10 << 20
)

// textTags は本文として取り出す要素
var textTags = map[string]bool{
	"p": true, "h1": true, "h2": true, "h3": true,
	"h4": true, "h5": true, "h6": true, "li": true,
}

// Fetcher はWebページを取得してタイトルと本文テキストを取り出す ingestion.PageFetcher 実装
type Fetcher struct {
	client    *http.Client
	userAgent string
	limiter   *rate.Limiter
	logger    *slog.Logger
}

// Option は Fetcher のオプション設定
type Option func(*Fetcher)

// WithHTTPClient は HTTP クライアントを差し替える
func WithHTTPClient(client *http.Client) Option {
	return func(f *Fetcher) {
		if client != nil {
			f.client = client
		}
	}
}

// WithUserAgent は User-Agent を上書きする
func WithUserAgent(ua string) Option {
	return func(f *Fetcher) {
		if ua != "" {
			f.userAgent = ua
		}
	}
}

// WithDelay はページ取得の間隔を設定する（0以下で待たない）
func WithDelay(d time.Duration) Option {
	return func(f *Fetcher) {
		if d <= 0 {
			f.limiter = rate.NewLimiter(rate.Inf, 1)
			return
		}
		f.limiter = rate.NewLimiter(rate.Every(d), 1)
	}
}

// WithLogger はロガーを設定する
func WithLogger(logger *slog.Logger) Option {
	return func(f *Fetcher) {
		if logger != nil {
			f.logger = logger
		}
	}
}

// NewFetcher は新しい Fetcher を作成する
func NewFetcher(opts ...Option) *Fetcher {
	f := &Fetcher{
		client:    &http.Client{Timeout: DefaultTimeout},
		userAgent: DefaultUserAgent,
		limiter:   rate.NewLimiter(rate.Every(DefaultDelay), 1),
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Fetch は URL のページを取得する
// タイトルが無い場合は URL をタイトルにする
func (f *Fetcher) Fetch(ctx context.Context, url string) (*ingestion.WebPage, error) {
	if err := f.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	f.logger.Info("Webページを取得します", "url", url)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", f.userAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("unexpected status %d from %s", resp.StatusCode, url)
	}

	root, err := html.Parse(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to parse html: %w", err)
	}

	title, text := ExtractText(root)
	if title == "" {
		title = url
	}
	if text == "" {
		return nil, errors.New("no text content")
	}

	return &ingestion.WebPage{URL: url, Title: title, Text: text}, nil
}

// ExtractText はHTMLツリーからタイトルと本文を取り出す
// 本文は p, h1-h6, li 要素のテキストを文書順に改行区切りで連結する
func ExtractText(root *html.Node) (title, text string) {
	var sb strings.Builder

	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch {
			case n.Data == "title" && title == "":
				title = strings.TrimSpace(nodeText(n))
			case n.Data == "script" || n.Data == "style":
				return
			case textTags[n.Data]:
				sb.WriteString(nodeText(n))
				sb.WriteString("\n")
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(root)

	return title, strings.TrimSpace(sb.String())
}

func nodeText(n *html.Node) string {
	var sb strings.Builder
	var collect func(*html.Node)
	collect = func(n *html.Node) {
		switch n.Type {
		case html.TextNode:
			sb.WriteString(n.Data)
		case html.ElementNode:
			if n.Data == "script" || n.Data == "style" {
				return
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			collect(c)
		}
	}
	collect(n)
	return sb.String()
}

var _ ingestion.PageFetcher = (*Fetcher)(nil)
