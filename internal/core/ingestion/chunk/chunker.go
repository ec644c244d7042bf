package chunk

import (
	"regexp"
	"strings"
)

// Chunker は正規化済みテキストを検索用のチャンクに分割する
type Chunker struct {
	chunkSize    int
	chunkOverlap int
	separators   []string
}

// Option は Chunker の設定オプション
type Option func(*Chunker)

// WithChunkSize はチャンクの最大ルーン数を設定する
func WithChunkSize(size int) Option {
	return func(c *Chunker) {
		if size > 0 {
			c.chunkSize = size
		}
	}
}

// WithChunkOverlap は隣接チャンク間の重複ルーン数を設定する
func WithChunkOverlap(overlap int) Option {
	return func(c *Chunker) {
		if overlap >= 0 {
			c.chunkOverlap = overlap
		}
	}
}

// WithSeparators はフォールバック分割の区切り文字を差し替える
func WithSeparators(separators []string) Option {
	return func(c *Chunker) {
		if len(separators) > 0 {
			c.separators = separators
		}
	}
}

// NewChunker は新しい Chunker を作成する
func NewChunker(opts ...Option) *Chunker {
	c := &Chunker{
		chunkSize:    DefaultChunkSize,
		chunkOverlap: DefaultChunkOverlap,
		separators:   DocumentSeparators,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ChunkSize は設定済みのチャンクサイズを返す
func (c *Chunker) ChunkSize() int { return c.chunkSize }

// ChunkOverlap は設定済みのオーバーラップを返す
func (c *Chunker) ChunkOverlap() int { return c.chunkOverlap }

// Chunk はテキストをチャンク列に変換する
// 構造化QAが1件でも見つかればそれが全チャンクとなり、見つからなければ区切り文字で分割する
func (c *Chunker) Chunk(text string) []string {
	if strings.TrimSpace(text) == "" {
		return nil
	}

	if qa := ExtractStructuredChunks(text); len(qa) > 0 {
		return qa
	}

	return SplitText(text, c.chunkSize, c.chunkOverlap, c.separators)
}

var (
	questionMarkerPattern = regexp.MustCompile(`(?i)question:`)
	qaSegmentPattern      = regexp.MustCompile(`(?is)^question:\s*([^?]+\??)\s*answer:\s*(.+)$`)
)

// ExtractStructuredChunks は "Question: ... Answer: ..." 形式のQAを1件ずつチャンク化する
// 回答は次の Question: の直前までで、各QAはちょうど1回だけ出力される
func ExtractStructuredChunks(text string) []string {
	locs := questionMarkerPattern.FindAllStringIndex(text, -1)
	if len(locs) == 0 {
		return nil
	}

	var chunks []string
	for i, loc := range locs {
		end := len(text)
		if i+1 < len(locs) {
			end = locs[i+1][0]
		}

		m := qaSegmentPattern.FindStringSubmatch(strings.TrimSpace(text[loc[0]:end]))
		if m == nil {
			continue
		}

		question := strings.TrimSpace(m[1])
		answer := strings.TrimSpace(m[2])
		if question == "" || answer == "" {
			continue
		}

		chunks = append(chunks, QuestionMarker+" "+question+" "+AnswerMarker+" "+answer)
	}

	return chunks
}
