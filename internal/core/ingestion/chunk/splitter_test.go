package chunk

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitText_ShortTextIsSingleChunk(t *testing.T) {
	chunks := SplitText("Short text.", 500, 50, DocumentSeparators)
	assert.Equal(t, []string{"Short text."}, chunks)
}

func TestSplitText_Empty(t *testing.T) {
	assert.Empty(t, SplitText("", 500, 50, DocumentSeparators))
}

func TestSplitText_SizeAndOverlap(t *testing.T) {
	sentence := "Renters can cancel a booking from the app before pickup. "
	text := strings.Repeat(sentence, 40)

	cases := []struct {
		size    int
		overlap int
		seps    []string
	}{
		{size: 500, overlap: 50, seps: DocumentSeparators},
		{size: 120, overlap: 30, seps: DocumentSeparators},
		{size: 1000, overlap: 200, seps: WebSeparators},
		{size: 64, overlap: 0, seps: DocumentSeparators},
	}

	for _, tc := range cases {
		chunks := SplitText(text, tc.size, tc.overlap, tc.seps)
		require.Greater(t, len(chunks), 1)

		for i, c := range chunks {
			assert.LessOrEqual(t, utf8.RuneCountInString(c), tc.size, "chunk %d", i)
			if i == 0 {
				continue
			}
			prev := []rune(chunks[i-1])
			want := string(prev[len(prev)-tc.overlap:])
			assert.True(t, strings.HasPrefix(c, want), "chunk %d must start with predecessor tail", i)
		}
	}
}

func TestSplitText_CoversWholeText(t *testing.T) {
	text := strings.Repeat("Payments are processed securely, and payouts arrive weekly! ", 30)
	size, overlap := 200, 40

	chunks := SplitText(text, size, overlap, DocumentSeparators)
	require.NotEmpty(t, chunks)

	// オーバーラップを取り除いて連結すると元のテキストに戻る
	var b strings.Builder
	b.WriteString(chunks[0])
	for _, c := range chunks[1:] {
		b.WriteString(string([]rune(c)[overlap:]))
	}
	assert.Equal(t, text, b.String())
}

func TestSplitText_NoSeparatorFallsBackToRunes(t *testing.T) {
	text := strings.Repeat("あ", 25)
	chunks := SplitText(text, 10, 2, DocumentSeparators)

	require.NotEmpty(t, chunks)
	for i, c := range chunks {
		assert.LessOrEqual(t, utf8.RuneCountInString(c), 10)
		if i > 0 {
			assert.True(t, strings.HasPrefix(c, "ああ"))
		}
	}
}

func TestSplitText_OverlapLargerThanSizeIsClamped(t *testing.T) {
	text := strings.Repeat("word ", 50)
	chunks := SplitText(text, 20, 40, DocumentSeparators)

	require.Greater(t, len(chunks), 1)
	for i := 1; i < len(chunks); i++ {
		prev := []rune(chunks[i-1])
		assert.True(t, strings.HasPrefix(chunks[i], string(prev[len(prev)-5:])))
	}
}
