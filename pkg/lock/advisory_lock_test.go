package lock

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGenerateLockID(t *testing.T) {
	assert.Equal(t, GenerateLockID("faq-rag", "corpus"), GenerateLockID("faq-rag", "corpus"))
	assert.NotEqual(t, GenerateLockID("faq-rag", "corpus"), GenerateLockID("faq-rag", "index"))
	assert.NotEqual(t, GenerateLockID("ab", "c"), GenerateLockID("a", "bc"))
	assert.Equal(t, GenerateLockID("faq-rag", "corpus", "write"), CorpusWriteKey)
}
