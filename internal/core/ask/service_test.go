package ask

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jinford/faq-rag/internal/core/search"
)

type stubRetriever struct {
	results []search.Result
	err     error
	lastK   int
}

func (r *stubRetriever) Retrieve(ctx context.Context, query string, k int) ([]search.Result, error) {
	r.lastK = k
	if r.err != nil {
		return []search.Result{}, r.err
	}
	return r.results, nil
}

type stubGenerator struct {
	answer  string
	err     error
	lastReq GenerationRequest
}

func (g *stubGenerator) Generate(ctx context.Context, req GenerationRequest) (string, error) {
	g.lastReq = req
	return g.answer, g.err
}

// wordCounter は空白区切りの単語数をトークン数とみなす
type wordCounter struct{}

func (wordCounter) CountTokens(text string) int { return len(strings.Fields(text)) }

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestService_AnswerQuestion(t *testing.T) {
	retriever := &stubRetriever{results: []search.Result{
		{Document: "Question: How do I cancel? Answer: Tap Cancel.", Score: 0.5},
		{Document: "Cancellations are free before pickup.", Score: 0.9},
	}}
	generator := &stubGenerator{answer: "  Tap Cancel in the booking.  "}
	svc := NewService(retriever, generator, WithAskLogger(discardLogger()))

	res, err := svc.AnswerQuestion(context.Background(), "How do I cancel?")
	require.NoError(t, err)

	assert.Equal(t, "Tap Cancel in the booking.", res.Answer)
	assert.Len(t, res.Sources, 2)
	assert.Equal(t, search.DefaultTopK, retriever.lastK)

	assert.Equal(t, DefaultPreamble, generator.lastReq.System)
	assert.Contains(t, generator.lastReq.Prompt,
		"Context:\nQuestion: How do I cancel? Answer: Tap Cancel.\n\nCancellations are free before pickup.\n\n")
	assert.True(t, strings.HasSuffix(generator.lastReq.Prompt, "Question: How do I cancel?\n\nAnswer:"))
}

func TestService_GenerationFailureReturnsApology(t *testing.T) {
	retriever := &stubRetriever{}
	generator := &stubGenerator{err: errors.New("timeout")}
	svc := NewService(retriever, generator, WithAskLogger(discardLogger()))

	res, err := svc.AnswerQuestion(context.Background(), "Anything?")
	require.NoError(t, err)
	assert.Equal(t, ApologyMessage, res.Answer)
}

func TestService_RetrievalFailureStillAnswers(t *testing.T) {
	retriever := &stubRetriever{err: errors.New("embedding unavailable")}
	generator := &stubGenerator{answer: "Please contact support."}
	svc := NewService(retriever, generator, WithAskLogger(discardLogger()))

	res, err := svc.AnswerQuestion(context.Background(), "Anything?")
	require.NoError(t, err)

	assert.Equal(t, "Please contact support.", res.Answer)
	assert.Empty(t, res.Sources)
	assert.Contains(t, generator.lastReq.Prompt, noContextPlaceholder)
}

func TestService_ContextIsTrimmedToTokenBudget(t *testing.T) {
	retriever := &stubRetriever{results: []search.Result{
		{Document: "one two three"},
		{Document: "four five"},
		{Document: "six seven eight"},
	}}
	generator := &stubGenerator{answer: "ok"}
	svc := NewService(retriever, generator,
		WithAskLogger(discardLogger()),
		WithTokenCounter(wordCounter{}),
		WithMaxContextTokens(5),
		WithTopK(3),
	)

	res, err := svc.AnswerQuestion(context.Background(), "q")
	require.NoError(t, err)

	assert.Len(t, res.Sources, 2)
	assert.NotContains(t, generator.lastReq.Prompt, "six seven eight")
	assert.Equal(t, 3, retriever.lastK)
}

func TestService_EmptyQuestion(t *testing.T) {
	svc := NewService(&stubRetriever{}, &stubGenerator{}, WithAskLogger(discardLogger()))
	_, err := svc.AnswerQuestion(context.Background(), "   ")
	assert.ErrorIs(t, err, ErrEmptyQuestion)
}

func TestBuildAskPrompt(t *testing.T) {
	prompt := BuildAskPrompt(DefaultPreamble, "How does Leechy handle payments?", []string{"a", "b"})

	assert.True(t, strings.HasPrefix(prompt, DefaultPreamble+" Answer the following question based on the provided context."))
	assert.Contains(t, prompt, "Context:\na\n\nb\n\n")
}
