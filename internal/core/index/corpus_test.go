package index

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCorpus_AddAndSearch(t *testing.T) {
	c := NewCorpus(2)
	require.NoError(t, c.Add([]string{"far", "near"}, [][]float32{{5, 5}, {0, 1}}))

	matches, err := c.Search(context.Background(), []float32{0, 0}, 1)
	require.NoError(t, err)

	require.Len(t, matches, 1)
	assert.Equal(t, "near", matches[0].Document)
	assert.Equal(t, 1, matches[0].Ordinal)
	assert.Equal(t, 2, c.Len())
}

func TestCorpus_AddRejectsMismatch(t *testing.T) {
	c := NewCorpus(2)

	assert.Error(t, c.Add([]string{"a"}, [][]float32{{1, 1}, {2, 2}}))
	assert.ErrorIs(t, c.Add([]string{"a"}, [][]float32{{1}}), ErrDimensionMismatch)
	assert.Equal(t, 0, c.Len())
	assert.Empty(t, c.Documents())
}

func TestNewCorpusFromParts_Validation(t *testing.T) {
	idx := NewFlatIndex(2)
	require.NoError(t, idx.Add([][]float32{{1, 2}, {3, 4}}))

	_, err := NewCorpusFromParts([]string{"only one"}, [][]float32{{1, 2}}, idx)
	assert.ErrorIs(t, err, ErrPersistence)

	_, err = NewCorpusFromParts([]string{"a", "b"}, [][]float32{{1, 2}, {3}}, idx)
	assert.ErrorIs(t, err, ErrPersistence)

	_, err = NewCorpusFromParts([]string{"a"}, [][]float32{{1, 2}}, nil)
	assert.ErrorIs(t, err, ErrPersistence)

	c, err := NewCorpusFromParts([]string{"a", "b"}, [][]float32{{1, 2}, {3, 4}}, idx)
	require.NoError(t, err)
	assert.Equal(t, [][]float32{{1, 2}, {3, 4}}, c.Embeddings())
}

func TestCorpus_ConcurrentReadersWithWriter(t *testing.T) {
	c := NewCorpus(1)
	require.NoError(t, c.Add([]string{"seed"}, [][]float32{{0}}))

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				matches, err := c.Search(context.Background(), []float32{0}, 3)
				assert.NoError(t, err)
				assert.NotEmpty(t, matches)
			}
		}()
	}
	for i := 0; i < 50; i++ {
		require.NoError(t, c.Add([]string{"doc"}, [][]float32{{float32(i + 1)}}))
	}
	wg.Wait()

	docs, embeddings, data, err := c.Snapshot()
	require.NoError(t, err)
	assert.Len(t, docs, 51)
	assert.Len(t, embeddings, 51)
	assert.NotEmpty(t, data)
}
