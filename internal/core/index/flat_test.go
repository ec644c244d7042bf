package index

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFlatIndex_SearchOrdersByDistance(t *testing.T) {
	idx := NewFlatIndex(2)
	require.NoError(t, idx.Add([][]float32{
		{10, 10},
		{1, 1},
		{0, 0},
		{1, 1},
	}))

	hits, err := idx.Search([]float32{0, 0}, 3)
	require.NoError(t, err)

	require.Len(t, hits, 3)
	assert.Equal(t, Hit{Ordinal: 2, Distance: 0}, hits[0])
	// 同距離は ordinal 昇順
	assert.Equal(t, Hit{Ordinal: 1, Distance: 2}, hits[1])
	assert.Equal(t, Hit{Ordinal: 3, Distance: 2}, hits[2])
}

func TestFlatIndex_KLargerThanSize(t *testing.T) {
	idx := NewFlatIndex(1)
	require.NoError(t, idx.Add([][]float32{{1}, {2}}))

	hits, err := idx.Search([]float32{0}, 10)
	require.NoError(t, err)
	assert.Len(t, hits, 2)
}

func TestFlatIndex_EmptyIndex(t *testing.T) {
	idx := NewFlatIndex(3)
	hits, err := idx.Search([]float32{0, 0, 0}, 5)
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestFlatIndex_DimensionMismatchDoesNotMutate(t *testing.T) {
	idx := NewFlatIndex(2)
	require.NoError(t, idx.Add([][]float32{{1, 1}}))

	err := idx.Add([][]float32{{2, 2}, {3, 3, 3}})
	assert.ErrorIs(t, err, ErrDimensionMismatch)
	assert.Equal(t, 1, idx.Len())

	_, err = idx.Search([]float32{1}, 1)
	assert.ErrorIs(t, err, ErrDimensionMismatch)
}

func TestFlatIndex_BinaryRoundTrip(t *testing.T) {
	idx := NewFlatIndex(3)
	require.NoError(t, idx.Add([][]float32{{0.1, 0.2, 0.3}, {-1, 0, 1.5}}))

	data, err := idx.MarshalBinary()
	require.NoError(t, err)

	var restored FlatIndex
	require.NoError(t, restored.UnmarshalBinary(data))

	assert.Equal(t, 3, restored.Dimension())
	assert.Equal(t, 2, restored.Len())
	assert.Equal(t, []float32{-1, 0, 1.5}, restored.Vector(1))
}

func TestFlatIndex_UnmarshalRejectsCorruptData(t *testing.T) {
	idx := NewFlatIndex(2)
	require.NoError(t, idx.Add([][]float32{{1, 2}}))
	data, err := idx.MarshalBinary()
	require.NoError(t, err)

	var f FlatIndex
	assert.ErrorIs(t, f.UnmarshalBinary(data[:5]), ErrInvalidFormat)
	assert.ErrorIs(t, f.UnmarshalBinary(data[:len(data)-1]), ErrInvalidFormat)

	bad := append([]byte("JUNK"), data[4:]...)
	assert.ErrorIs(t, f.UnmarshalBinary(bad), ErrInvalidFormat)
}
