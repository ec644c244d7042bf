package index

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"
	"slices"
)

// Hit は FlatIndex の検索結果1件
type Hit struct {
	Ordinal  int
	Distance float32
}

// FlatIndex は全件走査による厳密な最近傍探索インデックス
// 追加のみで、距離は二乗L2距離を使う
type FlatIndex struct {
	dimension int
	data      []float32
}

// NewFlatIndex は指定次元の空インデックスを作成する
func NewFlatIndex(dimension int) *FlatIndex {
	return &FlatIndex{dimension: dimension}
}

// Dimension はベクトル次元を返す
func (f *FlatIndex) Dimension() int { return f.dimension }

// Len は格納済みベクトル数を返す
func (f *FlatIndex) Len() int {
	if f.dimension == 0 {
		return 0
	}
	return len(f.data) / f.dimension
}

// Add はベクトルを末尾に追加する
// 1件でも次元が合わなければ何も追加しない
func (f *FlatIndex) Add(vectors [][]float32) error {
	for i, v := range vectors {
		if len(v) != f.dimension {
			return fmt.Errorf("%w: vector %d has dimension %d, index has %d", ErrDimensionMismatch, i, len(v), f.dimension)
		}
	}

	f.data = slices.Grow(f.data, len(vectors)*f.dimension)
	for _, v := range vectors {
		f.data = append(f.data, v...)
	}
	return nil
}

// Vector は ordinal 番目のベクトルのコピーを返す
func (f *FlatIndex) Vector(ordinal int) []float32 {
	start := ordinal * f.dimension
	return slices.Clone(f.data[start : start+f.dimension])
}

// Search はクエリに近い順に最大 k 件を返す
// 距離が同じ場合は ordinal の小さい順
func (f *FlatIndex) Search(query []float32, k int) ([]Hit, error) {
	if len(query) != f.dimension {
		return nil, fmt.Errorf("%w: query has dimension %d, index has %d", ErrDimensionMismatch, len(query), f.dimension)
	}

	n := f.Len()
	if k <= 0 || n == 0 {
		return []Hit{}, nil
	}
	k = min(k, n)

	hits := make([]Hit, n)
	for i := 0; i < n; i++ {
		hits[i] = Hit{
			Ordinal:  i,
			Distance: squaredL2(query, f.data[i*f.dimension:(i+1)*f.dimension]),
		}
	}

	slices.SortStableFunc(hits, func(a, b Hit) int {
		switch {
		case a.Distance < b.Distance:
			return -1
		case a.Distance > b.Distance:
			return 1
		default:
			return a.Ordinal - b.Ordinal
		}
	})

	return hits[:k], nil
}

func squaredL2(a, b []float32) float32 {
	var sum float32
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return sum
}

// index.flat のヘッダ
var flatMagic = [4]byte{'F', 'L', 'A', 'T'}

const flatVersion uint16 = 1

// MarshalBinary は index.flat 形式にエンコードする
// magic(4) + version(uint16) + dimension(uint32) + count(uint64) + float32 列（リトルエンディアン）
func (f *FlatIndex) MarshalBinary() ([]byte, error) {
	var buf bytes.Buffer
	buf.Grow(4 + 2 + 4 + 8 + len(f.data)*4)

	buf.Write(flatMagic[:])
	_ = binary.Write(&buf, binary.LittleEndian, flatVersion)
	_ = binary.Write(&buf, binary.LittleEndian, uint32(f.dimension))
	_ = binary.Write(&buf, binary.LittleEndian, uint64(f.Len()))

	payload := make([]byte, 4*len(f.data))
	for i, v := range f.data {
		binary.LittleEndian.PutUint32(payload[i*4:], math.Float32bits(v))
	}
	buf.Write(payload)

	return buf.Bytes(), nil
}

// UnmarshalBinary は index.flat 形式からインデックスを復元する
func (f *FlatIndex) UnmarshalBinary(data []byte) error {
	const headerSize = 4 + 2 + 4 + 8
	if len(data) < headerSize {
		return fmt.Errorf("%w: header too short (%d bytes)", ErrInvalidFormat, len(data))
	}
	if !bytes.Equal(data[:4], flatMagic[:]) {
		return fmt.Errorf("%w: bad magic", ErrInvalidFormat)
	}
	if v := binary.LittleEndian.Uint16(data[4:6]); v != flatVersion {
		return fmt.Errorf("%w: unsupported version %d", ErrInvalidFormat, v)
	}

	dimension := int(binary.LittleEndian.Uint32(data[6:10]))
	count := binary.LittleEndian.Uint64(data[10:18])
	if dimension <= 0 {
		return fmt.Errorf("%w: invalid dimension %d", ErrInvalidFormat, dimension)
	}

	payload := data[headerSize:]
	if uint64(len(payload)) != count*uint64(dimension)*4 {
		return fmt.Errorf("%w: payload has %d bytes, header declares %d vectors of dimension %d", ErrInvalidFormat, len(payload), count, dimension)
	}

	values := make([]float32, len(payload)/4)
	for i := range values {
		values[i] = math.Float32frombits(binary.LittleEndian.Uint32(payload[i*4:]))
	}

	f.dimension = dimension
	f.data = values
	return nil
}
