package index

import (
	"context"
	"fmt"
	"slices"
	"sync"
)

// Match は Corpus の検索結果1件
type Match struct {
	Ordinal  int
	Document string
	Distance float32
}

// Corpus は Document 列とそのベクトルインデックスの組
// ordinal が Document とベクトルの唯一の対応キーで、書き込みは1つ、読み込みは複数を許す
type Corpus struct {
	mu        sync.RWMutex
	documents []string
	index     *FlatIndex
}

// NewCorpus は空の Corpus を作成する
func NewCorpus(dimension int) *Corpus {
	return &Corpus{index: NewFlatIndex(dimension)}
}

// NewCorpusFromParts は保存物から Corpus を組み立てる
// Document 数、ベクトル数、インデックス件数、次元がすべて一致しなければ ErrPersistence を返す
func NewCorpusFromParts(documents []string, embeddings [][]float32, idx *FlatIndex) (*Corpus, error) {
	if idx == nil {
		return nil, fmt.Errorf("%w: index is missing", ErrPersistence)
	}
	if len(documents) != len(embeddings) || len(documents) != idx.Len() {
		return nil, fmt.Errorf("%w: count mismatch (documents=%d, embeddings=%d, index=%d)",
			ErrPersistence, len(documents), len(embeddings), idx.Len())
	}
	for i, e := range embeddings {
		if len(e) != idx.Dimension() {
			return nil, fmt.Errorf("%w: embedding %d has dimension %d, index has %d",
				ErrPersistence, i, len(e), idx.Dimension())
		}
	}

	return &Corpus{
		documents: slices.Clone(documents),
		index:     idx,
	}, nil
}

// Dimension はベクトル次元を返す
func (c *Corpus) Dimension() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.index.Dimension()
}

// Len は登録済み Document 数を返す
func (c *Corpus) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.documents)
}

// Add は Document とベクトルの組を追加する
// 件数か次元が合わない場合は何も追加しない
func (c *Corpus) Add(documents []string, vectors [][]float32) error {
	if len(documents) != len(vectors) {
		return fmt.Errorf("documents and vectors differ in length (%d != %d)", len(documents), len(vectors))
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.index.Add(vectors); err != nil {
		return err
	}
	c.documents = append(c.documents, documents...)
	return nil
}

// Search はクエリに近い順に最大 k 件の Document を返す
func (c *Corpus) Search(ctx context.Context, query []float32, k int) ([]Match, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	hits, err := c.index.Search(query, k)
	if err != nil {
		return nil, err
	}

	matches := make([]Match, len(hits))
	for i, h := range hits {
		matches[i] = Match{
			Ordinal:  h.Ordinal,
			Document: c.documents[h.Ordinal],
			Distance: h.Distance,
		}
	}
	return matches, nil
}

// Documents は Document 列のコピーを返す
func (c *Corpus) Documents() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return slices.Clone(c.documents)
}

// Embeddings はベクトル列のコピーを ordinal 順で返す
func (c *Corpus) Embeddings() [][]float32 {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([][]float32, c.index.Len())
	for i := range out {
		out[i] = c.index.Vector(i)
	}
	return out
}

// Snapshot は保存用に一貫した状態をまとめて取り出す
func (c *Corpus) Snapshot() (documents []string, embeddings [][]float32, indexBytes []byte, err error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	documents = slices.Clone(c.documents)
	embeddings = make([][]float32, c.index.Len())
	for i := range embeddings {
		embeddings[i] = c.index.Vector(i)
	}
	indexBytes, err = c.index.MarshalBinary()
	return documents, embeddings, indexBytes, err
}
