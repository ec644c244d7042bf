package filestore

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jinford/faq-rag/internal/core/index"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s := New(t.TempDir(),
		WithEmbeddingSource("mock"),
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	)
	s.now = func() time.Time { return time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC) }
	return s
}

func sampleCorpus(t *testing.T) *index.Corpus {
	t.Helper()
	c := index.NewCorpus(3)
	require.NoError(t, c.Add(
		[]string{"Question: How do I pay? Answer: By card.", "Leechy is a rental marketplace."},
		[][]float32{{0.1, 0.2, 0.3}, {1, -1, 0.5}},
	))
	return c
}

func TestStore_SaveLoadRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	original := sampleCorpus(t)

	require.NoError(t, store.Save(ctx, original))

	for _, name := range []string{DocumentsFile, EmbeddingsFile, IndexFile, ManifestFile} {
		assert.FileExists(t, filepath.Join(store.Dir(), name))
	}

	loaded, err := store.Load(ctx)
	require.NoError(t, err)

	assert.Equal(t, original.Documents(), loaded.Documents())
	assert.Equal(t, original.Embeddings(), loaded.Embeddings())
	assert.Equal(t, 3, loaded.Dimension())

	// 読み込んだコーパスでも同じ検索結果になる
	want, err := original.Search(ctx, []float32{1, -1, 0.5}, 2)
	require.NoError(t, err)
	got, err := loaded.Search(ctx, []float32{1, -1, 0.5}, 2)
	require.NoError(t, err)
	assert.Equal(t, want, got)

	manifest, err := store.ReadManifest()
	require.NoError(t, err)
	assert.Equal(t, 2, manifest.Count)
	assert.Equal(t, 3, manifest.Dimension)
	assert.Equal(t, "mock", manifest.EmbeddingSource)
	assert.Equal(t, time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC), manifest.CreatedAt)
}

func TestStore_LoadMissingArtefact(t *testing.T) {
	ctx := context.Background()

	for _, name := range []string{DocumentsFile, EmbeddingsFile, IndexFile} {
		t.Run(name, func(t *testing.T) {
			store := newTestStore(t)
			require.NoError(t, store.Save(ctx, sampleCorpus(t)))
			require.NoError(t, os.Remove(filepath.Join(store.Dir(), name)))

			corpus, err := store.Load(ctx)
			assert.ErrorIs(t, err, index.ErrPersistence)
			assert.Nil(t, corpus)
		})
	}
}

func TestStore_LoadWithoutManifest(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	require.NoError(t, store.Save(ctx, sampleCorpus(t)))
	require.NoError(t, os.Remove(filepath.Join(store.Dir(), ManifestFile)))

	corpus, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, corpus.Len())
}

func TestStore_LoadCountMismatch(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	require.NoError(t, store.Save(ctx, sampleCorpus(t)))

	data, err := json.Marshal([]string{"only one document"})
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(store.Dir(), DocumentsFile), data, 0o644))

	_, err = store.Load(ctx)
	assert.ErrorIs(t, err, index.ErrPersistence)
}

func TestStore_LoadManifestMismatch(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	require.NoError(t, store.Save(ctx, sampleCorpus(t)))

	manifest, err := store.ReadManifest()
	require.NoError(t, err)
	manifest.Dimension = 1536
	data, err := json.Marshal(manifest)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(store.Dir(), ManifestFile), data, 0o644))

	_, err = store.Load(ctx)
	assert.ErrorIs(t, err, index.ErrPersistence)
}

func TestStore_LoadCorruptIndex(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	require.NoError(t, store.Save(ctx, sampleCorpus(t)))
	require.NoError(t, os.WriteFile(filepath.Join(store.Dir(), IndexFile), []byte("garbage"), 0o644))

	_, err := store.Load(ctx)
	assert.ErrorIs(t, err, index.ErrPersistence)
}

func TestStore_SaveLeavesNoTempFiles(t *testing.T) {
	store := newTestStore(t)
	require.NoError(t, store.Save(context.Background(), sampleCorpus(t)))

	entries, err := os.ReadDir(store.Dir())
	require.NoError(t, err)
	assert.Len(t, entries, 4)
}
