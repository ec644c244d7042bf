package filestore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/jinford/faq-rag/internal/core/index"
)

const (
	DocumentsFile  = "documents.json"
	EmbeddingsFile = "embeddings.json"
	IndexFile      = "index.flat"
	ManifestFile   = "manifest.json"
)

// Manifest は保存したコーパスのメタデータ
type Manifest struct {
	ID              uuid.UUID `json:"id"`
	Dimension       int       `json:"dimension"`
	Count           int       `json:"count"`
	EmbeddingSource string    `json:"embeddingSource"`
	CreatedAt       time.Time `json:"createdAt"`
}

// Store は1つのディレクトリにコーパスを保存する index.Store 実装
type Store struct {
	dir             string
	embeddingSource string
	now             func() time.Time
	logger          *slog.Logger
}

// Option は Store の設定オプション
type Option func(*Store)

// WithEmbeddingSource は manifest に記録するEmbeddingの生成元を設定する
func WithEmbeddingSource(source string) Option {
	return func(s *Store) {
		s.embeddingSource = source
	}
}

// WithLogger はロガーを差し替える
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// New は新しい Store を作成する
func New(dir string, opts ...Option) *Store {
	s := &Store{
		dir:    dir,
		now:    time.Now,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Dir は保存先ディレクトリを返す
func (s *Store) Dir() string { return s.dir }

// Save はコーパスを保存する
// 各ファイルは一時ファイルに書いてから rename する
func (s *Store) Save(ctx context.Context, corpus *index.Corpus) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	documents, embeddings, indexBytes, err := corpus.Snapshot()
	if err != nil {
		return fmt.Errorf("%w: failed to encode index: %w", index.ErrPersistence, err)
	}

	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("%w: failed to create directory %s: %w", index.ErrPersistence, s.dir, err)
	}

	docsJSON, err := json.Marshal(documents)
	if err != nil {
		return fmt.Errorf("%w: failed to encode documents: %w", index.ErrPersistence, err)
	}
	embJSON, err := json.Marshal(embeddings)
	if err != nil {
		return fmt.Errorf("%w: failed to encode embeddings: %w", index.ErrPersistence, err)
	}

	manifest := Manifest{
		ID:              uuid.New(),
		Dimension:       corpus.Dimension(),
		Count:           len(documents),
		EmbeddingSource: s.embeddingSource,
		CreatedAt:       s.now().UTC(),
	}
	manifestJSON, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: failed to encode manifest: %w", index.ErrPersistence, err)
	}

	// manifest は最後に書く
	files := []struct {
		name string
		data []byte
	}{
		{DocumentsFile, docsJSON},
		{EmbeddingsFile, embJSON},
		{IndexFile, indexBytes},
		{ManifestFile, manifestJSON},
	}
	for _, f := range files {
		if err := writeFileAtomic(filepath.Join(s.dir, f.name), f.data); err != nil {
			return fmt.Errorf("%w: %w", index.ErrPersistence, err)
		}
	}

	s.logger.Info("コーパスを保存しました",
		"dir", s.dir,
		"id", manifest.ID.String(),
		"documents", manifest.Count,
		"dimension", manifest.Dimension,
	)

	return nil
}

// Load はコーパスを読み込む
// いずれかのファイルが欠けているか不整合があれば ErrPersistence を返し、何も返さない
func (s *Store) Load(ctx context.Context) (*index.Corpus, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var documents []string
	if err := readJSON(filepath.Join(s.dir, DocumentsFile), &documents); err != nil {
		return nil, err
	}

	var embeddings [][]float32
	if err := readJSON(filepath.Join(s.dir, EmbeddingsFile), &embeddings); err != nil {
		return nil, err
	}

	indexBytes, err := os.ReadFile(filepath.Join(s.dir, IndexFile))
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read %s: %w", index.ErrPersistence, IndexFile, err)
	}
	idx := &index.FlatIndex{}
	if err := idx.UnmarshalBinary(indexBytes); err != nil {
		return nil, fmt.Errorf("%w: %w", index.ErrPersistence, err)
	}

	corpus, err := index.NewCorpusFromParts(documents, embeddings, idx)
	if err != nil {
		return nil, err
	}

	// manifest は任意だが、存在する場合は内容を検証する
	manifestPath := filepath.Join(s.dir, ManifestFile)
	var manifest Manifest
	switch err := readJSON(manifestPath, &manifest); {
	case err == nil:
		if manifest.Count != corpus.Len() || manifest.Dimension != corpus.Dimension() {
			return nil, fmt.Errorf("%w: manifest mismatch (manifest count=%d dimension=%d, corpus count=%d dimension=%d)",
				index.ErrPersistence, manifest.Count, manifest.Dimension, corpus.Len(), corpus.Dimension())
		}
	case errors.Is(err, os.ErrNotExist):
		s.logger.Debug("manifest が見つからないため検証をスキップします", "path", manifestPath)
	default:
		return nil, err
	}

	s.logger.Info("コーパスを読み込みました",
		"dir", s.dir,
		"documents", corpus.Len(),
		"dimension", corpus.Dimension(),
	)

	return corpus, nil
}

// ReadManifest は保存済みの manifest を読み込む
func (s *Store) ReadManifest() (*Manifest, error) {
	var m Manifest
	if err := readJSON(filepath.Join(s.dir, ManifestFile), &m); err != nil {
		return nil, err
	}
	return &m, nil
}

func readJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("%w: failed to read %s: %w", index.ErrPersistence, filepath.Base(path), err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("%w: failed to parse %s: %w", index.ErrPersistence, filepath.Base(path), err)
	}
	return nil
}

func writeFileAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file for %s: %w", path, err)
	}
	tmpName := tmp.Name()
	defer func() {
		// rename 済みなら失敗しても問題ない
		_ = os.Remove(tmpName)
	}()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to sync %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close %s: %w", path, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("failed to rename %s: %w", path, err)
	}
	return nil
}
