package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	pgvector "github.com/pgvector/pgvector-go"

	"github.com/jinford/faq-rag/internal/core/index"
	"github.com/jinford/faq-rag/internal/platform/database"
	"github.com/jinford/faq-rag/pkg/lock"
)

// Schema はコーパス保存に使うテーブル定義
const Schema = `
CREATE EXTENSION IF NOT EXISTS vector;

CREATE TABLE IF NOT EXISTS faq_corpora (
    id               UUID PRIMARY KEY,
    dimension        INTEGER NOT NULL,
    document_count   INTEGER NOT NULL,
    embedding_source TEXT NOT NULL DEFAULT '',
    active           BOOLEAN NOT NULL DEFAULT FALSE,
    created_at       TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE UNIQUE INDEX IF NOT EXISTS faq_corpora_single_active
    ON faq_corpora (active) WHERE active;

CREATE TABLE IF NOT EXISTS faq_corpus_documents (
    corpus_id UUID NOT NULL REFERENCES faq_corpora (id) ON DELETE CASCADE,
    ordinal   INTEGER NOT NULL,
    content   TEXT NOT NULL,
    embedding vector NOT NULL,
    PRIMARY KEY (corpus_id, ordinal)
);
`

// CorpusStore は PostgreSQL (pgvector) にコーパスを保存する index.Store 実装
// 保存のたびに新しいコーパス行を作り、それを唯一の active に切り替える
type CorpusStore struct {
	db              *database.Database
	embeddingSource string
	logger          *slog.Logger
}

// CorpusStoreOption は CorpusStore の設定オプション
type CorpusStoreOption func(*CorpusStore)

// WithEmbeddingSource はコーパス行に記録するEmbeddingの生成元を設定する
func WithEmbeddingSource(source string) CorpusStoreOption {
	return func(s *CorpusStore) {
		s.embeddingSource = source
	}
}

// WithLogger はロガーを差し替える
func WithLogger(logger *slog.Logger) CorpusStoreOption {
	return func(s *CorpusStore) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewCorpusStore は新しい CorpusStore を作成する
func NewCorpusStore(db *database.Database, opts ...CorpusStoreOption) *CorpusStore {
	s := &CorpusStore{
		db:     db,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// EnsureSchema はテーブルが無ければ作成する
func (s *CorpusStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.Pool.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	return nil
}

// Save はコーパスを1トランザクションで保存し、active に切り替える
func (s *CorpusStore) Save(ctx context.Context, corpus *index.Corpus) error {
	documents, embeddings, _, err := corpus.Snapshot()
	if err != nil {
		return fmt.Errorf("%w: %w", index.ErrPersistence, err)
	}

	id := uuid.New()
	_, err = database.Transact(ctx, s.db, func(tx pgx.Tx) (struct{}, error) {
		// 同時に保存されると active が2つになるため書き込みを直列化する
		if err := lock.AcquireXact(ctx, tx, lock.CorpusWriteKey); err != nil {
			return struct{}{}, err
		}

		if _, err := tx.Exec(ctx, `UPDATE faq_corpora SET active = FALSE WHERE active`); err != nil {
			return struct{}{}, fmt.Errorf("failed to deactivate corpora: %w", err)
		}

		if _, err := tx.Exec(ctx,
			`INSERT INTO faq_corpora (id, dimension, document_count, embedding_source, active)
			 VALUES ($1, $2, $3, $4, TRUE)`,
			UUIDToPgtype(id), corpus.Dimension(), len(documents), s.embeddingSource,
		); err != nil {
			return struct{}{}, fmt.Errorf("failed to insert corpus: %w", err)
		}

		batch := &pgx.Batch{}
		for i, doc := range documents {
			batch.Queue(
				`INSERT INTO faq_corpus_documents (corpus_id, ordinal, content, embedding)
				 VALUES ($1, $2, $3, $4)`,
				UUIDToPgtype(id), i, doc, pgvector.NewVector(embeddings[i]),
			)
		}
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return struct{}{}, fmt.Errorf("failed to insert documents: %w", err)
		}

		return struct{}{}, nil
	})
	if err != nil {
		return fmt.Errorf("%w: %w", index.ErrPersistence, err)
	}

	s.logger.Info("コーパスをデータベースに保存しました",
		"corpusID", id.String(),
		"documents", len(documents),
	)

	return nil
}

// Load は active なコーパスを読み込む
func (s *CorpusStore) Load(ctx context.Context) (*index.Corpus, error) {
	var (
		pgID      pgtype.UUID
		dimension int
		count     int
	)
	err := s.db.Pool.QueryRow(ctx,
		`SELECT id, dimension, document_count FROM faq_corpora WHERE active`,
	).Scan(&pgID, &dimension, &count)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: no active corpus", index.ErrPersistence)
		}
		return nil, fmt.Errorf("%w: failed to get active corpus: %w", index.ErrPersistence, err)
	}
	id := PgtypeToUUID(pgID)

	rows, err := s.db.Pool.Query(ctx,
		`SELECT content, embedding FROM faq_corpus_documents WHERE corpus_id = $1 ORDER BY ordinal`,
		pgID,
	)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to query documents: %w", index.ErrPersistence, err)
	}
	defer rows.Close()

	documents := make([]string, 0, count)
	embeddings := make([][]float32, 0, count)
	for rows.Next() {
		var (
			content string
			vec     pgvector.Vector
		)
		if err := rows.Scan(&content, &vec); err != nil {
			return nil, fmt.Errorf("%w: failed to scan document: %w", index.ErrPersistence, err)
		}
		documents = append(documents, content)
		embeddings = append(embeddings, vec.Slice())
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: failed to read documents: %w", index.ErrPersistence, err)
	}

	if len(documents) != count {
		return nil, fmt.Errorf("%w: corpus %s declares %d documents, found %d",
			index.ErrPersistence, id, count, len(documents))
	}

	idx := index.NewFlatIndex(dimension)
	if err := idx.Add(embeddings); err != nil {
		return nil, fmt.Errorf("%w: %w", index.ErrPersistence, err)
	}

	corpus, err := index.NewCorpusFromParts(documents, embeddings, idx)
	if err != nil {
		return nil, err
	}

	s.logger.Info("コーパスをデータベースから読み込みました",
		"corpusID", id.String(),
		"documents", corpus.Len(),
	)

	return corpus, nil
}
