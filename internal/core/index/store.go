package index

import "context"

// Store は Corpus の永続化を抽象化する
// Load は全か無かで、失敗時は部分的な Corpus を返さない
type Store interface {
	Save(ctx context.Context, corpus *Corpus) error
	Load(ctx context.Context) (*Corpus, error)
}
