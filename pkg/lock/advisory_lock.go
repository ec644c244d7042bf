package lock

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// CorpusWriteKey はコーパス書き込みを直列化するロックのキー
var CorpusWriteKey = GenerateLockID("faq-rag", "corpus", "write")

// GenerateLockID は文字列からアドバイザリロックのIDを生成します
// 区切りを挟んでハッシュするため ("ab", "c") と ("a", "bc") は別のIDになります
func GenerateLockID(parts ...string) int64 {
	h := sha256.New()
	for _, part := range parts {
		h.Write([]byte(part))
		h.Write([]byte{0})
	}
	return int64(binary.BigEndian.Uint64(h.Sum(nil)[:8]))
}

// AcquireXact はトランザクションスコープのアドバイザリロックを取得します
// ロックはコミットまたはロールバックで解放されます
func AcquireXact(ctx context.Context, tx pgx.Tx, lockID int64) error {
	if _, err := tx.Exec(ctx, "SELECT pg_advisory_xact_lock($1)", lockID); err != nil {
		return fmt.Errorf("failed to acquire advisory lock: %w", err)
	}
	return nil
}
