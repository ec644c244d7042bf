package embedding

import "errors"

var (
	// ErrTransient はリトライで回復しうる失敗（レート制限、一時的な障害）を表す
	// Provider はこのエラーをラップして返すことでリトライ対象であることを示す
	ErrTransient = errors.New("embedding: transient failure")

	// ErrUnavailable はリトライ上限到達または回復不能な失敗を表す
	ErrUnavailable = errors.New("embedding: service unavailable")
)
