package index

import "errors"

var (
	// ErrDimensionMismatch はベクトル次元がインデックスと一致しない場合のエラー
	ErrDimensionMismatch = errors.New("index: dimension mismatch")

	// ErrPersistence は保存・読み込みの失敗や保存物の不整合を表す
	ErrPersistence = errors.New("index: persistence failure")

	// ErrInvalidFormat は index.flat のバイナリ形式が不正な場合のエラー
	ErrInvalidFormat = errors.New("index: invalid binary format")
)
