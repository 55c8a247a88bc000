package repository

import "errors"

var (
	ErrNotFound = errors.New("not found")
	// 一意制約違反など
	ErrConflict = errors.New("conflict")
	// 行ロック待ちのタイムアウト・デッドロック
	ErrLockTimeout = errors.New("lock timeout")
)
