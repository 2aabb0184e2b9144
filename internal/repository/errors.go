package repository

import "errors"

var (
	// ErrDuplicateEntry 플레이어가 이미 대기열 엔트리를 가지고 있음
	ErrDuplicateEntry = errors.New("duplicate queue entry")
)
