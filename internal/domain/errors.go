package domain

import "errors"

var (
	// ErrNotFound 引用的记录不存在
	ErrNotFound = errors.New("not found")
	// ErrInternalLookup 存储层查询失败
	ErrInternalLookup = errors.New("internal lookup error")
)
