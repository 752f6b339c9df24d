package registry

import "errors"

var (
	// ErrEmptyPattern 变量名或模式为空
	ErrEmptyPattern = errors.New("registry: empty pattern")

	// ErrInvalidInterval 推送间隔为负数
	ErrInvalidInterval = errors.New("registry: negative interval")
)
