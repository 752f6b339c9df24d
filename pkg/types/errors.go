// Package types 定义 mooscomms 的基础类型
//
// 本文件定义所有公共错误类型。
package types

import (
	"errors"
	"fmt"
)

// ============================================================================
//                              消息相关错误
// ============================================================================

var (
	// ErrNilMessage 消息为 nil
	ErrNilMessage = errors.New("types: nil message")

	// ErrEmptyKey 变量名为空
	ErrEmptyKey = errors.New("types: message key must not be empty")

	// ErrInvalidDataType 未知的负载类型
	ErrInvalidDataType = errors.New("types: invalid data type")
)

// ============================================================================
//                              回调错误
// ============================================================================

// ErrCallbackTimeout 回调在限定时间内未返回
var ErrCallbackTimeout = errors.New("types: callback did not return in time")

// CallbackKind 回调种类
type CallbackKind int

const (
	// CallbackOnConnect 连接建立回调
	CallbackOnConnect CallbackKind = iota
	// CallbackOnMail 新邮件回调
	CallbackOnMail
	// CallbackActiveQueue 活动队列回调
	CallbackActiveQueue
)

// String 返回回调种类名
func (k CallbackKind) String() string {
	switch k {
	case CallbackOnConnect:
		return "OnConnect"
	case CallbackOnMail:
		return "OnMail"
	case CallbackActiveQueue:
		return "ActiveQueue"
	default:
		return fmt.Sprintf("Callback(%d)", int(k))
	}
}

// CallbackError 用户回调 panic 或超时
//
// 回调错误不会终止 I/O goroutine 或队列 worker，而是被转换为该类型交给调用方。
type CallbackError struct {
	Kind CallbackKind

	// Queue 活动队列名（仅 CallbackActiveQueue）
	Queue string

	// Value recover() 得到的原始值；超时时为 nil
	Value any

	// Err 原始错误（panic 值为 error 时，或 ErrCallbackTimeout）
	Err error
}

// NewCallbackError 由 recover() 的结果构造回调错误
func NewCallbackError(kind CallbackKind, queue string, recovered any) *CallbackError {
	ce := &CallbackError{Kind: kind, Queue: queue, Value: recovered}
	if err, ok := recovered.(error); ok {
		ce.Err = err
	}
	return ce
}

// Error 实现 error 接口
func (e *CallbackError) Error() string {
	prefix := e.Kind.String()
	if e.Queue != "" {
		prefix += "[" + e.Queue + "]"
	}
	if errors.Is(e.Err, ErrCallbackTimeout) {
		return prefix + ":: callback did not return in time"
	}
	return fmt.Sprintf("%s:: caught a panic in user callback: %v", prefix, e.Value)
}

// Unwrap 返回原始错误
func (e *CallbackError) Unwrap() error {
	return e.Err
}
