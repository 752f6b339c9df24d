package types

import "fmt"

// ConnState 连接状态
//
// 只由连接管理器的 I/O goroutine 修改，其他组件只读。
type ConnState int32

const (
	// StateDisconnected 未连接（初始状态，或连接断开等待重连）
	StateDisconnected ConnState = iota

	// StateConnecting 正在拨号/握手
	StateConnecting

	// StateConnected 已连接
	StateConnected

	// StateClosing 正在关闭
	StateClosing

	// StateClosed 已关闭（终态）
	StateClosed
)

// String 返回状态名
func (s ConnState) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateClosing:
		return "closing"
	case StateClosed:
		return "closed"
	default:
		return fmt.Sprintf("unknown(%d)", int32(s))
	}
}

// AcceptsOutbound 该状态下是否接受出站消息
func (s ConnState) AcceptsOutbound() bool {
	return s == StateDisconnected || s == StateConnecting || s == StateConnected
}
