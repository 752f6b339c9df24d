package mooscomms

import (
	"github.com/mooscomms/go-mooscomms/internal/core/activequeue"
	"github.com/mooscomms/go-mooscomms/internal/core/metrics"
	"github.com/mooscomms/go-mooscomms/pkg/types"
)

// ════════════════════════════════════════════════════════════════════════════
//                              公共类型别名
// ════════════════════════════════════════════════════════════════════════════

// Message 一条发布/订阅数据
type Message = types.Message

// MessageFields 构造 Message 的字段
type MessageFields = types.MessageFields

// Registration 一条订阅登记
type Registration = types.Registration

// ConnState 连接状态
type ConnState = types.ConnState

// CallbackError 用户回调 panic 或超时
type CallbackError = types.CallbackError

// OnConnectFunc 连接建立回调
type OnConnectFunc = types.OnConnectFunc

// OnMailFunc 新邮件回调
type OnMailFunc = types.OnMailFunc

// QueueFunc 活动队列回调
type QueueFunc = types.QueueFunc

// Stats 通信统计快照
type Stats = metrics.Stats

// QueueStats 活动队列统计
type QueueStats = activequeue.QueueStats

// 连接状态常量
const (
	StateDisconnected = types.StateDisconnected
	StateConnecting   = types.StateConnecting
	StateConnected    = types.StateConnected
	StateClosing      = types.StateClosing
	StateClosed       = types.StateClosed
)
