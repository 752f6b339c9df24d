package mooscomms

import (
	"errors"

	"github.com/mooscomms/go-mooscomms/internal/core/activequeue"
	"github.com/mooscomms/go-mooscomms/internal/core/connmgr"
	"github.com/mooscomms/go-mooscomms/internal/core/transport/tcp"
	"github.com/mooscomms/go-mooscomms/pkg/types"
)

// 公共错误定义
var (
	// ────────────────────────────────────────────────────────────────────────
	// 客户端生命周期错误
	// ────────────────────────────────────────────────────────────────────────

	// ErrNotRunning 尚未调用 Run
	ErrNotRunning = errors.New("mooscomms: client not running")

	// ErrClosed 客户端已关闭
	ErrClosed = errors.New("mooscomms: client closed")

	// ────────────────────────────────────────────────────────────────────────
	// 参数错误
	// ────────────────────────────────────────────────────────────────────────

	// ErrUnsupportedValue Notify 的值类型不受支持
	ErrUnsupportedValue = errors.New("mooscomms: unsupported notify value type")

	// ErrNilOption 选项为 nil
	ErrNilOption = errors.New("mooscomms: nil option")

	// ErrInvalidIdentity 进程名为空
	ErrInvalidIdentity = connmgr.ErrInvalidIdentity

	// ErrInvalidAddress 服务端地址无效
	ErrInvalidAddress = tcp.ErrInvalidAddress

	// ErrEmptyKey 变量名为空
	ErrEmptyKey = types.ErrEmptyKey

	// ────────────────────────────────────────────────────────────────────────
	// 活动队列错误
	// ────────────────────────────────────────────────────────────────────────

	// ErrQueueExists 队列名已被占用
	ErrQueueExists = activequeue.ErrQueueExists

	// ErrQueueNotFound 队列不存在
	ErrQueueNotFound = activequeue.ErrQueueNotFound

	// ErrRouteExists 路由已存在
	ErrRouteExists = activequeue.ErrRouteExists

	// ErrRouteNotFound 路由不存在
	ErrRouteNotFound = activequeue.ErrRouteNotFound

	// ErrCallbackTimeout 回调在限定时间内未返回
	ErrCallbackTimeout = types.ErrCallbackTimeout
)
