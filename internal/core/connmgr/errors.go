package connmgr

import "errors"

// 连接管理器错误定义
var (
	// ErrHandshake 握手失败（应答缺失或类型错误）
	ErrHandshake = errors.New("connmgr: handshake failed")

	// ErrPoisoned 服务端拒绝或踢出本客户端
	ErrPoisoned = errors.New("connmgr: poisoned by server")

	// ErrKeepAliveTimeout 长时间没有收到任何数据
	ErrKeepAliveTimeout = errors.New("connmgr: keep-alive timeout")

	// ErrManagerClosed 管理器已关闭
	ErrManagerClosed = errors.New("connmgr: manager closed")

	// ErrInvalidIdentity 进程名为空
	ErrInvalidIdentity = errors.New("connmgr: identity must not be empty")

	// ErrNoDialer 未设置拨号器
	ErrNoDialer = errors.New("connmgr: no dialer set")
)
