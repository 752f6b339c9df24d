package tcp

import "errors"

var (
	// ErrTransportClosed 传输已关闭
	ErrTransportClosed = errors.New("tcp: transport closed")

	// ErrConnectionClosed 连接已关闭
	ErrConnectionClosed = errors.New("tcp: connection closed")

	// ErrInvalidAddress 地址格式错误
	ErrInvalidAddress = errors.New("tcp: invalid address")
)
