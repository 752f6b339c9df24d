package codec

import "errors"

var (
	// ErrInvalidMessage 消息或数据包格式错误
	ErrInvalidMessage = errors.New("codec: invalid message")

	// ErrFrameTooLarge 帧长度超过上限
	ErrFrameTooLarge = errors.New("codec: frame too large")
)
