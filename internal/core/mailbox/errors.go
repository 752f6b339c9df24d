package mailbox

import "errors"

var (
	// ErrClosed 队列已关闭，不再接受新消息
	ErrClosed = errors.New("mailbox: closed")

	// ErrFull 队列已满
	ErrFull = errors.New("mailbox: full")
)
