package types

// OnConnectFunc 连接建立回调，在 I/O goroutine 的受限执行器中调用
type OnConnectFunc func() bool

// OnMailFunc 新邮件回调，在 I/O goroutine 的受限执行器中调用
type OnMailFunc func() bool

// QueueFunc 活动队列回调，在该队列专属 worker goroutine 中按到达顺序调用
type QueueFunc func(*Message) bool

// SafeCall 调用 fn 并把 panic 转换为 *CallbackError
func SafeCall(kind CallbackKind, queue string, fn func() bool) (ok bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			ok = false
			err = NewCallbackError(kind, queue, r)
		}
	}()
	return fn(), nil
}

// ErrorHandler 接收后台 goroutine 中产生的错误（通常是 *CallbackError）
type ErrorHandler func(error)
