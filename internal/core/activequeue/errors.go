package activequeue

import "errors"

var (
	// ErrQueueExists 队列名已被占用
	ErrQueueExists = errors.New("activequeue: queue already exists")

	// ErrQueueNotFound 队列不存在
	ErrQueueNotFound = errors.New("activequeue: queue not found")

	// ErrRouteExists 路由已存在
	ErrRouteExists = errors.New("activequeue: route already exists")

	// ErrRouteNotFound 路由不存在
	ErrRouteNotFound = errors.New("activequeue: route not found")

	// ErrInvalidName 队列名或主题为空
	ErrInvalidName = errors.New("activequeue: empty queue name or topic")

	// ErrNilCallback 回调为 nil
	ErrNilCallback = errors.New("activequeue: nil callback")

	// ErrRouterClosed 路由器已关闭
	ErrRouterClosed = errors.New("activequeue: router closed")
)
