package mooscomms

import (
	"errors"

	"github.com/mooscomms/go-mooscomms/internal/core/activequeue"
)

// ============================================================================
//                              活动队列
// ============================================================================

// AddActiveQueue 创建活动队列，回调在该队列专属的 goroutine 中按到达顺序执行
func (c *Client) AddActiveQueue(name string, fn QueueFunc) error {
	if err := c.checkOpen(); err != nil {
		return err
	}
	return translateRouterErr(c.router.AddQueue(name, fn))
}

// RemoveActiveQueue 删除活动队列及指向它的所有路由
//
// 如果队列回调正在执行，阻塞直到回调返回；在该队列自己的回调中调用时立即返回，
// 当前回调是它的最后一次回调。
func (c *Client) RemoveActiveQueue(name string) error {
	return translateRouterErr(c.router.RemoveQueue(name))
}

// HasActiveQueue 活动队列是否存在
func (c *Client) HasActiveQueue(name string) bool {
	return c.router.HasQueue(name)
}

// ActiveQueues 所有活动队列名（已排序）
func (c *Client) ActiveQueues() []string {
	return c.router.Queues()
}

// AddMessageRoute 把变量 topic 路由到活动队列
//
// 路由到队列的邮件不进入收件箱。队列不存在时失败，且不修改路由表。
// 路由不会自动订阅 topic，仍需调用 Register。
func (c *Client) AddMessageRoute(queue, topic string) error {
	if err := c.checkOpen(); err != nil {
		return err
	}
	return translateRouterErr(c.router.AddRoute(queue, topic))
}

// RemoveMessageRoute 删除变量 topic 到活动队列的路由
func (c *Client) RemoveMessageRoute(queue, topic string) error {
	return c.router.RemoveRoute(queue, topic)
}

// HasMessageRoute 变量 topic 是否被路由到任何活动队列
func (c *Client) HasMessageRoute(topic string) bool {
	return c.router.HasRoute(topic)
}

// MessageToActiveQueueRouting 可读的路由表，每行 "topic -> q1, q2"
func (c *Client) MessageToActiveQueueRouting() string {
	return c.router.Routing()
}

// ActiveQueueStats 所有活动队列的统计
func (c *Client) ActiveQueueStats() []QueueStats {
	return c.router.Stats()
}

func translateRouterErr(err error) error {
	if errors.Is(err, activequeue.ErrRouterClosed) {
		return ErrClosed
	}
	return err
}
