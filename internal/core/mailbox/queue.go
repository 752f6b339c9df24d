// Package mailbox 实现有界的发件箱和收件箱
//
// Queue 是一个带锁的 FIFO 缓冲：生产者 Push，消费者 DrainAll 一次取走全部内容。
// 队列满时按策略拒绝（ErrFull）或阻塞等待空位（最长 BlockTimeout）。
// 关闭后拒绝新消息（ErrClosed），已有内容仍可取出。
package mailbox

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/mooscomms/go-mooscomms/config"
)

// Policy 队列满时的处理策略
type Policy int

const (
	// PolicyReject 立即返回 ErrFull
	PolicyReject Policy = iota

	// PolicyBlock 阻塞等待空位，超时返回 ErrFull
	PolicyBlock
)

// Options 队列选项
type Options struct {
	Capacity     int
	Policy       Policy
	BlockTimeout time.Duration
	Clock        clock.Clock
}

// Queue 有界 FIFO 队列
type Queue[T any] struct {
	opts Options

	mu     sync.Mutex
	items  []T
	closed bool
	// space 在取出内容或关闭时被关闭并替换，唤醒阻塞的生产者
	space chan struct{}

	ready   chan struct{}
	dropped atomic.Uint64
}

// New 创建队列
func New[T any](opts Options) *Queue[T] {
	if opts.Capacity <= 0 {
		opts.Capacity = 1
	}
	if opts.Clock == nil {
		opts.Clock = clock.New()
	}
	return &Queue[T]{
		opts:  opts,
		space: make(chan struct{}),
		ready: make(chan struct{}, 1),
	}
}

// Push 追加一个元素
func (q *Queue[T]) Push(v T) error {
	var timer *clock.Timer
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		q.mu.Lock()
		if q.closed {
			q.mu.Unlock()
			return ErrClosed
		}
		if len(q.items) < q.opts.Capacity {
			q.items = append(q.items, v)
			q.mu.Unlock()
			q.signal()
			return nil
		}
		space := q.space
		q.mu.Unlock()

		if q.opts.Policy != PolicyBlock || q.opts.BlockTimeout <= 0 {
			q.dropped.Add(1)
			return ErrFull
		}
		if timer == nil {
			timer = q.opts.Clock.Timer(q.opts.BlockTimeout)
		}
		select {
		case <-space:
		case <-timer.C:
			q.dropped.Add(1)
			return ErrFull
		}
	}
}

// DrainAll 取走全部内容（按插入顺序），队列为空时返回 nil
func (q *Queue[T]) DrainAll() []T {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.items) == 0 {
		return nil
	}
	items := q.items
	q.items = nil
	q.wakeProducers()
	return items
}

// Len 当前元素数
func (q *Queue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Cap 容量
func (q *Queue[T]) Cap() int {
	return q.opts.Capacity
}

// Dropped 因队列满被拒绝的元素数
func (q *Queue[T]) Dropped() uint64 {
	return q.dropped.Load()
}

// Ready 有新元素时收到信号（最多缓存一个信号）
func (q *Queue[T]) Ready() <-chan struct{} {
	return q.ready
}

// Close 关闭队列，阻塞中的 Push 返回 ErrClosed
func (q *Queue[T]) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}
	q.closed = true
	q.wakeProducers()
}

// IsClosed 检查是否已关闭
func (q *Queue[T]) IsClosed() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.closed
}

// wakeProducers 调用方必须持有 q.mu
func (q *Queue[T]) wakeProducers() {
	close(q.space)
	q.space = make(chan struct{})
}

func (q *Queue[T]) signal() {
	select {
	case q.ready <- struct{}{}:
	default:
	}
}

// OptionsFromConfig 从邮箱配置创建发件箱选项
func OptionsFromConfig(cfg config.MailboxConfig, clk clock.Clock) Options {
	policy := PolicyReject
	if cfg.OverflowPolicy == config.OverflowBlock {
		policy = PolicyBlock
	}
	return Options{
		Capacity:     cfg.OutboxCapacity,
		Policy:       policy,
		BlockTimeout: cfg.BlockTimeout.Duration(),
		Clock:        clk,
	}
}
