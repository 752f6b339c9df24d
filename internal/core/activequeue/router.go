package activequeue

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/mooscomms/go-mooscomms/pkg/lib/log"
	"github.com/mooscomms/go-mooscomms/pkg/types"
)

var logger = log.Logger("core/activequeue")

// ErrorHandler 接收回调错误（*types.CallbackError）
type ErrorHandler = types.ErrorHandler

// Config 路由器配置
type Config struct {
	// Capacity 每个队列的待处理消息上限
	Capacity int
}

// DefaultConfig 默认配置
func DefaultConfig() Config {
	return Config{Capacity: 1024}
}

// QueueStats 单个队列的统计
type QueueStats struct {
	Name      string
	Pending   int
	Delivered uint64
	Dropped   uint64
	Topics    []string
}

// queue 活动队列
type queue struct {
	name string
	fn   types.QueueFunc

	// 以下字段由 Router.mu 保护
	pending   []*types.Message
	stopping  bool
	delivered uint64
	dropped   uint64

	// worker 的 goroutine 编号；running 表示回调正在执行
	worker  uint64
	running bool

	cond *sync.Cond
	done chan struct{}
}

// Router 活动队列路由器
type Router struct {
	cfg     Config
	onError ErrorHandler

	mu     sync.Mutex
	queues map[string]*queue
	// routes 主题 -> 队列名集合
	routes map[string]map[string]struct{}
	closed bool
}

// NewRouter 创建路由器；onError 可以为 nil
func NewRouter(cfg Config, onError ErrorHandler) *Router {
	if cfg.Capacity <= 0 {
		cfg.Capacity = DefaultConfig().Capacity
	}
	return &Router{
		cfg:     cfg,
		onError: onError,
		queues:  make(map[string]*queue),
		routes:  make(map[string]map[string]struct{}),
	}
}

// ============================================================================
//                              队列管理
// ============================================================================

// AddQueue 创建队列并启动其 worker
func (r *Router) AddQueue(name string, fn types.QueueFunc) error {
	if name == "" {
		return ErrInvalidName
	}
	if fn == nil {
		return ErrNilCallback
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return ErrRouterClosed
	}
	if _, ok := r.queues[name]; ok {
		return fmt.Errorf("%w: %s", ErrQueueExists, name)
	}

	q := &queue{
		name: name,
		fn:   fn,
		cond: sync.NewCond(&r.mu),
		done: make(chan struct{}),
	}
	r.queues[name] = q
	go r.work(q)

	logger.Debug("活动队列已创建", "queue", name)
	return nil
}

// RemoveQueue 停止队列的 worker 并删除队列及指向它的所有路由
//
// 如果 worker 正在执行回调，阻塞直到回调返回。未处理的消息被丢弃。
// 在该队列自己的回调中调用时不等待，worker 在回调返回后退出。
func (r *Router) RemoveQueue(name string) error {
	gid := goroutineID()

	r.mu.Lock()
	q, ok := r.queues[name]
	if !ok || q.stopping {
		r.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrQueueNotFound, name)
	}
	r.stopLocked(q)
	if q.inCallbackLocked(gid) {
		delete(r.queues, name)
		r.mu.Unlock()
		logger.Debug("活动队列在自己的回调中删除", "queue", name)
		return nil
	}
	r.mu.Unlock()

	<-q.done

	r.mu.Lock()
	delete(r.queues, name)
	r.mu.Unlock()

	logger.Debug("活动队列已删除", "queue", name)
	return nil
}

// inCallbackLocked 调用方是否是正在执行回调的 worker 本身；调用方必须持有 r.mu
func (q *queue) inCallbackLocked(gid uint64) bool {
	return q.running && gid != 0 && q.worker == gid
}

// stopLocked 调用方必须持有 r.mu
func (r *Router) stopLocked(q *queue) {
	q.stopping = true
	q.pending = nil
	for topic, targets := range r.routes {
		delete(targets, q.name)
		if len(targets) == 0 {
			delete(r.routes, topic)
		}
	}
	q.cond.Broadcast()
}

// HasQueue 队列是否存在（删除过程中仍返回 true，直到 worker 退出）
func (r *Router) HasQueue(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.queues[name]
	return ok
}

// Queues 返回所有队列名（已排序）
func (r *Router) Queues() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	names := make([]string, 0, len(r.queues))
	for name := range r.queues {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ============================================================================
//                              路由管理
// ============================================================================

// AddRoute 添加主题到队列的路由；队列不存在时失败且不修改路由表
func (r *Router) AddRoute(queueName, topic string) error {
	if queueName == "" || topic == "" {
		return ErrInvalidName
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	q, ok := r.queues[queueName]
	if !ok || q.stopping {
		return fmt.Errorf("%w: %s", ErrQueueNotFound, queueName)
	}
	targets := r.routes[topic]
	if _, ok := targets[queueName]; ok {
		return fmt.Errorf("%w: %s -> %s", ErrRouteExists, topic, queueName)
	}
	if targets == nil {
		targets = make(map[string]struct{})
		r.routes[topic] = targets
	}
	targets[queueName] = struct{}{}
	return nil
}

// RemoveRoute 删除主题到队列的路由
func (r *Router) RemoveRoute(queueName, topic string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	targets := r.routes[topic]
	if _, ok := targets[queueName]; !ok {
		return fmt.Errorf("%w: %s -> %s", ErrRouteNotFound, topic, queueName)
	}
	delete(targets, queueName)
	if len(targets) == 0 {
		delete(r.routes, topic)
	}
	return nil
}

// HasRoute 主题是否被路由到任何队列
func (r *Router) HasRoute(topic string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.routes[topic]) > 0
}

// Routes 返回路由表快照：主题 -> 已排序的队列名
func (r *Router) Routes() map[string][]string {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make(map[string][]string, len(r.routes))
	for topic, targets := range r.routes {
		names := make([]string, 0, len(targets))
		for name := range targets {
			names = append(names, name)
		}
		sort.Strings(names)
		out[topic] = names
	}
	return out
}

// Routing 返回可读的路由表，每行 "topic -> q1, q2"，按主题排序
func (r *Router) Routing() string {
	routes := r.Routes()
	topics := make([]string, 0, len(routes))
	for topic := range routes {
		topics = append(topics, topic)
	}
	sort.Strings(topics)

	var b strings.Builder
	for _, topic := range topics {
		fmt.Fprintf(&b, "%s -> %s\n", topic, strings.Join(routes[topic], ", "))
	}
	return b.String()
}

// ============================================================================
//                              分发
// ============================================================================

// Dispatch 把消息放入所有路由到的队列
//
// 返回 true 表示消息已被路由（即使因队列满被丢弃），调用方不应再投递到收件箱。
func (r *Router) Dispatch(m *types.Message) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	targets := r.routes[m.Key()]
	if len(targets) == 0 {
		return false
	}
	for name := range targets {
		q := r.queues[name]
		if q == nil || q.stopping {
			continue
		}
		if len(q.pending) >= r.cfg.Capacity {
			q.dropped++
			logger.Warn("活动队列已满，丢弃消息", "queue", name, "key", m.Key(), "dropped", q.dropped)
			continue
		}
		q.pending = append(q.pending, m)
		q.cond.Signal()
	}
	return true
}

// Stats 返回所有队列的统计（按队列名排序）
func (r *Router) Stats() []QueueStats {
	r.mu.Lock()
	defer r.mu.Unlock()

	topicsOf := make(map[string][]string)
	for topic, targets := range r.routes {
		for name := range targets {
			topicsOf[name] = append(topicsOf[name], topic)
		}
	}

	stats := make([]QueueStats, 0, len(r.queues))
	for name, q := range r.queues {
		topics := topicsOf[name]
		sort.Strings(topics)
		stats = append(stats, QueueStats{
			Name:      name,
			Pending:   len(q.pending),
			Delivered: q.delivered,
			Dropped:   q.dropped,
			Topics:    topics,
		})
	}
	sort.Slice(stats, func(i, j int) bool { return stats[i].Name < stats[j].Name })
	return stats
}

// ============================================================================
//                              worker
// ============================================================================

func (r *Router) work(q *queue) {
	defer close(q.done)

	r.mu.Lock()
	q.worker = goroutineID()
	for {
		for len(q.pending) == 0 && !q.stopping {
			q.cond.Wait()
		}
		if q.stopping {
			r.mu.Unlock()
			return
		}
		m := q.pending[0]
		q.pending[0] = nil
		q.pending = q.pending[1:]
		q.running = true
		r.mu.Unlock()

		_, err := types.SafeCall(types.CallbackActiveQueue, q.name, func() bool {
			return q.fn(m)
		})
		if err != nil {
			logger.Error("活动队列回调异常", "queue", q.name, "key", m.Key(), "error", err)
			if r.onError != nil {
				r.onError(err)
			}
		}

		r.mu.Lock()
		q.running = false
		q.delivered++
	}
}

// Close 停止并等待所有 worker，之后不能再创建队列
//
// 在某个队列的回调中调用时不等待该队列自己的 worker。
func (r *Router) Close() error {
	gid := goroutineID()

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true

	var stopped []*queue
	for _, q := range r.queues {
		if !q.stopping {
			r.stopLocked(q)
		}
		if q.inCallbackLocked(gid) {
			continue
		}
		stopped = append(stopped, q)
	}
	r.mu.Unlock()

	for _, q := range stopped {
		<-q.done
	}

	r.mu.Lock()
	r.queues = make(map[string]*queue)
	r.routes = make(map[string]map[string]struct{})
	r.mu.Unlock()
	return nil
}
