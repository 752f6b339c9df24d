package mooscomms

import (
	"context"
	"fmt"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/fx"
	"go.uber.org/multierr"

	"github.com/mooscomms/go-mooscomms/internal/core/activequeue"
	"github.com/mooscomms/go-mooscomms/internal/core/connmgr"
	"github.com/mooscomms/go-mooscomms/internal/core/lifecycle"
	"github.com/mooscomms/go-mooscomms/internal/core/mailbox"
	"github.com/mooscomms/go-mooscomms/internal/core/metrics"
	"github.com/mooscomms/go-mooscomms/internal/core/registry"
	"github.com/mooscomms/go-mooscomms/internal/core/transport/tcp"
	"github.com/mooscomms/go-mooscomms/pkg/lib/log"
)

var logger = log.Logger("mooscomms")

// clientPhase 客户端对外的生命周期阶段
type clientPhase int

const (
	phaseIdle clientPhase = iota
	phaseRunning
	phaseClosed
)

// Client 异步 MOOSDB 通信客户端
//
// 所有方法都可以在任意 goroutine 中并发调用。
type Client struct {
	cfg *clientConfig
	app *fx.App

	// Fx 注入的组件
	mgr     *connmgr.Manager
	router  *activequeue.Router
	reg     *registry.Registry
	boxes   *mailbox.Mailboxes
	tracker *lifecycle.Tracker
	counter *metrics.CommsCounter

	errs chan error

	mu    sync.Mutex
	phase clientPhase

	closeOnce sync.Once
	closeErr  error
}

// New 创建客户端
//
// 创建后客户端处于空闲状态：可以登记订阅、添加活动队列，
// 调用 Run 之后才开始连接服务端。
func New(ctx context.Context, opts ...Option) (*Client, error) {
	cfg := newClientConfig()
	for _, opt := range opts {
		if opt == nil {
			return nil, ErrNilOption
		}
		if err := opt(cfg); err != nil {
			return nil, fmt.Errorf("apply option: %w", err)
		}
	}

	c := &Client{
		cfg:  cfg,
		errs: make(chan error, cfg.errorBuffer),
	}

	app, err := buildFxApp(cfg, c)
	if err != nil {
		return nil, fmt.Errorf("build fx app: %w", err)
	}

	startCtx, cancel := context.WithTimeout(ctx, cfg.startTimeout)
	defer cancel()
	if err := app.Start(startCtx); err != nil {
		return nil, fmt.Errorf("start fx app: %w", err)
	}
	c.app = app

	logger.Debug("客户端已创建", "session", c.mgr.Session())
	return c, nil
}

// ============================================================================
//                              启动与关闭
// ============================================================================

// Run 连接 server:port 上的 MOOSDB，并以 identity 作为进程名
//
// 立即返回；连接在后台建立，失败时按配置的间隔重试。重复调用是空操作。
func (c *Client) Run(server string, port int, identity string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch c.phase {
	case phaseClosed:
		return ErrClosed
	case phaseRunning:
		return nil
	}
	if err := c.mgr.Run(tcp.NewAddress(server, port), identity); err != nil {
		return err
	}
	c.phase = phaseRunning
	return nil
}

// Close 关闭客户端
//
// nice 为 true 时先尝试发送发件箱中剩余的消息。Close 返回时 I/O goroutine
// 和所有活动队列 worker 都已退出。可重复调用。
//
// 可以在任何 goroutine 中调用，包括 on_connect / on_mail 和活动队列回调。
// 在活动队列回调中调用时不等待该队列自己的 worker，它在回调返回后退出。
func (c *Client) Close(nice bool) error {
	c.closeOnce.Do(func() {
		c.mu.Lock()
		c.phase = phaseClosed
		c.mu.Unlock()

		err := c.mgr.Close(nice)

		stopCtx, cancel := context.WithTimeout(context.Background(), c.cfg.startTimeout)
		defer cancel()
		c.closeErr = multierr.Append(err, c.app.Stop(stopCtx))

		logger.Info("客户端已关闭", "nice", nice)
	})
	return c.closeErr
}

func (c *Client) checkRunning() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch c.phase {
	case phaseClosed:
		return ErrClosed
	case phaseIdle:
		return ErrNotRunning
	}
	return nil
}

func (c *Client) checkOpen() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.phase == phaseClosed {
		return ErrClosed
	}
	return nil
}

// ============================================================================
//                              状态查询
// ============================================================================

// WaitUntilConnected 阻塞直到已连接或 ctx 结束
func (c *Client) WaitUntilConnected(ctx context.Context) error {
	return c.mgr.WaitUntilConnected(ctx)
}

// State 当前连接状态
func (c *Client) State() ConnState {
	return c.tracker.State()
}

// IsConnected 是否已连接到服务端
func (c *Client) IsConnected() bool {
	return c.mgr.IsConnected()
}

// IsRunning I/O goroutine 是否在运行
func (c *Client) IsRunning() bool {
	return c.mgr.IsRunning()
}

// IsAsynchronous 总是 true
func (c *Client) IsAsynchronous() bool {
	return true
}

// Name 进程名（Run 之前为空）
func (c *Client) Name() string {
	return c.mgr.Identity()
}

// Community 服务端所在的社区（首次连接之前为空）
func (c *Client) Community() string {
	return c.mgr.Community()
}

// ServerAddress 服务端地址（Run 之前为空）
func (c *Client) ServerAddress() string {
	addr := c.mgr.Address()
	if addr.Host == "" {
		return ""
	}
	return addr.String()
}

// Session 会话 ID
func (c *Client) Session() string {
	return c.mgr.Session()
}

// ============================================================================
//                              时间控制
// ============================================================================

// SetCommsControlTimeWarpScaleFactor 设置时间加速下的刷新间隔因子
//
// 两次发送之间至少间隔 factor * time_warp 毫秒；0 表示不限速。
func (c *Client) SetCommsControlTimeWarpScaleFactor(f float64) error {
	return c.mgr.SetCommsControlTimeWarpScaleFactor(f)
}

// CommsControlTimeWarpScaleFactor 当前的刷新间隔因子
func (c *Client) CommsControlTimeWarpScaleFactor() float64 {
	return c.mgr.CommsControlTimeWarpScaleFactor()
}

// DoLocalTimeCorrection 设置是否根据服务端时间校正时钟偏差
func (c *Client) DoLocalTimeCorrection(enabled bool) {
	c.mgr.DoLocalTimeCorrection(enabled)
}

// ============================================================================
//                              统计与错误
// ============================================================================

// Stats 通信统计快照
func (c *Client) Stats() Stats {
	return c.counter.Totals()
}

// UnreadCount 收件箱中未取走的邮件数
func (c *Client) UnreadCount() int {
	return c.boxes.Inbox.Len()
}

// UnsentCount 发件箱中待发送的消息数
func (c *Client) UnsentCount() int {
	return c.boxes.Outbox.Len()
}

// DroppedMail 收件箱溢出时丢弃的邮件数
func (c *Client) DroppedMail() uint64 {
	return c.boxes.Inbox.Dropped()
}

// Collector 返回导出本客户端统计的 Prometheus Collector
func (c *Client) Collector() prometheus.Collector {
	return metrics.NewCollector(c.counter, c.Name())
}

// Errors 返回回调错误 channel
//
// channel 满时丢弃最旧的错误；客户端关闭后不会关闭该 channel。
func (c *Client) Errors() <-chan error {
	return c.errs
}

// reportError 汇集后台 goroutine 中的错误
func (c *Client) reportError(err error) {
	if err == nil {
		return
	}
	if c.cfg.onError != nil {
		c.cfg.onError(err)
	}
	for {
		select {
		case c.errs <- err:
			return
		default:
		}
		select {
		case <-c.errs:
		default:
		}
	}
}
