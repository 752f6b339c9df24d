package connmgr

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"

	"github.com/mooscomms/go-mooscomms/config"
	"github.com/mooscomms/go-mooscomms/internal/core/activequeue"
	"github.com/mooscomms/go-mooscomms/internal/core/codec"
	"github.com/mooscomms/go-mooscomms/internal/core/lifecycle"
	"github.com/mooscomms/go-mooscomms/internal/core/mailbox"
	"github.com/mooscomms/go-mooscomms/internal/core/metrics"
	"github.com/mooscomms/go-mooscomms/internal/core/registry"
	"github.com/mooscomms/go-mooscomms/internal/core/transport/tcp"
	"github.com/mooscomms/go-mooscomms/pkg/lib/log"
	"github.com/mooscomms/go-mooscomms/pkg/moostime"
	"github.com/mooscomms/go-mooscomms/pkg/types"
)

var logger = log.Logger("core/connmgr")

// Dialer 建立到 MOOSDB 的连接，*tcp.Transport 满足
type Dialer interface {
	Dial(ctx context.Context, addr tcp.Address) (*tcp.Conn, error)
}

var _ Dialer = (*tcp.Transport)(nil)

// Params 连接管理器的协作组件
//
// 除 Dialer 外都可以为空，为空时使用默认实现。
type Params struct {
	Dialer   Dialer
	Registry *registry.Registry
	Router   *activequeue.Router
	Outbox   *mailbox.Outbox
	Inbox    *mailbox.Inbox
	Tracker  *lifecycle.Tracker
	Reporter metrics.Reporter
	Clock    clock.Clock
	OnError  types.ErrorHandler
}

// ============================================================================
//                              Manager 结构
// ============================================================================

// Manager 连接管理器
//
// 拥有传输连接和唯一的 I/O goroutine。连接状态只由 I/O goroutine 和 Close 修改，
// 其他组件通过 Tracker 观察。
type Manager struct {
	cfg      Config
	dialer   Dialer
	reg      *registry.Registry
	router   *activequeue.Router
	outbox   *mailbox.Outbox
	inbox    *mailbox.Inbox
	tracker  *lifecycle.Tracker
	reporter metrics.Reporter
	clk      clock.Clock
	runner   *callbackRunner
	gate     *flushGate
	session  string

	mu        sync.Mutex
	started   bool
	nice      bool
	identity  string
	community string
	addr      tcp.Address
	onConnect types.OnConnectFunc
	onMail    types.OnMailFunc

	correction atomic.Bool
	scaleBits  atomic.Uint64

	ctx       context.Context
	cancel    context.CancelFunc
	done      chan struct{}
	closeOnce sync.Once
}

// New 创建连接管理器
func New(cfg Config, p Params) (*Manager, error) {
	if p.Dialer == nil {
		return nil, ErrNoDialer
	}
	cfg.normalize()

	if p.Clock == nil {
		p.Clock = clock.New()
	}
	if p.Registry == nil {
		p.Registry = registry.New(registry.DefaultCacheSize)
	}
	if p.Outbox == nil {
		p.Outbox = mailbox.NewOutbox(config.DefaultMailboxConfig(), p.Clock)
	}
	if p.Inbox == nil {
		p.Inbox = mailbox.NewInbox(config.DefaultMailboxConfig())
	}
	if p.Tracker == nil {
		p.Tracker = lifecycle.NewTracker()
	}
	if p.Reporter == nil {
		p.Reporter = metrics.NewCommsCounter(false, p.Clock)
	}

	ctx, cancel := context.WithCancel(context.Background())
	m := &Manager{
		cfg:      cfg,
		dialer:   p.Dialer,
		reg:      p.Registry,
		router:   p.Router,
		outbox:   p.Outbox,
		inbox:    p.Inbox,
		tracker:  p.Tracker,
		reporter: p.Reporter,
		clk:      p.Clock,
		runner:   &callbackRunner{clk: p.Clock, timeout: cfg.CallbackTimeout, onError: p.OnError},
		gate:     newFlushGate(p.Clock),
		session:  uuid.NewString(),
		ctx:      ctx,
		cancel:   cancel,
		done:     make(chan struct{}),
	}
	m.correction.Store(cfg.LocalTimeCorrection)
	m.scaleBits.Store(math.Float64bits(cfg.CommsControlTimeWarpScaleFactor))
	return m, nil
}

// ============================================================================
//                              启动与关闭
// ============================================================================

// Run 启动 I/O goroutine，连接 addr 并以 identity 握手
//
// 已经启动时是空操作；关闭后返回 ErrManagerClosed。连接失败不会返回错误，
// 而是在后台按退避策略重试。
func (m *Manager) Run(addr tcp.Address, identity string) error {
	if identity == "" {
		return ErrInvalidIdentity
	}
	if err := addr.Validate(); err != nil {
		return err
	}

	m.mu.Lock()
	if m.ctx.Err() != nil {
		m.mu.Unlock()
		return ErrManagerClosed
	}
	if m.started {
		m.mu.Unlock()
		return nil
	}
	m.started = true
	m.addr = addr
	m.identity = identity
	m.mu.Unlock()

	if err := m.tracker.Transition(types.StateConnecting); err != nil {
		// 与 Close 竞争，由 I/O goroutine 完成收尾
		logger.Debug("启动时状态转换失败", "error", err)
	}

	logger.Info("启动连接管理器", "server", addr.String(), "identity", identity, "session", log.TruncateID(m.session, 8))
	go m.loop(addr, identity)
	return nil
}

// Close 关闭管理器并等待 I/O goroutine 退出
//
// nice 为 true 时先发送发件箱中剩余的消息（仅在已连接时）。可重复调用，
// 也可以在 on_connect / on_mail 回调中调用。
func (m *Manager) Close(nice bool) error {
	m.closeOnce.Do(func() {
		m.mu.Lock()
		m.nice = nice
		started := m.started
		m.cancel()
		m.mu.Unlock()

		m.outbox.Close()

		// 已启动时由 I/O goroutine 完成 Closing / Closed 转换
		if !started {
			_ = m.tracker.Transition(types.StateClosing)
			_ = m.tracker.Transition(types.StateClosed)
			close(m.done)
		}
		logger.Debug("关闭连接管理器", "nice", nice)
	})
	<-m.done
	return nil
}

// Done 返回在 I/O goroutine 退出后关闭的 channel
func (m *Manager) Done() <-chan struct{} {
	return m.done
}

func (m *Manager) closing() bool {
	return m.ctx.Err() != nil
}

func (m *Manager) isNice() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.nice
}

// ============================================================================
//                              主循环
// ============================================================================

func (m *Manager) loop(addr tcp.Address, identity string) {
	defer close(m.done)
	defer func() {
		_ = m.tracker.Transition(types.StateClosing)
		_ = m.tracker.Transition(types.StateClosed)
		logger.Info("连接管理器已退出", "identity", identity)
	}()

	bo := newBackoff(m.cfg.Backoff, m.cfg.RetryInterval, m.cfg.MaxRetryInterval)
	for !m.closing() {
		conn, err := m.connect(addr, identity)
		if err != nil {
			if m.closing() {
				return
			}
			logger.Warn("连接失败", "server", addr.String(), "attempt", bo.Attempts()+1, "error", err)
			if !m.sleep(bo.Next()) {
				return
			}
			continue
		}
		bo.Reset()

		err = m.runSession(conn, identity)
		_ = conn.Close()
		if m.closing() {
			return
		}
		logger.Warn("连接断开", "server", addr.String(), "error", err)

		if err := m.tracker.Transition(types.StateConnecting); err != nil {
			return
		}
		if !m.sleep(bo.Next()) {
			return
		}
	}
}

// sleep 等待 d；管理器关闭时返回 false
func (m *Manager) sleep(d time.Duration) bool {
	timer := m.clk.Timer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-m.ctx.Done():
		return false
	}
}

// connect 拨号并握手
func (m *Manager) connect(addr tcp.Address, identity string) (*tcp.Conn, error) {
	conn, err := m.dialer.Dial(m.ctx, addr)
	if err != nil {
		return nil, err
	}

	// 关闭时中断阻塞中的握手
	stop := context.AfterFunc(m.ctx, func() { _ = conn.Close() })
	defer stop()

	if err := m.handshake(conn, identity); err != nil {
		_ = conn.Close()
		return nil, err
	}
	return conn, nil
}

// handshake 发送 C，等待 W 或 K
func (m *Manager) handshake(conn *tcp.Conn, identity string) error {
	deadline := time.Now().Add(m.cfg.HandshakeTimeout)
	sent := moostime.LocalTime(true)

	n, err := conn.WritePacket([]*types.Message{codec.ConnectMessage(identity, m.session, sent)}, deadline)
	if err != nil {
		return fmt.Errorf("%w: send connect: %v", ErrHandshake, err)
	}
	m.reporter.LogSent(1, n)

	if err := conn.SetReadDeadline(deadline); err != nil {
		return err
	}
	for {
		msgs, n, err := conn.ReadPacket()
		if err != nil {
			return fmt.Errorf("%w: read reply: %v", ErrHandshake, err)
		}
		m.reporter.LogRecv(len(msgs), n)

		for _, msg := range msgs {
			switch msg.Type() {
			case types.MsgWelcome:
				m.applySkew(msg.Time(), sent, moostime.LocalTime(true))
				m.setCommunity(msg.StringValue())
				logger.Info("握手成功", "community", msg.StringValue(), "skew", moostime.Skew())
				return conn.SetReadDeadline(time.Time{})
			case types.MsgPoison:
				return fmt.Errorf("%w: %s", ErrPoisoned, msg.StringValue())
			case types.MsgNull:
			default:
				return fmt.Errorf("%w: unexpected reply %s", ErrHandshake, msg.Type())
			}
		}
	}
}

// applySkew 根据服务端时间和本地往返时间更新进程级时钟偏差
func (m *Manager) applySkew(serverTime, sent, received float64) {
	if !m.correction.Load() {
		return
	}
	local := received
	if sent > 0 {
		local = (sent + received) / 2
	}
	moostime.SetSkew(serverTime - local)
}

// ============================================================================
//                              会话
// ============================================================================

type readResult struct {
	msgs []*types.Message
	err  error
}

// runSession 已握手连接上的一次完整会话
func (m *Manager) runSession(conn *tcp.Conn, identity string) error {
	if err := m.tracker.Transition(types.StateConnected); err != nil {
		return err
	}
	logger.Info("已连接", "server", conn.RemoteAddr().String(), "identity", identity)

	if err := m.resendRegistrations(conn); err != nil {
		return err
	}

	m.mu.Lock()
	onConnect := m.onConnect
	m.mu.Unlock()
	if onConnect != nil {
		m.runner.Run(types.CallbackOnConnect, onConnect, m.ctx.Done())
	}

	return m.serve(conn, identity)
}

// resendRegistrations 重新发送全部登记
func (m *Manager) resendRegistrations(conn *tcp.Conn) error {
	regs := m.reg.Snapshot()
	if len(regs) == 0 {
		return nil
	}
	msgs := make([]*types.Message, 0, len(regs))
	for _, reg := range regs {
		msgs = append(msgs, codec.RegistrationMessage(reg, true))
	}
	logger.Debug("重新发送登记", "count", len(msgs))
	return m.send(conn, msgs)
}

// serve I/O 循环，直到连接出错或管理器关闭
func (m *Manager) serve(conn *tcp.Conn, identity string) error {
	results := make(chan readResult)
	quit := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		m.readLoop(conn, results, quit)
	}()
	defer func() {
		close(quit)
		_ = conn.Close()
		wg.Wait()
	}()

	ticker := m.clk.Ticker(m.cfg.PollInterval)
	defer ticker.Stop()

	last := m.clk.Now()
	lastRecv, lastSend := last, last
	for {
		select {
		case <-m.ctx.Done():
			_ = m.tracker.Transition(types.StateClosing)
			if m.isNice() {
				if _, err := m.flush(conn, identity, true); err != nil {
					logger.Debug("关闭前刷新失败", "error", err)
				}
			}
			return nil

		case r := <-results:
			if r.err != nil {
				return fmt.Errorf("read: %w", r.err)
			}
			lastRecv = m.clk.Now()
			if err := m.handleInbound(r.msgs); err != nil {
				return err
			}

		case <-m.outbox.Ready():
			sent, err := m.flush(conn, identity, false)
			if err != nil {
				return err
			}
			if sent {
				lastSend = m.clk.Now()
			}

		case <-ticker.C:
			sent, err := m.flush(conn, identity, false)
			if err != nil {
				return err
			}
			now := m.clk.Now()
			if sent {
				lastSend = now
			}
			if now.Sub(lastSend) >= m.cfg.HeartbeatInterval {
				if err := m.send(conn, []*types.Message{codec.NullMessage(moostime.Now())}); err != nil {
					return err
				}
				lastSend = now
			}
			if m.cfg.KeepAlive > 0 && now.Sub(lastRecv) > m.cfg.KeepAlive {
				return ErrKeepAliveTimeout
			}
		}
	}
}

// readLoop 读 goroutine：把每个数据包交给 serve
func (m *Manager) readLoop(conn *tcp.Conn, results chan<- readResult, quit <-chan struct{}) {
	for {
		msgs, n, err := conn.ReadPacket()
		if err == nil {
			m.reporter.LogRecv(len(msgs), n)
		}
		select {
		case results <- readResult{msgs: msgs, err: err}:
		case <-quit:
			return
		}
		if err != nil {
			return
		}
	}
}

// handleInbound 处理一个入站数据包
func (m *Manager) handleInbound(msgs []*types.Message) error {
	m.mu.Lock()
	onMail := m.onMail
	m.mu.Unlock()

	delivered := 0
	for _, msg := range msgs {
		switch msg.Type() {
		case types.MsgNotify:
			if err := msg.Validate(); err != nil {
				logger.Warn("丢弃无效的入站消息", "key", msg.Key(), "error", err)
				continue
			}
			if m.router != nil && m.router.Dispatch(msg) {
				continue
			}
			if !m.reg.Accepts(msg) {
				logger.Debug("丢弃未登记的消息", "key", msg.Key())
				continue
			}
			if err := m.inbox.Push(msg); err != nil {
				logger.Warn("收件箱已满，丢弃消息", "key", msg.Key(), "dropped", m.inbox.Dropped())
				continue
			}
			delivered++
			if m.cfg.OnMailPerMessage {
				m.fireOnMail(onMail)
			}
		case types.MsgTiming:
			m.applySkew(msg.Time(), msg.DoubleAux(), moostime.LocalTime(true))
		case types.MsgPoison:
			return fmt.Errorf("%w: %s", ErrPoisoned, msg.StringValue())
		}
	}

	if delivered > 0 && !m.cfg.OnMailPerMessage {
		m.fireOnMail(onMail)
	}
	return nil
}

func (m *Manager) fireOnMail(onMail types.OnMailFunc) {
	if onMail == nil || m.closing() {
		return
	}
	m.runner.Run(types.CallbackOnMail, onMail, m.ctx.Done())
}

// flush 取空发件箱并发送；final 为 true 时忽略刷新限速
func (m *Manager) flush(conn *tcp.Conn, identity string, final bool) (bool, error) {
	if m.outbox.Len() == 0 {
		return false, nil
	}
	if !final && !m.gate.Allow(m.CommsControlTimeWarpScaleFactor(), moostime.TimeWarp()) {
		return false, nil
	}
	msgs := m.outbox.DrainAll()
	if len(msgs) == 0 {
		return false, nil
	}

	community := m.Community()
	for i, msg := range msgs {
		msgs[i] = msg.WithSource(identity, community)
	}
	return true, m.send(conn, msgs)
}

// send 把消息写成一个数据包；超过帧上限时对半拆分，顺序不变
func (m *Manager) send(conn *tcp.Conn, msgs []*types.Message) error {
	n, err := conn.WritePacket(msgs, time.Now().Add(m.cfg.WriteTimeout))
	if errors.Is(err, codec.ErrFrameTooLarge) {
		if len(msgs) == 1 {
			logger.Error("消息超过帧上限，丢弃", "key", msgs[0].Key(), "error", err)
			return nil
		}
		half := len(msgs) / 2
		if err := m.send(conn, msgs[:half]); err != nil {
			return err
		}
		return m.send(conn, msgs[half:])
	}
	if err != nil {
		return fmt.Errorf("write: %w", err)
	}
	m.reporter.LogSent(len(msgs), n)
	return nil
}

// ============================================================================
//                              出站接口
// ============================================================================

// Post 把消息放入发件箱
//
// 在 Disconnected / Connecting / Connected 状态下接受；Closing 之后返回 ErrManagerClosed。
func (m *Manager) Post(msg *types.Message) error {
	if err := msg.Validate(); err != nil {
		return err
	}
	if !m.tracker.State().AcceptsOutbound() {
		return ErrManagerClosed
	}
	if err := m.outbox.Push(msg); err != nil {
		if errors.Is(err, mailbox.ErrClosed) {
			return ErrManagerClosed
		}
		return err
	}
	if msg.IsData() {
		m.reg.MarkPublished(msg.Key())
	}
	return nil
}

// Register 添加登记；已连接时立即通知服务端，否则在下次连接时发送
func (m *Manager) Register(reg types.Registration) error {
	changed, err := m.reg.Register(reg)
	if err != nil || !changed {
		return err
	}
	if m.tracker.Is(types.StateConnected) {
		return m.pushControl(codec.RegistrationMessage(reg, true))
	}
	return nil
}

// Unregister 删除登记；不存在时返回 false
func (m *Manager) Unregister(reg types.Registration) (bool, error) {
	prev, ok := m.reg.Unregister(reg)
	if !ok {
		return false, nil
	}
	if m.tracker.Is(types.StateConnected) {
		return true, m.pushControl(codec.RegistrationMessage(prev, false))
	}
	return true, nil
}

func (m *Manager) pushControl(msg *types.Message) error {
	if err := m.outbox.Push(msg); err != nil {
		if errors.Is(err, mailbox.ErrClosed) {
			return ErrManagerClosed
		}
		return err
	}
	return nil
}

// ============================================================================
//                              回调与属性
// ============================================================================

// SetOnConnect 设置连接建立回调
func (m *Manager) SetOnConnect(fn types.OnConnectFunc) {
	m.mu.Lock()
	m.onConnect = fn
	m.mu.Unlock()
}

// SetOnMail 设置新邮件回调
func (m *Manager) SetOnMail(fn types.OnMailFunc) {
	m.mu.Lock()
	m.onMail = fn
	m.mu.Unlock()
}

// WaitUntilConnected 阻塞直到已连接或 ctx 结束
func (m *Manager) WaitUntilConnected(ctx context.Context) error {
	return m.tracker.WaitFor(ctx, types.StateConnected)
}

// State 当前连接状态
func (m *Manager) State() types.ConnState {
	return m.tracker.State()
}

// IsConnected 是否已连接
func (m *Manager) IsConnected() bool {
	return m.tracker.Is(types.StateConnected)
}

// IsRunning I/O goroutine 是否在运行
func (m *Manager) IsRunning() bool {
	m.mu.Lock()
	started := m.started
	m.mu.Unlock()
	if !started {
		return false
	}
	select {
	case <-m.done:
		return false
	default:
		return true
	}
}

// Identity 进程名
func (m *Manager) Identity() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.identity
}

// Address 服务端地址
func (m *Manager) Address() tcp.Address {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.addr
}

// Community 服务端在握手时告知的社区名
func (m *Manager) Community() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.community
}

func (m *Manager) setCommunity(c string) {
	m.mu.Lock()
	m.community = c
	m.mu.Unlock()
}

// Session 本管理器的会话 ID
func (m *Manager) Session() string {
	return m.session
}

// SetCommsControlTimeWarpScaleFactor 设置时间加速下的刷新间隔因子
func (m *Manager) SetCommsControlTimeWarpScaleFactor(f float64) error {
	if f < 0 || math.IsNaN(f) || math.IsInf(f, 0) {
		return fmt.Errorf("connmgr: invalid comms control scale factor %v", f)
	}
	m.scaleBits.Store(math.Float64bits(f))
	return nil
}

// CommsControlTimeWarpScaleFactor 当前的刷新间隔因子
func (m *Manager) CommsControlTimeWarpScaleFactor() float64 {
	return math.Float64frombits(m.scaleBits.Load())
}

// DoLocalTimeCorrection 设置是否根据服务端时间校正时钟偏差
func (m *Manager) DoLocalTimeCorrection(enabled bool) {
	m.correction.Store(enabled)
}

// LocalTimeCorrection 是否启用时钟校正
func (m *Manager) LocalTimeCorrection() bool {
	return m.correction.Load()
}
