// Package testbroker 提供进程内的 MOOSDB 模拟服务端
//
// 用于测试和本地演示：接受客户端握手（应答 W 或 K），记录收到的通知，
// 维护每个客户端的订阅登记，并把通知转发给登记了该变量的客户端。
package testbroker

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	tec "github.com/jbenet/go-temp-err-catcher"
	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"

	"github.com/mooscomms/go-mooscomms/internal/core/codec"
	"github.com/mooscomms/go-mooscomms/internal/core/registry"
	"github.com/mooscomms/go-mooscomms/internal/core/transport/tcp"
	"github.com/mooscomms/go-mooscomms/pkg/lib/log"
	"github.com/mooscomms/go-mooscomms/pkg/moostime"
	"github.com/mooscomms/go-mooscomms/pkg/types"
)

var logger = log.Logger("testbroker")

// ErrNoClient 指定名字的客户端未连接
var ErrNoClient = errors.New("testbroker: no such client")

// Option 服务端选项
type Option func(*Broker)

// WithAddr 设置监听地址（默认 127.0.0.1:0）
func WithAddr(addr string) Option {
	return func(b *Broker) { b.addr = addr }
}

// WithCommunity 设置社区名（默认 "testdb"）
func WithCommunity(name string) Option {
	return func(b *Broker) { b.community = name }
}

// WithReject 拒绝所有握手，应答 K{reason}
func WithReject(reason string) Option {
	return func(b *Broker) { b.reject = reason }
}

// WithTimeOffset 服务端时间相对本地时间的偏移（秒）
func WithTimeOffset(offset float64) Option {
	return func(b *Broker) { b.offset = offset }
}

// WithTransport 使用指定的 TCP 传输层（默认新建）
func WithTransport(t *tcp.Transport) Option {
	return func(b *Broker) { b.transport = t }
}

// client 一个已握手的客户端
type client struct {
	id   string
	name string
	conn *tcp.Conn
	regs *registry.Registry
}

// Broker 模拟服务端
type Broker struct {
	addr      string
	community string
	reject    string
	offset    float64

	transport *tcp.Transport
	listener  *tcp.Listener
	group     errgroup.Group

	mu         sync.Mutex
	clients    map[string]*client
	notifies   []*types.Message
	handshakes []string

	closeOnce sync.Once
	closeErr  error
}

// Start 创建并启动模拟服务端
func Start(opts ...Option) (*Broker, error) {
	b := &Broker{
		addr:      "127.0.0.1:0",
		community: "testdb",
		clients:   make(map[string]*client),
	}
	for _, opt := range opts {
		opt(b)
	}
	if b.transport == nil {
		b.transport = tcp.NewTransport(tcp.DefaultConfig())
	}

	l, err := b.transport.Listen(b.addr)
	if err != nil {
		return nil, err
	}
	b.listener = l
	b.group.Go(b.acceptLoop)

	logger.Info("模拟服务端已启动", "addr", l.Addr().String(), "community", b.community)
	return b, nil
}

// Addr 实际监听地址
func (b *Broker) Addr() tcp.Address {
	return b.listener.Addr()
}

// Community 社区名
func (b *Broker) Community() string {
	return b.community
}

// Close 关闭监听器和所有连接，等待所有 goroutine 退出
func (b *Broker) Close() error {
	b.closeOnce.Do(func() {
		b.closeErr = multierr.Combine(
			b.listener.Close(),
			b.transport.Close(),
			b.group.Wait(),
		)
	})
	return b.closeErr
}

// ============================================================================
//                              连接处理
// ============================================================================

func (b *Broker) acceptLoop() error {
	var catcher tec.TempErrCatcher
	for {
		conn, err := b.listener.Accept()
		if err != nil {
			if catcher.IsTemporary(err) {
				continue
			}
			if b.listener.IsClosed() {
				return nil
			}
			return err
		}
		b.group.Go(func() error {
			b.serve(conn)
			return nil
		})
	}
}

func (b *Broker) serverTime() float64 {
	return moostime.LocalTime(true) + b.offset
}

// serve 处理一个客户端连接直到断开
func (b *Broker) serve(conn *tcp.Conn) {
	defer conn.Close()

	c, err := b.handshake(conn)
	if err != nil {
		logger.Debug("握手失败", "remote", conn.RemoteAddr().String(), "error", err)
		return
	}
	defer b.remove(c)

	for {
		msgs, _, err := conn.ReadPacket()
		if err != nil {
			logger.Debug("客户端断开", "name", c.name, "error", err)
			return
		}
		for _, msg := range msgs {
			b.handle(c, msg)
		}
	}
}

func (b *Broker) handshake(conn *tcp.Conn) (*client, error) {
	msgs, _, err := conn.ReadPacket()
	if err != nil {
		return nil, err
	}
	if len(msgs) == 0 || msgs[0].Type() != types.MsgConnect {
		return nil, fmt.Errorf("expected connect message, got %d messages", len(msgs))
	}
	hello := msgs[0]

	b.mu.Lock()
	b.handshakes = append(b.handshakes, hello.Key())
	b.mu.Unlock()

	if b.reject != "" {
		_, _ = conn.WritePacket([]*types.Message{codec.PoisonMessage(b.reject)}, noDeadline)
		return nil, fmt.Errorf("rejected %s: %s", hello.Key(), b.reject)
	}

	c := &client{
		id:   uuid.NewString(),
		name: hello.Key(),
		conn: conn,
		regs: registry.New(registry.DefaultCacheSize),
	}

	// 先登记再应答，客户端收到 W 时服务端已能找到它
	b.mu.Lock()
	if old, ok := b.clients[c.name]; ok {
		_ = old.conn.Close()
	}
	b.clients[c.name] = c
	b.mu.Unlock()

	if _, err := conn.WritePacket([]*types.Message{codec.WelcomeMessage(b.community, b.serverTime())}, noDeadline); err != nil {
		b.remove(c)
		return nil, err
	}

	logger.Debug("客户端已连接", "name", c.name, "id", log.TruncateID(c.id, 8), "session", hello.SourceAux())
	return c, nil
}

func (b *Broker) remove(c *client) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if cur, ok := b.clients[c.name]; ok && cur.id == c.id {
		delete(b.clients, c.name)
	}
}

func (b *Broker) handle(c *client, msg *types.Message) {
	if reg, register, ok := codec.ParseRegistration(msg); ok {
		if register {
			_, _ = c.regs.Register(reg)
		} else {
			c.regs.Unregister(reg)
		}
		return
	}

	switch msg.Type() {
	case types.MsgNotify:
		b.mu.Lock()
		b.notifies = append(b.notifies, msg)
		b.mu.Unlock()
		b.forward(msg)
	case types.MsgNull:
		_, _ = c.conn.WritePacket([]*types.Message{codec.NullMessage(b.serverTime())}, noDeadline)
	case types.MsgTiming:
		_, _ = c.conn.WritePacket([]*types.Message{codec.TimingMessage(b.serverTime(), msg.Time())}, noDeadline)
	}
}

// forward 把通知发送给所有登记了它的客户端
func (b *Broker) forward(msg *types.Message) int {
	n := 0
	for _, c := range b.snapshot() {
		if !c.regs.Accepts(msg) {
			continue
		}
		if _, err := c.conn.WritePacket([]*types.Message{msg}, noDeadline); err == nil {
			n++
		}
	}
	return n
}

func (b *Broker) snapshot() []*client {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]*client, 0, len(b.clients))
	for _, c := range b.clients {
		out = append(out, c)
	}
	return out
}

func (b *Broker) lookup(name string) (*client, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	c, ok := b.clients[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNoClient, name)
	}
	return c, nil
}

// ============================================================================
//                              测试控制
// ============================================================================

// Push 以服务端身份发布通知，返回收到它的客户端数量
func (b *Broker) Push(msg *types.Message) int {
	return b.forward(msg)
}

// PushTo 不经登记过滤，直接把消息（可以多条，作为一个数据包）发送给指定客户端
func (b *Broker) PushTo(name string, msgs ...*types.Message) error {
	c, err := b.lookup(name)
	if err != nil {
		return err
	}
	_, err = c.conn.WritePacket(msgs, noDeadline)
	return err
}

// Kick 向客户端发送 K 并断开
func (b *Broker) Kick(name, reason string) error {
	c, err := b.lookup(name)
	if err != nil {
		return err
	}
	_, _ = c.conn.WritePacket([]*types.Message{codec.PoisonMessage(reason)}, noDeadline)
	return c.conn.Close()
}

// Drop 不发送任何消息直接断开客户端
func (b *Broker) Drop(name string) error {
	c, err := b.lookup(name)
	if err != nil {
		return err
	}
	return c.conn.Close()
}

// Notifies 收到的全部通知（按到达顺序）
func (b *Broker) Notifies() []*types.Message {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]*types.Message, len(b.notifies))
	copy(out, b.notifies)
	return out
}

// NotifiesFor 指定变量名的通知（按到达顺序）
func (b *Broker) NotifiesFor(key string) []*types.Message {
	var out []*types.Message
	for _, m := range b.Notifies() {
		if m.Key() == key {
			out = append(out, m)
		}
	}
	return out
}

// Handshakes 收到的全部握手请求中的进程名（按到达顺序）
func (b *Broker) Handshakes() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]string, len(b.handshakes))
	copy(out, b.handshakes)
	return out
}

// Clients 当前已连接的客户端名（已排序）
func (b *Broker) Clients() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]string, 0, len(b.clients))
	for name := range b.clients {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// IsConnected 指定客户端是否已连接
func (b *Broker) IsConnected(name string) bool {
	_, err := b.lookup(name)
	return err == nil
}

// Registered 指定客户端的登记标识（已排序）
func (b *Broker) Registered(name string) []string {
	c, err := b.lookup(name)
	if err != nil {
		return nil
	}
	return c.regs.Registered()
}

// noDeadline 模拟服务端的写操作不设超时
var noDeadline time.Time
