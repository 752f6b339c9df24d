package tcp

import (
	"context"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/multierr"

	"github.com/mooscomms/go-mooscomms/internal/core/codec"
	"github.com/mooscomms/go-mooscomms/pkg/lib/log"
)

var logger = log.Logger("core/transport/tcp")

// Config TCP 传输配置
type Config struct {
	// DialTimeout 拨号超时
	DialTimeout time.Duration

	// KeepAlive TCP keep-alive 周期，0 表示不启用
	KeepAlive time.Duration

	// NoDelay 禁用 Nagle 算法
	NoDelay bool

	// MaxFrameSize 最大帧长度
	MaxFrameSize int
}

// DefaultConfig 默认配置
func DefaultConfig() Config {
	return Config{
		DialTimeout:  2 * time.Second,
		KeepAlive:    30 * time.Second,
		NoDelay:      true,
		MaxFrameSize: codec.DefaultMaxFrameSize,
	}
}

// ============================================================================
//                              Transport 实现
// ============================================================================

// Transport TCP 传输层
type Transport struct {
	config Config
	codec  *codec.Codec

	mu        sync.Mutex
	conns     map[*Conn]struct{}
	listeners map[*Listener]struct{}

	closed atomic.Bool
}

// NewTransport 创建 TCP 传输层
func NewTransport(config Config) *Transport {
	return &Transport{
		config:    config,
		codec:     codec.NewCodec(config.MaxFrameSize),
		conns:     make(map[*Conn]struct{}),
		listeners: make(map[*Listener]struct{}),
	}
}

// Dial 建立到 MOOSDB 的连接
func (t *Transport) Dial(ctx context.Context, addr Address) (*Conn, error) {
	if t.closed.Load() {
		return nil, ErrTransportClosed
	}
	if err := addr.Validate(); err != nil {
		return nil, err
	}

	dialer := &net.Dialer{
		Timeout:   t.config.DialTimeout,
		KeepAlive: t.config.KeepAlive,
	}
	conn, err := dialer.DialContext(ctx, "tcp", addr.String())
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", addr, err)
	}

	if tcpConn, ok := conn.(*net.TCPConn); ok {
		_ = tcpConn.SetNoDelay(t.config.NoDelay)
	}

	c := NewConn(conn, t.codec)
	if err := t.track(c); err != nil {
		_ = conn.Close()
		return nil, err
	}
	logger.Debug("连接已建立", "remote", conn.RemoteAddr().String())
	return c, nil
}

// Listen 在 addr（"host:port"）上监听
func (t *Transport) Listen(addr string) (*Listener, error) {
	if t.closed.Load() {
		return nil, ErrTransportClosed
	}

	var lc net.ListenConfig
	l, err := lc.Listen(context.Background(), "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen %s: %w", addr, err)
	}
	listener, err := newListener(t, l)
	if err != nil {
		return nil, err
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed.Load() {
		_ = l.Close()
		return nil, ErrTransportClosed
	}
	t.listeners[listener] = struct{}{}
	return listener, nil
}

// Close 关闭传输层及其所有连接和监听器
func (t *Transport) Close() error {
	if !t.closed.CompareAndSwap(false, true) {
		return nil
	}

	t.mu.Lock()
	conns := make([]*Conn, 0, len(t.conns))
	for c := range t.conns {
		conns = append(conns, c)
	}
	listeners := make([]*Listener, 0, len(t.listeners))
	for l := range t.listeners {
		listeners = append(listeners, l)
	}
	t.mu.Unlock()

	var err error
	for _, l := range listeners {
		err = multierr.Append(err, l.Close())
	}
	for _, c := range conns {
		err = multierr.Append(err, c.Close())
	}
	return err
}

// ConnCount 返回活动连接数量
func (t *Transport) ConnCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.conns)
}

// IsClosed 检查是否已关闭
func (t *Transport) IsClosed() bool {
	return t.closed.Load()
}

func (t *Transport) track(c *Conn) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed.Load() {
		return ErrTransportClosed
	}
	c.onClose = t.untrackConn
	t.conns[c] = struct{}{}
	return nil
}

func (t *Transport) untrackConn(c *Conn) {
	t.mu.Lock()
	delete(t.conns, c)
	t.mu.Unlock()
}

func (t *Transport) untrackListener(l *Listener) {
	t.mu.Lock()
	delete(t.listeners, l)
	t.mu.Unlock()
}
