package tcp

import (
	"fmt"
	"net"
	"sync/atomic"
)

// Listener TCP 监听器（测试用 MOOSDB 使用）
type Listener struct {
	listener *net.TCPListener
	addr     Address
	t        *Transport
	closed   atomic.Bool
}

// Accept 接受连接
func (l *Listener) Accept() (*Conn, error) {
	conn, err := l.listener.AcceptTCP()
	if err != nil {
		return nil, err
	}
	_ = conn.SetNoDelay(l.t.config.NoDelay)
	if l.t.config.KeepAlive > 0 {
		_ = conn.SetKeepAlive(true)
		_ = conn.SetKeepAlivePeriod(l.t.config.KeepAlive)
	}
	c := NewConn(conn, l.t.codec)
	if err := l.t.track(c); err != nil {
		_ = conn.Close()
		return nil, err
	}
	return c, nil
}

// Addr 返回实际监听地址（端口可能由系统分配）
func (l *Listener) Addr() Address {
	return l.addr
}

// NetAddr 返回底层监听地址
func (l *Listener) NetAddr() net.Addr {
	return l.listener.Addr()
}

// Close 关闭监听器
func (l *Listener) Close() error {
	if !l.closed.CompareAndSwap(false, true) {
		return nil
	}
	l.t.untrackListener(l)
	return l.listener.Close()
}

// IsClosed 检查监听器是否已关闭
func (l *Listener) IsClosed() bool {
	return l.closed.Load()
}

func newListener(t *Transport, l net.Listener) (*Listener, error) {
	tcpListener, ok := l.(*net.TCPListener)
	if !ok {
		_ = l.Close()
		return nil, fmt.Errorf("%w: not a TCP listener", ErrInvalidAddress)
	}
	addr, err := NewAddressFromNetAddr(tcpListener.Addr())
	if err != nil {
		_ = tcpListener.Close()
		return nil, err
	}
	return &Listener{listener: tcpListener, addr: addr, t: t}, nil
}
