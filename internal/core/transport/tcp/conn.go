package tcp

import (
	"bufio"
	"errors"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/mooscomms/go-mooscomms/internal/core/codec"
	"github.com/mooscomms/go-mooscomms/pkg/types"
)

// Conn 一条 TCP 连接，收发 MOOS 数据包
type Conn struct {
	conn  net.Conn
	r     *bufio.Reader
	codec *codec.Codec

	writeMu sync.Mutex

	opened time.Time
	closed atomic.Bool

	bytesRead    atomic.Uint64
	bytesWritten atomic.Uint64

	onClose func(*Conn)
}

// NewConn 包装 net.Conn
func NewConn(c net.Conn, cd *codec.Codec) *Conn {
	if cd == nil {
		cd = codec.NewCodec(0)
	}
	return &Conn{
		conn:   c,
		r:      bufio.NewReader(c),
		codec:  cd,
		opened: time.Now(),
	}
}

// ReadPacket 读取一个数据包，返回消息和读取的字节数
//
// 阻塞直到收到完整的帧、读截止时间到达或连接关闭。
// 截止时间到达时连接的帧边界可能已经被破坏，调用方应关闭连接。
func (c *Conn) ReadPacket() ([]*types.Message, int, error) {
	if c.closed.Load() {
		return nil, 0, ErrConnectionClosed
	}
	msgs, n, err := c.codec.ReadPacket(c.r)
	c.bytesRead.Add(uint64(n))
	if err != nil && c.closed.Load() {
		return nil, n, ErrConnectionClosed
	}
	return msgs, n, err
}

// WritePacket 写出一批消息（一个帧），返回写出的字节数
func (c *Conn) WritePacket(msgs []*types.Message, deadline time.Time) (int, error) {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if c.closed.Load() {
		return 0, ErrConnectionClosed
	}
	if err := c.conn.SetWriteDeadline(deadline); err != nil {
		return 0, err
	}
	n, err := c.codec.WritePacket(c.conn, msgs)
	c.bytesWritten.Add(uint64(n))
	return n, err
}

// SetReadDeadline 设置读截止时间；零值表示不超时
func (c *Conn) SetReadDeadline(t time.Time) error {
	return c.conn.SetReadDeadline(t)
}

// LocalAddr 本地地址
func (c *Conn) LocalAddr() net.Addr {
	return c.conn.LocalAddr()
}

// RemoteAddr 远端地址
func (c *Conn) RemoteAddr() net.Addr {
	return c.conn.RemoteAddr()
}

// Opened 连接建立时间
func (c *Conn) Opened() time.Time {
	return c.opened
}

// BytesRead 累计读取字节数
func (c *Conn) BytesRead() uint64 {
	return c.bytesRead.Load()
}

// BytesWritten 累计写出字节数
func (c *Conn) BytesWritten() uint64 {
	return c.bytesWritten.Load()
}

// Close 关闭连接，阻塞中的 ReadPacket 随即返回 ErrConnectionClosed
func (c *Conn) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}
	err := c.conn.Close()
	if c.onClose != nil {
		c.onClose(c)
	}
	return err
}

// IsClosed 检查是否已关闭
func (c *Conn) IsClosed() bool {
	return c.closed.Load()
}

// IsTimeout 判断错误是否为 I/O 超时
func IsTimeout(err error) bool {
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
