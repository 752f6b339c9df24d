package metrics

import (
	"sync/atomic"

	"github.com/benbjohnson/clock"
)

// Stats 流量统计快照
type Stats struct {
	MessagesSent     uint64
	BytesSent        uint64
	MessagesReceived uint64
	BytesReceived    uint64

	// 最近 60 秒的平均速率（字节/秒）；未启用速率统计时为 0
	RateOut float64
	RateIn  float64
}

// Reporter 记录和读取通信流量
type Reporter interface {
	// LogSent 记录一次发送：消息数和帧字节数
	LogSent(msgs, bytes int)

	// LogRecv 记录一次接收：消息数和帧字节数
	LogRecv(msgs, bytes int)

	// Totals 返回统计快照
	Totals() Stats

	// Reset 重置所有统计
	Reset()
}

// CommsCounter 通信流量计数器
type CommsCounter struct {
	msgsSent  atomic.Uint64
	bytesSent atomic.Uint64
	msgsRecv  atomic.Uint64
	bytesRecv atomic.Uint64

	// 未启用速率统计时为 nil
	outRate *RateMeter
	inRate  *RateMeter
}

var _ Reporter = (*CommsCounter)(nil)

// NewCommsCounter 创建计数器；withRates 为 false 时只维护累计值
func NewCommsCounter(withRates bool, clk clock.Clock) *CommsCounter {
	c := &CommsCounter{}
	if withRates {
		c.outRate = NewRateMeter(clk)
		c.inRate = NewRateMeter(clk)
	}
	return c
}

// LogSent 记录发送
func (c *CommsCounter) LogSent(msgs, bytes int) {
	c.msgsSent.Add(uint64(msgs))
	c.bytesSent.Add(uint64(bytes))
	if c.outRate != nil {
		c.outRate.Add(int64(bytes))
	}
}

// LogRecv 记录接收
func (c *CommsCounter) LogRecv(msgs, bytes int) {
	c.msgsRecv.Add(uint64(msgs))
	c.bytesRecv.Add(uint64(bytes))
	if c.inRate != nil {
		c.inRate.Add(int64(bytes))
	}
}

// Totals 返回统计快照
func (c *CommsCounter) Totals() Stats {
	s := Stats{
		MessagesSent:     c.msgsSent.Load(),
		BytesSent:        c.bytesSent.Load(),
		MessagesReceived: c.msgsRecv.Load(),
		BytesReceived:    c.bytesRecv.Load(),
	}
	if c.outRate != nil {
		s.RateOut = c.outRate.Rate()
		s.RateIn = c.inRate.Rate()
	}
	return s
}

// Reset 重置所有统计
func (c *CommsCounter) Reset() {
	c.msgsSent.Store(0)
	c.bytesSent.Store(0)
	c.msgsRecv.Store(0)
	c.bytesRecv.Store(0)
	if c.outRate != nil {
		c.outRate.Reset()
		c.inRate.Reset()
	}
}
