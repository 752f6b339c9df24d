package connmgr

import (
	"time"

	"github.com/mooscomms/go-mooscomms/config"
)

// Config 连接管理器配置
type Config struct {
	// RetryInterval 首次重连间隔
	RetryInterval time.Duration

	// MaxRetryInterval 指数退避上限
	MaxRetryInterval time.Duration

	// Backoff 退避策略
	Backoff config.Backoff

	// HandshakeTimeout 等待握手应答的最长时间
	HandshakeTimeout time.Duration

	// WriteTimeout 单个数据包的写超时
	WriteTimeout time.Duration

	// PollInterval I/O 循环轮询周期
	PollInterval time.Duration

	// HeartbeatInterval 空闲多久后发送心跳
	HeartbeatInterval time.Duration

	// KeepAlive 多久没有收到数据即断开，0 表示不检测
	KeepAlive time.Duration

	// CallbackTimeout on_connect / on_mail 的最长执行时间
	CallbackTimeout time.Duration

	// OnMailPerMessage 每条邮件触发一次 on_mail
	OnMailPerMessage bool

	// LocalTimeCorrection 是否根据服务端时间校正时钟偏差
	LocalTimeCorrection bool

	// CommsControlTimeWarpScaleFactor 时间加速下的刷新间隔因子（毫秒 / 加速倍数）
	CommsControlTimeWarpScaleFactor float64
}

// DefaultConfig 返回默认配置
func DefaultConfig() Config {
	return ConfigFromUnified(nil)
}

// ConfigFromUnified 从统一配置创建连接管理器配置
func ConfigFromUnified(cfg *config.Config) Config {
	if cfg == nil {
		cfg = config.NewConfig()
	}
	c := cfg.Connection
	return Config{
		RetryInterval:                   c.RetryInterval.Duration(),
		MaxRetryInterval:                c.MaxRetryInterval.Duration(),
		Backoff:                         c.RetryBackoff,
		HandshakeTimeout:                c.HandshakeTimeout.Duration(),
		WriteTimeout:                    c.HandshakeTimeout.Duration(),
		PollInterval:                    c.PollInterval.Duration(),
		HeartbeatInterval:               c.HeartbeatInterval.Duration(),
		KeepAlive:                       c.KeepAlive.Duration(),
		CallbackTimeout:                 c.CallbackTimeout.Duration(),
		OnMailPerMessage:                c.OnMailPerMessage,
		LocalTimeCorrection:             cfg.Time.LocalTimeCorrection,
		CommsControlTimeWarpScaleFactor: cfg.Time.CommsControlTimeWarpScaleFactor,
	}
}

// normalize 为零值字段填充默认值
func (c *Config) normalize() {
	def := config.DefaultConnectionConfig()
	if c.RetryInterval <= 0 {
		c.RetryInterval = def.RetryInterval.Duration()
	}
	if c.MaxRetryInterval < c.RetryInterval {
		c.MaxRetryInterval = c.RetryInterval
	}
	if c.Backoff == "" {
		c.Backoff = config.BackoffFixed
	}
	if c.HandshakeTimeout <= 0 {
		c.HandshakeTimeout = def.HandshakeTimeout.Duration()
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = c.HandshakeTimeout
	}
	if c.PollInterval <= 0 {
		c.PollInterval = def.PollInterval.Duration()
	}
	if c.HeartbeatInterval <= 0 {
		c.HeartbeatInterval = def.HeartbeatInterval.Duration()
	}
	if c.CallbackTimeout <= 0 {
		c.CallbackTimeout = def.CallbackTimeout.Duration()
	}
}
