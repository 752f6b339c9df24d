package config

import (
	"fmt"
	"time"
)

// Backoff 重连退避策略
type Backoff string

const (
	// BackoffFixed 固定间隔重连
	BackoffFixed Backoff = "fixed"

	// BackoffExponential 指数退避重连，上限为 MaxRetryInterval
	BackoffExponential Backoff = "exponential"
)

// ConnectionConfig 连接配置
type ConnectionConfig struct {
	// RetryInterval 连接失败后的重连间隔
	// 默认值: 1s
	RetryInterval Duration `json:"retry_interval"`

	// RetryBackoff 重连退避策略
	// 默认值: fixed
	RetryBackoff Backoff `json:"retry_backoff"`

	// MaxRetryInterval 指数退避的上限
	// 默认值: 10s
	MaxRetryInterval Duration `json:"max_retry_interval"`

	// DialTimeout TCP 拨号超时
	// 默认值: 2s
	DialTimeout Duration `json:"dial_timeout"`

	// HandshakeTimeout 握手应答超时
	// 默认值: 3s
	HandshakeTimeout Duration `json:"handshake_timeout"`

	// PollInterval I/O 循环的轮询周期（发件箱刷新和邮件投递的最大延迟）
	// 默认值: 10ms
	PollInterval Duration `json:"poll_interval"`

	// HeartbeatInterval 空闲时发送心跳的间隔
	// 默认值: 1s
	HeartbeatInterval Duration `json:"heartbeat_interval"`

	// KeepAlive 超过该时间没有收到任何数据即认为连接断开，0 表示不检测
	// 默认值: 30s
	KeepAlive Duration `json:"keep_alive"`

	// MaxFrameSize 最大帧长度（字节）
	// 默认值: 8 MiB
	MaxFrameSize int `json:"max_frame_size"`

	// CallbackTimeout on_connect / on_mail 回调的最长执行时间
	// 默认值: 5s
	CallbackTimeout Duration `json:"callback_timeout"`

	// OnMailPerMessage 为 true 时每条投递到邮箱的消息触发一次 on_mail，
	// 否则每个投递了邮件的循环触发一次
	// 默认值: false
	OnMailPerMessage bool `json:"on_mail_per_message"`
}

// DefaultConnectionConfig 返回默认的连接配置
func DefaultConnectionConfig() ConnectionConfig {
	return ConnectionConfig{
		RetryInterval:     Duration(time.Second),
		RetryBackoff:      BackoffFixed,
		MaxRetryInterval:  Duration(10 * time.Second),
		DialTimeout:       Duration(2 * time.Second),
		HandshakeTimeout:  Duration(3 * time.Second),
		PollInterval:      Duration(10 * time.Millisecond),
		HeartbeatInterval: Duration(time.Second),
		KeepAlive:         Duration(30 * time.Second),
		MaxFrameSize:      8 << 20,
		CallbackTimeout:   Duration(5 * time.Second),
	}
}

// Validate 验证连接配置
func (c *ConnectionConfig) Validate() error {
	if c.RetryInterval <= 0 {
		return fmt.Errorf("connection.retry_interval must be positive, got %s", c.RetryInterval)
	}
	switch c.RetryBackoff {
	case BackoffFixed, BackoffExponential:
	default:
		return fmt.Errorf("connection.retry_backoff must be %q or %q, got %q", BackoffFixed, BackoffExponential, c.RetryBackoff)
	}
	if c.RetryBackoff == BackoffExponential && c.MaxRetryInterval < c.RetryInterval {
		return fmt.Errorf("connection.max_retry_interval (%s) < retry_interval (%s)", c.MaxRetryInterval, c.RetryInterval)
	}
	if c.DialTimeout <= 0 {
		return fmt.Errorf("connection.dial_timeout must be positive, got %s", c.DialTimeout)
	}
	if c.HandshakeTimeout <= 0 {
		return fmt.Errorf("connection.handshake_timeout must be positive, got %s", c.HandshakeTimeout)
	}
	if c.PollInterval <= 0 {
		return fmt.Errorf("connection.poll_interval must be positive, got %s", c.PollInterval)
	}
	if c.HeartbeatInterval <= 0 {
		return fmt.Errorf("connection.heartbeat_interval must be positive, got %s", c.HeartbeatInterval)
	}
	if c.KeepAlive < 0 {
		return fmt.Errorf("connection.keep_alive must not be negative, got %s", c.KeepAlive)
	}
	if c.KeepAlive > 0 && c.KeepAlive <= c.HeartbeatInterval {
		return fmt.Errorf("connection.keep_alive (%s) must exceed heartbeat_interval (%s)", c.KeepAlive, c.HeartbeatInterval)
	}
	if c.MaxFrameSize <= 0 {
		return fmt.Errorf("connection.max_frame_size must be positive, got %d", c.MaxFrameSize)
	}
	if c.CallbackTimeout <= 0 {
		return fmt.Errorf("connection.callback_timeout must be positive, got %s", c.CallbackTimeout)
	}
	return nil
}
