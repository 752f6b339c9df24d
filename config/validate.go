package config

import (
	"errors"
	"fmt"
)

// ValidateAll 验证整个配置的有效性
func ValidateAll(c *Config) error {
	if c == nil {
		return errors.New("config is nil")
	}
	return c.Validate()
}

// ValidateAndFix 验证配置并尝试自动修复常见问题
//
// 可修复的问题：
//   - 非正的容量和周期 -> 使用默认值
//   - 未知的退避或溢出策略 -> 使用默认值
//   - 指数退避上限小于初始间隔 -> 交换值
func ValidateAndFix(c *Config) (*Config, error) {
	if c == nil {
		return NewConfig(), nil
	}

	conn := DefaultConnectionConfig()
	fixDuration(&c.Connection.RetryInterval, conn.RetryInterval)
	fixDuration(&c.Connection.MaxRetryInterval, conn.MaxRetryInterval)
	fixDuration(&c.Connection.DialTimeout, conn.DialTimeout)
	fixDuration(&c.Connection.HandshakeTimeout, conn.HandshakeTimeout)
	fixDuration(&c.Connection.PollInterval, conn.PollInterval)
	fixDuration(&c.Connection.HeartbeatInterval, conn.HeartbeatInterval)
	fixDuration(&c.Connection.CallbackTimeout, conn.CallbackTimeout)
	if c.Connection.RetryBackoff != BackoffFixed && c.Connection.RetryBackoff != BackoffExponential {
		c.Connection.RetryBackoff = conn.RetryBackoff
	}
	if c.Connection.MaxRetryInterval < c.Connection.RetryInterval {
		c.Connection.MaxRetryInterval, c.Connection.RetryInterval = c.Connection.RetryInterval, c.Connection.MaxRetryInterval
	}
	if c.Connection.MaxFrameSize <= 0 {
		c.Connection.MaxFrameSize = conn.MaxFrameSize
	}

	mb := DefaultMailboxConfig()
	if c.Mailbox.OutboxCapacity <= 0 {
		c.Mailbox.OutboxCapacity = mb.OutboxCapacity
	}
	if c.Mailbox.InboxCapacity <= 0 {
		c.Mailbox.InboxCapacity = mb.InboxCapacity
	}
	if c.Mailbox.OverflowPolicy != OverflowReject && c.Mailbox.OverflowPolicy != OverflowBlock {
		c.Mailbox.OverflowPolicy = mb.OverflowPolicy
	}
	fixDuration(&c.Mailbox.BlockTimeout, mb.BlockTimeout)

	aq := DefaultActiveQueueConfig()
	if c.ActiveQueue.Capacity <= 0 {
		c.ActiveQueue.Capacity = aq.Capacity
	}
	if c.ActiveQueue.RegistryCacheSize <= 0 {
		c.ActiveQueue.RegistryCacheSize = aq.RegistryCacheSize
	}

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validation failed after fixes: %w", err)
	}
	return c, nil
}

func fixDuration(d *Duration, def Duration) {
	if *d <= 0 {
		*d = def
	}
}

// MustValidate 验证配置，如果失败则 panic
//
// 仅用于初始化阶段或测试代码。
func MustValidate(c *Config) {
	if err := c.Validate(); err != nil {
		panic(fmt.Sprintf("config validation failed: %v", err))
	}
}
