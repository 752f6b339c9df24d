package config

import (
	"fmt"
	"time"
)

// OverflowPolicy 邮箱满时的处理策略
type OverflowPolicy string

const (
	// OverflowReject 立即拒绝新消息
	OverflowReject OverflowPolicy = "reject"

	// OverflowBlock 阻塞等待空位，最长 BlockTimeout
	OverflowBlock OverflowPolicy = "block"
)

// MailboxConfig 邮箱配置
type MailboxConfig struct {
	// OutboxCapacity 发件箱容量
	// 默认值: 4096
	OutboxCapacity int `json:"outbox_capacity"`

	// InboxCapacity 收件箱容量，满时丢弃最新消息并计数
	// 默认值: 4096
	InboxCapacity int `json:"inbox_capacity"`

	// OverflowPolicy 发件箱满时的策略
	// 默认值: reject
	OverflowPolicy OverflowPolicy `json:"overflow_policy"`

	// BlockTimeout OverflowBlock 策略下的最长等待
	// 默认值: 100ms
	BlockTimeout Duration `json:"block_timeout"`
}

// DefaultMailboxConfig 返回默认的邮箱配置
func DefaultMailboxConfig() MailboxConfig {
	return MailboxConfig{
		OutboxCapacity: 4096,
		InboxCapacity:  4096,
		OverflowPolicy: OverflowReject,
		BlockTimeout:   Duration(100 * time.Millisecond),
	}
}

// Validate 验证邮箱配置
func (c *MailboxConfig) Validate() error {
	if c.OutboxCapacity <= 0 {
		return fmt.Errorf("mailbox.outbox_capacity must be positive, got %d", c.OutboxCapacity)
	}
	if c.InboxCapacity <= 0 {
		return fmt.Errorf("mailbox.inbox_capacity must be positive, got %d", c.InboxCapacity)
	}
	switch c.OverflowPolicy {
	case OverflowReject:
	case OverflowBlock:
		if c.BlockTimeout <= 0 {
			return fmt.Errorf("mailbox.block_timeout must be positive with overflow_policy %q", OverflowBlock)
		}
	default:
		return fmt.Errorf("mailbox.overflow_policy must be %q or %q, got %q", OverflowReject, OverflowBlock, c.OverflowPolicy)
	}
	return nil
}
