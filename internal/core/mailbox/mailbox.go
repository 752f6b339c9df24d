package mailbox

import (
	"github.com/benbjohnson/clock"

	"github.com/mooscomms/go-mooscomms/config"
	"github.com/mooscomms/go-mooscomms/pkg/types"
)

// Outbox 发件箱：发布者写入，I/O goroutine 取出发送
type Outbox = Queue[*types.Message]

// Inbox 收件箱：I/O goroutine 写入，Fetch 取出
type Inbox = Queue[*types.Message]

// NewOutbox 按配置创建发件箱
func NewOutbox(cfg config.MailboxConfig, clk clock.Clock) *Outbox {
	return New[*types.Message](OptionsFromConfig(cfg, clk))
}

// NewInbox 按配置创建收件箱
//
// I/O goroutine 不能因为用户不取邮件而阻塞，收件箱始终采用拒绝策略，
// 丢弃的消息计入 Dropped。
func NewInbox(cfg config.MailboxConfig) *Inbox {
	return New[*types.Message](Options{Capacity: cfg.InboxCapacity, Policy: PolicyReject})
}
