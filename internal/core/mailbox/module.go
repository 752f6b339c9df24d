package mailbox

import (
	"github.com/benbjohnson/clock"
	"go.uber.org/fx"

	"github.com/mooscomms/go-mooscomms/config"
)

// Mailboxes 一个客户端的发件箱和收件箱
type Mailboxes struct {
	Outbox *Outbox
	Inbox  *Inbox
}

// ModuleInput 定义模块输入依赖
type ModuleInput struct {
	fx.In

	UnifiedCfg *config.Config `optional:"true"`
	Clock      clock.Clock    `optional:"true"`
}

// ProvideMailboxes 按配置创建邮箱
func ProvideMailboxes(input ModuleInput) *Mailboxes {
	cfg := config.DefaultMailboxConfig()
	if input.UnifiedCfg != nil {
		cfg = input.UnifiedCfg.Mailbox
	}
	return &Mailboxes{
		Outbox: NewOutbox(cfg, input.Clock),
		Inbox:  NewInbox(cfg),
	}
}

// Module 返回 fx 模块配置
func Module() fx.Option {
	return fx.Module("mailbox",
		fx.Provide(ProvideMailboxes),
	)
}
