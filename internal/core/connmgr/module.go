package connmgr

import (
	"context"

	"github.com/benbjohnson/clock"
	"go.uber.org/fx"

	"github.com/mooscomms/go-mooscomms/config"
	"github.com/mooscomms/go-mooscomms/internal/core/activequeue"
	"github.com/mooscomms/go-mooscomms/internal/core/lifecycle"
	"github.com/mooscomms/go-mooscomms/internal/core/mailbox"
	"github.com/mooscomms/go-mooscomms/internal/core/metrics"
	"github.com/mooscomms/go-mooscomms/internal/core/registry"
	"github.com/mooscomms/go-mooscomms/internal/core/transport/tcp"
	"github.com/mooscomms/go-mooscomms/pkg/types"
)

// ModuleInput 定义模块输入依赖
type ModuleInput struct {
	fx.In

	UnifiedCfg *config.Config      `optional:"true"`
	Dialer     Dialer              `optional:"true"`
	Transport  *tcp.Transport      `optional:"true"`
	Registry   *registry.Registry  `optional:"true"`
	Router     *activequeue.Router `optional:"true"`
	Mailboxes  *mailbox.Mailboxes  `optional:"true"`
	Tracker    *lifecycle.Tracker  `optional:"true"`
	Reporter   metrics.Reporter    `optional:"true"`
	Clock      clock.Clock         `optional:"true"`
	OnError    types.ErrorHandler  `optional:"true"`
}

// ProvideManager 从依赖创建连接管理器
//
// 显式提供的 Dialer 优先于 *tcp.Transport。
func ProvideManager(input ModuleInput) (*Manager, error) {
	p := Params{
		Dialer:   input.Dialer,
		Registry: input.Registry,
		Router:   input.Router,
		Tracker:  input.Tracker,
		Reporter: input.Reporter,
		Clock:    input.Clock,
		OnError:  input.OnError,
	}
	if p.Dialer == nil && input.Transport != nil {
		p.Dialer = input.Transport
	}
	if input.Mailboxes != nil {
		p.Outbox = input.Mailboxes.Outbox
		p.Inbox = input.Mailboxes.Inbox
	}
	return New(ConfigFromUnified(input.UnifiedCfg), p)
}

// Module 返回 fx 模块配置
func Module() fx.Option {
	return fx.Module("connmgr",
		fx.Provide(ProvideManager),
		fx.Invoke(registerLifecycle),
	)
}

// lifecycleInput 生命周期输入参数
type lifecycleInput struct {
	fx.In
	LC      fx.Lifecycle
	Manager *Manager
}

// registerLifecycle 注册生命周期：停止时优雅关闭
func registerLifecycle(input lifecycleInput) {
	input.LC.Append(fx.Hook{
		OnStop: func(_ context.Context) error {
			return input.Manager.Close(true)
		},
	})
}
