package transport

import (
	"context"

	"go.uber.org/fx"

	"github.com/mooscomms/go-mooscomms/config"
	"github.com/mooscomms/go-mooscomms/internal/core/transport/tcp"
	"github.com/mooscomms/go-mooscomms/pkg/lib/log"
)

var logger = log.Logger("core/transport")

// ConfigFromUnified 从统一配置创建 TCP 传输配置
func ConfigFromUnified(cfg *config.Config) tcp.Config {
	tc := tcp.DefaultConfig()
	if cfg == nil {
		return tc
	}
	tc.DialTimeout = cfg.Connection.DialTimeout.Duration()
	tc.MaxFrameSize = cfg.Connection.MaxFrameSize
	return tc
}

// ModuleInput 定义模块输入依赖
type ModuleInput struct {
	fx.In

	UnifiedCfg *config.Config `optional:"true"`
}

// ProvideTransport 提供 TCP 传输层
func ProvideTransport(input ModuleInput) *tcp.Transport {
	cfg := ConfigFromUnified(input.UnifiedCfg)
	logger.Debug("创建 TCP 传输", "dialTimeout", cfg.DialTimeout, "maxFrameSize", cfg.MaxFrameSize)
	return tcp.NewTransport(cfg)
}

// Module 返回 Fx 模块
func Module() fx.Option {
	return fx.Module("transport",
		fx.Provide(ProvideTransport),
		fx.Invoke(registerLifecycle),
	)
}

// lifecycleInput 生命周期输入参数
type lifecycleInput struct {
	fx.In
	LC        fx.Lifecycle
	Transport *tcp.Transport
}

// registerLifecycle 注册生命周期钩子
func registerLifecycle(input lifecycleInput) {
	input.LC.Append(fx.Hook{
		OnStop: func(_ context.Context) error {
			return input.Transport.Close()
		},
	})
}
