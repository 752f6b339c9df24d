package activequeue

import (
	"context"

	"go.uber.org/fx"

	"github.com/mooscomms/go-mooscomms/config"
)

// ModuleInput 定义模块输入依赖
type ModuleInput struct {
	fx.In

	UnifiedCfg *config.Config `optional:"true"`
	OnError    ErrorHandler   `optional:"true"`
}

// ConfigFromUnified 从统一配置创建路由器配置
func ConfigFromUnified(cfg *config.Config) Config {
	if cfg == nil {
		return DefaultConfig()
	}
	return Config{Capacity: cfg.ActiveQueue.Capacity}
}

// ProvideRouter 提供路由器
func ProvideRouter(input ModuleInput) *Router {
	return NewRouter(ConfigFromUnified(input.UnifiedCfg), input.OnError)
}

// Module 返回 fx 模块配置
func Module() fx.Option {
	return fx.Module("activequeue",
		fx.Provide(ProvideRouter),
		fx.Invoke(registerLifecycle),
	)
}

// lifecycleInput 生命周期输入参数
type lifecycleInput struct {
	fx.In
	LC     fx.Lifecycle
	Router *Router
}

// registerLifecycle 注册生命周期：停止时等待所有 worker 退出
func registerLifecycle(input lifecycleInput) {
	input.LC.Append(fx.Hook{
		OnStop: func(_ context.Context) error {
			return input.Router.Close()
		},
	})
}
