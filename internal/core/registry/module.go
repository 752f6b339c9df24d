package registry

import (
	"go.uber.org/fx"

	"github.com/mooscomms/go-mooscomms/config"
)

// ModuleInput 定义模块输入依赖
type ModuleInput struct {
	fx.In

	UnifiedCfg *config.Config `optional:"true"`
}

// ProvideRegistry 提供登记表
func ProvideRegistry(input ModuleInput) *Registry {
	size := DefaultCacheSize
	if input.UnifiedCfg != nil {
		size = input.UnifiedCfg.ActiveQueue.RegistryCacheSize
	}
	return New(size)
}

// Module 返回 fx 模块配置
func Module() fx.Option {
	return fx.Module("registry",
		fx.Provide(ProvideRegistry),
	)
}
