package lifecycle

import (
	"go.uber.org/fx"
)

// Module 返回 Fx 模块，为每个客户端提供一个状态追踪器
func Module() fx.Option {
	return fx.Module("lifecycle",
		fx.Provide(NewTracker),
	)
}
