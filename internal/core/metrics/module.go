package metrics

import (
	"github.com/benbjohnson/clock"
	"go.uber.org/fx"

	"github.com/mooscomms/go-mooscomms/config"
)

// Params Metrics 依赖参数
type Params struct {
	fx.In

	UnifiedCfg *config.Config `optional:"true"`
	Clock      clock.Clock    `optional:"true"`
}

// NewCommsCounterFromParams 从参数创建计数器
func NewCommsCounterFromParams(p Params) *CommsCounter {
	enabled := true
	if p.UnifiedCfg != nil {
		enabled = p.UnifiedCfg.Metrics.Enabled
	}
	return NewCommsCounter(enabled, p.Clock)
}

// Module 返回 metrics 的 Fx 模块
//
// 同时导出 *CommsCounter 和 Reporter 接口。
func Module() fx.Option {
	return fx.Module("metrics",
		fx.Provide(
			NewCommsCounterFromParams,
			func(c *CommsCounter) Reporter { return c },
		),
	)
}
