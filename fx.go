package mooscomms

import (
	"fmt"

	"github.com/benbjohnson/clock"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"

	"github.com/mooscomms/go-mooscomms/internal/core/activequeue"
	"github.com/mooscomms/go-mooscomms/internal/core/connmgr"
	"github.com/mooscomms/go-mooscomms/internal/core/lifecycle"
	"github.com/mooscomms/go-mooscomms/internal/core/mailbox"
	"github.com/mooscomms/go-mooscomms/internal/core/metrics"
	"github.com/mooscomms/go-mooscomms/internal/core/registry"
	"github.com/mooscomms/go-mooscomms/internal/core/transport"
	"github.com/mooscomms/go-mooscomms/pkg/types"
)

// buildFxApp 构建 Fx 应用
//
// 加载顺序（按依赖）：
//  1. 配置与错误处理
//  2. 状态追踪、登记表、邮箱、统计
//  3. 活动队列路由器
//  4. 传输层与连接管理器
//  5. 用户扩展
//
// 停止时按相反顺序执行 OnStop：先关闭连接管理器，再关闭传输层，最后停止队列 worker。
func buildFxApp(cfg *clientConfig, c *Client) (*fx.App, error) {
	// ════════════════════════════════════════════════════════════════════════
	// 1. 配置验证（前置）
	// ════════════════════════════════════════════════════════════════════════
	if err := cfg.config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	modules := []fx.Option{
		// 配置注入
		fx.Supply(cfg.config),

		// 回调错误汇集到 Client
		fx.Provide(func() types.ErrorHandler { return c.reportError }),
	}

	// ════════════════════════════════════════════════════════════════════════
	// 2. 可替换的依赖
	// ════════════════════════════════════════════════════════════════════════
	if cfg.clock != nil {
		clk := cfg.clock
		modules = append(modules, fx.Provide(func() clock.Clock { return clk }))
	}
	if cfg.dialer != nil {
		d := cfg.dialer
		modules = append(modules, fx.Provide(func() connmgr.Dialer { return d }))
	}

	// ════════════════════════════════════════════════════════════════════════
	// 3. 核心模块
	// ════════════════════════════════════════════════════════════════════════
	modules = append(modules,
		lifecycle.Module(),
		registry.Module(),
		mailbox.Module(),
		metrics.Module(),
		activequeue.Module(),
		transport.Module(),
		connmgr.Module(),
	)

	// ════════════════════════════════════════════════════════════════════════
	// 4. 用户扩展（Fx Options）
	// ════════════════════════════════════════════════════════════════════════
	if len(cfg.userFxOptions) > 0 {
		modules = append(modules, cfg.userFxOptions...)
	}

	// ════════════════════════════════════════════════════════════════════════
	// 5. Client 组件注入
	// ════════════════════════════════════════════════════════════════════════
	modules = append(modules, fx.Invoke(injectClientComponents(c)))

	// ════════════════════════════════════════════════════════════════════════
	// 6. Fx 配置
	// ════════════════════════════════════════════════════════════════════════
	modules = append(modules,
		// 禁用 Fx 日志输出（避免干扰用户日志）
		fx.WithLogger(func() fxevent.Logger {
			return &fxevent.ZapLogger{Logger: zap.NewNop()}
		}),
	)

	app := fx.New(modules...)
	if err := app.Err(); err != nil {
		return nil, err
	}
	return app, nil
}

// clientInjectParams Client 组件注入参数
type clientInjectParams struct {
	fx.In

	Manager   *connmgr.Manager
	Router    *activequeue.Router
	Registry  *registry.Registry
	Mailboxes *mailbox.Mailboxes
	Tracker   *lifecycle.Tracker
	Counter   *metrics.CommsCounter
}

// injectClientComponents 创建 Client 组件注入函数
func injectClientComponents(c *Client) interface{} {
	return func(p clientInjectParams) {
		c.mgr = p.Manager
		c.router = p.Router
		c.reg = p.Registry
		c.boxes = p.Mailboxes
		c.tracker = p.Tracker
		c.counter = p.Counter
	}
}
