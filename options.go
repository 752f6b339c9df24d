package mooscomms

import (
	"fmt"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/fx"

	"github.com/mooscomms/go-mooscomms/config"
	"github.com/mooscomms/go-mooscomms/internal/core/connmgr"
	"github.com/mooscomms/go-mooscomms/pkg/types"
)

// Option 用户配置选项函数
type Option func(*clientConfig) error

// clientConfig 内部选项结构
type clientConfig struct {
	// config 统一配置
	config *config.Config

	// dialer 自定义拨号器（默认使用 TCP 传输层）
	dialer connmgr.Dialer

	// clock 时钟源（测试用）
	clock clock.Clock

	// onError 回调错误处理函数
	onError types.ErrorHandler

	// errorBuffer Errors() channel 的容量
	errorBuffer int

	// startTimeout Fx 应用启动/停止超时
	startTimeout time.Duration

	// userFxOptions 用户扩展
	userFxOptions []fx.Option
}

func newClientConfig() *clientConfig {
	return &clientConfig{
		config:       config.NewConfig(),
		errorBuffer:  64,
		startTimeout: 15 * time.Second,
	}
}

// ════════════════════════════════════════════════════════════════════════════
//                              配置
// ════════════════════════════════════════════════════════════════════════════

// WithConfig 使用完整配置（覆盖之前的配置选项）
func WithConfig(cfg *config.Config) Option {
	return func(c *clientConfig) error {
		if cfg == nil {
			return fmt.Errorf("%w: config", ErrNilOption)
		}
		c.config = config.CloneConfig(cfg)
		return nil
	}
}

// WithConfigFile 从 JSON 文件加载配置
func WithConfigFile(path string) Option {
	return func(c *clientConfig) error {
		cfg, err := config.LoadFile(path)
		if err != nil {
			return err
		}
		c.config = cfg
		return nil
	}
}

// WithPreset 应用预设配置（default / realtime / lowpower）
func WithPreset(name string) Option {
	return func(c *clientConfig) error {
		return config.ApplyPreset(c.config, name)
	}
}

// WithRetryInterval 设置重连间隔
func WithRetryInterval(d time.Duration) Option {
	return func(c *clientConfig) error {
		c.config.Connection.RetryInterval = config.Duration(d)
		return nil
	}
}

// WithPollInterval 设置 I/O 循环轮询周期
func WithPollInterval(d time.Duration) Option {
	return func(c *clientConfig) error {
		c.config.Connection.PollInterval = config.Duration(d)
		return nil
	}
}

// WithCallbackTimeout 设置 on_connect / on_mail 的最长执行时间
func WithCallbackTimeout(d time.Duration) Option {
	return func(c *clientConfig) error {
		c.config.Connection.CallbackTimeout = config.Duration(d)
		return nil
	}
}

// WithOnMailPerMessage 每条邮件触发一次 on_mail
func WithOnMailPerMessage(enabled bool) Option {
	return func(c *clientConfig) error {
		c.config.Connection.OnMailPerMessage = enabled
		return nil
	}
}

// WithLocalTimeCorrection 是否根据服务端时间校正时钟偏差
func WithLocalTimeCorrection(enabled bool) Option {
	return func(c *clientConfig) error {
		c.config.Time.LocalTimeCorrection = enabled
		return nil
	}
}

// ════════════════════════════════════════════════════════════════════════════
//                              依赖注入
// ════════════════════════════════════════════════════════════════════════════

// WithDialer 使用自定义拨号器
func WithDialer(d connmgr.Dialer) Option {
	return func(c *clientConfig) error {
		if d == nil {
			return fmt.Errorf("%w: dialer", ErrNilOption)
		}
		c.dialer = d
		return nil
	}
}

// WithClock 使用自定义时钟（发件箱阻塞超时、重连退避、速率统计）
func WithClock(clk clock.Clock) Option {
	return func(c *clientConfig) error {
		if clk == nil {
			return fmt.Errorf("%w: clock", ErrNilOption)
		}
		c.clock = clk
		return nil
	}
}

// WithErrorHandler 设置回调错误处理函数
//
// 处理函数在产生错误的 goroutine（I/O goroutine 或队列 worker）中同步调用，不能阻塞。
func WithErrorHandler(fn func(error)) Option {
	return func(c *clientConfig) error {
		c.onError = fn
		return nil
	}
}

// WithErrorBuffer 设置 Errors() channel 的容量，满时丢弃最旧的错误
func WithErrorBuffer(n int) Option {
	return func(c *clientConfig) error {
		if n < 1 {
			return fmt.Errorf("mooscomms: error buffer must be positive, got %d", n)
		}
		c.errorBuffer = n
		return nil
	}
}

// WithFxOptions 追加 Fx 选项
func WithFxOptions(opts ...fx.Option) Option {
	return func(c *clientConfig) error {
		c.userFxOptions = append(c.userFxOptions, opts...)
		return nil
	}
}
