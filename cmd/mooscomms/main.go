// Package main 提供 mooscomms 命令行客户端
//
// 连接一个 MOOSDB，订阅若干变量并打印收到的邮件，可选地周期性发布变量。
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	mooscomms "github.com/mooscomms/go-mooscomms"
	"github.com/mooscomms/go-mooscomms/internal/testbroker"
	"github.com/mooscomms/go-mooscomms/pkg/lib/log"
	"github.com/mooscomms/go-mooscomms/pkg/moostime"
	"github.com/mooscomms/go-mooscomms/pkg/types"
)

var logger = log.Logger("mooscomms/cmd")

// version 由 -ldflags "-X main.version=..." 注入
var version = "dev"

// ═══════════════════════════════════════════════════════════════════════════
// 命令行参数
// ═══════════════════════════════════════════════════════════════════════════
//
// 优先级：命令行参数 > 环境变量（MOOSCOMMS_*）> 配置文件 > 预设默认值
//
// ═══════════════════════════════════════════════════════════════════════════
var (
	// ─────────────────────────────────────────────────────────────────────
	// 连接参数
	// ─────────────────────────────────────────────────────────────────────
	server     = flag.String("server", "localhost", "MOOSDB 主机名")
	port       = flag.Int("port", 9000, "MOOSDB 端口")
	name       = flag.String("name", "", "进程名（默认 umm-<pid>）")
	configFile = flag.String("config", "", "JSON 配置文件路径")
	preset     = flag.String("preset", mooscomms.PresetNameDefault, "预设配置 (default/realtime/lowpower)")
	demo       = flag.Bool("demo-server", false, "在进程内启动一个演示服务端并连接它")

	// ─────────────────────────────────────────────────────────────────────
	// 订阅与发布
	// ─────────────────────────────────────────────────────────────────────
	register = flag.String("register", "", "订阅的变量，逗号分隔，支持 * 和 ? 通配")
	period   = flag.Duration("period", 0, "重复发布的周期（0 = 只发布一次）")
	useQueue = flag.Bool("queue", false, "通过活动队列而不是 Fetch 接收邮件")
	timewarp = flag.Float64("timewarp", 1, "MOOS 时间加速因子")
	notifies notifyList

	// ─────────────────────────────────────────────────────────────────────
	// 日志与信息
	// ─────────────────────────────────────────────────────────────────────
	logLevel    = flag.String("log-level", "warn", "日志级别 (debug/info/warn/error)")
	logFormat   = flag.String("log-format", "text", "日志格式 (text/json)")
	showVersion = flag.Bool("version", false, "显示版本信息")
)

func init() {
	flag.Var(&notifies, "notify", "发布 KEY=VALUE，可重复；VALUE 能解析为数字时按 double 发布")
}

func main() {
	flag.Parse()

	if *showVersion {
		fmt.Printf("mooscomms %s\n", version)
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "错误: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, out io.Writer) error {
	if err := log.Setup(os.Stderr, *logLevel, *logFormat); err != nil {
		return err
	}

	rt := runtimeConfig{
		server:   *server,
		port:     *port,
		name:     *name,
		preset:   *preset,
		register: splitAndTrim(*register, ","),
	}
	applyEnvOverrides(&rt)
	if rt.name == "" {
		rt.name = fmt.Sprintf("umm-%d", os.Getpid())
	}

	if *timewarp != 1 {
		if err := moostime.SetTimeWarp(*timewarp); err != nil {
			return err
		}
	}

	// ═══════════════════════════════════════════════════════════════════
	// 演示服务端
	// ═══════════════════════════════════════════════════════════════════
	if *demo {
		b, err := testbroker.Start(testbroker.WithCommunity("demo"))
		if err != nil {
			return fmt.Errorf("启动演示服务端失败: %w", err)
		}
		defer func() { _ = b.Close() }()
		rt.server, rt.port = b.Addr().Host, b.Addr().Port
		fmt.Fprintf(out, "演示服务端监听 %s\n", b.Addr())
	}

	opts, err := buildOptions(rt, *configFile)
	if err != nil {
		return fmt.Errorf("配置错误: %w", err)
	}

	c, err := mooscomms.New(ctx, opts...)
	if err != nil {
		return err
	}
	defer func() { _ = c.Close(true) }()

	p := &printer{out: out}
	if err := subscribe(c, rt.register, *useQueue, p); err != nil {
		return err
	}
	c.SetOnConnect(func() bool {
		p.printf("已连接 %s（社区 %s）\n", c.ServerAddress(), c.Community())
		return true
	})

	logger.Info("启动客户端", "server", rt.server, "port", rt.port, "name", rt.name, "version", version)
	if err := c.Run(rt.server, rt.port, rt.name); err != nil {
		return err
	}

	return loop(ctx, c, p, notifies, *period)
}

// subscribe 登记订阅；queue 为 true 时把精确变量名路由到活动队列 "print"
func subscribe(c *mooscomms.Client, names []string, queue bool, p *printer) error {
	if queue {
		if err := c.AddActiveQueue("print", func(m *mooscomms.Message) bool {
			p.message(m)
			return true
		}); err != nil {
			return err
		}
	}
	for _, n := range names {
		if types.HasWildcards(n) {
			if err := c.RegisterWildcard(n, "*", 0); err != nil {
				return err
			}
			continue
		}
		if err := c.Register(n, 0); err != nil {
			return err
		}
		if queue {
			if err := c.AddMessageRoute("print", n); err != nil {
				return err
			}
		}
	}
	return nil
}

// loop 发布、收件和错误打印，直到 ctx 结束
func loop(ctx context.Context, c *mooscomms.Client, p *printer, pubs notifyList, every time.Duration) error {
	publish := func() {
		for _, n := range pubs {
			if err := c.Notify(n.key, n.value()); err != nil {
				p.printf("发布 %s 失败: %v\n", n.key, err)
			}
		}
	}
	publish()

	var tick <-chan time.Time
	if every > 0 && len(pubs) > 0 {
		t := time.NewTicker(every)
		defer t.Stop()
		tick = t.C
	}

	poll := time.NewTicker(50 * time.Millisecond)
	defer poll.Stop()

	for {
		select {
		case <-ctx.Done():
			p.printf("\n正在关闭...\n")
			if errors.Is(ctx.Err(), context.Canceled) {
				return nil
			}
			return ctx.Err()
		case <-tick:
			publish()
		case err := <-c.Errors():
			p.printf("回调错误: %v\n", err)
		case <-poll.C:
			for _, m := range c.Fetch() {
				p.message(m)
			}
		}
	}
}
