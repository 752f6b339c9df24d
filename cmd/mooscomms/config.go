package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"sync"

	mooscomms "github.com/mooscomms/go-mooscomms"
)

// ============================================================================
//                              运行时配置（CLI 专用）
// ============================================================================

// 环境变量
const (
	envPrefix   = "MOOSCOMMS_"
	envServer   = "SERVER"
	envPort     = "PORT"
	envName     = "NAME"
	envPreset   = "PRESET"
	envRegister = "REGISTER"
)

// runtimeConfig 运行时配置（不属于 config.Config）
type runtimeConfig struct {
	server   string
	port     int
	name     string
	preset   string
	register []string
}

// applyEnvOverrides 应用环境变量覆盖
//
// 环境变量只覆盖未在命令行显式设置的参数：
//   - MOOSCOMMS_SERVER: 服务端主机名
//   - MOOSCOMMS_PORT: 服务端端口
//   - MOOSCOMMS_NAME: 进程名
//   - MOOSCOMMS_PRESET: 预设名称
//   - MOOSCOMMS_REGISTER: 订阅的变量（逗号分隔）
func applyEnvOverrides(rt *runtimeConfig) {
	if v := os.Getenv(envPrefix + envServer); v != "" && !isFlagSet("server") {
		rt.server = v
	}
	if v := os.Getenv(envPrefix + envPort); v != "" && !isFlagSet("port") {
		if p, err := strconv.Atoi(v); err == nil {
			rt.port = p
		}
	}
	if v := os.Getenv(envPrefix + envName); v != "" && !isFlagSet("name") {
		rt.name = v
	}
	if v := os.Getenv(envPrefix + envPreset); v != "" && !isFlagSet("preset") {
		rt.preset = v
	}
	if v := os.Getenv(envPrefix + envRegister); v != "" && !isFlagSet("register") {
		rt.register = splitAndTrim(v, ",")
	}
}

// buildOptions 构建客户端选项：配置文件在前，预设在后
func buildOptions(rt runtimeConfig, configPath string) ([]mooscomms.Option, error) {
	var opts []mooscomms.Option
	if configPath != "" {
		opts = append(opts, mooscomms.WithConfigFile(configPath))
	}
	switch rt.preset {
	case "", mooscomms.PresetNameDefault:
	case mooscomms.PresetNameRealtime, mooscomms.PresetNameLowPower:
		opts = append(opts, mooscomms.WithPreset(rt.preset))
	default:
		return nil, fmt.Errorf("unknown preset %q", rt.preset)
	}
	return opts, nil
}

// ============================================================================
//                              -notify 参数
// ============================================================================

type notifyArg struct {
	key string
	raw string
}

// value 能解析为数字时返回 float64，否则返回字符串
func (n notifyArg) value() any {
	if f, err := strconv.ParseFloat(n.raw, 64); err == nil {
		return f
	}
	return n.raw
}

// notifyList 可重复的 -notify KEY=VALUE 参数
type notifyList []notifyArg

func (l *notifyList) String() string {
	parts := make([]string, len(*l))
	for i, n := range *l {
		parts[i] = n.key + "=" + n.raw
	}
	return strings.Join(parts, ",")
}

func (l *notifyList) Set(s string) error {
	key, raw, ok := strings.Cut(s, "=")
	key = strings.TrimSpace(key)
	if !ok || key == "" {
		return fmt.Errorf("expected KEY=VALUE, got %q", s)
	}
	*l = append(*l, notifyArg{key: key, raw: raw})
	return nil
}

// ============================================================================
//                              输出
// ============================================================================

// printer 串行化 I/O goroutine、队列 worker 和主循环的输出
type printer struct {
	mu  sync.Mutex
	out io.Writer
}

func (p *printer) printf(format string, args ...any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintf(p.out, format, args...)
}

func (p *printer) message(m *mooscomms.Message) {
	p.printf("%s\n", m.Trace())
}

// ============================================================================
//                              辅助函数
// ============================================================================

// isFlagSet 检查命令行参数是否被显式设置
func isFlagSet(name string) bool {
	found := false
	flag.Visit(func(f *flag.Flag) {
		if f.Name == name {
			found = true
		}
	})
	return found
}

// splitAndTrim 分割字符串并去除空白
func splitAndTrim(s, sep string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, sep)
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			result = append(result, p)
		}
	}
	return result
}
