// Package moostime 提供进程级的 MOOS 时间
//
// 进程内所有客户端共享同一个时间加速因子（time warp）和同一个时钟偏差（skew）：
//   - LocalTime 只读本地时钟，可选应用时间加速，从不应用偏差
//   - Time 在 LocalTime 的基础上加上由服务端校正得到的偏差
//
// 所有读操作都是一次原子读取，可以在任意 goroutine 中调用，不需要连接。
// 修改操作（SetTimeWarp / SetSkew / SetClock）之间互斥。
package moostime

import (
	"encoding/binary"
	"errors"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/benbjohnson/clock"
)

// ErrInvalidWarp 时间加速因子必须为正的有限数
var ErrInvalidWarp = errors.New("moostime: time warp must be a positive finite number")

// anchor 时间加速锚点
//
// 加速后的时间 = warped + (now - real) * warp，保证修改加速因子时时间连续。
type anchor struct {
	clk    clock.Clock
	warp   float64
	real   time.Time
	warped float64
}

var (
	mu       sync.Mutex
	current  atomic.Pointer[anchor]
	skewBits atomic.Uint64
)

func init() {
	c := clock.New()
	now := c.Now()
	current.Store(&anchor{clk: c, warp: 1, real: now, warped: Seconds(now)})
}

// Seconds 把 time.Time 转换为 unix 秒（浮点）
func Seconds(t time.Time) float64 {
	return float64(t.UnixNano()) / 1e9
}

// FromSeconds 把 unix 秒（浮点）转换为 time.Time
func FromSeconds(s float64) time.Time {
	sec, frac := math.Modf(s)
	return time.Unix(int64(sec), int64(frac*1e9))
}

// LocalTime 本地时间（unix 秒）
//
// applyWarp 为 true 时应用时间加速因子。从不应用服务端偏差。
func LocalTime(applyWarp bool) float64 {
	a := current.Load()
	now := a.clk.Now()
	if !applyWarp {
		return Seconds(now)
	}
	return a.warped + now.Sub(a.real).Seconds()*a.warp
}

// Time MOOS 时间：LocalTime 加上服务端校正偏差
func Time(applyWarp bool) float64 {
	return LocalTime(applyWarp) + Skew()
}

// Now 等价于 Time(true)
func Now() float64 {
	return Time(true)
}

// SetTimeWarp 设置时间加速因子
func SetTimeWarp(warp float64) error {
	if !(warp > 0) || math.IsInf(warp, 0) {
		return ErrInvalidWarp
	}
	mu.Lock()
	defer mu.Unlock()

	a := current.Load()
	now := a.clk.Now()
	current.Store(&anchor{
		clk:    a.clk,
		warp:   warp,
		real:   now,
		warped: a.warped + now.Sub(a.real).Seconds()*a.warp,
	})
	return nil
}

// TimeWarp 当前时间加速因子
func TimeWarp() float64 {
	return current.Load().warp
}

// SetSkew 设置时钟偏差（秒），由连接管理器在时钟校正时调用
func SetSkew(skew float64) {
	skewBits.Store(math.Float64bits(skew))
}

// Skew 当前时钟偏差（秒）
func Skew() float64 {
	return math.Float64frombits(skewBits.Load())
}

// SetClock 替换时钟源（用于测试），返回恢复函数
//
// 替换后锚点重置到新时钟的当前时间，加速因子保留。
func SetClock(c clock.Clock) (restore func()) {
	mu.Lock()
	defer mu.Unlock()

	prev := current.Load()
	now := c.Now()
	current.Store(&anchor{clk: c, warp: prev.warp, real: now, warped: Seconds(now)})

	return func() {
		mu.Lock()
		defer mu.Unlock()
		current.Store(prev)
	}
}

// Clock 返回当前时钟源
func Clock() clock.Clock {
	return current.Load().clk
}

// IsLittleEndian 本机是否为小端字节序
func IsLittleEndian() bool {
	return binary.NativeEndian.Uint16([]byte{1, 0}) == 1
}
