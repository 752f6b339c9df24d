package connmgr

import (
	"time"

	"github.com/benbjohnson/clock"
	"golang.org/x/time/rate"
)

// flushGate 时间加速下的发件箱刷新限速
//
// 两次刷新至少间隔 factor * warp 毫秒，高加速比下消息因此成批发送。
// 只在 I/O goroutine 中使用。
type flushGate struct {
	clk     clock.Clock
	spacing time.Duration
	limiter *rate.Limiter
}

func newFlushGate(clk clock.Clock) *flushGate {
	return &flushGate{clk: clk}
}

// Allow 本次是否可以刷新
func (g *flushGate) Allow(factor, warp float64) bool {
	spacing := time.Duration(factor * warp * float64(time.Millisecond))
	if spacing <= 0 {
		g.limiter = nil
		return true
	}
	if g.limiter == nil || spacing != g.spacing {
		g.spacing = spacing
		g.limiter = rate.NewLimiter(rate.Every(spacing), 1)
	}
	return g.limiter.AllowN(g.clk.Now(), 1)
}

// Spacing 当前的最小刷新间隔，0 表示不限速
func (g *flushGate) Spacing() time.Duration {
	if g.limiter == nil {
		return 0
	}
	return g.spacing
}
