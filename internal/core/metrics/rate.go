package metrics

import (
	"sync"
	"time"

	"github.com/benbjohnson/clock"
)

// windowSize 滑动窗口的桶数（每桶 1 秒）
const windowSize = 60

// RateMeter 速率计算器（基于滑动窗口）
//
// 使用 60 个 1 秒桶计算最近 60 秒的平均速率。
type RateMeter struct {
	clk clock.Clock

	mu       sync.Mutex
	buckets  [windowSize]int64
	lastIdx  int
	lastTime time.Time
}

// NewRateMeter 创建速率计算器；clk 为 nil 时使用系统时钟
func NewRateMeter(clk clock.Clock) *RateMeter {
	if clk == nil {
		clk = clock.New()
	}
	return &RateMeter{clk: clk, lastTime: clk.Now()}
}

// advance 把窗口推进到当前时间，调用方必须持有 r.mu
func (r *RateMeter) advance() {
	now := r.clk.Now()
	elapsed := now.Sub(r.lastTime)
	if elapsed < time.Second {
		return
	}
	seconds := int(elapsed / time.Second)
	if seconds >= windowSize {
		r.buckets = [windowSize]int64{}
		r.lastIdx = 0
	} else {
		for i := 0; i < seconds; i++ {
			r.lastIdx = (r.lastIdx + 1) % windowSize
			r.buckets[r.lastIdx] = 0
		}
	}
	r.lastTime = r.lastTime.Add(time.Duration(seconds) * time.Second)
}

// Add 添加计数到当前桶
func (r *RateMeter) Add(n int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.advance()
	r.buckets[r.lastIdx] += n
}

// Rate 返回最近 60 秒的平均速率（每秒）
func (r *RateMeter) Rate() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.advance()

	var total int64
	for _, v := range r.buckets {
		total += v
	}
	return float64(total) / windowSize
}

// Reset 重置速率计算器
func (r *RateMeter) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.buckets = [windowSize]int64{}
	r.lastIdx = 0
	r.lastTime = r.clk.Now()
}
