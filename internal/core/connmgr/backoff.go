package connmgr

import (
	"math"
	"time"

	"github.com/mooscomms/go-mooscomms/config"
)

// backoffMultiplier 指数退避乘数
const backoffMultiplier = 2.0

// backoff 重连延迟计算
//
// fixed 策略每次返回 initial；exponential 策略从 initial 开始按乘数增长，上限 max。
type backoff struct {
	policy  config.Backoff
	initial time.Duration
	max     time.Duration
	attempt int
}

func newBackoff(policy config.Backoff, initial, max time.Duration) *backoff {
	return &backoff{policy: policy, initial: initial, max: max}
}

// Next 返回下一次重连前的等待时间
func (b *backoff) Next() time.Duration {
	b.attempt++
	if b.policy != config.BackoffExponential {
		return b.initial
	}

	// 指数退避
	d := float64(b.initial) * math.Pow(backoffMultiplier, float64(b.attempt-1))

	// 限制最大值
	if d > float64(b.max) {
		d = float64(b.max)
	}
	return time.Duration(d)
}

// Reset 连接成功后重置
func (b *backoff) Reset() {
	b.attempt = 0
}

// Attempts 自上次重置以来的尝试次数
func (b *backoff) Attempts() int {
	return b.attempt
}
