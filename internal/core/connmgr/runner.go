package connmgr

import (
	"sync/atomic"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/mooscomms/go-mooscomms/pkg/types"
)

// callbackRunner 受限执行 on_connect / on_mail
//
// 回调在独立 goroutine 中运行，调用方最多等待 timeout；stop 关闭时立即放弃等待。
// 被放弃的回调继续运行直到返回，结果被丢弃；在它返回之前新的回调不会启动。
type callbackRunner struct {
	clk     clock.Clock
	timeout time.Duration
	onError types.ErrorHandler

	// 有回调 goroutine 尚未返回
	busy atomic.Bool
}

type callResult struct {
	ok  bool
	err error
}

// Run 执行回调，返回回调结果；completed 为 false 表示超时、被放弃或被跳过
//
// 上一次被放弃的回调仍在运行时直接跳过，回调之间不会重叠。
func (r *callbackRunner) Run(kind types.CallbackKind, fn func() bool, stop <-chan struct{}) (ok, completed bool) {
	if !r.busy.CompareAndSwap(false, true) {
		logger.Debug("上一次回调仍在运行，跳过", "kind", kind.String())
		return false, false
	}

	result := make(chan callResult, 1)
	go func() {
		ok, err := types.SafeCall(kind, "", fn)
		r.busy.Store(false)
		result <- callResult{ok: ok, err: err}
	}()

	timer := r.clk.Timer(r.timeout)
	defer timer.Stop()

	select {
	case res := <-result:
		if res.err != nil {
			logger.Error("回调 panic", "kind", kind.String(), "error", res.err)
			r.report(res.err)
			return false, true
		}
		return res.ok, true
	case <-timer.C:
		logger.Warn("回调超时", "kind", kind.String(), "timeout", r.timeout)
		r.report(&types.CallbackError{Kind: kind, Err: types.ErrCallbackTimeout})
		return false, false
	case <-stop:
		return false, false
	}
}

func (r *callbackRunner) report(err error) {
	if r.onError != nil {
		r.onError(err)
	}
}
