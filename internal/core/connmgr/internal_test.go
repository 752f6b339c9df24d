package connmgr

import (
	"errors"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mooscomms/go-mooscomms/config"
	"github.com/mooscomms/go-mooscomms/pkg/types"
)

// ============================================================================
//                              退避
// ============================================================================

func TestBackoff_Fixed(t *testing.T) {
	b := newBackoff(config.BackoffFixed, time.Second, 10*time.Second)
	for i := 0; i < 5; i++ {
		assert.Equal(t, time.Second, b.Next())
	}
	assert.Equal(t, 5, b.Attempts())
}

func TestBackoff_ExponentialCapped(t *testing.T) {
	b := newBackoff(config.BackoffExponential, time.Second, 5*time.Second)

	want := []time.Duration{time.Second, 2 * time.Second, 4 * time.Second, 5 * time.Second, 5 * time.Second}
	for _, w := range want {
		assert.Equal(t, w, b.Next())
	}

	b.Reset()
	assert.Equal(t, 0, b.Attempts())
	assert.Equal(t, time.Second, b.Next())
}

// ============================================================================
//                              刷新限速
// ============================================================================

func TestFlushGate_DisabledWhenFactorZero(t *testing.T) {
	g := newFlushGate(clock.NewMock())
	for i := 0; i < 10; i++ {
		assert.True(t, g.Allow(0, 100))
	}
	assert.Zero(t, g.Spacing())
}

func TestFlushGate_SpacingScalesWithWarp(t *testing.T) {
	mock := clock.NewMock()
	g := newFlushGate(mock)

	// factor 10 * warp 5 = 50ms
	assert.True(t, g.Allow(10, 5))
	assert.Equal(t, 50*time.Millisecond, g.Spacing())
	assert.False(t, g.Allow(10, 5))

	mock.Add(49 * time.Millisecond)
	assert.False(t, g.Allow(10, 5))
	mock.Add(time.Millisecond)
	assert.True(t, g.Allow(10, 5))

	// 加速比变化后按新间隔重新计算
	assert.True(t, g.Allow(10, 1))
	assert.Equal(t, 10*time.Millisecond, g.Spacing())
}

// ============================================================================
//                              回调执行
// ============================================================================

func TestCallbackRunner_Result(t *testing.T) {
	r := &callbackRunner{clk: clock.New(), timeout: time.Second}

	ok, completed := r.Run(types.CallbackOnMail, func() bool { return true }, nil)
	assert.True(t, ok)
	assert.True(t, completed)

	ok, completed = r.Run(types.CallbackOnMail, func() bool { return false }, nil)
	assert.False(t, ok)
	assert.True(t, completed)
}

func TestCallbackRunner_PanicReported(t *testing.T) {
	var reported error
	r := &callbackRunner{clk: clock.New(), timeout: time.Second, onError: func(err error) { reported = err }}

	sentinel := errors.New("kaput")
	ok, completed := r.Run(types.CallbackOnConnect, func() bool { panic(sentinel) }, nil)
	assert.False(t, ok)
	assert.True(t, completed)

	var ce *types.CallbackError
	require.ErrorAs(t, reported, &ce)
	assert.Equal(t, types.CallbackOnConnect, ce.Kind)
	assert.ErrorIs(t, reported, sentinel)
}

func TestCallbackRunner_Timeout(t *testing.T) {
	mock := clock.NewMock()
	var reported error
	r := &callbackRunner{clk: mock, timeout: time.Second, onError: func(err error) { reported = err }}

	release := make(chan struct{})
	done := make(chan struct{})
	go func() {
		defer close(done)
		ok, completed := r.Run(types.CallbackOnMail, func() bool {
			<-release
			return true
		}, nil)
		assert.False(t, ok)
		assert.False(t, completed)
	}()

	require.Eventually(t, func() bool {
		mock.Add(100 * time.Millisecond)
		select {
		case <-done:
			return true
		default:
			return false
		}
	}, 2*time.Second, time.Millisecond)
	close(release)

	assert.ErrorIs(t, reported, types.ErrCallbackTimeout)
}

func TestCallbackRunner_Abandon(t *testing.T) {
	r := &callbackRunner{clk: clock.New(), timeout: time.Hour}

	release := make(chan struct{})
	defer close(release)
	stop := make(chan struct{})
	close(stop)

	ok, completed := r.Run(types.CallbackOnConnect, func() bool {
		<-release
		return true
	}, stop)
	assert.False(t, ok)
	assert.False(t, completed)
}

func TestCallbackRunner_SkipsWhileAbandonedCallRuns(t *testing.T) {
	mock := clock.NewMock()
	r := &callbackRunner{clk: mock, timeout: time.Second}

	release := make(chan struct{})
	finished := make(chan struct{})
	done := make(chan struct{})
	go func() {
		defer close(done)
		_, completed := r.Run(types.CallbackOnMail, func() bool {
			defer close(finished)
			<-release
			return true
		}, nil)
		assert.False(t, completed)
	}()

	require.Eventually(t, func() bool {
		mock.Add(100 * time.Millisecond)
		select {
		case <-done:
			return true
		default:
			return false
		}
	}, 2*time.Second, time.Millisecond)

	// 第一次回调已超时但仍在运行
	var calls int
	ok, completed := r.Run(types.CallbackOnMail, func() bool {
		calls++
		return true
	}, nil)
	assert.False(t, ok)
	assert.False(t, completed)
	assert.Zero(t, calls)

	close(release)
	<-finished
	require.Eventually(t, func() bool { return !r.busy.Load() }, 2*time.Second, time.Millisecond)

	ok, completed = r.Run(types.CallbackOnMail, func() bool {
		calls++
		return true
	}, nil)
	assert.True(t, ok)
	assert.True(t, completed)
	assert.Equal(t, 1, calls)
}

func TestConfigFromUnified(t *testing.T) {
	cfg := config.NewConfig()
	cfg.Connection.RetryBackoff = config.BackoffExponential
	cfg.Connection.OnMailPerMessage = true
	cfg.Time.LocalTimeCorrection = false
	cfg.Time.CommsControlTimeWarpScaleFactor = 3

	c := ConfigFromUnified(cfg)
	assert.Equal(t, config.BackoffExponential, c.Backoff)
	assert.True(t, c.OnMailPerMessage)
	assert.False(t, c.LocalTimeCorrection)
	assert.Equal(t, 3.0, c.CommsControlTimeWarpScaleFactor)
	assert.Equal(t, time.Second, c.RetryInterval)

	var zero Config
	zero.normalize()
	assert.Equal(t, config.BackoffFixed, zero.Backoff)
	assert.Equal(t, zero.HandshakeTimeout, zero.WriteTimeout)
	assert.Positive(t, zero.PollInterval)
}
