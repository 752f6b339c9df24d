package activequeue

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/fx"
	"go.uber.org/fx/fxtest"
	"go.uber.org/goleak"

	"github.com/mooscomms/go-mooscomms/config"
	"github.com/mooscomms/go-mooscomms/pkg/types"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func newRouter(t *testing.T, onError ErrorHandler) *Router {
	t.Helper()
	r := NewRouter(DefaultConfig(), onError)
	t.Cleanup(func() { _ = r.Close() })
	return r
}

func TestRouter_AddQueueDuplicate(t *testing.T) {
	r := newRouter(t, nil)
	cb := func(*types.Message) bool { return true }

	require.NoError(t, r.AddQueue("q1", cb))
	assert.ErrorIs(t, r.AddQueue("q1", cb), ErrQueueExists)
	assert.ErrorIs(t, r.AddQueue("", cb), ErrInvalidName)
	assert.ErrorIs(t, r.AddQueue("q2", nil), ErrNilCallback)
	assert.True(t, r.HasQueue("q1"))
	assert.Equal(t, []string{"q1"}, r.Queues())
}

func TestRouter_RouteToMissingQueueDoesNotMutate(t *testing.T) {
	r := newRouter(t, nil)
	require.NoError(t, r.AddQueue("q1", func(*types.Message) bool { return true }))
	require.NoError(t, r.AddRoute("q1", "nav_x"))

	before := r.Routes()
	assert.ErrorIs(t, r.AddRoute("nope", "nav_y"), ErrQueueNotFound)
	assert.ErrorIs(t, r.AddRoute("nope", "nav_x"), ErrQueueNotFound)
	assert.Equal(t, before, r.Routes())
	assert.False(t, r.HasRoute("nav_y"))
}

func TestRouter_RouteLifecycle(t *testing.T) {
	r := newRouter(t, nil)
	cb := func(*types.Message) bool { return true }
	require.NoError(t, r.AddQueue("q1", cb))
	require.NoError(t, r.AddQueue("q2", cb))

	require.NoError(t, r.AddRoute("q1", "nav_x"))
	require.NoError(t, r.AddRoute("q2", "nav_x"))
	require.NoError(t, r.AddRoute("q1", "nav_y"))
	assert.ErrorIs(t, r.AddRoute("q1", "nav_x"), ErrRouteExists)

	assert.Equal(t, "nav_x -> q1, q2\nnav_y -> q1\n", r.Routing())

	require.NoError(t, r.RemoveRoute("q2", "nav_x"))
	assert.ErrorIs(t, r.RemoveRoute("q2", "nav_x"), ErrRouteNotFound)
	assert.Equal(t, map[string][]string{"nav_x": {"q1"}, "nav_y": {"q1"}}, r.Routes())
}

func TestRouter_OrderedDeliveryOnOneWorker(t *testing.T) {
	r := newRouter(t, nil)

	var mu sync.Mutex
	var got []float64
	done := make(chan struct{})
	require.NoError(t, r.AddQueue("q1", func(m *types.Message) bool {
		mu.Lock()
		got = append(got, m.Double())
		n := len(got)
		mu.Unlock()
		if n == 100 {
			close(done)
		}
		return true
	}))
	require.NoError(t, r.AddRoute("q1", "nav_x"))

	for i := 0; i < 100; i++ {
		assert.True(t, r.Dispatch(types.NewDouble("nav_x", float64(i), 0)))
	}

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("callbacks not delivered")
	}
	mu.Lock()
	defer mu.Unlock()
	for i, v := range got {
		assert.Equal(t, float64(i), v)
	}
}

func TestRouter_DispatchUnrouted(t *testing.T) {
	r := newRouter(t, nil)
	assert.False(t, r.Dispatch(types.NewDouble("other", 1, 0)))
}

func TestRouter_RemoveWaitsForRunningCallback(t *testing.T) {
	r := newRouter(t, nil)

	entered := make(chan struct{})
	release := make(chan struct{})
	var calls atomic.Int32
	require.NoError(t, r.AddQueue("q1", func(*types.Message) bool {
		if calls.Add(1) == 1 {
			close(entered)
			<-release
		}
		return true
	}))
	require.NoError(t, r.AddRoute("q1", "nav_x"))

	r.Dispatch(types.NewDouble("nav_x", 1, 0))
	r.Dispatch(types.NewDouble("nav_x", 2, 0))
	<-entered

	removed := make(chan error, 1)
	go func() { removed <- r.RemoveQueue("q1") }()

	select {
	case <-removed:
		t.Fatal("RemoveQueue returned while callback running")
	case <-time.After(50 * time.Millisecond):
	}

	close(release)
	select {
	case err := <-removed:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("RemoveQueue did not return")
	}

	assert.False(t, r.HasQueue("q1"))
	assert.False(t, r.HasRoute("nav_x"))
	assert.Equal(t, int32(1), calls.Load(), "no callback after removal")

	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, int32(1), calls.Load())

	assert.ErrorIs(t, r.RemoveQueue("q1"), ErrQueueNotFound)
}

func TestRouter_RemoveFromOwnCallback(t *testing.T) {
	r := newRouter(t, nil)

	removed := make(chan error, 1)
	var calls atomic.Int32
	require.NoError(t, r.AddQueue("q1", func(*types.Message) bool {
		calls.Add(1)
		removed <- r.RemoveQueue("q1")
		return true
	}))
	require.NoError(t, r.AddRoute("q1", "nav_x"))

	r.Dispatch(types.NewDouble("nav_x", 1, 0))
	r.Dispatch(types.NewDouble("nav_x", 2, 0))

	select {
	case err := <-removed:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("RemoveQueue blocked inside its own callback")
	}

	assert.False(t, r.HasQueue("q1"))
	assert.False(t, r.HasRoute("nav_x"))
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, int32(1), calls.Load())

	// 名字可以立即重用
	require.NoError(t, r.AddQueue("q1", func(*types.Message) bool { return true }))
}

func TestRouter_CloseFromOwnCallback(t *testing.T) {
	r := NewRouter(DefaultConfig(), nil)
	require.NoError(t, r.AddQueue("idle", func(*types.Message) bool { return true }))

	closed := make(chan error, 1)
	require.NoError(t, r.AddQueue("q1", func(*types.Message) bool {
		closed <- r.Close()
		return true
	}))
	require.NoError(t, r.AddRoute("q1", "nav_x"))
	r.Dispatch(types.NewDouble("nav_x", 1, 0))

	select {
	case err := <-closed:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Close blocked inside a queue callback")
	}
	assert.Empty(t, r.Queues())
	assert.ErrorIs(t, r.AddQueue("q2", func(*types.Message) bool { return true }), ErrRouterClosed)
}

func TestGoroutineID(t *testing.T) {
	self := goroutineID()
	require.NotZero(t, self)
	assert.Equal(t, self, goroutineID())

	other := make(chan uint64)
	go func() { other <- goroutineID() }()
	id := <-other
	assert.NotZero(t, id)
	assert.NotEqual(t, self, id)
}

func TestRouter_PanicBecomesCallbackError(t *testing.T) {
	errs := make(chan error, 4)
	r := newRouter(t, func(err error) { errs <- err })

	var after atomic.Int32
	require.NoError(t, r.AddQueue("q1", func(m *types.Message) bool {
		if m.Double() == 1 {
			panic(errors.New("boom"))
		}
		after.Add(1)
		return true
	}))
	require.NoError(t, r.AddRoute("q1", "k"))

	r.Dispatch(types.NewDouble("k", 1, 0))
	r.Dispatch(types.NewDouble("k", 2, 0))

	select {
	case err := <-errs:
		var ce *types.CallbackError
		require.ErrorAs(t, err, &ce)
		assert.Equal(t, types.CallbackActiveQueue, ce.Kind)
		assert.Equal(t, "q1", ce.Queue)
		assert.EqualError(t, ce.Err, "boom")
	case <-time.After(2 * time.Second):
		t.Fatal("no callback error reported")
	}

	// worker 继续运行
	require.Eventually(t, func() bool { return after.Load() == 1 }, 2*time.Second, 5*time.Millisecond)
}

func TestRouter_CapacityDrops(t *testing.T) {
	r := NewRouter(Config{Capacity: 1}, nil)
	defer r.Close()

	block := make(chan struct{})
	entered := make(chan struct{}, 1)
	require.NoError(t, r.AddQueue("q1", func(*types.Message) bool {
		select {
		case entered <- struct{}{}:
		default:
		}
		<-block
		return true
	}))
	require.NoError(t, r.AddRoute("q1", "k"))

	r.Dispatch(types.NewDouble("k", 1, 0))
	<-entered
	r.Dispatch(types.NewDouble("k", 2, 0))
	r.Dispatch(types.NewDouble("k", 3, 0))

	stats := r.Stats()
	require.Len(t, stats, 1)
	assert.Equal(t, 1, stats[0].Pending)
	assert.Equal(t, uint64(1), stats[0].Dropped)
	assert.Equal(t, []string{"k"}, stats[0].Topics)

	close(block)
}

func TestRouter_CloseJoinsWorkers(t *testing.T) {
	r := NewRouter(DefaultConfig(), nil)
	for _, name := range []string{"a", "b", "c"} {
		require.NoError(t, r.AddQueue(name, func(*types.Message) bool { return true }))
	}

	require.NoError(t, r.Close())
	require.NoError(t, r.Close())
	assert.Empty(t, r.Queues())
	assert.ErrorIs(t, r.AddQueue("d", func(*types.Message) bool { return true }), ErrRouterClosed)
}

func TestModule(t *testing.T) {
	cfg := config.NewConfig()
	cfg.ActiveQueue.Capacity = 7

	var r *Router
	app := fxtest.New(t,
		fx.Supply(cfg),
		Module(),
		fx.Populate(&r),
	)
	app.RequireStart()
	require.NotNil(t, r)
	assert.Equal(t, 7, r.cfg.Capacity)
	require.NoError(t, r.AddQueue("q", func(*types.Message) bool { return true }))
	app.RequireStop()

	assert.Empty(t, r.Queues())
}
