package mooscomms

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/fx"
	"go.uber.org/goleak"

	"github.com/mooscomms/go-mooscomms/internal/core/activequeue"
	"github.com/mooscomms/go-mooscomms/internal/testbroker"
	"github.com/mooscomms/go-mooscomms/pkg/types"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// ============================================================================
//                              测试辅助
// ============================================================================

func startBroker(t *testing.T, opts ...testbroker.Option) *testbroker.Broker {
	t.Helper()
	b, err := testbroker.Start(opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = b.Close() })
	return b
}

func newTestClient(t *testing.T, opts ...Option) *Client {
	t.Helper()
	base := []Option{
		WithRetryInterval(20 * time.Millisecond),
		WithPollInterval(2 * time.Millisecond),
		WithLocalTimeCorrection(false),
	}
	c, err := New(context.Background(), append(base, opts...)...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close(false) })
	return c
}

func runClient(t *testing.T, c *Client, b *testbroker.Broker, name string) {
	t.Helper()
	addr := b.Addr()
	require.NoError(t, c.Run(addr.Host, addr.Port, name))

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	require.NoError(t, c.WaitUntilConnected(ctx))
}

func waitRegistered(t *testing.T, b *testbroker.Broker, name string, n int) {
	t.Helper()
	require.Eventually(t, func() bool {
		return len(b.Registered(name)) == n
	}, 3*time.Second, 5*time.Millisecond)
}

// fetchN 反复 Fetch 直到收到 n 条邮件
func fetchN(t *testing.T, c *Client, n int) []*Message {
	t.Helper()
	var got []*Message
	require.Eventually(t, func() bool {
		got = append(got, c.Fetch()...)
		return len(got) >= n
	}, 3*time.Second, 5*time.Millisecond)
	return got
}

// ============================================================================
//                              创建与状态
// ============================================================================

func TestNew_IdleClient(t *testing.T) {
	c := newTestClient(t)

	assert.False(t, c.IsRunning())
	assert.False(t, c.IsConnected())
	assert.True(t, c.IsAsynchronous())
	assert.Equal(t, StateDisconnected, c.State())
	assert.Empty(t, c.Name())
	assert.Empty(t, c.ServerAddress())
	assert.NotEmpty(t, c.Session())

	assert.ErrorIs(t, c.Notify("X", 1.0), ErrNotRunning)
	assert.NotNil(t, c.Fetch())
	assert.Empty(t, c.Fetch())
}

func TestNew_OptionErrors(t *testing.T) {
	_, err := New(context.Background(), nil)
	assert.ErrorIs(t, err, ErrNilOption)

	_, err = New(context.Background(), WithErrorBuffer(0))
	assert.Error(t, err)

	_, err = New(context.Background(), WithPreset("turbo"))
	assert.Error(t, err)

	_, err = New(context.Background(), WithConfig(nil))
	assert.ErrorIs(t, err, ErrNilOption)
}

func TestNew_UserFxOptions(t *testing.T) {
	var router *activequeue.Router
	c := newTestClient(t, WithFxOptions(fx.Populate(&router)))

	require.NotNil(t, router)
	require.NoError(t, c.AddActiveQueue("q", func(*Message) bool { return true }))
	assert.True(t, router.HasQueue("q"))
}

func TestRun_Validation(t *testing.T) {
	b := startBroker(t)
	c := newTestClient(t)

	assert.ErrorIs(t, c.Run(b.Addr().Host, b.Addr().Port, ""), ErrInvalidIdentity)
	assert.ErrorIs(t, c.Run("", 9000, "alpha"), ErrInvalidAddress)
	assert.False(t, c.IsRunning())

	runClient(t, c, b, "alpha")
	assert.True(t, c.IsRunning())
	assert.Equal(t, "alpha", c.Name())
	assert.Equal(t, b.Community(), c.Community())
	assert.Equal(t, b.Addr().String(), c.ServerAddress())

	// 重复 Run 是空操作
	assert.NoError(t, c.Run(b.Addr().Host, b.Addr().Port, "beta"))
	assert.Equal(t, "alpha", c.Name())
}

// ============================================================================
//                              发布与收件
// ============================================================================

func TestNotify_DeliversToSubscriber(t *testing.T) {
	b := startBroker(t)
	pub := newTestClient(t)
	sub := newTestClient(t)

	require.NoError(t, sub.Register("NAV_X", 0))
	runClient(t, sub, b, "B")
	runClient(t, pub, b, "A")
	waitRegistered(t, b, "B", 1)
	assert.True(t, sub.IsRegisteredFor("NAV_X"))

	require.NoError(t, pub.Notify("NAV_X", 3.14))

	got := fetchN(t, sub, 1)
	require.Len(t, got, 1)
	m := got[0]
	assert.Equal(t, "NAV_X", m.Key())
	assert.True(t, m.IsDouble())
	assert.InDelta(t, 3.14, m.Double(), 1e-12)
	assert.Equal(t, "A", m.Source())
	assert.Equal(t, b.Community(), m.Community())

	// 第二次 Fetch 为空
	assert.Empty(t, sub.Fetch())
	assert.Equal(t, []string{"NAV_X"}, pub.Published())
}

func TestNotify_FIFOOrder(t *testing.T) {
	b := startBroker(t)
	pub := newTestClient(t)
	sub := newTestClient(t)

	require.NoError(t, sub.Register("SEQ", 0))
	runClient(t, sub, b, "sub")
	runClient(t, pub, b, "pub")
	waitRegistered(t, b, "sub", 1)

	const n = 200
	for i := 0; i < n; i++ {
		require.NoError(t, pub.Notify("SEQ", i))
	}

	got := fetchN(t, sub, n)
	require.Len(t, got, n)
	for i, m := range got {
		assert.Equal(t, float64(i), m.Double())
	}
}

func TestNotify_ValueTypes(t *testing.T) {
	b := startBroker(t)
	c := newTestClient(t)
	runClient(t, c, b, "alpha")

	require.NoError(t, c.Notify("D", float32(1.5)))
	require.NoError(t, c.Notify("S", "hello"))
	require.NoError(t, c.Notify("B", []byte{0, 1, 0}, WithAuxSource("aux"), WithTime(42)))

	assert.ErrorIs(t, c.Notify("X", struct{}{}), ErrUnsupportedValue)
	assert.ErrorIs(t, c.Notify("", 1.0), ErrEmptyKey)

	require.Eventually(t, func() bool {
		return len(b.NotifiesFor("B")) == 1 && len(b.NotifiesFor("S")) == 1 && len(b.NotifiesFor("D")) == 1
	}, 3*time.Second, 5*time.Millisecond)

	assert.Equal(t, 1.5, b.NotifiesFor("D")[0].Double())
	assert.Equal(t, "hello", b.NotifiesFor("S")[0].StringValue())

	bin := b.NotifiesFor("B")[0]
	assert.True(t, bin.IsBinary())
	assert.Equal(t, []byte{0, 1, 0}, bin.BinaryData())
	assert.Equal(t, "aux", bin.SourceAux())
	assert.Equal(t, 42.0, bin.Time())
	assert.Equal(t, "alpha", bin.Source())
}

func TestOnConnect_RegistersAndOnMailFires(t *testing.T) {
	b := startBroker(t)
	c := newTestClient(t)

	var mails atomic.Int32
	c.SetOnConnect(func() bool {
		return c.Register("WIND", 0) == nil
	})
	c.SetOnMail(func() bool {
		mails.Add(1)
		return true
	})
	runClient(t, c, b, "alpha")
	waitRegistered(t, b, "alpha", 1)

	b.Push(types.NewDouble("WIND", 7, 1))
	require.Eventually(t, func() bool { return mails.Load() >= 1 }, 3*time.Second, 5*time.Millisecond)

	got := c.Fetch()
	require.Len(t, got, 1)
	assert.Equal(t, 7.0, got[0].Double())
}

func TestUnregister(t *testing.T) {
	b := startBroker(t)
	c := newTestClient(t)
	require.NoError(t, c.Register("A", 0))
	require.NoError(t, c.RegisterWildcard("NAV_*", "*", 0))
	runClient(t, c, b, "alpha")
	waitRegistered(t, b, "alpha", 2)

	assert.True(t, c.IsRegisteredFor("NAV_Y"))

	ok, err := c.UnregisterWildcard("NAV_*", "*")
	require.NoError(t, err)
	assert.True(t, ok)
	waitRegistered(t, b, "alpha", 1)

	ok, err = c.Unregister("missing")
	require.NoError(t, err)
	assert.False(t, ok)

	assert.Equal(t, []string{"A"}, c.Registered())
}

// ============================================================================
//                              活动队列
// ============================================================================

func TestActiveQueue_OrderedDelivery(t *testing.T) {
	b := startBroker(t)
	c := newTestClient(t)

	var mu sync.Mutex
	var got []string
	require.NoError(t, c.AddActiveQueue("q1", func(m *Message) bool {
		mu.Lock()
		got = append(got, m.Key())
		mu.Unlock()
		return true
	}))
	require.NoError(t, c.AddMessageRoute("q1", "M1"))
	require.NoError(t, c.AddMessageRoute("q1", "M2"))
	assert.Equal(t, "M1 -> q1\nM2 -> q1\n", c.MessageToActiveQueueRouting())

	runClient(t, c, b, "alpha")
	require.NoError(t, b.PushTo("alpha", types.NewDouble("M1", 1, 1)))
	require.NoError(t, b.PushTo("alpha", types.NewDouble("M2", 2, 2)))

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(got) == 2
	}, 3*time.Second, 5*time.Millisecond)

	mu.Lock()
	assert.Equal(t, []string{"M1", "M2"}, got)
	mu.Unlock()

	// 路由到队列的消息不进入收件箱
	assert.Empty(t, c.Fetch())

	stats := c.ActiveQueueStats()
	require.Len(t, stats, 1)
	assert.Equal(t, uint64(2), stats[0].Delivered)
}

func TestActiveQueue_RouteToMissingQueue(t *testing.T) {
	c := newTestClient(t)

	err := c.AddMessageRoute("nope", "X")
	assert.ErrorIs(t, err, ErrQueueNotFound)
	assert.False(t, c.HasMessageRoute("X"))
	assert.Empty(t, c.MessageToActiveQueueRouting())

	require.NoError(t, c.AddActiveQueue("q", func(*Message) bool { return true }))
	assert.ErrorIs(t, c.AddActiveQueue("q", func(*Message) bool { return true }), ErrQueueExists)
	assert.Equal(t, []string{"q"}, c.ActiveQueues())
}

func TestActiveQueue_RemoveWaitsForCallback(t *testing.T) {
	b := startBroker(t)
	c := newTestClient(t)

	started := make(chan struct{})
	release := make(chan struct{})
	require.NoError(t, c.AddActiveQueue("slow", func(*Message) bool {
		close(started)
		<-release
		return true
	}))
	require.NoError(t, c.AddMessageRoute("slow", "X"))
	runClient(t, c, b, "alpha")
	require.NoError(t, b.PushTo("alpha", types.NewDouble("X", 1, 1)))

	select {
	case <-started:
	case <-time.After(3 * time.Second):
		t.Fatal("callback not started")
	}

	removed := make(chan error, 1)
	go func() { removed <- c.RemoveActiveQueue("slow") }()

	select {
	case <-removed:
		t.Fatal("RemoveActiveQueue returned while callback was running")
	case <-time.After(50 * time.Millisecond):
	}

	close(release)
	select {
	case err := <-removed:
		require.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("RemoveActiveQueue did not return")
	}
	assert.False(t, c.HasActiveQueue("slow"))
	assert.False(t, c.HasMessageRoute("X"))
}

func TestActiveQueue_PanicReportedOnErrors(t *testing.T) {
	b := startBroker(t)

	var handled atomic.Int32
	c := newTestClient(t, WithErrorHandler(func(error) { handled.Add(1) }))

	require.NoError(t, c.AddActiveQueue("bad", func(*Message) bool { panic("boom") }))
	require.NoError(t, c.AddMessageRoute("bad", "X"))
	runClient(t, c, b, "alpha")
	require.NoError(t, b.PushTo("alpha", types.NewDouble("X", 1, 1)))

	select {
	case err := <-c.Errors():
		var ce *CallbackError
		require.True(t, errors.As(err, &ce))
		assert.Equal(t, types.CallbackActiveQueue, ce.Kind)
		assert.Equal(t, "bad", ce.Queue)
		assert.Equal(t, "boom", ce.Value)
	case <-time.After(3 * time.Second):
		t.Fatal("no callback error reported")
	}
	assert.Equal(t, int32(1), handled.Load())

	// worker 在 panic 之后继续工作
	assert.True(t, c.HasActiveQueue("bad"))
}

func TestReportError_DropsOldestWhenFull(t *testing.T) {
	c := newTestClient(t, WithErrorBuffer(2))

	e1, e2, e3 := errors.New("1"), errors.New("2"), errors.New("3")
	c.reportError(e1)
	c.reportError(e2)
	c.reportError(e3)

	assert.Equal(t, e2, <-c.Errors())
	assert.Equal(t, e3, <-c.Errors())
}

// ============================================================================
//                              关闭
// ============================================================================

func TestClose_ThenNotifyFails(t *testing.T) {
	b := startBroker(t)
	c := newTestClient(t)
	runClient(t, c, b, "alpha")

	require.NoError(t, c.Notify("LAST", 1.0))
	require.NoError(t, c.Close(true))

	assert.ErrorIs(t, c.Notify("X", 1.0), ErrClosed)
	assert.ErrorIs(t, c.Run(b.Addr().Host, b.Addr().Port, "alpha"), ErrClosed)
	assert.ErrorIs(t, c.Register("X", 0), ErrClosed)
	assert.ErrorIs(t, c.AddActiveQueue("q", func(*Message) bool { return true }), ErrClosed)
	assert.False(t, c.IsRunning())
	assert.Equal(t, StateClosed, c.State())

	// 可重复调用
	assert.NoError(t, c.Close(false))

	require.Eventually(t, func() bool {
		return len(b.NotifiesFor("LAST")) == 1
	}, 3*time.Second, 5*time.Millisecond)
}

func TestClose_BeforeRun(t *testing.T) {
	c := newTestClient(t)
	require.NoError(t, c.AddActiveQueue("q", func(*Message) bool { return true }))
	require.NoError(t, c.Close(true))
	assert.False(t, c.HasActiveQueue("q"))
}

func TestClose_FromOnConnect(t *testing.T) {
	b := startBroker(t)
	c := newTestClient(t)

	closed := make(chan error, 1)
	c.SetOnConnect(func() bool {
		closed <- c.Close(false)
		return true
	})
	addr := b.Addr()
	require.NoError(t, c.Run(addr.Host, addr.Port, "alpha"))

	select {
	case err := <-closed:
		require.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("Close from on_connect did not return")
	}
	assert.False(t, c.IsRunning())
}

func TestClose_FromActiveQueue(t *testing.T) {
	b := startBroker(t)
	c := newTestClient(t)

	closed := make(chan error, 1)
	require.NoError(t, c.AddActiveQueue("alpha", func(*Message) bool {
		closed <- c.Close(false)
		return true
	}))
	require.NoError(t, c.AddMessageRoute("alpha", "X"))
	runClient(t, c, b, "alpha")
	require.NoError(t, b.PushTo("alpha", types.NewDouble("X", 1, 1)))

	select {
	case err := <-closed:
		require.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("Close from an active-queue callback did not return")
	}
	assert.False(t, c.IsRunning())
	assert.Equal(t, StateClosed, c.State())
	assert.Empty(t, c.ActiveQueues())
}

func TestActiveQueue_RemoveFromOwnCallback(t *testing.T) {
	b := startBroker(t)
	c := newTestClient(t)

	removed := make(chan error, 1)
	require.NoError(t, c.AddActiveQueue("once", func(*Message) bool {
		removed <- c.RemoveActiveQueue("once")
		return true
	}))
	require.NoError(t, c.AddMessageRoute("once", "X"))
	runClient(t, c, b, "alpha")
	require.NoError(t, b.PushTo("alpha", types.NewDouble("X", 1, 1), types.NewDouble("X", 2, 1)))

	select {
	case err := <-removed:
		require.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("RemoveActiveQueue from its own callback did not return")
	}
	assert.False(t, c.HasActiveQueue("once"))
	assert.False(t, c.HasMessageRoute("X"))
	assert.Len(t, removed, 0)
}

// ============================================================================
//                              统计与时间
// ============================================================================

func TestStatsAndCollector(t *testing.T) {
	b := startBroker(t)
	c := newTestClient(t)
	runClient(t, c, b, "alpha")

	require.NoError(t, c.Notify("X", 1.0))
	require.Eventually(t, func() bool {
		return c.Stats().MessagesSent >= 1
	}, 3*time.Second, 5*time.Millisecond)
	assert.Zero(t, c.UnsentCount())
	assert.Zero(t, c.UnreadCount())
	assert.Zero(t, c.DroppedMail())

	assert.Greater(t, testutil.CollectAndCount(c.Collector()), 0)
}

func TestCommsControlFactor(t *testing.T) {
	c := newTestClient(t)

	require.NoError(t, c.SetCommsControlTimeWarpScaleFactor(2.5))
	assert.Equal(t, 2.5, c.CommsControlTimeWarpScaleFactor())
	assert.Error(t, c.SetCommsControlTimeWarpScaleFactor(-1))
	assert.Equal(t, 2.5, c.CommsControlTimeWarpScaleFactor())

	c.DoLocalTimeCorrection(true)
	assert.True(t, c.mgr.LocalTimeCorrection())
}
