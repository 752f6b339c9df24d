package metrics

import (
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/fx"
	"go.uber.org/fx/fxtest"

	"github.com/mooscomms/go-mooscomms/config"
)

func TestRateMeter_Window(t *testing.T) {
	mock := clock.NewMock()
	r := NewRateMeter(mock)

	r.Add(60)
	assert.InDelta(t, 1.0, r.Rate(), 1e-9)

	mock.Add(30 * time.Second)
	r.Add(60)
	assert.InDelta(t, 2.0, r.Rate(), 1e-9)

	// 第一批数据滑出窗口
	mock.Add(31 * time.Second)
	assert.InDelta(t, 1.0, r.Rate(), 1e-9)

	mock.Add(2 * time.Minute)
	assert.Zero(t, r.Rate())
}

func TestRateMeter_Reset(t *testing.T) {
	r := NewRateMeter(clock.NewMock())
	r.Add(600)
	r.Reset()
	assert.Zero(t, r.Rate())
}

func TestCommsCounter_Totals(t *testing.T) {
	mock := clock.NewMock()
	c := NewCommsCounter(true, mock)

	c.LogSent(2, 120)
	c.LogSent(1, 60)
	c.LogRecv(3, 300)

	s := c.Totals()
	assert.Equal(t, uint64(3), s.MessagesSent)
	assert.Equal(t, uint64(180), s.BytesSent)
	assert.Equal(t, uint64(3), s.MessagesReceived)
	assert.Equal(t, uint64(300), s.BytesReceived)
	assert.InDelta(t, 3.0, s.RateOut, 1e-9)
	assert.InDelta(t, 5.0, s.RateIn, 1e-9)

	c.Reset()
	assert.Equal(t, Stats{}, c.Totals())
}

func TestCommsCounter_WithoutRates(t *testing.T) {
	c := NewCommsCounter(false, nil)
	c.LogSent(1, 100)
	s := c.Totals()
	assert.Equal(t, uint64(100), s.BytesSent)
	assert.Zero(t, s.RateOut)
}

func TestCommsCounter_Concurrent(t *testing.T) {
	c := NewCommsCounter(true, nil)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 1000; j++ {
				c.LogSent(1, 10)
				c.LogRecv(1, 10)
			}
		}()
	}
	wg.Wait()

	s := c.Totals()
	assert.Equal(t, uint64(8000), s.MessagesSent)
	assert.Equal(t, uint64(80000), s.BytesReceived)
}

func TestCollector(t *testing.T) {
	c := NewCommsCounter(false, nil)
	c.LogSent(2, 64)
	c.LogRecv(1, 32)

	col := NewCollector(c, "alpha")
	reg := prometheus.NewPedanticRegistry()
	require.NoError(t, reg.Register(col))

	expected := `
# HELP mooscomms_messages_sent_total Messages sent to the MOOSDB.
# TYPE mooscomms_messages_sent_total counter
mooscomms_messages_sent_total{client="alpha"} 2
# HELP mooscomms_bytes_received_total Frame bytes received from the MOOSDB.
# TYPE mooscomms_bytes_received_total counter
mooscomms_bytes_received_total{client="alpha"} 32
`
	require.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected),
		"mooscomms_messages_sent_total", "mooscomms_bytes_received_total"))
}

func TestModule(t *testing.T) {
	cfg := config.NewConfig()
	cfg.Metrics.Enabled = false

	var rep Reporter
	var counter *CommsCounter
	app := fxtest.New(t,
		fx.Supply(cfg),
		Module(),
		fx.Populate(&rep, &counter),
	)
	app.RequireStart()
	defer app.RequireStop()

	require.NotNil(t, counter)
	assert.Same(t, counter, rep)
	assert.Nil(t, counter.outRate)
}
