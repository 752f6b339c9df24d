package main

import (
	"bytes"
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	mooscomms "github.com/mooscomms/go-mooscomms"
	"github.com/mooscomms/go-mooscomms/internal/testbroker"
)

func TestNotifyList(t *testing.T) {
	var l notifyList
	require.NoError(t, l.Set("DEPTH=12.5"))
	require.NoError(t, l.Set("MODE=survey"))
	require.NoError(t, l.Set("EMPTY="))
	assert.Error(t, l.Set("novalue"))
	assert.Error(t, l.Set("=1"))

	require.Len(t, l, 3)
	assert.Equal(t, 12.5, l[0].value())
	assert.Equal(t, "survey", l[1].value())
	assert.Equal(t, "", l[2].value())
	assert.Equal(t, "DEPTH=12.5,MODE=survey,EMPTY=", l.String())
}

func TestSplitAndTrim(t *testing.T) {
	assert.Nil(t, splitAndTrim("", ","))
	assert.Equal(t, []string{"A", "B_*"}, splitAndTrim(" A, ,B_* ", ","))
}

func TestApplyEnvOverrides(t *testing.T) {
	t.Setenv("MOOSCOMMS_SERVER", "db.local")
	t.Setenv("MOOSCOMMS_PORT", "9100")
	t.Setenv("MOOSCOMMS_NAME", "pEnv")
	t.Setenv("MOOSCOMMS_REGISTER", "X,Y")

	rt := runtimeConfig{server: "localhost", port: 9000}
	applyEnvOverrides(&rt)
	assert.Equal(t, "db.local", rt.server)
	assert.Equal(t, 9100, rt.port)
	assert.Equal(t, "pEnv", rt.name)
	assert.Equal(t, []string{"X", "Y"}, rt.register)
}

func TestBuildOptions(t *testing.T) {
	opts, err := buildOptions(runtimeConfig{preset: mooscomms.PresetNameRealtime}, "")
	require.NoError(t, err)
	assert.Len(t, opts, 1)

	_, err = buildOptions(runtimeConfig{preset: "turbo"}, "")
	assert.Error(t, err)
}

type syncBuffer struct {
	mu sync.Mutex
	b  bytes.Buffer
}

func (s *syncBuffer) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.b.Write(p)
}

func (s *syncBuffer) String() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.b.String()
}

func TestLoop_PrintsMail(t *testing.T) {
	b, err := testbroker.Start()
	require.NoError(t, err)
	defer func() { _ = b.Close() }()

	c, err := mooscomms.New(context.Background(),
		mooscomms.WithPollInterval(2*time.Millisecond),
		mooscomms.WithLocalTimeCorrection(false),
	)
	require.NoError(t, err)
	defer func() { _ = c.Close(false) }()

	out := &syncBuffer{}
	p := &printer{out: out}
	require.NoError(t, subscribe(c, []string{"ECHO"}, true, p))
	require.NoError(t, c.Run(b.Addr().Host, b.Addr().Port, "pCli"))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- loop(ctx, c, p, notifyList{{key: "ECHO", raw: "42"}}, 0)
	}()

	require.Eventually(t, func() bool {
		return strings.Contains(out.String(), "ECHO")
	}, 3*time.Second, 5*time.Millisecond)
	assert.Contains(t, out.String(), "D:42")

	cancel()
	assert.NoError(t, <-done)
}
