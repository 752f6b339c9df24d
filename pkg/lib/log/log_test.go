package log

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"debug":   LevelDebug,
		"INFO":    LevelInfo,
		"":        LevelInfo,
		"warning": LevelWarn,
		"error":   LevelError,
	}
	for in, want := range cases {
		got, err := ParseLevel(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := ParseLevel("loud")
	assert.Error(t, err)
}

func TestSetup_LazyLoggerFollowsDefault(t *testing.T) {
	prev := slog.Default()
	t.Cleanup(func() { SetDefault(prev) })

	var buf bytes.Buffer
	require.NoError(t, Setup(&buf, "debug", "json"))

	l := Logger("core/test")
	l.Debug("hello", "k", 1)

	out := buf.String()
	assert.Contains(t, out, `"component":"core/test"`)
	assert.Contains(t, out, `"msg":"hello"`)
	assert.Contains(t, out, `"k":1`)
}

func TestSetup_Errors(t *testing.T) {
	var buf bytes.Buffer
	assert.Error(t, Setup(&buf, "nope", "text"))
	assert.Error(t, Setup(&buf, "info", "xml"))
}

func TestSetupFromEnv_EmptyValuesUseDefaults(t *testing.T) {
	t.Setenv(EnvLevel, "")
	t.Setenv(EnvFormat, "")

	prev := slog.Default()
	t.Cleanup(func() { SetDefault(prev) })
	require.NoError(t, SetupFromEnv())
}

func TestTruncateID(t *testing.T) {
	assert.Equal(t, "abc", TruncateID("abc", 8))
	assert.Equal(t, "abcdefgh", TruncateID("abcdefghij", 8))
}
