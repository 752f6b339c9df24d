package mooscomms

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mooscomms/go-mooscomms/config"
)

func TestGetConfigByPreset(t *testing.T) {
	rt := GetConfigByPreset(PresetNameRealtime)
	assert.Equal(t, config.Duration(time.Millisecond), rt.Connection.PollInterval)

	lp := GetConfigByPreset(PresetNameLowPower)
	assert.Equal(t, config.BackoffExponential, lp.Connection.RetryBackoff)

	assert.Equal(t, GetDefaultConfig(), GetConfigByPreset("unknown"))
}

func TestOptions_ApplyToConfig(t *testing.T) {
	cfg := newClientConfig()
	for _, opt := range []Option{
		WithPreset(PresetNameRealtime),
		WithRetryInterval(3 * time.Second),
		WithCallbackTimeout(time.Second),
		WithOnMailPerMessage(true),
		WithLocalTimeCorrection(false),
		WithErrorBuffer(8),
	} {
		require.NoError(t, opt(cfg))
	}

	assert.Equal(t, config.Duration(3*time.Second), cfg.config.Connection.RetryInterval)
	assert.Equal(t, config.Duration(time.Millisecond), cfg.config.Connection.PollInterval)
	assert.Equal(t, config.Duration(time.Second), cfg.config.Connection.CallbackTimeout)
	assert.True(t, cfg.config.Connection.OnMailPerMessage)
	assert.False(t, cfg.config.Time.LocalTimeCorrection)
	assert.Equal(t, 8, cfg.errorBuffer)
}

func TestWithConfig_Clones(t *testing.T) {
	src := config.NewConfig()
	cfg := newClientConfig()
	require.NoError(t, WithConfig(src)(cfg))

	cfg.config.Connection.OnMailPerMessage = true
	assert.False(t, src.Connection.OnMailPerMessage)
}

func TestWithConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "comms.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"connection":{"retry_interval":"250ms"}}`), 0o600))

	cfg := newClientConfig()
	require.NoError(t, WithConfigFile(path)(cfg))
	assert.Equal(t, config.Duration(250*time.Millisecond), cfg.config.Connection.RetryInterval)

	assert.Error(t, WithConfigFile(filepath.Join(t.TempDir(), "missing.json"))(cfg))
}
