package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/openmined/syftsync/internal/syncsdk"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(viper.New(), filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)

	assert.False(t, cfg.Enabled)
	assert.Equal(t, syncsdk.DefaultTimeout, cfg.RequestTimeout)
	assert.Equal(t, syncsdk.DefaultRetryCount, cfg.RetryCount)
	assert.Equal(t, syncsdk.DefaultRetryBaseDelay, cfg.RetryBaseDelay)
	assert.Equal(t, DefaultHeartbeatInterval, cfg.HeartbeatInterval)
	assert.Equal(t, DefaultBaseDir, cfg.DataDir)
	require.NoError(t, cfg.Validate())
}

func TestLoad_FileAndEnv(t *testing.T) {
	tmp := t.TempDir()
	path := filepath.Join(tmp, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
enabled: true
server_url: http://127.0.0.1:7938
auth_token: from-file
data_dir: `+tmp+`
heartbeat_interval: 2m
retry_count: 5
`), 0o600))

	t.Setenv("SYFTSYNC_AUTH_TOKEN", "from-env")
	t.Setenv("SYFTSYNC_REQUEST_TIMEOUT", "3s")

	cfg, err := Load(viper.New(), path)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.True(t, cfg.Enabled)
	assert.Equal(t, "http://127.0.0.1:7938", cfg.ServerURL)
	assert.Equal(t, "from-env", cfg.AuthToken)
	assert.Equal(t, 3*time.Second, cfg.RequestTimeout)
	assert.Equal(t, 2*time.Minute, cfg.HeartbeatInterval)
	assert.Equal(t, 5, cfg.RetryCount)
	assert.Equal(t, tmp, cfg.DataDir)
	assert.Equal(t, path, cfg.Path)
}

func TestLoad_MalformedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("enabled: [oops"), 0o600))

	_, err := Load(viper.New(), path)
	assert.Error(t, err)
}

func TestConfig_Validate(t *testing.T) {
	tmp := t.TempDir()
	valid := func() *Config {
		return &Config{
			Enabled:           true,
			ServerURL:         "https://sync.example.com",
			DataDir:           tmp,
			HeartbeatInterval: time.Minute,
		}
	}

	t.Run("ok", func(t *testing.T) {
		assert.NoError(t, valid().Validate())
	})

	t.Run("enabled without server url", func(t *testing.T) {
		cfg := valid()
		cfg.ServerURL = ""
		assert.ErrorIs(t, cfg.Validate(), syncsdk.ErrNoServerURL)
	})

	t.Run("bad server url", func(t *testing.T) {
		cfg := valid()
		cfg.ServerURL = "ftp://sync.example.com"
		assert.ErrorIs(t, cfg.Validate(), syncsdk.ErrInvalidServerURL)
	})

	t.Run("disabled ignores server url", func(t *testing.T) {
		cfg := valid()
		cfg.Enabled = false
		cfg.ServerURL = ""
		assert.NoError(t, cfg.Validate())
	})

	t.Run("zero heartbeat", func(t *testing.T) {
		cfg := valid()
		cfg.HeartbeatInterval = 0
		assert.ErrorIs(t, cfg.Validate(), ErrInvalidHeartbeat)
	})

	t.Run("bad project override", func(t *testing.T) {
		cfg := valid()
		cfg.ProjectID = "../escape"
		assert.ErrorIs(t, cfg.Validate(), ErrInvalidProjectID)
	})

	t.Run("relative data dir made absolute", func(t *testing.T) {
		cfg := valid()
		cfg.DataDir = "relative/dir"
		require.NoError(t, cfg.Validate())
		assert.True(t, filepath.IsAbs(cfg.DataDir))
	})
}

func TestConfig_ResolveProjectID(t *testing.T) {
	cfg := &Config{}
	id, err := cfg.ResolveProjectID(t.TempDir())
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	cfg.ProjectID = "shared-notes"
	id, err = cfg.ResolveProjectID(t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, "shared-notes", id)
}

func TestConfig_SDKConfig(t *testing.T) {
	cfg := &Config{ServerURL: "http://localhost:7938", AuthToken: "tok", RetryCount: 2, RequestTimeout: time.Second}
	sdk := cfg.SDKConfig()
	assert.Equal(t, "http://localhost:7938", sdk.BaseURL)
	assert.Equal(t, "tok", sdk.AuthToken)
	assert.Equal(t, 2, sdk.RetryCount)
	assert.Equal(t, time.Second, sdk.Timeout)
	assert.NoError(t, sdk.Validate())
}
