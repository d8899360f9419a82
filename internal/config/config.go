// Package config is the client side configuration for syftsync
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/openmined/syftsync/internal/syncsdk"
	"github.com/openmined/syftsync/internal/utils"
	"github.com/spf13/viper"
)

const (
	EnvPrefix                = "SYFTSYNC"
	DefaultHeartbeatInterval = 5 * time.Minute
)

var (
	home, _            = os.UserHomeDir()
	DefaultBaseDir     = filepath.Join(home, ".syftsync")
	DefaultConfigPath  = filepath.Join(DefaultBaseDir, "config.yaml")
	DefaultLogFilePath = filepath.Join(DefaultBaseDir, "logs", "syftsync.log")
)

var (
	ErrInvalidHeartbeat = errors.New("heartbeat interval must be positive")
	ErrInvalidProjectID = errors.New("invalid project id")
)

type Config struct {
	Enabled           bool          `mapstructure:"enabled"`
	ServerURL         string        `mapstructure:"server_url"`
	AuthToken         string        `mapstructure:"auth_token"`
	ProjectID         string        `mapstructure:"project_id"`
	DataDir           string        `mapstructure:"data_dir"`
	RequestTimeout    time.Duration `mapstructure:"request_timeout"`
	RetryCount        int           `mapstructure:"retry_count"`
	RetryBaseDelay    time.Duration `mapstructure:"retry_base_delay"`
	HeartbeatInterval time.Duration `mapstructure:"heartbeat_interval"`
	MaxResponseBytes  int64         `mapstructure:"max_response_bytes"`
	Path              string        `mapstructure:"-"`
}

// SetDefaults registers every key with its default, which also makes AutomaticEnv see it
func SetDefaults(v *viper.Viper) {
	v.SetDefault("enabled", false)
	v.SetDefault("server_url", "")
	v.SetDefault("auth_token", "")
	v.SetDefault("project_id", "")
	v.SetDefault("data_dir", DefaultBaseDir)
	v.SetDefault("request_timeout", syncsdk.DefaultTimeout)
	v.SetDefault("retry_count", syncsdk.DefaultRetryCount)
	v.SetDefault("retry_base_delay", syncsdk.DefaultRetryBaseDelay)
	v.SetDefault("heartbeat_interval", DefaultHeartbeatInterval)
	v.SetDefault("max_response_bytes", syncsdk.DefaultMaxResponseBytes)
}

// Load reads the config file at path (if any), then the SYFTSYNC_* environment.
// A missing file is not an error: sync just stays disabled.
func Load(v *viper.Viper, path string) (*Config, error) {
	SetDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			enoent := errors.Is(err, os.ErrNotExist)
			_, notFound := err.(viper.ConfigFileNotFoundError)
			if !enoent && !notFound {
				return nil, fmt.Errorf("config read '%s': %w", path, err)
			}
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()

	cfg := &Config{
		Enabled:           v.GetBool("enabled"),
		ServerURL:         v.GetString("server_url"),
		AuthToken:         v.GetString("auth_token"),
		ProjectID:         v.GetString("project_id"),
		DataDir:           v.GetString("data_dir"),
		RequestTimeout:    v.GetDuration("request_timeout"),
		RetryCount:        v.GetInt("retry_count"),
		RetryBaseDelay:    v.GetDuration("retry_base_delay"),
		HeartbeatInterval: v.GetDuration("heartbeat_interval"),
		MaxResponseBytes:  v.GetInt64("max_response_bytes"),
		Path:              path,
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	var err error

	c.DataDir, err = utils.ResolvePath(c.DataDir)
	if err != nil {
		return fmt.Errorf("data dir: %w", err)
	}

	if c.ProjectID != "" && !utils.IsValidProjectID(c.ProjectID) {
		return fmt.Errorf("%w: %q", ErrInvalidProjectID, c.ProjectID)
	}

	if c.HeartbeatInterval <= 0 {
		return fmt.Errorf("%w: %s", ErrInvalidHeartbeat, c.HeartbeatInterval)
	}

	if !c.Enabled {
		return nil
	}

	if c.ServerURL == "" {
		return syncsdk.ErrNoServerURL
	}
	if !utils.IsValidURL(c.ServerURL) {
		return fmt.Errorf("%w: %q", syncsdk.ErrInvalidServerURL, c.ServerURL)
	}

	return nil
}

// ResolveProjectID returns the configured override, or derives an id from dir
func (c *Config) ResolveProjectID(dir string) (string, error) {
	if c.ProjectID != "" {
		return c.ProjectID, nil
	}
	return utils.ProjectIDFromDir(dir)
}

func (c *Config) SDKConfig() *syncsdk.Config {
	return &syncsdk.Config{
		BaseURL:          c.ServerURL,
		AuthToken:        c.AuthToken,
		Timeout:          c.RequestTimeout,
		RetryCount:       c.RetryCount,
		RetryBaseDelay:   c.RetryBaseDelay,
		MaxResponseBytes: c.MaxResponseBytes,
	}
}

func (c *Config) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Bool("enabled", c.Enabled),
		slog.String("server", c.ServerURL),
		slog.String("token", utils.MaskSecret(c.AuthToken)),
		slog.String("dataDir", c.DataDir),
		slog.Duration("heartbeat", c.HeartbeatInterval),
	)
}
