package server

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/openmined/syftsync/internal/server/filestore"
	"github.com/openmined/syftsync/internal/server/lockstore"
	"github.com/openmined/syftsync/internal/utils"
	"github.com/ulule/limiter/v3"
)

const (
	DefaultAddr          = "127.0.0.1:7938"
	DefaultLeaseTTL      = lockstore.DefaultTTL
	DefaultSweepInterval = time.Minute
	DefaultMaxFileBytes  = 1 << 20 // 1 MiB
	DefaultRateLimit     = "600-M"

	// clients renew every 5 minutes unless configured otherwise
	clientHeartbeatInterval = 5 * time.Minute
)

var DefaultTrackedFiles = []string{"notes.json", "context.md", "decisions.md", "summary.md"}

type Config struct {
	HTTP          HTTPConfig       `mapstructure:"http"`
	AuthToken     string           `mapstructure:"auth_token"`
	LeaseTTL      time.Duration    `mapstructure:"lease_ttl"`
	SweepInterval time.Duration    `mapstructure:"sweep_interval"`
	DBPath        string           `mapstructure:"db_path"`
	MaxFileBytes  int64            `mapstructure:"max_file_bytes"`
	TrackedFiles  []string         `mapstructure:"tracked_files"`
	RateLimit     string           `mapstructure:"rate_limit"`
	Storage       filestore.Config `mapstructure:"storage"`
}

type HTTPConfig struct {
	Addr     string `mapstructure:"addr"`
	CertFile string `mapstructure:"cert_file"`
	KeyFile  string `mapstructure:"key_file"`
}

func (c *Config) Validate() error {
	if c.HTTP.Addr == "" {
		c.HTTP.Addr = DefaultAddr
	}
	if (c.HTTP.CertFile == "") != (c.HTTP.KeyFile == "") {
		return errors.New("cert_file and key_file must be set together")
	}
	for _, f := range []string{c.HTTP.CertFile, c.HTTP.KeyFile} {
		if f != "" && !utils.FileExists(f) {
			return fmt.Errorf("file %q: %w", f, os.ErrNotExist)
		}
	}

	if c.LeaseTTL <= 0 {
		c.LeaseTTL = DefaultLeaseTTL
	}
	if c.SweepInterval <= 0 {
		c.SweepInterval = DefaultSweepInterval
	}
	if c.MaxFileBytes <= 0 {
		c.MaxFileBytes = DefaultMaxFileBytes
	}
	if len(c.TrackedFiles) == 0 {
		c.TrackedFiles = DefaultTrackedFiles
	}
	if c.RateLimit == "" {
		c.RateLimit = DefaultRateLimit
	}
	if _, err := limiter.NewRateFromFormatted(c.RateLimit); err != nil {
		return fmt.Errorf("rate_limit: %w", err)
	}

	if c.DBPath != "" {
		path, err := utils.ResolvePath(c.DBPath)
		if err != nil {
			return fmt.Errorf("db_path: %w", err)
		}
		c.DBPath = path
	}

	if err := c.Storage.Validate(); err != nil {
		return fmt.Errorf("storage: %w", err)
	}

	if c.LeaseTTL < 2*clientHeartbeatInterval {
		slog.Warn("lease ttl is short for the default client heartbeat, leases may lapse between renewals",
			"ttl", c.LeaseTTL, "heartbeat", clientHeartbeatInterval)
	}

	return nil
}

func (c *Config) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("addr", c.HTTP.Addr),
		slog.Bool("auth", c.AuthToken != ""),
		slog.Duration("leaseTTL", c.LeaseTTL),
		slog.String("db", c.DBPath),
		slog.String("storage", c.Storage.Backend),
		slog.String("maxFile", humanize.IBytes(uint64(c.MaxFileBytes))),
		slog.String("rateLimit", c.RateLimit),
	)
}
