package syncsdk

import (
	"errors"
	"time"

	"github.com/openmined/syftsync/internal/utils"
)

const (
	DefaultTimeout          = 10 * time.Second
	DefaultRetryCount       = 3
	DefaultRetryBaseDelay   = 500 * time.Millisecond
	DefaultMaxRetryDelay    = 30 * time.Second
	DefaultMaxResponseBytes = 8 << 20 // 8 MiB
)

// Config is the configuration for the coordinator client
type Config struct {
	BaseURL          string        // BaseURL is required
	AuthToken        string        // AuthToken is optional; empty disables the Authorization header
	Timeout          time.Duration // per attempt
	RetryCount       int           // extra attempts after the first one
	RetryBaseDelay   time.Duration // delay before the first retry, doubled for every retry after it
	MaxResponseBytes int64
}

func (c *Config) Validate() error {
	if c.BaseURL == "" {
		return ErrNoServerURL
	}
	if !utils.IsValidURL(c.BaseURL) {
		return ErrInvalidServerURL
	}
	if c.RetryCount < 0 {
		return errors.New("sdk: retry count must not be negative")
	}
	return nil
}

func (c *Config) setDefaults() {
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	if c.RetryBaseDelay <= 0 {
		c.RetryBaseDelay = DefaultRetryBaseDelay
	}
	if c.MaxResponseBytes <= 0 {
		c.MaxResponseBytes = DefaultMaxResponseBytes
	}
}
