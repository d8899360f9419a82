package filestore

import (
	"fmt"

	"github.com/openmined/syftsync/internal/utils"
)

const (
	BackendDB = "db"
	BackendS3 = "s3"
)

type Config struct {
	Backend string   `mapstructure:"backend"`
	S3      S3Config `mapstructure:"s3"`
}

type S3Config struct {
	BucketName string `mapstructure:"bucket_name"`
	Region     string `mapstructure:"region"`
	AccessKey  string `mapstructure:"access_key"`
	SecretKey  string `mapstructure:"secret_key"`
	Endpoint   string `mapstructure:"endpoint"`
	Prefix     string `mapstructure:"prefix"`
}

func (c *Config) Validate() error {
	if c.Backend == "" {
		c.Backend = BackendDB
	}

	switch c.Backend {
	case BackendDB:
		return nil
	case BackendS3:
		return c.S3.Validate()
	default:
		return fmt.Errorf("unknown storage backend %q", c.Backend)
	}
}

func (c *S3Config) Validate() error {
	if c.BucketName == "" {
		return fmt.Errorf("bucket_name required")
	}
	if c.Region == "" {
		return fmt.Errorf("region required")
	}
	if c.AccessKey == "" {
		return fmt.Errorf("access_key required")
	}
	if c.SecretKey == "" {
		return fmt.Errorf("secret_key required")
	}
	if c.Endpoint != "" && !utils.IsValidURL(c.Endpoint) {
		return fmt.Errorf("invalid endpoint URL %q", c.Endpoint)
	}
	return nil
}
