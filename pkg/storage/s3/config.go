package s3

import (
	"fmt"
	"strings"

	"github.com/sgl-project/atlasdata/pkg/auth"
	"github.com/sgl-project/atlasdata/pkg/storage"
)

const (
	// DefaultRegion hosts both public dataset buckets.
	DefaultRegion = "us-west-2"

	defaultPartSizeMB  = 5 // S3 minimum part size
	defaultConcurrency = 1
)

// Config describes one bucket on S3 or an S3-compatible endpoint.
type Config struct {
	Bucket   string `mapstructure:"bucket" json:"bucket" validate:"required"`
	Region   string `mapstructure:"region" json:"region,omitempty"`
	Endpoint string `mapstructure:"endpoint" json:"endpoint,omitempty"`

	// PartSizeMB is the ranged-GET chunk size used by Download.
	PartSizeMB int64 `mapstructure:"part_size_mb" json:"part_size_mb,omitempty" validate:"gte=0"`
	// Concurrency is the number of ranged GETs Download keeps in flight.
	Concurrency int `mapstructure:"concurrency" json:"concurrency,omitempty" validate:"gte=0"`

	Auth auth.Config `mapstructure:"auth" json:"auth"`
}

// WithDefaults fills zero values.
func (c Config) WithDefaults() Config {
	if c.Region == "" {
		c.Region = DefaultRegion
	}
	if c.PartSizeMB == 0 {
		c.PartSizeMB = defaultPartSizeMB
	}
	if c.Concurrency == 0 {
		c.Concurrency = defaultConcurrency
	}
	if c.Auth.Region == "" {
		c.Auth.Region = c.Region
	}
	return c
}

// Validate checks the fields New and NewS3Provider rely on.
func (c Config) Validate() error {
	if c.Bucket == "" {
		return fmt.Errorf("%w: S3 bucket is required", storage.ErrInvalidConfig)
	}
	if !isValidBucketName(c.Bucket) {
		return fmt.Errorf("%w: invalid S3 bucket name %q", storage.ErrInvalidConfig, c.Bucket)
	}
	if c.PartSizeMB < 0 || c.Concurrency < 0 {
		return fmt.Errorf("%w: part size and concurrency must not be negative", storage.ErrInvalidConfig)
	}
	return nil
}

// usePathStyle reports whether requests should address the bucket in the path,
// which S3-compatible services generally require.
func (c Config) usePathStyle() bool {
	return c.Endpoint != "" && !strings.Contains(c.Endpoint, "amazonaws.com")
}
