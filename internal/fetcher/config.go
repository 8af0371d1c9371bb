package fetcher

import (
	"fmt"
	"path/filepath"
	"slices"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"github.com/spf13/viper"

	"github.com/sgl-project/atlasdata/pkg/auth"
	"github.com/sgl-project/atlasdata/pkg/configutils"
	"github.com/sgl-project/atlasdata/pkg/ivygap"
	"github.com/sgl-project/atlasdata/pkg/logging"
	"github.com/sgl-project/atlasdata/pkg/mousebrain"
	s3provider "github.com/sgl-project/atlasdata/pkg/storage/s3"
)

// EnvPrefix prefixes environment variables overriding config keys, with
// dots replaced by underscores (ATLASDATA_S3_BUCKET).
const EnvPrefix = "ATLASDATA"

// Dataset names one of the supported public buckets.
type Dataset string

const (
	MouseBrain Dataset = "mouse-brain"
	IvyGAP     Dataset = "ivy-gap"
)

// Bucket returns the public bucket holding the dataset.
func (d Dataset) Bucket() string {
	switch d {
	case MouseBrain:
		return mousebrain.Bucket
	case IvyGAP:
		return ivygap.Bucket
	}
	return ""
}

// Config defines the configuration for atlas-fetch.
type Config struct {
	Logger logging.Interface

	Dataset Dataset `mapstructure:"dataset" validate:"required,oneof=mouse-brain ivy-gap"`
	// CacheDir holds cached metadata files.
	CacheDir string `mapstructure:"cache_dir" validate:"required"`
	// ScratchDir holds uncropped downloads; defaults to CacheDir.
	ScratchDir string `mapstructure:"scratch_dir"`
	// ImageDir, when set, is where Ivy GAP images are read from and mirrored to.
	ImageDir string `mapstructure:"image_dir"`

	S3 s3provider.Config `mapstructure:"s3"`
}

// Option defines a function that applies configuration options
type Option func(*Config) error

// Apply applies the given options to the configuration
func (c *Config) Apply(opts ...Option) error {
	for _, o := range opts {
		if o != nil {
			if err := o(c); err != nil {
				return err
			}
		}
	}
	return nil
}

func defaultConfig() *Config {
	return &Config{
		Dataset:  MouseBrain,
		CacheDir: filepath.Join(".", "atlas-cache"),
	}
}

// NewConfig builds a configuration from the given options and fills the
// values derived from others.
func NewConfig(opts ...Option) (*Config, error) {
	c := defaultConfig()
	if err := c.Apply(opts...); err != nil {
		return nil, fmt.Errorf("failed to apply config options: %w", err)
	}
	c.complete()
	return c, nil
}

func (c *Config) complete() {
	if c.ScratchDir == "" {
		c.ScratchDir = c.CacheDir
	}
	if c.S3.Bucket == "" {
		c.S3.Bucket = c.Dataset.Bucket()
	}
	c.S3 = c.S3.WithDefaults()
}

// WithLogger sets the logger for the configuration
func WithLogger(logger logging.Interface) Option {
	return func(c *Config) error {
		if logger == nil {
			return errors.New("logger cannot be nil")
		}
		c.Logger = logger
		return nil
	}
}

// WithViper loads configuration using Viper
func WithViper(v *viper.Viper) Option {
	return func(c *Config) error {
		logger := c.Logger
		*c = *defaultConfig()
		c.Logger = logger

		if err := configutils.BindEnvsRecursive(v, c, ""); err != nil {
			return errors.Wrap(err, "error binding envs")
		}
		if err := v.Unmarshal(c); err != nil {
			return errors.Wrap(err, "error unmarshalling config")
		}
		return nil
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}
	if err := c.S3.Validate(); err != nil {
		return err
	}

	authType := c.S3.Auth.EffectiveType()
	if !slices.Contains(auth.NewFactory(nil, c.Logger).SupportedAuthTypes(), authType) {
		return errors.Errorf("unsupported s3.auth.type %q", authType)
	}
	if authType == auth.AccessKeyFile && c.S3.Auth.CredentialsFile == "" {
		return errors.New("s3.auth.credentials_file is required for access_key_file auth")
	}
	return nil
}
