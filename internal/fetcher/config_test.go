package fetcher

import (
	"testing"

	"github.com/spf13/afero"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sgl-project/atlasdata/pkg/auth"
	"github.com/sgl-project/atlasdata/pkg/configutils"
	"github.com/sgl-project/atlasdata/pkg/logging"
	s3provider "github.com/sgl-project/atlasdata/pkg/storage/s3"
)

func TestNewConfig_Defaults(t *testing.T) {
	config, err := NewConfig(WithViper(viper.New()), WithLogger(logging.Discard()))
	require.NoError(t, err)
	require.NoError(t, config.Validate())

	assert.Equal(t, MouseBrain, config.Dataset)
	assert.Equal(t, "atlas-cache", config.CacheDir)
	assert.Equal(t, config.CacheDir, config.ScratchDir)
	assert.Equal(t, "allen-mouse-brain-atlas", config.S3.Bucket)
	assert.Equal(t, s3provider.DefaultRegion, config.S3.Region)
	assert.Equal(t, auth.Anonymous, config.S3.Auth.EffectiveType())
}

func TestNewConfig_FromViper(t *testing.T) {
	v := viper.New()
	v.Set("dataset", "ivy-gap")
	v.Set("cache_dir", "/var/cache/atlas")
	v.Set("scratch_dir", "/tmp/scratch")
	v.Set("image_dir", "/data/ivy")
	v.Set("s3.region", "us-east-1")
	v.Set("s3.endpoint", "http://localhost:9000")
	v.Set("s3.auth.type", "access_key_file")
	v.Set("s3.auth.credentials_file", "/etc/atlas/keys.csv")

	config, err := NewConfig(WithViper(v), WithLogger(logging.Discard()))
	require.NoError(t, err)
	require.NoError(t, config.Validate())

	assert.Equal(t, IvyGAP, config.Dataset)
	assert.Equal(t, "/var/cache/atlas", config.CacheDir)
	assert.Equal(t, "/tmp/scratch", config.ScratchDir)
	assert.Equal(t, "/data/ivy", config.ImageDir)
	assert.Equal(t, "allen-ivy-glioblastoma-atlas", config.S3.Bucket)
	assert.Equal(t, "us-east-1", config.S3.Region)
	assert.Equal(t, "us-east-1", config.S3.Auth.Region)
	assert.Equal(t, auth.AccessKeyFile, config.S3.Auth.Type)
	assert.Equal(t, "/etc/atlas/keys.csv", config.S3.Auth.CredentialsFile)
}

func TestNewConfig_FromEnv(t *testing.T) {
	t.Setenv("ATLASDATA_DATASET", "ivy-gap")
	t.Setenv("ATLASDATA_S3_BUCKET", "my-mirror")

	v, err := configutils.NewViper(afero.NewMemMapFs(), EnvPrefix, nil, "")
	require.NoError(t, err)

	config, err := NewConfig(WithViper(v), WithLogger(logging.Discard()))
	require.NoError(t, err)
	assert.Equal(t, IvyGAP, config.Dataset)
	assert.Equal(t, "my-mirror", config.S3.Bucket)
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		set     map[string]any
		wantErr string
	}{
		{
			name:    "unknown dataset",
			set:     map[string]any{"dataset": "zebrafish"},
			wantErr: "Dataset",
		},
		{
			name:    "empty cache dir",
			set:     map[string]any{"cache_dir": ""},
			wantErr: "CacheDir",
		},
		{
			name:    "invalid bucket",
			set:     map[string]any{"s3.bucket": "Not_A_Bucket"},
			wantErr: "invalid S3 bucket name",
		},
		{
			name:    "unknown auth type",
			set:     map[string]any{"s3.auth.type": "oauth"},
			wantErr: `unsupported s3.auth.type "oauth"`,
		},
		{
			name:    "access key file without path",
			set:     map[string]any{"s3.auth.type": "access_key_file"},
			wantErr: "credentials_file is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := viper.New()
			for k, val := range tt.set {
				v.Set(k, val)
			}
			config, err := NewConfig(WithViper(v), WithLogger(logging.Discard()))
			require.NoError(t, err)
			assert.ErrorContains(t, config.Validate(), tt.wantErr)
		})
	}
}

func TestWithLogger_Nil(t *testing.T) {
	_, err := NewConfig(WithLogger(nil))
	assert.ErrorContains(t, err, "logger cannot be nil")
}
