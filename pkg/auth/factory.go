package auth

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/spf13/afero"

	"github.com/sgl-project/atlasdata/pkg/logging"
)

// Factory creates AWS credentials providers
type Factory struct {
	fs     afero.Fs
	logger logging.Interface
}

// NewFactory creates a new auth factory. fs is used to read credentials files.
func NewFactory(fs afero.Fs, logger logging.Interface) *Factory {
	return &Factory{
		fs:     fs,
		logger: logger,
	}
}

// Create returns the credentials provider for config.
func (f *Factory) Create(ctx context.Context, config Config) (aws.CredentialsProvider, error) {
	authType := config.EffectiveType()
	f.logger.WithField("auth_type", authType).Debug("Creating AWS credentials provider")

	switch authType {
	case Anonymous:
		return aws.AnonymousCredentials{}, nil
	case AccessKeyFile:
		return f.createAccessKeyFileProvider(config)
	case Default:
		return f.createDefaultProvider(ctx, config)
	default:
		return nil, fmt.Errorf("unsupported auth type: %s", config.Type)
	}
}

// SupportedAuthTypes returns supported auth types
func (f *Factory) SupportedAuthTypes() []AuthType {
	return []AuthType{
		Anonymous,
		AccessKeyFile,
		Default,
	}
}

func (f *Factory) createAccessKeyFileProvider(config Config) (aws.CredentialsProvider, error) {
	if config.CredentialsFile == "" {
		return nil, fmt.Errorf("credentials_file is required for auth type %s", AccessKeyFile)
	}

	akConfig, err := ReadAccessKeyFile(f.fs, config.CredentialsFile)
	if err != nil {
		return nil, err
	}

	return credentials.NewStaticCredentialsProvider(
		akConfig.AccessKeyID,
		akConfig.SecretAccessKey,
		"",
	), nil
}

func (f *Factory) createDefaultProvider(ctx context.Context, config Config) (aws.CredentialsProvider, error) {
	configOpts := []func(*awsconfig.LoadOptions) error{}
	if config.Region != "" {
		configOpts = append(configOpts, awsconfig.WithRegion(config.Region))
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, configOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return cfg.Credentials, nil
}
