package fetcher

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/afero"
	"github.com/spf13/viper"
	"go.uber.org/fx"

	"github.com/sgl-project/atlasdata/pkg/auth"
	"github.com/sgl-project/atlasdata/pkg/cache"
	"github.com/sgl-project/atlasdata/pkg/logging"
	"github.com/sgl-project/atlasdata/pkg/storage"
	s3provider "github.com/sgl-project/atlasdata/pkg/storage/s3"
)

type configParams struct {
	fx.In

	Logger logging.Interface
	Viper  *viper.Viper
}

type fetcherParams struct {
	fx.In

	Config     *Config
	Fs         afero.Fs
	Store      storage.Storage
	Registerer prometheus.Registerer `optional:"true"`
}

// Module provides the atlas-fetch App and everything below it: config,
// credentials, the S3 storage provider and the caching fetcher. Metrics are
// registered only when a prometheus.Registerer is in the graph.
var Module = fx.Options(
	fx.Provide(
		provideConfig,
		provideCredentials,
		provideStorage,
		provideFetcher,
		NewApp,
	),
)

func provideConfig(params configParams) (*Config, error) {
	config, err := NewConfig(
		WithViper(params.Viper),
		WithLogger(params.Logger),
	)
	if err != nil {
		return nil, fmt.Errorf("error creating atlas-fetch config: %w", err)
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid atlas-fetch config: %w", err)
	}
	return config, nil
}

func provideCredentials(config *Config, fs afero.Fs) (aws.CredentialsProvider, error) {
	factory := auth.NewFactory(fs, config.Logger)
	return factory.Create(context.Background(), config.S3.Auth)
}

func provideStorage(config *Config, creds aws.CredentialsProvider) (storage.Storage, error) {
	provider, err := s3provider.NewS3Provider(context.Background(), config.S3, creds, config.Logger)
	if err != nil {
		return nil, err
	}
	return provider, nil
}

func provideFetcher(params fetcherParams) *cache.Fetcher {
	return cache.NewFetcher(params.Store, params.Fs, params.Config.Logger,
		cache.WithMetrics(cache.NewMetrics(params.Registerer)))
}
