package logging

import (
	"fmt"

	"github.com/spf13/viper"
	"go.uber.org/fx"
)

// Module reads the "logging" viper key and provides the configured
// Interface.
var Module fx.Option = fx.Provide(
	provideConfig(ConfigKey),
	New,
)

func provideConfig(configKey string) func(v *viper.Viper) (*Config, error) {
	return func(v *viper.Viper) (*Config, error) {
		config, err := NewConfig(WithViperKey(v, configKey))
		if err != nil {
			return nil, fmt.Errorf("error reading logging configuration: %w", err)
		}
		if err := config.Validate(); err != nil {
			return nil, fmt.Errorf("invalid logging configuration: %w", err)
		}
		return config, nil
	}
}
