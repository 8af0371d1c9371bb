package configutils

import (
	"fmt"
	"strings"

	"github.com/spf13/afero"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/fx"
)

// NewViper returns a viper reading environment variables under envPrefix,
// with dots in keys mapped to underscores. When pflags carries a "debug"
// flag it is bound to the debug key. A non-empty configFilePath is resolved
// and merged from fs.
func NewViper(fs afero.Fs, envPrefix string, pflags *pflag.FlagSet, configFilePath string) (*viper.Viper, error) {
	v := viper.New()
	v.SetFs(fs)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if pflags != nil {
		if flag := pflags.Lookup("debug"); flag != nil {
			if err := v.BindPFlag("debug", flag); err != nil {
				return nil, fmt.Errorf("can't bind debug flag: %w", err)
			}
		}
	}

	if configFilePath != "" {
		if err := ResolveAndMergeFile(fs, v, configFilePath); err != nil {
			return nil, fmt.Errorf("cannot read config file: %w", err)
		}
	}

	return v, nil
}

// ProvideViperFromFile provides a *viper.Viper built by NewViper from the
// afero.Fs in the graph. The config file is optional; without one only
// defaults and the environment apply.
func ProvideViperFromFile(envPrefix string, pflags *pflag.FlagSet, configFilePath string) fx.Option {
	return fx.Provide(func(fs afero.Fs) (*viper.Viper, error) {
		return NewViper(fs, envPrefix, pflags, configFilePath)
	})
}
