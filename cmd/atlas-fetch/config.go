package main

import (
	"fmt"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/fx"

	"github.com/sgl-project/atlasdata/internal/fetcher"
	"github.com/sgl-project/atlasdata/pkg/configutils"
)

// flagKeys maps persistent flags onto config keys.
var flagKeys = map[string]string{
	"debug":     "logging.debug",
	"dataset":   "dataset",
	"cache-dir": "cache_dir",
}

func configProvider(cli *cobra.Command) fx.Option {
	return fx.Provide(func(fs afero.Fs) (*viper.Viper, error) {
		v, err := configutils.NewViper(fs, fetcher.EnvPrefix, cli.Flags(), configFilePath)
		if err != nil {
			return nil, err
		}

		for flag, key := range flagKeys {
			f := cli.Flags().Lookup(flag)
			if f == nil || !f.Changed {
				continue
			}
			if err := v.BindPFlag(key, f); err != nil {
				return nil, fmt.Errorf("can't bind %s flag: %w", flag, err)
			}
		}

		// UnmarshalKey only sees values from the config file; copy the
		// environment and flag overrides in explicitly.
		for _, key := range v.AllKeys() {
			v.Set(key, v.Get(key))
		}
		return v, nil
	})
}
