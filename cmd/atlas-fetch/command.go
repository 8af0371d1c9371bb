package main

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/fx"

	"github.com/sgl-project/atlasdata/internal/fetcher"
	aferoModule "github.com/sgl-project/atlasdata/pkg/afero"
	"github.com/sgl-project/atlasdata/pkg/logging"
)

var configFilePath string
var debug bool

// Command is one atlas-fetch subcommand run against the configured dataset.
type Command interface {
	Name() string
	ShortDescription() string
	LongDescription() string

	// ConfigureCommand adds the command's flags and argument rules.
	ConfigureCommand(*cobra.Command)

	// Run executes the command once the fx graph is built.
	Run(ctx context.Context, cmd *cobra.Command, args []string, app *fetcher.App) error
}

// CreateCommand creates a cobra command for a Command.
func CreateCommand(c Command) *cobra.Command {
	cmd := &cobra.Command{
		Use:   c.Name(),
		Short: c.ShortDescription(),
		Long:  c.LongDescription(),
	}
	c.ConfigureCommand(cmd)
	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		return runCommand(cmd, args, c)
	}
	return cmd
}

// runCommand builds the fx app, runs c, and stops the app again.
func runCommand(cmd *cobra.Command, args []string, c Command) error {
	var app *fetcher.App
	fxApp := fx.New(
		configProvider(cmd),
		aferoModule.Module,
		logging.Module,
		logging.UseLoggingInterface,
		fx.Provide(func() prometheus.Registerer { return prometheus.DefaultRegisterer }),
		fetcher.Module,
		fx.Populate(&app),
	)
	if err := fxApp.Err(); err != nil {
		return err
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	if err := fxApp.Start(ctx); err != nil {
		return fmt.Errorf("failed to start %s: %w", c.Name(), err)
	}
	defer func() { _ = fxApp.Stop(context.Background()) }()

	return c.Run(ctx, cmd, args, app)
}
