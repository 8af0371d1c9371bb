package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/sgl-project/atlasdata/pkg/version"
)

var rootCmd = &cobra.Command{
	Use:     "atlas-fetch",
	Short:   "Fetch Allen Institute open dataset metadata and images",
	Long:    "atlas-fetch caches metadata from the allen-mouse-brain-atlas and allen-ivy-glioblastoma-atlas buckets and downloads cropped or mirrored section images.",
	Version: fmt.Sprintf("gitVersion=%s, gitCommit=%s", version.GitVersion, version.GitCommit),

	SilenceUsage: true,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "ERROR: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFilePath, "config", "c", "", "path to config file")
	rootCmd.PersistentFlags().BoolVarP(&debug, "debug", "d", false, "enable debug logging")
	rootCmd.PersistentFlags().String("dataset", "", "dataset to read: mouse-brain or ivy-gap")
	rootCmd.PersistentFlags().String("cache-dir", "", "directory for cached metadata")

	rootCmd.AddCommand(CreateCommand(&atlasCommand{}))
	rootCmd.AddCommand(CreateCommand(&sectionCommand{}))
	rootCmd.AddCommand(CreateCommand(&imageCommand{}))
	rootCmd.AddCommand(CreateCommand(&mirrorCommand{}))
}
