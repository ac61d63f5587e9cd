package cli

import (
	"github.com/spf13/cobra"

	"github.com/veridian-labs/newsvault/internal/logger"
)

var (
	configPath string
	verbose    bool
)

var rootCmd = &cobra.Command{
	Use:   "newsvaultd",
	Short: "News replica server backed by object storage",
	Long: `newsvaultd serves read queries over a news dataset whose
authoritative copy lives in object storage as partitioned parquet
files. A local SQLite replica is kept warm by a background refresh
cycle and can be backed up to, and restored from, versioned snapshots.`,
	PersistentPreRun: func(_ *cobra.Command, _ []string) {
		logger.SetVerbose(verbose)
	},
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (default ~/.newsvault/config.toml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose logging")
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
