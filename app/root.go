// Package app implements the main application commands.
package app

import (
	"github.com/spf13/cobra"

	"github.com/quillblog/quill/internal/config"
	"github.com/quillblog/quill/internal/logger"
)

var (
	configPath string // Path to the configuration directory
	cfg        config.Config

	rootCmd = &cobra.Command{
		Use:   "quill",
		Short: "quill serves and manages the settings of a blog",
		Long: `quill keeps the settings of a blog with a complete change history.
It serves them through a REST api and manages them from the command line:
export, import, history and rollback.`,
		Args:          cobra.OnlyValidArgs,
		SilenceUsage:  true,
		SilenceErrors: false,
	}
)

func init() { //nolint: gochecknoinits
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "directory containing main.toml (default ./etc/)")
}

// loadConfig reads the configuration and initializes the logger.
func loadConfig(_ *cobra.Command, _ []string) error {
	var err error

	if cfg, err = config.ReadConfig(configPath); err != nil {
		return err
	}

	return logger.Init(cfg.Log)
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
