package app

import (
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/quillblog/quill/internal/config"
	"github.com/quillblog/quill/internal/daemon"
)

func init() { //nolint: gochecknoinits
	startCmd.Flags().BoolVar(&devMode, "dev", false, "Enable dev mode")

	rootCmd.AddCommand(startCmd)
}

var (
	devMode bool

	startCmd = &cobra.Command{
		Use:   "start",
		Short: "Start the settings api",
		PreRunE: func(cmd *cobra.Command, args []string) error {
			if err := loadConfig(cmd, args); err != nil {
				return err
			}

			if devMode {
				cfg.DevMode = true
				cfg.DB.Debug = true

				masked := cfg
				masked.DB.Password = ""
				masked.Cache.Redis.Password = ""

				if dump, err := config.DumpConfig(&masked); err == nil {
					log.Debug().Msg("effective config:\n" + dump)
				}
			}

			return nil
		},
		RunE: func(_ *cobra.Command, _ []string) error {
			d, err := daemon.New(&cfg)
			if err != nil {
				return err
			}

			return d.Start()
		},
	}
)
