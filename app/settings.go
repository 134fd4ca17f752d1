package app

import (
	"encoding/json"
	"io"
	"os"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/quillblog/quill/internal/codec"
	"github.com/quillblog/quill/internal/daemon"
	"github.com/quillblog/quill/internal/db/models"
	"github.com/quillblog/quill/internal/settings"
)

func init() { //nolint: gochecknoinits
	exportCmd.Flags().StringVarP(&outputPath, "output", "o", "", "output file, format from its extension (default stdout as JSON)")

	importCmd.Flags().StringVar(&description, "description", "", "history description of the import")
	importCmd.Flags().StringVar(&actorName, "actor", "", "name recorded as the author of the change")

	historyCmd.Flags().IntVar(&page, "page", 1, "page number")
	historyCmd.Flags().IntVar(&limit, "limit", 0, "entries per page (default from config)")

	rollbackCmd.Flags().StringVar(&description, "description", "", "reason recorded with the rollback")
	rollbackCmd.Flags().StringVar(&actorName, "actor", "", "name recorded as the author of the change")

	rootCmd.AddCommand(exportCmd, importCmd, historyCmd, rollbackCmd)
}

var (
	outputPath  string
	description string
	actorName   string
	page        int
	limit       int

	exportCmd = &cobra.Command{
		Use:     "export",
		Short:   "Export all settings as JSON or YAML",
		Args:    cobra.NoArgs,
		PreRunE: loadConfig,
		RunE: func(cmd *cobra.Command, _ []string) error {
			svc, closeDB, err := daemon.OpenSettings(&cfg)
			if err != nil {
				return err
			}
			defer closeDB()

			doc, err := svc.Export(cmd.Context())
			if err != nil {
				return err
			}

			if outputPath == "" {
				return codec.EncodeDocument(cmd.OutOrStdout(), doc, codec.FormatJSON)
			}

			f, err := os.Create(outputPath)
			if err != nil {
				return errors.Wrap(err, "create export file")
			}
			defer f.Close() //nolint:errcheck

			if err = codec.EncodeDocument(f, doc, codec.FormatFromPath(outputPath)); err != nil {
				return err
			}

			log.Info().Int("settings", len(doc.Settings)).Str("file", outputPath).Msg("settings exported")

			return nil
		},
	}

	importCmd = &cobra.Command{
		Use:     "import <file>",
		Short:   "Import an export document, all or nothing",
		Args:    cobra.ExactArgs(1),
		PreRunE: loadConfig,
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return errors.Wrap(err, "open import file")
			}
			defer f.Close() //nolint:errcheck

			doc, err := codec.DecodeDocument(f, codec.FormatFromPath(args[0]))
			if err != nil {
				return err
			}

			svc, closeDB, err := daemon.OpenSettings(&cfg)
			if err != nil {
				return err
			}
			defer closeDB()

			result, err := svc.Import(cmd.Context(), doc, cliMeta())
			if err != nil {
				return err
			}

			if err = daemon.DropSharedSnapshot(&cfg); err != nil {
				log.Warn().Err(err).Msg("running servers keep their cached snapshot until it expires")
			}

			return printJSON(cmd.OutOrStdout(), result)
		},
	}

	historyCmd = &cobra.Command{
		Use:     "history [key]",
		Short:   "Show the change history of one key or of all keys",
		Args:    cobra.MaximumNArgs(1),
		PreRunE: loadConfig,
		RunE: func(cmd *cobra.Command, args []string) error {
			var key string
			if len(args) == 1 {
				key = args[0]
			}

			svc, closeDB, err := daemon.OpenSettings(&cfg)
			if err != nil {
				return err
			}
			defer closeDB()

			out, err := svc.History(cmd.Context(), key, page, limit)
			if err != nil {
				return err
			}

			return printJSON(cmd.OutOrStdout(), out)
		},
	}

	rollbackCmd = &cobra.Command{
		Use:     "rollback <historyId>",
		Short:   "Restore the value recorded by a history entry",
		Args:    cobra.ExactArgs(1),
		PreRunE: loadConfig,
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, closeDB, err := daemon.OpenSettings(&cfg)
			if err != nil {
				return err
			}
			defer closeDB()

			restored, err := svc.Rollback(cmd.Context(), args[0], cliMeta())
			if err != nil {
				return err
			}

			if err = daemon.DropSharedSnapshot(&cfg); err != nil {
				log.Warn().Err(err).Msg("running servers keep their cached snapshot until it expires")
			}

			return printJSON(cmd.OutOrStdout(), settings.ViewOf(restored))
		},
	}
)

func cliMeta() settings.Meta {
	return settings.Meta{
		Actor:       models.Actor{Name: actorName},
		Description: description,
	}
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")

	return enc.Encode(v)
}
