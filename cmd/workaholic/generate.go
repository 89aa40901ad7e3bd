package main

import (
	"github.com/spf13/cobra"

	"github.com/workaholic-kv/workaholic/internal/application"
	"github.com/workaholic-kv/workaholic/internal/database"
	"github.com/workaholic-kv/workaholic/internal/logger"
	"github.com/workaholic-kv/workaholic/internal/usecase"
)

func newGenerateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "generate <source>",
		Short: "Print the derived namespaces as JSON without writing the store",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			log := logger.New(logger.Config{Level: cfg.Log.Level, Pretty: cfg.Log.Pretty, Output: cmd.ErrOrStderr()})

			app, err := application.New(cmd.Context(), cfg, log, application.Options{DBPath: database.MemoryPath})
			if err != nil {
				return err
			}
			defer func() {
				_ = app.Close()
			}()

			pipe, err := app.Pipeline()
			if err != nil {
				return err
			}

			tables, genErr := usecase.Generate(cmd.Context(), pipe, args[0])
			if tables == nil {
				return genErr
			}
			if err := outputJSON(cmd.OutOrStdout(), tables); err != nil {
				return err
			}
			return genErr
		},
	}

	return cmd
}
