package main

import (
	"github.com/spf13/cobra"

	"github.com/workaholic-kv/workaholic/internal/logger"
	"github.com/workaholic-kv/workaholic/internal/server"
)

func newServeCmd() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve queries, images and metrics over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer func() {
				_ = app.Close()
			}()

			if purged, err := app.Store.PurgeExpired(cmd.Context()); err != nil {
				return err
			} else if purged > 0 {
				app.Log.Info().Int64("rows", purged).Msg("Purged expired rows")
			}

			if !cmd.Flags().Changed("addr") {
				addr = app.Config.Server.Addr
			}
			srv := server.New(app.Router, app.Registry, logger.Component(app.Log, "http"), addr)
			return srv.Run(cmd.Context())
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (default: server.addr from config)")

	return cmd
}
