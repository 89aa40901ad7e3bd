package main

import (
	"github.com/spf13/cobra"

	"github.com/workaholic-kv/workaholic/internal/mcp"
)

func newMCPCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mcp",
		Short: "Start MCP server",
		Long:  "Start the Model Context Protocol server exposing content queries and posts over stdio",
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer func() {
				_ = app.Close()
			}()

			return mcp.NewServer(app.Router, app.Source).Run(cmd.Context())
		},
	}

	return cmd
}
