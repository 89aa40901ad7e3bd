package main

import (
	"fmt"
	"io"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/workaholic-kv/workaholic/internal/usecase"
)

func newBuildCmd() *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "build <source>",
		Short: "Build every namespace from a content directory or bundle",
		Long:  "Load raw entries from a directory or JSON(C) bundle, run the build pipeline and replace each derived namespace in the store.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if format != "table" && format != "json" {
				return fmt.Errorf("invalid format: %s (valid values: table, json)", format)
			}

			app, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer func() {
				_ = app.Close()
			}()

			uc, err := app.Build()
			if err != nil {
				return err
			}

			out, runErr := uc.Run(cmd.Context(), args[0])
			if out == nil {
				return runErr
			}

			if format == "json" {
				if err := outputJSON(cmd.OutOrStdout(), buildJSON(out)); err != nil {
					return err
				}
			} else {
				outputBuildTable(cmd.OutOrStdout(), out)
			}
			return runErr
		},
	}

	cmd.Flags().StringVar(&format, "format", "table", "Output format: table or json")

	return cmd
}

type buildOutputTable struct {
	Namespace string `json:"namespace"`
	Rows      int64  `json:"rows"`
	Digest    string `json:"digest,omitempty"`
	Status    string `json:"status"`
}

type buildOutput struct {
	ID       string             `json:"id"`
	Status   string             `json:"status"`
	Entries  int64              `json:"entries"`
	Dropped  int                `json:"dropped"`
	Purged   int64              `json:"purged"`
	Duration string             `json:"duration"`
	Error    string             `json:"error,omitempty"`
	Tables   []buildOutputTable `json:"tables"`
}

func buildJSON(out *usecase.BuildResult) buildOutput {
	build := out.Summary.Build
	result := buildOutput{
		ID:       build.ID,
		Status:   build.Status,
		Entries:  build.EntryCount,
		Purged:   out.Purged,
		Duration: build.FinishedAt.Sub(build.StartedAt).Round(time.Millisecond).String(),
		Error:    build.Error,
	}
	if out.Result != nil {
		result.Dropped = len(out.Result.Dropped)
	}
	for _, t := range out.Summary.Tables {
		result.Tables = append(result.Tables, buildOutputTable{
			Namespace: t.Namespace,
			Rows:      t.RowCount,
			Digest:    t.Digest,
			Status:    t.Status,
		})
	}
	return result
}

func outputBuildTable(w io.Writer, out *usecase.BuildResult) {
	summary := buildJSON(out)

	t := newTable(w)
	t.SetTitle("Build %s", summary.ID)
	t.AppendHeader(table.Row{"Namespace", "Rows", "Status", "Digest"})
	for _, row := range summary.Tables {
		digest := row.Digest
		if len(digest) > 16 {
			digest = digest[:16]
		}
		t.AppendRow(table.Row{row.Namespace, row.Rows, row.Status, digest})
	}
	t.AppendFooter(table.Row{
		fmt.Sprintf("%d entries", summary.Entries),
		fmt.Sprintf("%d dropped", summary.Dropped),
		summary.Status,
		summary.Duration,
	})
	t.Render()

	if summary.Purged > 0 {
		fmt.Fprintf(w, "Purged %d expired rows\n", summary.Purged)
	}
}
