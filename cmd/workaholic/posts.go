package main

import (
	"fmt"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/workaholic-kv/workaholic/internal/source"
)

func newPostsCmd() *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "posts",
		Short: "List blog posts from the configured origin",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer func() {
				_ = app.Close()
			}()

			src, err := app.PostSource()
			if err != nil {
				return err
			}
			posts, err := src.GetPosts(cmd.Context())
			if err != nil {
				return err
			}

			switch format {
			case "json":
				return outputJSON(cmd.OutOrStdout(), posts)
			case "table":
				outputPostsTable(cmd, posts)
				return nil
			default:
				return fmt.Errorf("invalid format: %s (valid values: table, json)", format)
			}
		},
	}

	cmd.Flags().StringVar(&format, "format", "table", "Output format: table or json")

	return cmd
}

func outputPostsTable(cmd *cobra.Command, posts []source.Post) {
	slugs := make([]string, 0, len(posts))
	titles := make([]string, 0, len(posts))
	for _, post := range posts {
		slugs = append(slugs, post.Slug)
		titles = append(titles, post.Title)
	}
	slugWidth := maxWidth(slugs, 4, 40)
	titleWidth := maxWidth(titles, 5, 50)
	dateWidth := 10
	descWidth := flexWidth(slugWidth, titleWidth, dateWidth)

	t := newTable(cmd.OutOrStdout())
	t.AppendHeader(table.Row{"Slug", "Date", "Title", "Description"})
	for _, post := range posts {
		t.AppendRow(table.Row{
			fit(post.Slug, slugWidth),
			post.Date,
			fit(post.Title, titleWidth),
			fit(post.Description, descWidth),
		})
	}
	t.Render()
}

func newPostCmd() *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "post <slug>",
		Short: "Print one blog post",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer func() {
				_ = app.Close()
			}()

			src, err := app.PostSource()
			if err != nil {
				return err
			}
			post, err := src.GetPost(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			switch format {
			case "json":
				return outputJSON(cmd.OutOrStdout(), post)
			case "text":
				_, err := fmt.Fprint(cmd.OutOrStdout(), post.Content)
				return err
			default:
				return fmt.Errorf("invalid format: %s (valid values: text, json)", format)
			}
		},
	}

	cmd.Flags().StringVar(&format, "format", "text", "Output format: text or json")

	return cmd
}
