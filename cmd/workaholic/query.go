package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/workaholic-kv/workaholic/internal/plugins"
	"github.com/workaholic-kv/workaholic/internal/query"
)

func newQueryCmd() *cobra.Command {
	var (
		accept string
		output string
	)

	cmd := &cobra.Command{
		Use:   "query <namespace> [key]",
		Short: "Look up a key in a namespace",
		Long:  "Look up a key in a namespace and print the result as JSON. Images are written raw to --output or stdout.",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			namespace := args[0]
			key := ""
			if len(args) == 2 {
				key = args[1]
			}

			app, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer func() {
				_ = app.Close()
			}()

			result, err := app.Router.Query(cmd.Context(), namespace, key, query.Options{Accept: accept})
			if err != nil {
				return err
			}
			if result == nil {
				return fmt.Errorf("key not found: %s/%s", namespace, key)
			}

			if image, ok := result.(*plugins.Image); ok {
				return writeImage(cmd, image, output)
			}
			return outputJSON(cmd.OutOrStdout(), result)
		},
	}

	cmd.Flags().StringVar(&accept, "accept", "image/avif,image/webp,*/*", "Accept header used to pick an image format")
	cmd.Flags().StringVarP(&output, "output", "o", "", "Write image bytes to this file instead of stdout")

	return cmd
}

func writeImage(cmd *cobra.Command, image *plugins.Image, output string) error {
	defer image.Body.Close()

	w := cmd.OutOrStdout()
	if output != "" {
		file, err := os.Create(output)
		if err != nil {
			return err
		}
		defer file.Close()
		w = file
	}

	n, err := io.Copy(w, image.Body)
	if err != nil {
		return err
	}
	if output != "" {
		fmt.Fprintf(cmd.ErrOrStderr(), "Wrote %s (%s, %d bytes) to %s\n", image.Key, image.ContentType, n, output)
	}
	return nil
}
