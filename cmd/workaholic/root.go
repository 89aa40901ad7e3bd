package main

import (
	"github.com/spf13/cobra"

	"github.com/workaholic-kv/workaholic/internal/application"
	"github.com/workaholic-kv/workaholic/internal/config"
	"github.com/workaholic-kv/workaholic/internal/logger"
)

var (
	configPath string
	dbPath     string
	logLevel   string
	logPretty  bool
)

var rootCmd = &cobra.Command{
	Use:           "workaholic",
	Short:         "workaholic - derived content indices in a key/value store",
	Long:          "workaholic builds queryable indices from a content directory and serves them, together with posts read through a cached origin.",
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: false,
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&configPath, "config", "", "Path to the YAML config file (default: $WORKAHOLIC_CONFIG or XDG config home)")
	flags.StringVar(&dbPath, "db", "", "SQLite database path (default: data directory)")
	flags.StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn, error")
	flags.BoolVar(&logPretty, "pretty", false, "Human readable log output")

	rootCmd.AddCommand(newBuildCmd())
	rootCmd.AddCommand(newGenerateCmd())
	rootCmd.AddCommand(newQueryCmd())
	rootCmd.AddCommand(newPostsCmd())
	rootCmd.AddCommand(newPostCmd())
	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newMCPCmd())
}

// loadConfig reads the config file and applies the logging flags.
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return config.Config{}, err
	}
	if cmd.Flags().Changed("log-level") {
		cfg.Log.Level = logLevel
	}
	if cmd.Flags().Changed("pretty") {
		cfg.Log.Pretty = logPretty
	}
	return cfg, nil
}

// openApp loads the configuration and opens every component. The caller
// must Close the returned App.
func openApp(cmd *cobra.Command) (*application.App, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	log := logger.New(logger.Config{Level: cfg.Log.Level, Pretty: cfg.Log.Pretty, Output: cmd.ErrOrStderr()})
	return application.New(cmd.Context(), cfg, log, application.Options{DBPath: dbPath})
}
