// Package cmd implements the CLI commands for streamline.
package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sort"

	"github.com/spf13/cobra"

	"github.com/sanketb-14/Streamline-sub000/internal/config"
	"github.com/sanketb-14/Streamline-sub000/internal/observability"
	"github.com/sanketb-14/Streamline-sub000/internal/version"
)

// skipConfigAnnotation marks commands that run without loading configuration.
const skipConfigAnnotation = "streamline/skip-config"

var (
	// cfgFile holds the config file path from CLI flag.
	cfgFile string

	// appConfig is loaded once per invocation before the command runs.
	appConfig *config.Config
)

// flagKeys maps CLI flag names to the config keys they override.
var flagKeys = map[string]string{
	"log-level":      "logging.level",
	"log-format":     "logging.format",
	"host":           "server.host",
	"port":           "server.port",
	"database":       "database.dsn",
	"data-dir":       "storage.base_dir",
	"ffmpeg":         "transcoder.ffmpeg_path",
	"max-transcodes": "transcoder.max_concurrent",
}

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:     "streamline",
	Short:   "Video upload, transcoding and discovery service",
	Version: version.Short(),
	Long: `streamline accepts video uploads for user channels, normalizes them
into web-playable MP4 with a poster thumbnail, and serves a filterable,
paginated catalog of the results.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		if cmd.Annotations[skipConfigAnnotation] == "true" {
			return nil
		}
		return initConfig(cmd)
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		return fmt.Errorf("executing root command: %w", err)
	}
	return nil
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default searches ./config.yaml, ./configs, /etc/streamline)")
	rootCmd.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-format", "json", "log format (text, json)")
}

// initConfig loads configuration with the priority flag > env > file > default
// and installs the process logger.
func initConfig(cmd *cobra.Command) error {
	cfg, err := config.Load(cfgFile, flagBindings(cmd)...)
	if err != nil {
		return err
	}
	appConfig = cfg

	logger := observability.NewLoggerWithWriter(cfg.Logging, os.Stderr)
	slog.SetDefault(logger)
	observability.SetRequestLogging(cfg.Logging.RequestLogging)
	return nil
}

// flagBindings returns the bindings for every mapped flag cmd knows about.
func flagBindings(cmd *cobra.Command) []config.FlagBinding {
	names := make([]string, 0, len(flagKeys))
	for name := range flagKeys {
		names = append(names, name)
	}
	sort.Strings(names)

	var bindings []config.FlagBinding
	for _, name := range names {
		if f := cmd.Flags().Lookup(name); f != nil {
			bindings = append(bindings, config.FlagBinding{Key: flagKeys[name], Flag: f})
		}
	}
	return bindings
}
