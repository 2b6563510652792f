package cmd

import (
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/ziadkadry99/apiview/internal/config"
)

var (
	cfgFile string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "apiview",
	Short: "Browse a catalog of OpenAPI documents with Redoc and Swagger UI",
	Long: `apiview loads an index of API documents grouped by product or family
and serves a viewer where each document can be opened in Redoc or
Swagger UI. Every selection is addressable by URL, so views can be
bookmarked, shared and navigated with the browser's back and forward.`,
	SilenceUsage: true,
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", config.DefaultConfigFile, "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}

// newLogger builds the process logger: text or JSON on w, debug level with
// --verbose.
func newLogger(w io.Writer, format config.LogFormat) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	opts := &slog.HandlerOptions{Level: level}
	if format == config.LogJSON {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}
