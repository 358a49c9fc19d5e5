package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	rxreader "github.com/menta2k/rx-reader"
	"github.com/menta2k/rx-reader/internal/config"
)

var (
	cfgFile      string
	outputFormat string
	logLevel     string
	logFormat    string
)

var rootCmd = &cobra.Command{
	Use:   "rxreader",
	Short: "Read medicine names from photos of handwritten prescriptions",
	Long: `rxreader reads a handwritten prescription with a vision model several
times at different temperatures, groups the medicine names it finds by
position, checks each group against web search and writes a final list of
medicines with dosage and instructions.

Backends:
  - openai  any OpenAI-compatible endpoint (Gemini by default)
  - ollama  a local Ollama server`,
	Version:      rxreader.Version,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(
		&cfgFile, "config", "", "config file (default: ./config.yaml or ~/.config/rx-reader/config.yaml)",
	)
	rootCmd.PersistentFlags().StringVarP(
		&outputFormat, "output", "o", "text", "output format: text, json or yaml",
	)
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level: debug, info, warn or error")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "", "log format: text or json")

	rootCmd.AddCommand(readCmd, serveCmd, configCmd, versionCmd)
}

// loadConfig reads the config file and environment, then applies the
// persistent flags that override them
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, err
	}
	if cmd.Flags().Changed("log-level") {
		cfg.Log.Level = logLevel
	}
	if cmd.Flags().Changed("log-format") {
		cfg.Log.Format = logFormat
	}
	return cfg, nil
}

// newLogger builds the process logger. Logs go to stderr so stdout only
// carries results.
func newLogger(cfg config.LogConfig) (*slog.Logger, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.ToLower(cfg.Level))); err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", cfg.Level, err)
	}
	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	switch strings.ToLower(cfg.Format) {
	case "json":
		handler = slog.NewJSONHandler(os.Stderr, opts)
	default:
		handler = slog.NewTextHandler(os.Stderr, opts)
	}
	return slog.New(handler), nil
}
