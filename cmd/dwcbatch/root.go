package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/dwcbatch/internal/output"
	"github.com/jackzampolin/dwcbatch/version"
)

var (
	cfgFile      string
	homeDir      string
	outputFormat string
	logLevel     string
)

var rootCmd = &cobra.Command{
	Use:   "dwcbatch",
	Short: "Batch Darwin Core extraction from herbarium label OCR",
	Long: `dwcbatch turns OCR text from herbarium specimen labels into Darwin Core
records using an LLM batch API.

A run:
  - Formats each OCR record as a chat completion request
  - Uploads the requests as one JSONL batch file and submits the batch
  - Polls with exponential backoff until the batch completes or fails
  - Downloads the output and recovers a JSON object from every response`,
	Version:       version.GitRelease,
	SilenceUsage:  true,
	SilenceErrors: false,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		format, err := output.ParseFormat(outputFormat)
		if err != nil {
			return err
		}
		output.SetFormat(format)

		level, err := parseLevel(logLevel)
		if err != nil {
			return err
		}
		slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: level,
		})))
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(
		&cfgFile, "config", "", "config file (default: ./config.yaml or ~/.dwcbatch/config.yaml)",
	)
	rootCmd.PersistentFlags().StringVar(
		&homeDir, "home", "", "dwcbatch home directory (default: ~/.dwcbatch)",
	)
	rootCmd.PersistentFlags().StringVarP(
		&outputFormat, "output", "o", "yaml", "output format: yaml or json",
	)
	rootCmd.PersistentFlags().StringVar(
		&logLevel, "log-level", "info", "log level: debug, info, warn or error",
	)

	rootCmd.AddCommand(versionCmd)
}

func parseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("unknown log level %q", s)
	}
}
