package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

// Version is set at build time via -ldflags "-X main.Version=v1.0.0".
var Version = "dev"

var (
	cfgFile string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "gateway",
	Short: "goclaw-router — multi-dialect LLM gateway",
	Long:  "goclaw-router translates OpenAI Chat Completions, OpenAI Responses, Claude Messages, and Gemini requests to and from whichever upstream dialect each configured provider speaks.",
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config-file", "", "path to a JSONC provider registry (overrides RSP4COPILOT_CONFIG)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(doctorCmd())
	rootCmd.AddCommand(validateConfigCmd())
	rootCmd.AddCommand(versionCmd())
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("gateway %s\n", Version)
		},
	}
}

// setupLogging installs the process-wide structured logger. RSP4COPILOT_DEBUG
// set to a truthy value enables debug logging the same as --verbose.
func setupLogging() *slog.Logger {
	level := slog.LevelInfo
	if verbose || envBoolTrue(os.Getenv("RSP4COPILOT_DEBUG")) {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
	return logger
}

func envBoolTrue(v string) bool {
	switch v {
	case "1", "true", "yes", "on":
		return true
	default:
		return false
	}
}

// Execute runs the root cobra command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
