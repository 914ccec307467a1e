// Package cmd contains the CLI entry points for the kayphi chatbot
// service.
package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/kayphi/kayphi/internal/log"
)

// Version information (injected at build time via ldflags).
var (
	AppVersion = "0.1.0"
	BuildTime  = "unknown"
	GitCommit  = "unknown"
)

// Execute is the main entry point for the kayphi binary.
// The default command starts the HTTP server.
func Execute() error {
	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "version", "--version", "-v":
			printVersionInfo()
			return nil
		case "help", "--help", "-h":
			printHelp()
			return nil
		case "serve":
			// fall through to the default below
		default:
			printHelp()
			return fmt.Errorf("unknown command %q", os.Args[1])
		}
	}

	logger := initLogger()
	slog.SetDefault(logger)

	return runServe(logger)
}

// initLogger builds the process logger. DEBUG in the environment
// enables debug level; KAYPHI_LOG_JSON selects JSON output for
// log aggregation.
func initLogger() *slog.Logger {
	return log.New(log.Config{
		Level: logLevel(),
		JSON:  os.Getenv("KAYPHI_LOG_JSON") != "",
	})
}

func logLevel() slog.Level {
	if os.Getenv("DEBUG") != "" {
		return slog.LevelDebug
	}
	return slog.LevelInfo
}

func printVersionInfo() {
	fmt.Printf("kayphi v%s\n", AppVersion)
	fmt.Printf("Build: %s\n", BuildTime)
	fmt.Printf("Commit: %s\n", GitCommit)
}

func printHelp() {
	fmt.Println(`kayphi - retrieval-augmented chatbot service

Usage:
  kayphi [serve]    Start the HTTP API server (default)
  kayphi version    Print version information
  kayphi help       Show this help

Configuration is read from kayphi.yaml and KAYPHI_* environment
variables. See the README for the full list of settings.`)
}
