// Package main provides the log-analyzer CLI entry point.
//
// log-analyzer finds the newest rotated nginx access log, aggregates
// per-URL request-time statistics, and renders them into an HTML report.
// It is meant to run from cron: a run with nothing to analyze exits 0.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/randomizedcoder/go-nginx-log-analyzer/internal/config"
	"github.com/randomizedcoder/go-nginx-log-analyzer/internal/logging"
	"github.com/randomizedcoder/go-nginx-log-analyzer/internal/orchestrator"
)

// version is set at build time via ldflags:
//
//	go build -ldflags "-X main.version=1.0.0" ./cmd/log-analyzer
var version = "dev"

func main() {
	os.Exit(run())
}

func run() int {
	// Handle version flag early (before flag parsing)
	if len(os.Args) > 1 {
		arg := os.Args[1]
		if arg == "-version" || arg == "--version" || arg == "version" {
			fmt.Printf("log-analyzer %s\n", version)
			return 0
		}
	}

	// Parse command-line flags (and the -config file they point at)
	cfg, err := config.ParseFlags()
	if errors.Is(err, flag.ErrHelp) {
		return 0
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error parsing flags: %v\n", err)
		return 1
	}

	if err := config.Validate(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "Configuration error: %v\n", err)
		return 1
	}

	// Initialize logger
	// When TUI is enabled, suppress logs to avoid interfering with TUI rendering
	var logger *slog.Logger
	closeLog := func() error { return nil }
	if cfg.TUIEnabled {
		logger = logging.NewLoggerWithWriter(io.Discard, "json", "info")
	} else {
		logger, closeLog, err = logging.NewRunLogger(cfg.LogFormat, "info", cfg.Verbose, cfg.SelfLogPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error opening log file: %v\n", err)
			return 1
		}
	}
	defer closeLog()
	logging.SetDefault(logger)

	if cfg.ConfigPath != "" {
		logger.Debug("config_loaded", "path", cfg.ConfigPath)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	orch := orchestrator.New(cfg, logger, version)
	if err := orch.Run(ctx); err != nil {
		if errors.Is(err, orchestrator.ErrNothingToDo) {
			return 0
		}
		logger.Error("analyzer_failed", "error", err)
		return 1
	}

	return 0
}
