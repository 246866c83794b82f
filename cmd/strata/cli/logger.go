// Copyright 2026 The Strata Authors
// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"fmt"
	"log/slog"
	"os"

	"golang.org/x/term"
)

// logLevel is the process-wide minimum level for command loggers. The
// zero value of slog.LevelVar is Info; main raises or lowers it from
// the --log-level flag before dispatching.
var logLevel slog.LevelVar

// SetLogLevel adjusts the minimum level for every logger subsequently
// (and already) created by [NewCommandLogger].
func SetLogLevel(level slog.Level) {
	logLevel.Set(level)
}

// ParseLogLevel maps a --log-level value to a slog level.
func ParseLogLevel(name string) (slog.Level, error) {
	switch name {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("unknown log level %q (want debug, info, warn, or error)", name)
	}
}

// NewCommandLogger creates a structured logger for CLI command
// operations. When stderr is a terminal, uses slog.TextHandler for
// human-readable output. When stderr is piped or redirected (CI,
// scripts, integration tests), uses slog.JSONHandler for
// machine-parseable output.
//
// Callers scope the logger with command-specific context via With():
//
//	logger := cli.NewCommandLogger().With("command", "apply")
func NewCommandLogger() *slog.Logger {
	var handler slog.Handler
	options := &slog.HandlerOptions{Level: &logLevel}
	if term.IsTerminal(int(os.Stderr.Fd())) {
		handler = slog.NewTextHandler(os.Stderr, options)
	} else {
		handler = slog.NewJSONHandler(os.Stderr, options)
	}
	return slog.New(handler)
}
