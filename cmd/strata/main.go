// Copyright 2026 The Strata Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/strata-config/strata/cmd/strata/cli"
	"github.com/strata-config/strata/cmd/strata/commands"
	"github.com/strata-config/strata/lib/errkind"
)

func main() {
	if err := run(); err != nil {
		// Commands that print their own report (like a paused apply)
		// return an ExitError with the desired code. Don't print a
		// redundant "error:" line for those.
		if coder, ok := err.(interface{ ExitCode() int }); ok {
			os.Exit(coder.ExitCode())
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(exitCode(err))
	}
}

func run() error {
	args, err := peelLogLevel(os.Args[1:])
	if err != nil {
		return err
	}
	return commands.Root().Execute(args)
}

// peelLogLevel extracts a global --log-level flag before dispatch so
// it works in any position, with any subcommand. Both "--log-level
// debug" and "--log-level=debug" forms are accepted.
func peelLogLevel(args []string) ([]string, error) {
	rest := make([]string, 0, len(args))
	for i := 0; i < len(args); i++ {
		arg := args[i]
		var value string
		switch {
		case arg == "--log-level":
			if i+1 >= len(args) {
				return nil, fmt.Errorf("--log-level needs a value (debug, info, warn, or error)")
			}
			i++
			value = args[i]
		case strings.HasPrefix(arg, "--log-level="):
			value = strings.TrimPrefix(arg, "--log-level=")
		default:
			rest = append(rest, arg)
			continue
		}
		level, err := cli.ParseLogLevel(value)
		if err != nil {
			return nil, err
		}
		cli.SetLogLevel(level)
	}
	return rest, nil
}

// exitCode maps error kinds to process exit codes so scripts can
// tell a bad invocation from a merge conflict without parsing stderr.
func exitCode(err error) int {
	switch errkind.KindOf(err) {
	case errkind.Config:
		return 2
	case errkind.NotInitialized:
		return 3
	case errkind.NoActiveMode:
		return 4
	case errkind.MergeConflict:
		return 5
	case errkind.StagingFailed:
		return 6
	case errkind.CommitConflict:
		return 7
	default:
		return 1
	}
}
