// Copyright 2026 The Strata Authors
// SPDX-License-Identifier: Apache-2.0

// Package commands builds the strata CLI command tree. Each command
// wires flag parsing and output formatting around the core libraries;
// no merge, staging, or storage logic lives here.
package commands

import (
	"fmt"

	"github.com/strata-config/strata/cmd/strata/cli"
	"github.com/strata-config/strata/lib/version"
)

// Root builds and returns the complete strata command tree.
func Root() *cli.Command {
	return &cli.Command{
		Name: "strata",
		Description: `Strata: layered configuration manager.

Maintain overlapping configuration layers (global, per-mode,
per-scope, per-project, per-machine), versioned in a local
content-addressed store and deterministically merged into your
working directory.`,
		Subcommands: []*cli.Command{
			initCommand(),
			modeCommand(),
			scopeCommand(),
			projectCommand(),
			stageCommand(),
			unstageCommand(),
			statusCommand(),
			commitCommand(),
			applyCommand(),
			resolveCommand(),
			showCommand(),
			diffCommand(),
			logCommand(),
			layersCommand(),
			sealCommand(),
			{
				Name:    "version",
				Summary: "Print version information",
				Run: func(args []string) error {
					fmt.Printf("strata %s\n", version.Full())
					return nil
				},
			},
		},
		Examples: []cli.Example{
			{
				Description: "Initialize a workspace in the current directory",
				Command:     "strata init",
			},
			{
				Description: "Create and activate a mode",
				Command:     "strata mode create dev && strata mode use dev",
			},
			{
				Description: "Stage a file into the active mode's layer",
				Command:     "strata stage --mode conf/app.yaml",
			},
			{
				Description: "Commit everything staged, atomically across layers",
				Command:     "strata commit -m 'raise worker pool size'",
			},
			{
				Description: "Materialize the merged configuration",
				Command:     "strata apply",
			},
			{
				Description: "Keep the workspace in sync as layers change",
				Command:     "strata apply --watch",
			},
			{
				Description: "See what apply would change without writing",
				Command:     "strata apply --dry-run",
			},
		},
	}
}
