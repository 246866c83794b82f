// Copyright 2026 The Strata Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"fmt"

	"github.com/strata-config/strata/cmd/strata/cli"
	"github.com/strata-config/strata/lib/errkind"
)

func projectCommand() *cli.Command {
	return &cli.Command{
		Name:    "project",
		Summary: "Set or clear the active project",
		Description: `Projects are free-form names, no registration: the active project
selects the default write target (its base layer) and pulls
project-narrowed mode layers into the merge.`,
		Subcommands: []*cli.Command{
			projectUseCommand(),
			projectClearCommand(),
		},
		Examples: []cli.Example{
			{
				Description: "Work on the api project",
				Command:     "strata project use api",
			},
			{
				Description: "Back to no project",
				Command:     "strata project clear",
			},
		},
	}
}

func projectUseCommand() *cli.Command {
	return &cli.Command{
		Name:    "use",
		Summary: "Activate a project",
		Usage:   "strata project use <name>",
		Run: func(args []string) error {
			if len(args) != 1 {
				return errkind.Configf("project use takes exactly one name")
			}
			env, err := openEnv()
			if err != nil {
				return err
			}
			if err := env.context.SetProject(args[0]); err != nil {
				return err
			}
			if err := env.saveContext(); err != nil {
				return err
			}
			fmt.Printf("Project %s is now active.\n", args[0])
			return nil
		},
	}
}

func projectClearCommand() *cli.Command {
	return &cli.Command{
		Name:    "clear",
		Summary: "Clear the active project",
		Usage:   "strata project clear",
		Run: func(args []string) error {
			if len(args) > 0 {
				return fmt.Errorf("unexpected argument: %s", args[0])
			}
			env, err := openEnv()
			if err != nil {
				return err
			}
			if env.context.Project == "" {
				fmt.Println("No project is active.")
				return nil
			}
			previous := env.context.Project
			env.context.ClearProject()
			if err := env.saveContext(); err != nil {
				return err
			}
			fmt.Printf("Cleared project %s.\n", previous)
			return nil
		},
	}
}
