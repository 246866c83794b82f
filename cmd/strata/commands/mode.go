// Copyright 2026 The Strata Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/pflag"

	"github.com/strata-config/strata/cmd/strata/cli"
	"github.com/strata-config/strata/lib/errkind"
)

func modeCommand() *cli.Command {
	return &cli.Command{
		Name:    "mode",
		Summary: "Manage modes and the active mode",
		Description: `Modes are the coarsest activation axis: work, gaming, focus.
Activating a mode pulls its layers into the merge; at most one
mode is active at a time.`,
		Subcommands: []*cli.Command{
			modeCreateCommand(),
			modeListCommand(),
			modeUseCommand(),
			modeDeactivateCommand(),
			modeDeleteCommand(),
		},
		Examples: []cli.Example{
			{
				Description: "Create and switch to a mode",
				Command:     "strata mode create work && strata mode use work",
			},
			{
				Description: "Stop applying mode layers",
				Command:     "strata mode deactivate",
			},
		},
	}
}

type modeCreateParams struct {
	Description string `json:"description" flag:"description,d" desc:"free-form description stored with the mode"`
}

func modeCreateCommand() *cli.Command {
	var params modeCreateParams

	return &cli.Command{
		Name:    "create",
		Summary: "Register a new mode",
		Usage:   "strata mode create <name> [flags]",
		Flags: func() *pflag.FlagSet {
			return cli.FlagsFromParams("create", &params)
		},
		Run: func(args []string) error {
			if len(args) != 1 {
				return errkind.Configf("mode create takes exactly one name")
			}
			env, err := openEnv()
			if err != nil {
				return err
			}
			descriptor, err := env.registry().CreateMode(args[0], params.Description)
			if err != nil {
				return err
			}
			fmt.Printf("Created mode %s.\n", descriptor.Name)
			return nil
		},
	}
}

// modeInfo is the output row for mode list.
type modeInfo struct {
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	Active      bool      `json:"active"`
}

type modeListParams struct {
	cli.JSONOutput
}

func modeListCommand() *cli.Command {
	var params modeListParams

	return &cli.Command{
		Name:    "list",
		Summary: "List registered modes",
		Usage:   "strata mode list [flags]",
		Flags: func() *pflag.FlagSet {
			return cli.FlagsFromParams("list", &params)
		},
		Run: func(args []string) error {
			if len(args) > 0 {
				return fmt.Errorf("unexpected argument: %s", args[0])
			}
			env, err := openEnv()
			if err != nil {
				return err
			}
			descriptors, err := env.registry().ListModes()
			if err != nil {
				return err
			}

			infos := make([]modeInfo, len(descriptors))
			for i, d := range descriptors {
				infos[i] = modeInfo{
					Name:        d.Name,
					Description: d.Description,
					CreatedAt:   d.CreatedAt,
					Active:      d.Name == env.context.Mode,
				}
			}
			if done, err := params.EmitJSON(infos); done {
				return err
			}

			if len(infos) == 0 {
				fmt.Println("No modes registered. Create one with `strata mode create <name>`.")
				return nil
			}
			tw := tabwriter.NewWriter(os.Stdout, 2, 0, 3, ' ', 0)
			fmt.Fprintf(tw, "NAME\tACTIVE\tDESCRIPTION\tCREATED\n")
			for _, info := range infos {
				active := ""
				if info.Active {
					active = "*"
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n",
					info.Name, active, info.Description,
					info.CreatedAt.Local().Format("2006-01-02 15:04"))
			}
			return tw.Flush()
		},
	}
}

func modeUseCommand() *cli.Command {
	return &cli.Command{
		Name:    "use",
		Summary: "Activate a mode",
		Description: `Make the named mode active. Its layers join the merge on the
next apply. A scope bound to a different mode is deactivated
along the way.`,
		Usage: "strata mode use <name>",
		Run: func(args []string) error {
			if len(args) != 1 {
				return errkind.Configf("mode use takes exactly one name")
			}
			env, err := openEnv()
			if err != nil {
				return err
			}
			// Activation is by registered name only; a typo here would
			// otherwise silently route writes to a brand-new layer.
			if _, err := env.registry().GetMode(args[0]); err != nil {
				return err
			}
			deactivatedScope, err := env.context.ActivateMode(args[0])
			if err != nil {
				return err
			}
			if err := env.saveContext(); err != nil {
				return err
			}
			fmt.Printf("Mode %s is now active.\n", args[0])
			if deactivatedScope != "" {
				fmt.Printf("Deactivated scope %s (bound to a different mode).\n", deactivatedScope)
			}
			return nil
		},
	}
}

func modeDeactivateCommand() *cli.Command {
	return &cli.Command{
		Name:    "deactivate",
		Summary: "Deactivate the active mode",
		Usage:   "strata mode deactivate",
		Run: func(args []string) error {
			if len(args) > 0 {
				return fmt.Errorf("unexpected argument: %s", args[0])
			}
			env, err := openEnv()
			if err != nil {
				return err
			}
			if env.context.Mode == "" {
				fmt.Println("No mode is active.")
				return nil
			}
			previous := env.context.Mode
			deactivatedScope := env.context.DeactivateMode()
			if err := env.saveContext(); err != nil {
				return err
			}
			fmt.Printf("Deactivated mode %s.\n", previous)
			if deactivatedScope != "" {
				fmt.Printf("Deactivated scope %s (bound to it).\n", deactivatedScope)
			}
			return nil
		},
	}
}

func modeDeleteCommand() *cli.Command {
	return &cli.Command{
		Name:    "delete",
		Summary: "Delete a mode's registration",
		Description: `Remove the mode's descriptor. Deletion is refused while the mode
is active, while scopes are bound to it, or while any of its
layers still has commit history.`,
		Usage: "strata mode delete <name>",
		Run: func(args []string) error {
			if len(args) != 1 {
				return errkind.Configf("mode delete takes exactly one name")
			}
			env, err := openEnv()
			if err != nil {
				return err
			}
			if env.context.Mode == args[0] {
				return errkind.Configf("mode %q is active; run `strata mode deactivate` first", args[0])
			}
			if err := env.registry().DeleteMode(args[0]); err != nil {
				return err
			}
			fmt.Printf("Deleted mode %s.\n", args[0])
			return nil
		},
	}
}
