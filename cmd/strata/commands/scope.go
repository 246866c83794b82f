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

func scopeCommand() *cli.Command {
	return &cli.Command{
		Name:    "scope",
		Summary: "Manage scopes and the active scope",
		Description: `Scopes are a finer activation axis inside or alongside modes:
client-a, on-call, demo. A scope created with --bind only
activates while its mode is active and deactivates with it.`,
		Subcommands: []*cli.Command{
			scopeCreateCommand(),
			scopeListCommand(),
			scopeUseCommand(),
			scopeDeactivateCommand(),
			scopeDeleteCommand(),
		},
		Examples: []cli.Example{
			{
				Description: "Create a scope bound to the work mode",
				Command:     "strata scope create client-a --bind work",
			},
			{
				Description: "Activate it while work is active",
				Command:     "strata scope use client-a",
			},
		},
	}
}

type scopeCreateParams struct {
	Description string `json:"description" flag:"description,d" desc:"free-form description stored with the scope"`
	Bind        string `json:"bind"        flag:"bind,b"        desc:"bind the scope to a mode so it only activates with it"`
}

func scopeCreateCommand() *cli.Command {
	var params scopeCreateParams

	return &cli.Command{
		Name:    "create",
		Summary: "Register a new scope",
		Usage:   "strata scope create <name> [flags]",
		Flags: func() *pflag.FlagSet {
			return cli.FlagsFromParams("create", &params)
		},
		Run: func(args []string) error {
			if len(args) != 1 {
				return errkind.Configf("scope create takes exactly one name")
			}
			env, err := openEnv()
			if err != nil {
				return err
			}
			descriptor, err := env.registry().CreateScope(args[0], params.Description, params.Bind)
			if err != nil {
				return err
			}
			if descriptor.BoundMode != "" {
				fmt.Printf("Created scope %s (bound to mode %s).\n", descriptor.Name, descriptor.BoundMode)
			} else {
				fmt.Printf("Created scope %s.\n", descriptor.Name)
			}
			return nil
		},
	}
}

// scopeInfo is the output row for scope list.
type scopeInfo struct {
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	BoundMode   string    `json:"bound_mode,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	Active      bool      `json:"active"`
}

type scopeListParams struct {
	cli.JSONOutput
}

func scopeListCommand() *cli.Command {
	var params scopeListParams

	return &cli.Command{
		Name:    "list",
		Summary: "List registered scopes",
		Usage:   "strata scope list [flags]",
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
			descriptors, err := env.registry().ListScopes()
			if err != nil {
				return err
			}

			infos := make([]scopeInfo, len(descriptors))
			for i, d := range descriptors {
				infos[i] = scopeInfo{
					Name:        d.Name,
					Description: d.Description,
					BoundMode:   d.BoundMode,
					CreatedAt:   d.CreatedAt,
					Active:      d.Name == env.context.Scope,
				}
			}
			if done, err := params.EmitJSON(infos); done {
				return err
			}

			if len(infos) == 0 {
				fmt.Println("No scopes registered. Create one with `strata scope create <name>`.")
				return nil
			}
			tw := tabwriter.NewWriter(os.Stdout, 2, 0, 3, ' ', 0)
			fmt.Fprintf(tw, "NAME\tACTIVE\tBOUND TO\tDESCRIPTION\tCREATED\n")
			for _, info := range infos {
				active := ""
				if info.Active {
					active = "*"
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
					info.Name, active, info.BoundMode, info.Description,
					info.CreatedAt.Local().Format("2006-01-02 15:04"))
			}
			return tw.Flush()
		},
	}
}

func scopeUseCommand() *cli.Command {
	return &cli.Command{
		Name:    "use",
		Summary: "Activate a scope",
		Description: `Make the named scope active. A bound scope activates only while
its mode is the active one.`,
		Usage: "strata scope use <name>",
		Run: func(args []string) error {
			if len(args) != 1 {
				return errkind.Configf("scope use takes exactly one name")
			}
			env, err := openEnv()
			if err != nil {
				return err
			}
			descriptor, err := env.registry().GetScope(args[0])
			if err != nil {
				return err
			}
			if err := env.context.ActivateScope(descriptor.Name, descriptor.BoundMode); err != nil {
				return err
			}
			if err := env.saveContext(); err != nil {
				return err
			}
			fmt.Printf("Scope %s is now active.\n", descriptor.Name)
			return nil
		},
	}
}

func scopeDeactivateCommand() *cli.Command {
	return &cli.Command{
		Name:    "deactivate",
		Summary: "Deactivate the active scope",
		Usage:   "strata scope deactivate",
		Run: func(args []string) error {
			if len(args) > 0 {
				return fmt.Errorf("unexpected argument: %s", args[0])
			}
			env, err := openEnv()
			if err != nil {
				return err
			}
			if env.context.Scope == "" {
				fmt.Println("No scope is active.")
				return nil
			}
			previous := env.context.Scope
			env.context.DeactivateScope()
			if err := env.saveContext(); err != nil {
				return err
			}
			fmt.Printf("Deactivated scope %s.\n", previous)
			return nil
		},
	}
}

func scopeDeleteCommand() *cli.Command {
	return &cli.Command{
		Name:    "delete",
		Summary: "Delete a scope's registration",
		Description: `Remove the scope's descriptor. Deletion is refused while the
scope is active or while any of its layers still has commit
history.`,
		Usage: "strata scope delete <name>",
		Run: func(args []string) error {
			if len(args) != 1 {
				return errkind.Configf("scope delete takes exactly one name")
			}
			env, err := openEnv()
			if err != nil {
				return err
			}
			if env.context.Scope == args[0] {
				return errkind.Configf("scope %q is active; run `strata scope deactivate` first", args[0])
			}
			if err := env.registry().DeleteScope(args[0]); err != nil {
				return err
			}
			fmt.Printf("Deleted scope %s.\n", args[0])
			return nil
		},
	}
}
