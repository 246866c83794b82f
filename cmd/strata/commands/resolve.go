// Copyright 2026 The Strata Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"fmt"

	"github.com/spf13/pflag"

	"github.com/strata-config/strata/cmd/strata/cli"
	"github.com/strata-config/strata/lib/errkind"
	"github.com/strata-config/strata/lib/layer"
)

type resolveParams struct {
	Take  string `json:"take"  flag:"take,t"  desc:"take the path's content from this layer (as shown in the conflict report)"`
	File  string `json:"file"  flag:"file,f"  desc:"take the path's content from an external file, e.g. an edited artifact"`
	Abort bool   `json:"abort" flag:"abort"   desc:"discard every pending conflict and unpause"`
}

func resolveCommand() *cli.Command {
	var params resolveParams

	return &cli.Command{
		Name:    "resolve",
		Summary: "Settle conflicts from a paused apply",
		Description: `A paused apply leaves one artifact per conflicting path under
.strata/conflicts/, showing every layer's contribution. Resolve
each path by taking one layer's version (--take) or by pointing
at a file with the content you want, typically the hand-edited
artifact (--file). The paused marker lifts once the last path is
settled.

Without arguments, lists what is still pending. --abort discards
all pending conflicts without writing anything.`,
		Usage: "strata resolve [<path> (--take <layer> | --file <file>)] [--abort]",
		Flags: func() *pflag.FlagSet {
			return cli.FlagsFromParams("resolve", &params)
		},
		Examples: []cli.Example{
			{
				Description: "See what is pending",
				Command:     "strata resolve",
			},
			{
				Description: "Keep the mode layer's version",
				Command:     "strata resolve conf/ports.yaml --take layers/mode/work",
			},
			{
				Description: "Use a hand-merged artifact",
				Command:     "strata resolve conf/ports.yaml --file .strata/conflicts/conf/ports.yaml",
			},
			{
				Description: "Give up and unpause",
				Command:     "strata resolve --abort",
			},
		},
		Run: func(args []string) error {
			env, err := openEnv()
			if err != nil {
				return err
			}
			ws, err := env.workspace()
			if err != nil {
				return err
			}

			if params.Abort {
				if len(args) > 0 || params.Take != "" || params.File != "" {
					return errkind.Configf("--abort stands alone")
				}
				n, err := ws.ResolveAbort()
				if err != nil {
					return err
				}
				fmt.Printf("Discarded %d pending conflicts.\n", n)
				return nil
			}

			if len(args) == 0 {
				if params.Take != "" || params.File != "" {
					return errkind.Configf("--take and --file need the path to resolve")
				}
				pending, err := ws.PendingConflicts()
				if err != nil {
					return err
				}
				if len(pending) == 0 {
					fmt.Println("No pending conflicts.")
					return nil
				}
				fmt.Printf("Pending conflicts (%d):\n", len(pending))
				for _, p := range pending {
					fmt.Printf("  %s\n", p)
				}
				return nil
			}

			if len(args) > 1 {
				return errkind.Configf("resolve takes one path at a time")
			}
			filePath, err := env.workspacePath(args[0])
			if err != nil {
				return err
			}

			switch {
			case params.Take != "" && params.File != "":
				return errkind.Configf("--take and --file are mutually exclusive")
			case params.Take != "":
				source, err := layer.ParseRef(params.Take)
				if err != nil {
					return err
				}
				if err := ws.ResolveTake(filePath, source); err != nil {
					return err
				}
			case params.File != "":
				if err := ws.ResolveFile(filePath, params.File); err != nil {
					return err
				}
			default:
				return errkind.Configf("choose a resolution: --take <layer> or --file <file>")
			}

			fmt.Printf("Resolved %s.\n", filePath)
			pending, err := ws.PendingConflicts()
			if err != nil {
				return err
			}
			if len(pending) == 0 {
				fmt.Println("All conflicts resolved; apply is unblocked.")
			} else {
				fmt.Printf("%d conflicts still pending.\n", len(pending))
			}
			return nil
		},
	}
}
