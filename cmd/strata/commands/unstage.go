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

type unstageParams struct {
	placementParams
	All bool `json:"all" flag:"all,a" desc:"drop every pending entry"`
}

func unstageCommand() *cli.Command {
	var params unstageParams
	var flagSet *pflag.FlagSet

	return &cli.Command{
		Name:    "unstage",
		Summary: "Drop pending changes without committing",
		Description: `Remove entries from the staging index. Layer history and the
workspace files are untouched; the snapshotted blobs stay in the
store unreferenced.

Without placement flags a path is dropped from every layer it is
staged for; with placement flags only the entry for that exact
layer goes.`,
		Usage: "strata unstage [flags] <path>...",
		Flags: func() *pflag.FlagSet {
			flagSet = cli.FlagsFromParams("unstage", &params)
			return flagSet
		},
		Examples: []cli.Example{
			{
				Description: "Drop a path wherever it is staged",
				Command:     "strata unstage conf/app.yaml",
			},
			{
				Description: "Drop only the mode-layer entry",
				Command:     "strata unstage --mode conf/app.yaml",
			},
			{
				Description: "Start over",
				Command:     "strata unstage --all",
			},
		},
		Run: func(args []string) error {
			env, err := openEnv()
			if err != nil {
				return err
			}
			index, err := env.loadIndex()
			if err != nil {
				return err
			}

			if params.All {
				if len(args) > 0 {
					return errkind.Configf("--all takes no paths")
				}
				n := index.Len()
				if n == 0 {
					fmt.Println("Nothing staged.")
					return nil
				}
				index.Clear()
				if err := index.Save(env.stagingPath()); err != nil {
					return err
				}
				fmt.Printf("Unstaged %d entries.\n", n)
				return nil
			}

			if len(args) == 0 {
				return errkind.Configf("nothing to unstage: give paths or --all")
			}

			exact := params.given(flagSet)
			var target layer.Ref
			if exact {
				target, err = layer.Route(params.routing(flagSet), env.context.Routing())
				if err != nil {
					return err
				}
			}

			removed := 0
			for _, arg := range args {
				filePath, err := env.workspacePath(arg)
				if err != nil {
					env.logger.Warn("unstage failed", "path", arg, "error", err)
					continue
				}
				if exact {
					if index.Unstage(target, filePath) {
						removed++
						fmt.Printf("unstaged %s from %s\n", filePath, target)
					}
					continue
				}
				if n := index.UnstagePath(filePath); n > 0 {
					removed += n
					fmt.Printf("unstaged %s (%d entries)\n", filePath, n)
				}
			}
			if removed == 0 {
				return errkind.NotFoundf("nothing staged matching the given paths")
			}
			return index.Save(env.stagingPath())
		},
	}
}
