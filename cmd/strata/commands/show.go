// Copyright 2026 The Strata Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"os"
	"strings"

	"github.com/spf13/pflag"

	"github.com/strata-config/strata/cmd/strata/cli"
	"github.com/strata-config/strata/lib/errkind"
	"github.com/strata-config/strata/lib/layer"
)

type showParams struct {
	placementParams
}

func showCommand() *cli.Command {
	var params showParams
	var flagSet *pflag.FlagSet

	return &cli.Command{
		Name:    "show",
		Summary: "Print a path's merged or per-layer content",
		Description: `Print what apply would materialize for a path, without touching
the workspace. With a placement flag, print the committed content
of that single layer instead. Sealed content is decrypted when an
identity is configured.`,
		Usage: "strata show [flags] <path>",
		Flags: func() *pflag.FlagSet {
			flagSet = cli.FlagsFromParams("show", &params)
			return flagSet
		},
		Examples: []cli.Example{
			{
				Description: "Merged content for the current context",
				Command:     "strata show conf/app.yaml",
			},
			{
				Description: "Only the global layer's version",
				Command:     "strata show --global conf/app.yaml",
			},
		},
		Run: func(args []string) error {
			if len(args) != 1 {
				return errkind.Configf("show takes exactly one path")
			}
			env, err := openEnv()
			if err != nil {
				return err
			}
			filePath, err := env.workspacePath(args[0])
			if err != nil {
				return err
			}
			ws, err := env.workspace()
			if err != nil {
				return err
			}

			if params.given(flagSet) {
				target, err := layer.Route(params.routing(flagSet), env.context.Routing())
				if err != nil {
					return err
				}
				content, _, err := ws.LayerContent(target, filePath)
				if err != nil {
					return err
				}
				_, err = os.Stdout.Write(content)
				return err
			}

			state, err := ws.ComputeMergedState(env.context.Routing())
			if err != nil {
				return err
			}
			ps, ok := state.Files[filePath]
			if !ok {
				return errkind.NotFoundf("no applicable layer provides %s", filePath)
			}
			if ps.Conflict != nil {
				sources := make([]string, len(ps.Conflict.Contributions))
				for i, contribution := range ps.Conflict.Contributions {
					sources[i] = contribution.Layer.Path()
				}
				return errkind.MergeConflictf(
					"%s conflicts between %s; show one layer with a placement flag, or run `strata apply` and resolve",
					filePath, strings.Join(sources, " and "))
			}
			if ps.Deleted {
				return errkind.NotFoundf("the merged state removes %s", filePath)
			}
			_, err = os.Stdout.Write(ps.Content)
			return err
		},
	}
}
