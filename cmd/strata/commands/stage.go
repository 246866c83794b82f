// Copyright 2026 The Strata Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"errors"
	"fmt"

	"github.com/spf13/pflag"

	"github.com/strata-config/strata/cmd/strata/cli"
	"github.com/strata-config/strata/lib/config"
	"github.com/strata-config/strata/lib/errkind"
	"github.com/strata-config/strata/lib/layer"
	"github.com/strata-config/strata/lib/sealed"
	"github.com/strata-config/strata/lib/staging"
)

type stageParams struct {
	placementParams
	Seal   bool `json:"seal"   flag:"seal"   desc:"age-encrypt the content before it enters the store"`
	Delete bool `json:"delete" flag:"delete" desc:"record removal of the paths from the target layer"`
	Rename bool `json:"rename" flag:"rename" desc:"record a rename: exactly two arguments, old path and new path"`
}

func stageCommand() *cli.Command {
	var params stageParams
	var flagSet *pflag.FlagSet

	return &cli.Command{
		Name:    "stage",
		Summary: "Record pending changes for a layer",
		Description: `Snapshot workspace files into the object store and record them as
pending changes against one target layer. Nothing is committed;
the staged content is already content-addressed, so later edits to
the workspace file do not alter what commit will publish.

Placement flags pick the target layer. Without any, the change
goes to the active project's base layer. Staging the same path to
the same layer again replaces the pending entry.

With several paths, failures are reported per path and the rest
are still staged; the command only fails when nothing could be
staged at all.`,
		Usage: "strata stage [flags] <path>...",
		Flags: func() *pflag.FlagSet {
			flagSet = cli.FlagsFromParams("stage", &params)
			return flagSet
		},
		Examples: []cli.Example{
			{
				Description: "Stage into the active project's layer",
				Command:     "strata stage conf/app.yaml",
			},
			{
				Description: "Stage into the active mode's layer",
				Command:     "strata stage --mode conf/keybindings.json",
			},
			{
				Description: "Stage an encrypted secret globally",
				Command:     "strata stage --global --seal conf/api-token",
			},
			{
				Description: "Record a deletion in a scope layer",
				Command:     "strata stage --scope client-a --delete conf/old.toml",
			},
			{
				Description: "Record a rename",
				Command:     "strata stage --mode --rename conf/old.yaml conf/new.yaml",
			},
		},
		Run: func(args []string) error {
			if params.Delete && params.Rename {
				return errkind.Configf("--delete and --rename are mutually exclusive")
			}
			if params.Seal && params.Delete {
				return errkind.Configf("--seal makes no sense with --delete: a deletion has no content")
			}

			env, err := openEnv()
			if err != nil {
				return err
			}
			target, err := layer.Route(params.routing(flagSet), env.context.Routing())
			if err != nil {
				return err
			}
			ws, err := env.workspace()
			if err != nil {
				return err
			}
			index, err := env.loadIndex()
			if err != nil {
				return err
			}
			stager := ws.Stager(index, env.stagingPath())

			var sealer *sealed.Sealer
			if params.Seal {
				sealer, err = env.cfg.Sealer()
				if err != nil {
					return err
				}
				if sealer == nil {
					return errkind.Configf(
						"sealed.recipients is empty in %s; add a recipient before staging sealed content",
						config.Filename)
				}
			}

			if params.Rename {
				if len(args) != 2 {
					return errkind.Configf("--rename takes exactly two paths: old and new")
				}
				fromPath, err := env.workspacePath(args[0])
				if err != nil {
					return err
				}
				toPath, err := env.workspacePath(args[1])
				if err != nil {
					return err
				}
				entry, err := stager.StageRename(fromPath, toPath, target, sealer)
				if err != nil {
					return err
				}
				fmt.Printf("staged rename %s -> %s in %s\n", entry.RenamedFrom, entry.Path, target)
				return nil
			}

			if len(args) == 0 {
				return errkind.Configf("nothing to stage: give at least one path")
			}

			stageOne := func(arg string) (staging.Entry, error) {
				filePath, err := env.workspacePath(arg)
				if err != nil {
					return staging.Entry{}, err
				}
				if params.Delete {
					return stager.StageDelete(filePath, target)
				}
				return stager.Stage(filePath, target, sealer)
			}

			staged := 0
			var failures []error
			for _, arg := range args {
				entry, err := stageOne(arg)
				if err != nil {
					failures = append(failures, fmt.Errorf("%s: %w", arg, err))
					env.logger.Warn("stage failed", "path", arg, "error", err)
					continue
				}
				staged++
				fmt.Printf("staged %s (%s) -> %s\n", entry.Path, entry.Op, target)
			}
			if staged == 0 && len(failures) > 0 {
				return errors.Join(failures...)
			}
			return nil
		},
	}
}
