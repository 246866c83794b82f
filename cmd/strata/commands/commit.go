// Copyright 2026 The Strata Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"fmt"

	"github.com/spf13/pflag"

	"github.com/strata-config/strata/cmd/strata/cli"
	"github.com/strata-config/strata/lib/errkind"
	"github.com/strata-config/strata/lib/objstore"
	"github.com/strata-config/strata/lib/txn"
)

type commitParams struct {
	Message string `json:"message" flag:"message,m" desc:"commit message recorded on every layer commit"`
	Author  string `json:"author"  flag:"author"    desc:"override the configured author"`
}

func commitCommand() *cli.Command {
	var params commitParams

	return &cli.Command{
		Name:    "commit",
		Summary: "Publish all staged changes, atomically across layers",
		Description: `Turn the staging index into one commit per target layer and move
every layer reference, all or none. If another process moved a
reference in between, the whole transaction rolls back and the
staging index is left untouched, ready to retry.`,
		Usage: "strata commit -m <message> [flags]",
		Flags: func() *pflag.FlagSet {
			return cli.FlagsFromParams("commit", &params)
		},
		Examples: []cli.Example{
			{
				Description: "Commit everything staged",
				Command:     "strata commit -m 'switch editor theme'",
			},
			{
				Description: "Commit under a different author",
				Command:     "strata commit -m 'rotate token' --author ci@builder",
			},
		},
		Run: func(args []string) error {
			if len(args) > 0 {
				return fmt.Errorf("unexpected argument: %s", args[0])
			}
			if params.Message == "" {
				return errkind.Configf("commit message is required (-m)")
			}
			env, err := openEnv()
			if err != nil {
				return err
			}
			index, err := env.loadIndex()
			if err != nil {
				return err
			}
			author := params.Author
			if author == "" {
				author = env.cfg.Author
			}

			committer := txn.NewCommitter(env.store, env.stagingPath(), author, env.clk, env.logger)
			summary, err := committer.Commit(index, params.Message)
			if err != nil {
				if errkind.Is(err, errkind.CommitConflict) {
					return fmt.Errorf("%w (the staging index is untouched; retry the commit)", err)
				}
				return err
			}

			for _, lc := range summary.Layers {
				if lc.Unchanged {
					fmt.Printf("%s: unchanged (%d entries consumed)\n", lc.Layer, lc.Entries)
					continue
				}
				fmt.Printf("%s: %s (%d entries)\n", lc.Layer, objstore.ShortOID(lc.Commit), lc.Entries)
			}
			fmt.Printf("Committed %d entries across %d layers.\n", summary.Entries, len(summary.Layers))
			return nil
		},
	}
}
