// Copyright 2026 The Strata Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"

	"github.com/strata-config/strata/cmd/strata/cli"
	"github.com/strata-config/strata/lib/errkind"
	"github.com/strata-config/strata/lib/layer"
	"github.com/strata-config/strata/lib/objstore"
)

type logParams struct {
	placementParams
	cli.JSONOutput
	Limit int `json:"limit" flag:"limit,n" desc:"maximum number of commits to show" default:"20"`
}

type commitInfo struct {
	Commit  string    `json:"commit"`
	Tree    string    `json:"tree"`
	Parent  string    `json:"parent,omitempty"`
	Author  string    `json:"author,omitempty"`
	Time    time.Time `json:"time"`
	Message string    `json:"message"`
}

func logCommand() *cli.Command {
	var params logParams
	var flagSet *pflag.FlagSet

	return &cli.Command{
		Name:    "log",
		Summary: "Show a layer's commit history",
		Description: `Walks the commit chain of one layer, newest first. Placement
flags pick the layer the same way stage does; without them the
narrowest currently active layer is used.`,
		Usage: "strata log [flags]",
		Flags: func() *pflag.FlagSet {
			flagSet = cli.FlagsFromParams("log", &params)
			return flagSet
		},
		Examples: []cli.Example{
			{
				Description: "History of the active mode's layer",
				Command:     "strata log --mode",
			},
			{
				Description: "Last three commits on the global layer",
				Command:     "strata log --global -n 3",
			},
		},
		Run: func(args []string) error {
			if len(args) > 0 {
				return fmt.Errorf("unexpected argument: %s", args[0])
			}
			env, err := openEnv()
			if err != nil {
				return err
			}
			target, err := layer.Route(params.routing(flagSet), env.context.Routing())
			if err != nil {
				return err
			}
			head, err := env.store.Refs().Read(target.Path())
			if err != nil {
				if errkind.Is(err, errkind.NotFound) {
					return errkind.NotFoundf("layer %s has no history", target)
				}
				return err
			}
			history, err := collectHistory(env.store, head, params.Limit)
			if err != nil {
				return err
			}
			if done, err := params.EmitJSON(history); done {
				return err
			}
			for i, info := range history {
				if i > 0 {
					fmt.Println()
				}
				printCommit(info)
			}
			return nil
		},
	}
}

// collectHistory walks first parents from head, newest first, up to
// limit commits. A non-positive limit walks the whole chain.
func collectHistory(store *objstore.Store, head objstore.OID, limit int) ([]commitInfo, error) {
	var history []commitInfo
	oid := head
	for limit <= 0 || len(history) < limit {
		commit, err := store.GetCommit(oid)
		if err != nil {
			return nil, err
		}
		info := commitInfo{
			Commit:  objstore.FormatOID(oid),
			Tree:    objstore.FormatOID(commit.Tree),
			Author:  commit.Author,
			Time:    commit.Time,
			Message: commit.Message,
		}
		if len(commit.Parents) > 0 {
			info.Parent = objstore.FormatOID(commit.Parents[0])
		}
		history = append(history, info)
		if len(commit.Parents) == 0 {
			break
		}
		oid = commit.Parents[0]
	}
	return history, nil
}

func printCommit(info commitInfo) {
	fmt.Printf("commit %s\n", info.Commit)
	if info.Author != "" {
		fmt.Printf("Author: %s\n", info.Author)
	}
	fmt.Printf("Date:   %s\n", info.Time.Local().Format("2006-01-02 15:04:05 -0700"))
	fmt.Println()
	for _, line := range strings.Split(strings.TrimRight(info.Message, "\n"), "\n") {
		fmt.Printf("    %s\n", line)
	}
}
