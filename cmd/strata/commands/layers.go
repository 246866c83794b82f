// Copyright 2026 The Strata Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"fmt"
	"os"
	"sort"
	"text/tabwriter"

	"github.com/spf13/pflag"

	"github.com/strata-config/strata/cmd/strata/cli"
	"github.com/strata-config/strata/lib/errkind"
	"github.com/strata-config/strata/lib/layer"
	"github.com/strata-config/strata/lib/objstore"
)

type layersParams struct {
	cli.JSONOutput
	All bool `json:"all" flag:"all,a" desc:"list every layer with history, active or not"`
}

type layerInfo struct {
	Rank int    `json:"rank"`
	Kind string `json:"kind"`
	Ref  string `json:"ref"`
	Head string `json:"head,omitempty"`
}

func layersCommand() *cli.Command {
	var params layersParams

	return &cli.Command{
		Name:    "layers",
		Summary: "Show the layer stack",
		Description: `Lists the layers that apply to the current activation context in
precedence order, lowest first. Each row carries the layer's head
commit, or a dash when nothing has been committed to it yet.

--all switches to every layer that has history in the store,
whether or not the current context activates it.`,
		Usage: "strata layers [flags]",
		Flags: func() *pflag.FlagSet {
			return cli.FlagsFromParams("layers", &params)
		},
		Examples: []cli.Example{
			{
				Description: "The stack the next apply would merge",
				Command:     "strata layers",
			},
			{
				Description: "Every layer recorded in the store",
				Command:     "strata layers --all",
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

			var rows []layerInfo
			if params.All {
				rows, err = allLayers(env)
			} else {
				rows, err = activeLayers(env)
			}
			if err != nil {
				return err
			}

			if done, err := params.EmitJSON(rows); done {
				return err
			}
			if len(rows) == 0 {
				fmt.Println("No layers have history yet. Stage and commit to create one.")
				return nil
			}
			w := tabwriter.NewWriter(os.Stdout, 2, 0, 3, ' ', 0)
			fmt.Fprintln(w, "RANK\tKIND\tREF\tHEAD")
			for _, row := range rows {
				head := "-"
				if row.Head != "" {
					oid, err := objstore.ParseOID(row.Head)
					if err != nil {
						return err
					}
					head = objstore.ShortOID(oid)
				}
				fmt.Fprintf(w, "%d\t%s\t%s\t%s\n", row.Rank, row.Kind, row.Ref, head)
			}
			return w.Flush()
		},
	}
}

// activeLayers lists the applicable stack for the current context,
// in merge order.
func activeLayers(env *env) ([]layerInfo, error) {
	refs := layer.Applicable(env.context.Routing())
	rows := make([]layerInfo, 0, len(refs))
	for _, ref := range refs {
		row := layerInfo{
			Rank: ref.Kind().Rank(),
			Kind: ref.Kind().String(),
			Ref:  ref.Path(),
		}
		head, err := env.store.Refs().Read(ref.Path())
		switch {
		case err == nil:
			row.Head = objstore.FormatOID(head)
		case errkind.Is(err, errkind.NotFound):
			// Applicable but never committed to.
		default:
			return nil, err
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// allLayers lists every layer ref recorded in the store, ordered by
// rank and then path.
func allLayers(env *env) ([]layerInfo, error) {
	heads, err := env.store.Refs().ReadAll("layers")
	if err != nil {
		return nil, err
	}
	rows := make([]layerInfo, 0, len(heads))
	for refPath, head := range heads {
		ref, err := layer.ParseRef(refPath)
		if err != nil {
			return nil, err
		}
		rows = append(rows, layerInfo{
			Rank: ref.Kind().Rank(),
			Kind: ref.Kind().String(),
			Ref:  refPath,
			Head: objstore.FormatOID(head),
		})
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Rank != rows[j].Rank {
			return rows[i].Rank < rows[j].Rank
		}
		return rows[i].Ref < rows[j].Ref
	})
	return rows, nil
}
