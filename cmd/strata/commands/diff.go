// Copyright 2026 The Strata Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/spf13/pflag"

	"github.com/strata-config/strata/cmd/strata/cli"
	"github.com/strata-config/strata/lib/errkind"
	"github.com/strata-config/strata/lib/format"
	"github.com/strata-config/strata/lib/staging"
	"github.com/strata-config/strata/lib/textmerge"
	"github.com/strata-config/strata/lib/workspace"
)

// absentLabel marks a side that does not exist, as opposed to an
// existing empty file.
const absentLabel = "/dev/null"

type diffParams struct {
	Staged bool `json:"staged" flag:"staged" desc:"diff staged entries against their layer heads instead"`
}

func diffCommand() *cli.Command {
	var params diffParams

	return &cli.Command{
		Name:    "diff",
		Summary: "Show what differs from the merged configuration",
		Description: `Without flags: unified diffs of the workspace files against the
merged state, i.e. what apply would rewrite. With --staged:
diffs of the staging index against each target layer's committed
content, i.e. what commit would publish.

Path arguments restrict the output. Binary content is reported,
not diffed.`,
		Usage: "strata diff [flags] [<path>...]",
		Flags: func() *pflag.FlagSet {
			return cli.FlagsFromParams("diff", &params)
		},
		Examples: []cli.Example{
			{
				Description: "Everything apply would change",
				Command:     "strata diff",
			},
			{
				Description: "What commit would publish",
				Command:     "strata diff --staged",
			},
			{
				Description: "One path only",
				Command:     "strata diff conf/app.yaml",
			},
		},
		Run: func(args []string) error {
			env, err := openEnv()
			if err != nil {
				return err
			}
			only, err := pathFilter(env, args)
			if err != nil {
				return err
			}
			ws, err := env.workspace()
			if err != nil {
				return err
			}
			if params.Staged {
				return diffStaged(env, ws, only)
			}
			return diffWorkspace(env, ws, only)
		},
	}
}

// pathFilter converts path arguments into a workspace-relative set,
// nil when no arguments restrict the diff.
func pathFilter(env *env, args []string) (map[string]bool, error) {
	if len(args) == 0 {
		return nil, nil
	}
	only := make(map[string]bool, len(args))
	for _, arg := range args {
		filePath, err := env.workspacePath(arg)
		if err != nil {
			return nil, err
		}
		only[filePath] = true
	}
	return only, nil
}

// diffWorkspace diffs workspace files against the merged state.
func diffWorkspace(env *env, ws *workspace.Workspace, only map[string]bool) error {
	state, err := ws.ComputeMergedState(env.context.Routing())
	if err != nil {
		return err
	}
	for _, filePath := range state.Paths() {
		if only != nil && !only[filePath] {
			continue
		}
		ps := state.Files[filePath]
		if ps.Conflict != nil {
			fmt.Fprintf(os.Stderr, "skipping %s: merge conflict\n", filePath)
			continue
		}

		var merged []byte
		mergedLabel := absentLabel
		if !ps.Deleted {
			merged = ps.Content
			mergedLabel = filePath + " (merged)"
		}

		current, currentLabel, err := readWorkspaceFile(env, filePath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "skipping %s: %v\n", filePath, err)
			continue
		}

		printDiff(filePath, currentLabel, mergedLabel, current, merged)
	}
	return nil
}

// diffStaged diffs staging index entries against their layers' heads.
func diffStaged(env *env, ws *workspace.Workspace, only map[string]bool) error {
	index, err := env.loadIndex()
	if err != nil {
		return err
	}
	for _, entry := range index.Entries() {
		if only != nil && !only[entry.Path] {
			continue
		}

		headPath := entry.Path
		if entry.Op == staging.OpRename {
			headPath = entry.RenamedFrom
		}
		head, headLabel, err := readLayerContent(ws, entry, headPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "skipping %s: %v\n", entry.Path, err)
			continue
		}

		var staged []byte
		stagedLabel := absentLabel
		if entry.Op != staging.OpDelete {
			staged, err = ws.BlobContent(entry.Blob, entry.Path)
			if err != nil {
				fmt.Fprintf(os.Stderr, "skipping %s: %v\n", entry.Path, err)
				continue
			}
			stagedLabel = entry.Path + " (staged)"
		}

		printDiff(entry.Path, headLabel, stagedLabel, head, staged)
	}
	return nil
}

// readWorkspaceFile loads the current workspace content of a path,
// reporting absence as nil content with the absent label.
func readWorkspaceFile(env *env, filePath string) ([]byte, string, error) {
	content, err := os.ReadFile(filepath.Join(env.root, filepath.FromSlash(filePath)))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, absentLabel, nil
		}
		return nil, "", errkind.IOf("reading %s: %v", filePath, err)
	}
	return content, filePath + " (workspace)", nil
}

// readLayerContent loads the committed content of a staged entry's
// target layer, reporting a missing layer or path as absence.
func readLayerContent(ws *workspace.Workspace, entry staging.Entry, filePath string) ([]byte, string, error) {
	content, _, err := ws.LayerContent(entry.Layer, filePath)
	if err != nil {
		if errkind.Is(err, errkind.NotFound) {
			return nil, absentLabel, nil
		}
		return nil, "", err
	}
	return content, entry.Layer.Path() + ":" + filePath, nil
}

// printDiff writes one unified diff, or a note for binary content.
func printDiff(filePath, aLabel, bLabel string, a, b []byte) {
	if bytes.Equal(a, b) {
		return
	}
	if format.Detect(filePath, a) == format.Binary || format.Detect(filePath, b) == format.Binary {
		fmt.Printf("Binary content differs: %s\n", filePath)
		return
	}
	fmt.Print(textmerge.Unified(aLabel, bLabel, a, b))
}
