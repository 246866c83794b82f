// Copyright 2026 The Strata Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"fmt"
	"time"

	"github.com/spf13/pflag"

	"github.com/strata-config/strata/cmd/strata/cli"
)

// stagedInfo is one pending entry in the status report.
type stagedInfo struct {
	Layer       string    `json:"layer"`
	Path        string    `json:"path"`
	Op          string    `json:"op"`
	RenamedFrom string    `json:"renamed_from,omitempty"`
	Sealed      bool      `json:"sealed,omitempty"`
	StagedAt    time.Time `json:"staged_at"`
}

// statusReport is the full status output.
type statusReport struct {
	Root             string       `json:"root"`
	Mode             string       `json:"mode,omitempty"`
	Scope            string       `json:"scope,omitempty"`
	ScopeBoundTo     string       `json:"scope_bound_to,omitempty"`
	Project          string       `json:"project,omitempty"`
	Staged           []stagedInfo `json:"staged"`
	PendingConflicts []string     `json:"pending_conflicts"`
}

type statusParams struct {
	cli.JSONOutput
}

func statusCommand() *cli.Command {
	var params statusParams

	return &cli.Command{
		Name:    "status",
		Summary: "Show the activation context, staged changes, and pending conflicts",
		Usage:   "strata status [flags]",
		Flags: func() *pflag.FlagSet {
			return cli.FlagsFromParams("status", &params)
		},
		Run: func(args []string) error {
			if len(args) > 0 {
				return fmt.Errorf("unexpected argument: %s", args[0])
			}
			env, err := openEnv()
			if err != nil {
				return err
			}
			index, err := env.loadIndex()
			if err != nil {
				return err
			}
			ws, err := env.workspace()
			if err != nil {
				return err
			}
			pending, err := ws.PendingConflicts()
			if err != nil {
				return err
			}

			report := statusReport{
				Root:             env.root,
				Mode:             env.context.Mode,
				Scope:            env.context.Scope,
				ScopeBoundTo:     env.context.ScopeBoundTo,
				Project:          env.context.Project,
				PendingConflicts: pending,
			}
			for _, e := range index.Entries() {
				report.Staged = append(report.Staged, stagedInfo{
					Layer:       e.Layer.Path(),
					Path:        e.Path,
					Op:          e.Op.String(),
					RenamedFrom: e.RenamedFrom,
					Sealed:      e.Sealed,
					StagedAt:    e.StagedAt,
				})
			}
			if done, err := params.EmitJSON(report); done {
				return err
			}

			orNone := func(s string) string {
				if s == "" {
					return "(none)"
				}
				return s
			}
			scope := orNone(env.context.Scope)
			if env.context.ScopeBoundTo != "" {
				scope += " (bound to " + env.context.ScopeBoundTo + ")"
			}
			fmt.Printf("Workspace: %s\n", env.root)
			fmt.Printf("Mode:      %s\n", orNone(env.context.Mode))
			fmt.Printf("Scope:     %s\n", scope)
			fmt.Printf("Project:   %s\n", orNone(env.context.Project))

			if len(report.Staged) == 0 {
				fmt.Println("\nNothing staged.")
			} else {
				fmt.Printf("\nStaged changes (%d):\n", len(report.Staged))
				currentLayer := ""
				for _, s := range report.Staged {
					if s.Layer != currentLayer {
						currentLayer = s.Layer
						fmt.Printf("  %s\n", currentLayer)
					}
					line := s.Path
					if s.Op == "rename" {
						line = s.RenamedFrom + " -> " + s.Path
					}
					if s.Sealed {
						line += " (sealed)"
					}
					fmt.Printf("    %-7s %s\n", s.Op, line)
				}
			}

			if len(pending) > 0 {
				fmt.Printf("\nPending conflicts (%d):\n", len(pending))
				for _, p := range pending {
					fmt.Printf("  %s\n", p)
				}
				fmt.Println("\nResolve with `strata resolve <path> --take <layer>` or `--file <path>`, or discard with `strata resolve --abort`.")
			}
			return nil
		},
	}
}
