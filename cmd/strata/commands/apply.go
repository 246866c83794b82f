// Copyright 2026 The Strata Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"github.com/strata-config/strata/cmd/strata/cli"
	"github.com/strata-config/strata/lib/activation"
	"github.com/strata-config/strata/lib/errkind"
	"github.com/strata-config/strata/lib/watcher"
	"github.com/strata-config/strata/lib/workspace"
)

// exitPaused is the exit code for an apply that ended paused on
// conflicts. The conflict report has already been printed by then.
const exitPaused = 5

type applyParams struct {
	DryRun   bool          `json:"dry_run"  flag:"dry-run,n" desc:"report what would change without writing"`
	Watch    bool          `json:"watch"    flag:"watch,w"   desc:"keep applying as layers or the context change"`
	Debounce time.Duration `json:"debounce" flag:"debounce"  desc:"quiet period before a watch-triggered apply (default from config)"`
}

func applyCommand() *cli.Command {
	var params applyParams

	return &cli.Command{
		Name:    "apply",
		Summary: "Materialize the merged configuration into the workspace",
		Description: `Merge every applicable layer for the current activation context
and reconcile the workspace directory against the result.

Paths the merge cannot auto-resolve pause the run: every clean
path is still written, each conflicting path gets an artifact
under .strata/conflicts/, and further applies are blocked until
strata resolve settles them. A paused run exits with code 5.

--watch keeps the process alive and re-applies whenever a layer
reference moves or the activation context changes, debounced over
a quiet period.`,
		Usage: "strata apply [flags]",
		Flags: func() *pflag.FlagSet {
			return cli.FlagsFromParams("apply", &params)
		},
		Examples: []cli.Example{
			{
				Description: "One-shot apply",
				Command:     "strata apply",
			},
			{
				Description: "Preview without writing",
				Command:     "strata apply --dry-run",
			},
			{
				Description: "Follow layer changes continuously",
				Command:     "strata apply --watch --debounce 2s",
			},
		},
		Run: func(args []string) error {
			if len(args) > 0 {
				return fmt.Errorf("unexpected argument: %s", args[0])
			}
			if params.DryRun && params.Watch {
				return errkind.Configf("--dry-run and --watch are mutually exclusive")
			}
			env, err := openEnv()
			if err != nil {
				return err
			}
			if params.Watch {
				return runWatch(env, params.Debounce)
			}

			summary, err := applyOnce(env, params.DryRun)
			if err != nil {
				return err
			}
			printChanges(summary)
			if summary.Status == workspace.StatusPaused {
				printConflicts(summary.Conflicts)
				return &cli.ExitError{Code: exitPaused}
			}
			printTotals(summary)
			return nil
		},
	}
}

// applyOnce computes the merged state for the current context and
// reconciles the workspace against it.
func applyOnce(env *env, dryRun bool) (*workspace.Summary, error) {
	ws, err := env.workspace()
	if err != nil {
		return nil, err
	}
	state, err := ws.ComputeMergedState(env.context.Routing())
	if err != nil {
		return nil, err
	}
	return ws.Apply(state, dryRun)
}

// runWatch applies once, then keeps re-applying whenever the store's
// refs or the activation context change, until interrupted. Failures
// inside the loop are logged, not fatal: the next trigger retries.
func runWatch(env *env, debounce time.Duration) error {
	if debounce == 0 {
		var err error
		debounce, err = env.cfg.Debounce()
		if err != nil {
			return err
		}
	}
	w, err := watcher.New(watcher.Config{
		Trees:    []string{env.store.Refs().Dir()},
		Files:    []string{filepath.Join(env.root, filepath.FromSlash(activation.Filename))},
		Debounce: debounce,
		Logger:   env.logger,
	})
	if err != nil {
		return err
	}
	if err := w.Start(); err != nil {
		return err
	}
	defer w.Stop()

	interrupts := make(chan os.Signal, 1)
	signal.Notify(interrupts, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(interrupts)

	watchApply(env)
	env.logger.Info("watching for layer changes", "debounce", debounce)

	for {
		select {
		case <-interrupts:
			env.logger.Info("watch stopped")
			return nil
		case <-w.Signals():
			watchApply(env)
		}
	}
}

// watchApply is one watch-triggered reconciliation. The activation
// context is reloaded first: a mode or scope switch is one of the
// events that got us here.
func watchApply(env *env) {
	context, err := env.ctxStore.Load()
	if err != nil {
		env.logger.Error("reloading activation context", "error", err)
		return
	}
	env.context = context

	summary, err := applyOnce(env, false)
	if err != nil {
		env.logger.Error("apply failed", "error", err)
		return
	}
	if summary.Status == workspace.StatusPaused {
		printConflicts(summary.Conflicts)
		env.logger.Warn("apply paused on conflicts; resolve them to continue",
			"conflicts", len(summary.Conflicts))
		return
	}
	changed := len(summary.Changes) - summary.Count(workspace.ActionUnchanged)
	if changed == 0 {
		env.logger.Debug("workspace already current")
		return
	}
	printChanges(summary)
	printTotals(summary)
}

// printChanges lists the non-Unchanged actions, one line each.
func printChanges(summary *workspace.Summary) {
	verb := ""
	if summary.DryRun {
		verb = "would "
	}
	for _, change := range summary.Changes {
		if change.Action == workspace.ActionUnchanged {
			continue
		}
		fmt.Printf("%s%-7s %s\n", verb, change.Action, change.Path)
	}
}

// printTotals prints the one-line apply summary.
func printTotals(summary *workspace.Summary) {
	line := fmt.Sprintf("%d added, %d modified, %d removed, %d unchanged",
		summary.Count(workspace.ActionAdd),
		summary.Count(workspace.ActionModify),
		summary.Count(workspace.ActionRemove),
		summary.Count(workspace.ActionUnchanged))
	if summary.DryRun {
		fmt.Printf("Would apply: %s.\n", line)
		return
	}
	fmt.Printf("Applied: %s.\n", line)
}

// printConflicts reports every conflicting path and how to move on.
func printConflicts(conflicts []*workspace.Conflict) {
	fmt.Printf("Conflicts (%d):\n", len(conflicts))
	for _, c := range conflicts {
		location := c.Path
		if c.KeyPath != "" {
			location += " at " + c.KeyPath
		}
		sources := make([]string, len(c.Contributions))
		for i, contribution := range c.Contributions {
			sources[i] = contribution.Layer.Path()
		}
		fmt.Printf("  %s (%s)\n", location, strings.Join(sources, " vs "))
	}
	fmt.Println("\nConflict artifacts are under .strata/conflicts/. Resolve each path with")
	fmt.Println("`strata resolve <path> --take <layer>` or `--file <path>`, or discard all with `strata resolve --abort`.")
}
