// Copyright 2026 The Strata Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/pflag"

	"github.com/strata-config/strata/cmd/strata/cli"
	"github.com/strata-config/strata/lib/activation"
	"github.com/strata-config/strata/lib/clock"
	"github.com/strata-config/strata/lib/config"
	"github.com/strata-config/strata/lib/errkind"
	"github.com/strata-config/strata/lib/layer"
	"github.com/strata-config/strata/lib/names"
	"github.com/strata-config/strata/lib/objstore"
	"github.com/strata-config/strata/lib/staging"
	"github.com/strata-config/strata/lib/workspace"
)

// stateDirName marks an initialized workspace root.
const stateDirName = ".strata"

// env bundles everything an initialized-workspace command needs: the
// discovered root, the parsed config, the open object store, and the
// loaded activation context. openEnv builds one per invocation; there
// is no shared global state between commands.
type env struct {
	root     string
	cfg      *config.Config
	store    *objstore.Store
	context  *activation.Context
	ctxStore *activation.Store
	clk      clock.Clock
	logger   *slog.Logger
}

// openEnv locates the workspace root, loads and validates the config,
// opens the object store, and reads the activation context. Every
// command except init starts here.
func openEnv() (*env, error) {
	root, err := findRoot()
	if err != nil {
		return nil, err
	}
	return openEnvAt(root)
}

// openEnvAt is openEnv with the root already known. init uses it after
// creating the state directory.
func openEnvAt(root string) (*env, error) {
	cfg, err := config.Load(root)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	compression, err := cfg.Compression()
	if err != nil {
		return nil, err
	}
	store, err := objstore.Open(cfg.StoreDir(root), compression)
	if err != nil {
		return nil, err
	}
	clk := clock.Real()
	ctxStore := activation.NewStore(filepath.Join(root, filepath.FromSlash(activation.Filename)), clk)
	context, err := ctxStore.Load()
	if err != nil {
		return nil, err
	}
	return &env{
		root:     root,
		cfg:      cfg,
		store:    store,
		context:  context,
		ctxStore: ctxStore,
		clk:      clk,
		logger:   cli.NewCommandLogger(),
	}, nil
}

// findRoot walks up from the working directory looking for the state
// directory, the same discovery git uses for .git.
func findRoot() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", errkind.IOf("getting working directory: %v", err)
	}
	start := dir
	for {
		info, err := os.Stat(filepath.Join(dir, stateDirName))
		if err == nil && info.IsDir() {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", errkind.NotInitializedf(
				"no %s directory found from %s upward; run `strata init`", stateDirName, start)
		}
		dir = parent
	}
}

// saveContext persists the activation context after a mutation.
func (e *env) saveContext() error {
	return e.ctxStore.Save(e.context)
}

// stagingPath is the staging index file location for this workspace.
func (e *env) stagingPath() string {
	return filepath.Join(e.root, filepath.FromSlash(staging.Filename))
}

// loadIndex reads the staging index. Missing file means empty index.
func (e *env) loadIndex() (*staging.Index, error) {
	return staging.Load(e.stagingPath())
}

// workspace builds the apply orchestrator from the config.
func (e *env) workspace() (*workspace.Workspace, error) {
	policy, err := e.cfg.Policy()
	if err != nil {
		return nil, err
	}
	unsealer, err := e.cfg.Unsealer()
	if err != nil {
		return nil, err
	}
	return workspace.New(workspace.Config{
		Root:     e.root,
		Store:    e.store,
		Policy:   policy,
		Unsealer: unsealer,
		Clock:    e.clk,
		Logger:   e.logger,
	})
}

// registry is the mode/scope name registry backed by this store.
func (e *env) registry() *names.Registry {
	return names.NewRegistry(e.store, e.clk)
}

// workspacePath converts a command-line path argument, relative to the
// process working directory, into the workspace-relative slash form
// the core works in.
func (e *env) workspacePath(arg string) (string, error) {
	abs, err := filepath.Abs(arg)
	if err != nil {
		return "", errkind.IOf("resolving %s: %v", arg, err)
	}
	rel, err := filepath.Rel(e.root, abs)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", errkind.Configf("%s is outside the workspace root %s", arg, e.root)
	}
	return filepath.ToSlash(rel), nil
}

// placementParams are the placement flags shared by every command that
// targets a layer. The zero value routes to the active project's base
// layer.
type placementParams struct {
	Mode    bool   `json:"mode"    flag:"mode,m"    desc:"target the active mode's layer"`
	Scope   string `json:"scope"   flag:"scope,s"   desc:"target a scope layer (empty value means the active scope)"`
	Project bool   `json:"project" flag:"project,p" desc:"narrow mode placement to the active project"`
	Global  bool   `json:"global"  flag:"global,g"  desc:"target the global base layer"`
	Local   bool   `json:"local"   flag:"local,l"   desc:"target the per-machine local layer"`
}

// routing converts the parsed placement flags into the layer model's
// form. The flag set distinguishes --scope given with an empty value
// (use the active scope) from no --scope at all.
func (p *placementParams) routing(flagSet *pflag.FlagSet) layer.Flags {
	return layer.Flags{
		Mode:     p.Mode,
		ScopeSet: flagSet != nil && flagSet.Changed("scope"),
		Scope:    p.Scope,
		Project:  p.Project,
		Global:   p.Global,
		Local:    p.Local,
	}
}

// given reports whether any placement flag was passed at all, for
// commands that behave differently with and without a placement.
func (p *placementParams) given(flagSet *pflag.FlagSet) bool {
	return p.Mode || p.Project || p.Global || p.Local ||
		(flagSet != nil && flagSet.Changed("scope"))
}
