// Copyright 2026 The Strata Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/strata-config/strata/cmd/strata/cli"
	"github.com/strata-config/strata/lib/activation"
	"github.com/strata-config/strata/lib/clock"
	"github.com/strata-config/strata/lib/config"
	"github.com/strata-config/strata/lib/errkind"
	"github.com/strata-config/strata/lib/objstore"
)

func initCommand() *cli.Command {
	return &cli.Command{
		Name:    "init",
		Summary: "Initialize a strata workspace",
		Description: `Create the .strata state directory: an empty object store, an
empty activation context, and a config file with the defaults
written out so there is something to edit.

The directory argument defaults to the current directory. Running
init where a workspace already exists is an error; existing
store contents are never touched.`,
		Usage: "strata init [directory]",
		Examples: []cli.Example{
			{
				Description: "Initialize the current directory",
				Command:     "strata init",
			},
			{
				Description: "Initialize another directory",
				Command:     "strata init ~/dotfiles",
			},
		},
		Run: func(args []string) error {
			if len(args) > 1 {
				return fmt.Errorf("unexpected argument: %s", args[1])
			}
			dir := "."
			if len(args) == 1 {
				dir = args[0]
			}
			root, err := filepath.Abs(dir)
			if err != nil {
				return errkind.IOf("resolving %s: %v", dir, err)
			}
			return runInit(root)
		},
	}
}

func runInit(root string) error {
	stateDir := filepath.Join(root, stateDirName)
	if err := os.MkdirAll(stateDir, 0o755); err != nil {
		return errkind.IOf("creating %s: %v", stateDir, err)
	}

	cfg, err := config.Load(root)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	compression, err := cfg.Compression()
	if err != nil {
		return err
	}
	if _, err := objstore.Open(cfg.StoreDir(root), compression); err != nil {
		return err
	}

	ctxStore := activation.NewStore(filepath.Join(root, filepath.FromSlash(activation.Filename)), clock.Real())
	if _, err := ctxStore.Init(); err != nil {
		return err
	}

	// Materialize the defaults unless the user pre-seeded a config.
	configPath := filepath.Join(root, filepath.FromSlash(config.Filename))
	if _, err := os.Stat(configPath); errors.Is(err, fs.ErrNotExist) {
		if err := cfg.Save(configPath); err != nil {
			return err
		}
	}

	// The state directory holds machine-local state: keep it out of
	// version control without touching the workspace's own .gitignore.
	ignorePath := filepath.Join(stateDir, ".gitignore")
	if _, err := os.Stat(ignorePath); errors.Is(err, fs.ErrNotExist) {
		if err := os.WriteFile(ignorePath, []byte("*\n"), 0o644); err != nil {
			return errkind.IOf("writing %s: %v", ignorePath, err)
		}
	}

	fmt.Printf("Initialized strata workspace at %s\n", root)
	fmt.Printf("Object store: %s\n", cfg.StoreDir(root))
	return nil
}
