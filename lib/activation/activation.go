// Copyright 2026 The Strata Authors
// SPDX-License-Identifier: Apache-2.0

// Package activation persists the activation context: which mode,
// scope, and project are currently active. The context is an explicit
// value threaded through routing and apply calls, never ambient global
// state, and is rewritten atomically after every mutation.
package activation

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/google/renameio"
	"gopkg.in/yaml.v3"

	"github.com/strata-config/strata/lib/clock"
	"github.com/strata-config/strata/lib/errkind"
	"github.com/strata-config/strata/lib/layer"
)

// Filename is the workspace-relative location of the context file.
const Filename = ".strata/context.yaml"

// contextVersion is the on-disk format version.
const contextVersion = 1

// Context is the activation state. At most one mode and one scope are
// active at a time. ScopeBoundTo records the mode binding the active
// scope carried when it was activated, so mode transitions can keep
// the binding invariant without consulting the names service.
type Context struct {
	Version      int       `yaml:"version"`
	Mode         string    `yaml:"mode,omitempty"`
	Scope        string    `yaml:"scope,omitempty"`
	ScopeBoundTo string    `yaml:"scope_bound_to,omitempty"`
	Project      string    `yaml:"project,omitempty"`
	UpdatedAt    time.Time `yaml:"updated_at"`
}

// Routing returns the active names in the form the layer model takes.
func (c *Context) Routing() layer.Activation {
	return layer.Activation{Mode: c.Mode, Scope: c.Scope, Project: c.Project}
}

// ActivateMode makes the named mode active. If the active scope is
// bound to a different mode it is deactivated, and its name is
// returned so the caller can report it.
func (c *Context) ActivateMode(name string) (deactivatedScope string, err error) {
	if err := layer.ValidateName(name, "mode name"); err != nil {
		return "", errkind.Configf("%v", err)
	}
	if c.Scope != "" && c.ScopeBoundTo != "" && c.ScopeBoundTo != name {
		deactivatedScope = c.Scope
		c.Scope = ""
		c.ScopeBoundTo = ""
	}
	c.Mode = name
	return deactivatedScope, nil
}

// DeactivateMode clears the active mode. A scope bound to that mode is
// deactivated with it; unbound scopes stay active.
func (c *Context) DeactivateMode() (deactivatedScope string) {
	if c.Scope != "" && c.ScopeBoundTo != "" {
		deactivatedScope = c.Scope
		c.Scope = ""
		c.ScopeBoundTo = ""
	}
	c.Mode = ""
	return deactivatedScope
}

// ActivateScope makes the named scope active. boundMode is the mode
// the scope is bound to per its descriptor, empty for unbound scopes.
// A bound scope can only activate while its mode is the active one.
func (c *Context) ActivateScope(name, boundMode string) error {
	if err := layer.ValidateName(name, "scope name"); err != nil {
		return errkind.Configf("%v", err)
	}
	if boundMode != "" && c.Mode != boundMode {
		if c.Mode == "" {
			return errkind.Configf("scope %q is bound to mode %q but no mode is active", name, boundMode)
		}
		return errkind.Configf("scope %q is bound to mode %q; active mode is %q", name, boundMode, c.Mode)
	}
	c.Scope = name
	c.ScopeBoundTo = boundMode
	return nil
}

// DeactivateScope clears the active scope.
func (c *Context) DeactivateScope() {
	c.Scope = ""
	c.ScopeBoundTo = ""
}

// SetProject makes the named project active.
func (c *Context) SetProject(name string) error {
	if err := layer.ValidateName(name, "project name"); err != nil {
		return errkind.Configf("%v", err)
	}
	c.Project = name
	return nil
}

// ClearProject clears the active project.
func (c *Context) ClearProject() {
	c.Project = ""
}

// Store reads and writes the context file.
type Store struct {
	path  string
	clock clock.Clock
}

// NewStore returns a Store persisting to path, stamping mutations with
// the given clock.
func NewStore(path string, clk clock.Clock) *Store {
	return &Store{path: path, clock: clk}
}

// Init creates an empty context file. It fails if one already exists.
func (s *Store) Init() (*Context, error) {
	if _, err := os.Stat(s.path); err == nil {
		return nil, errkind.Configf("already initialized: %s exists", s.path)
	} else if !errors.Is(err, fs.ErrNotExist) {
		return nil, errkind.IOf("checking %s: %v", s.path, err)
	}
	ctx := &Context{Version: contextVersion}
	if err := s.Save(ctx); err != nil {
		return nil, err
	}
	return ctx, nil
}

// Load reads the context file. A missing file means the workspace was
// never initialized.
func (s *Store) Load() (*Context, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, errkind.NotInitializedf("no activation context at %s; run `strata init`", s.path)
		}
		return nil, errkind.IOf("reading %s: %v", s.path, err)
	}
	var ctx Context
	if err := yaml.Unmarshal(data, &ctx); err != nil {
		return nil, errkind.Parsef("parsing %s: %v", s.path, err)
	}
	if ctx.Version != contextVersion {
		return nil, errkind.Parsef("%s: unsupported context version %d (want %d)", s.path, ctx.Version, contextVersion)
	}
	return &ctx, nil
}

// Save stamps the context and atomically replaces the file.
func (s *Store) Save(ctx *Context) error {
	ctx.Version = contextVersion
	ctx.UpdatedAt = s.clock.Now().UTC()
	data, err := yaml.Marshal(ctx)
	if err != nil {
		return fmt.Errorf("encoding activation context: %w", err)
	}
	if err := renameio.WriteFile(s.path, data, 0o644); err != nil {
		return errkind.IOf("writing %s: %v", s.path, err)
	}
	return nil
}
