// Copyright 2026 The Strata Authors
// SPDX-License-Identifier: Apache-2.0

package layer

import "github.com/strata-config/strata/lib/errkind"

// Flags are the placement flags a write operation may request. Scope
// carries the scope name to target; ScopeSet distinguishes an empty
// name (use the active scope) from no scope flag at all.
type Flags struct {
	Mode     bool
	ScopeSet bool
	Scope    string
	Project  bool
	Global   bool
	Local    bool
}

// Route resolves placement flags plus the activation into the single
// target layer for a write. The rules are evaluated in fixed order:
//
//  1. global is incompatible with every other flag.
//  2. local likewise stands alone.
//  3. mode placement requires an active mode.
//  4. project placement requires mode placement.
//  5. The surviving combination selects the kind:
//     mode+scope+project, mode+scope, mode+project, mode alone,
//     scope alone, no flags (the active project's base layer),
//     global alone, local alone.
func Route(flags Flags, active Activation) (Ref, error) {
	others := 0
	if flags.Mode {
		others++
	}
	if flags.ScopeSet {
		others++
	}
	if flags.Project {
		others++
	}

	if flags.Global {
		if flags.Local || others > 0 {
			return Ref{}, errkind.Configf("--global cannot be combined with other placement flags")
		}
		return NewRef(GlobalBase, Params{})
	}
	if flags.Local {
		if others > 0 {
			return Ref{}, errkind.Configf("--local cannot be combined with other placement flags")
		}
		return NewRef(UserLocal, Params{})
	}

	if flags.Mode && active.Mode == "" {
		return Ref{}, errkind.NoActiveModef("mode placement requested but no mode is active; run `strata mode use`")
	}
	if flags.Project && !flags.Mode {
		return Ref{}, errkind.Configf("--project requires --mode: project placement narrows a mode layer")
	}

	scope := flags.Scope
	if flags.ScopeSet && scope == "" {
		if active.Scope == "" {
			return Ref{}, errkind.Configf("scope placement requested with no name and no scope is active")
		}
		scope = active.Scope
	}

	switch {
	case flags.Mode && flags.ScopeSet && flags.Project:
		if active.Project == "" {
			return Ref{}, errkind.Configf("project placement requested but no project is active; run `strata project use`")
		}
		return NewRef(ModeScopeProject, Params{Mode: active.Mode, Scope: scope, Project: active.Project})
	case flags.Mode && flags.ScopeSet:
		return NewRef(ModeScope, Params{Mode: active.Mode, Scope: scope})
	case flags.Mode && flags.Project:
		if active.Project == "" {
			return Ref{}, errkind.Configf("project placement requested but no project is active; run `strata project use`")
		}
		return NewRef(ModeProject, Params{Mode: active.Mode, Project: active.Project})
	case flags.Mode:
		return NewRef(ModeBase, Params{Mode: active.Mode})
	case flags.ScopeSet:
		return NewRef(ScopeBase, Params{Scope: scope})
	default:
		if active.Project == "" {
			return Ref{}, errkind.Configf("no active project; run `strata project use` or pass a placement flag")
		}
		return NewRef(ProjectBase, Params{Project: active.Project})
	}
}
