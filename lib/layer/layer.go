// Copyright 2026 The Strata Authors
// SPDX-License-Identifier: Apache-2.0

// Package layer defines the fixed set of configuration layer kinds,
// their precedence order, and the reference-naming scheme addressing
// each layer's stored history. Pure data and logic, no I/O.
package layer

import (
	"fmt"
	"strings"

	"github.com/strata-config/strata/lib/errkind"
)

// Kind identifies one of the fixed layer kinds. The numeric value is
// the precedence rank: higher ranks win on merge conflicts.
type Kind uint8

const (
	// GlobalBase is the lowest-precedence layer, applied everywhere.
	GlobalBase Kind = iota + 1

	// ModeBase applies whenever its mode is active.
	ModeBase

	// ModeScope applies when its mode is active and its scope is active.
	ModeScope

	// ModeScopeProject narrows ModeScope to a single project.
	ModeScopeProject

	// ModeProject applies when its mode and project are both active.
	ModeProject

	// ScopeBase applies whenever its scope is active, mode-independent.
	ScopeBase

	// ProjectBase is the default write target: the active project's
	// own layer.
	ProjectBase

	// UserLocal is the highest stored layer, per-machine overrides.
	UserLocal

	// WorkspaceActive is the derived, materialized merge result. It is
	// never stored; the rank exists so reporting can order it above
	// every stored layer.
	WorkspaceActive
)

// kindCount is the number of stored kinds (WorkspaceActive excluded).
const kindCount = 8

var kindNames = [...]string{
	GlobalBase:       "global",
	ModeBase:         "mode",
	ModeScope:        "mode-scope",
	ModeScopeProject: "mode-scope-project",
	ModeProject:      "mode-project",
	ScopeBase:        "scope",
	ProjectBase:      "project",
	UserLocal:        "local",
	WorkspaceActive:  "workspace",
}

// String returns the kind's name as used in reference paths.
func (k Kind) String() string {
	if int(k) < len(kindNames) && kindNames[k] != "" {
		return kindNames[k]
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

// Rank returns the precedence rank, 1 lowest through 8 highest for
// stored kinds, 9 for the derived workspace state.
func (k Kind) Rank() int { return int(k) }

// Stored reports whether the kind has persisted commit history.
func (k Kind) Stored() bool { return k >= GlobalBase && k <= UserLocal }

// NeedsMode reports whether the kind's reference is parameterized by a
// mode name.
func (k Kind) NeedsMode() bool {
	return k == ModeBase || k == ModeScope || k == ModeScopeProject || k == ModeProject
}

// NeedsScope reports whether the kind's reference is parameterized by
// a scope name.
func (k Kind) NeedsScope() bool {
	return k == ModeScope || k == ModeScopeProject || k == ScopeBase
}

// NeedsProject reports whether the kind's reference is parameterized
// by a project name.
func (k Kind) NeedsProject() bool {
	return k == ModeScopeProject || k == ModeProject || k == ProjectBase
}

// refRoot is the namespace prefix for all layer references.
const refRoot = "layers"

// Prefix returns the reference-namespace prefix that enumerates every
// stored instance of the kind. Parameterless kinds return their exact
// reference path.
func (k Kind) Prefix() string {
	switch k {
	case GlobalBase:
		return refRoot + "/global"
	case UserLocal:
		return refRoot + "/local"
	default:
		return refRoot + "/" + k.String() + "/"
	}
}

// Params carries the names parameterizing a layer reference. Fields
// not required by the kind must be empty.
type Params struct {
	Mode    string
	Scope   string
	Project string
}

// Ref addresses one concrete layer: a kind plus its parameter names.
// The zero Ref is invalid; construct through NewRef or ParseRef.
type Ref struct {
	kind    Kind
	mode    string
	scope   string
	project string
}

// NewRef creates a validated layer reference. Exactly the parameters
// the kind requires must be set; missing or extra parameters are
// Config errors, as are invalid names.
func NewRef(kind Kind, params Params) (Ref, error) {
	if !kind.Stored() {
		return Ref{}, errkind.Configf("layer kind %s has no stored reference", kind)
	}
	if err := checkParam(kind.NeedsMode(), params.Mode, "mode", kind); err != nil {
		return Ref{}, err
	}
	if err := checkParam(kind.NeedsScope(), params.Scope, "scope", kind); err != nil {
		return Ref{}, err
	}
	if err := checkParam(kind.NeedsProject(), params.Project, "project", kind); err != nil {
		return Ref{}, err
	}
	return Ref{kind: kind, mode: params.Mode, scope: params.Scope, project: params.Project}, nil
}

func checkParam(needed bool, value, label string, kind Kind) error {
	if !needed {
		if value != "" {
			return errkind.Configf("layer kind %s does not take a %s name (got %q)", kind, label, value)
		}
		return nil
	}
	if value == "" {
		return errkind.Configf("layer kind %s requires a %s name", kind, label)
	}
	if err := ValidateName(value, label+" name"); err != nil {
		return errkind.Configf("layer kind %s: %v", kind, err)
	}
	return nil
}

// Kind returns the layer kind.
func (r Ref) Kind() Kind { return r.kind }

// Mode returns the mode name, empty when the kind takes none.
func (r Ref) Mode() string { return r.mode }

// Scope returns the scope name, empty when the kind takes none.
func (r Ref) Scope() string { return r.scope }

// Project returns the project name, empty when the kind takes none.
func (r Ref) Project() string { return r.project }

// IsZero reports whether this is an uninitialized zero-value Ref.
func (r Ref) IsZero() bool { return r.kind == 0 }

// Path returns the reference path addressing this layer's history in
// the store, e.g. "layers/mode-scope/dev/web".
func (r Ref) Path() string {
	var b strings.Builder
	b.WriteString(refRoot)
	b.WriteByte('/')
	b.WriteString(r.kind.String())
	for _, segment := range []string{r.mode, r.scope, r.project} {
		if segment != "" {
			b.WriteByte('/')
			b.WriteString(segment)
		}
	}
	return b.String()
}

// String returns the reference path, satisfying fmt.Stringer. Conflict
// artifacts and log output use this as the layer identity label.
func (r Ref) String() string { return r.Path() }

// ParseRef parses a reference path produced by Path back into a Ref.
func ParseRef(path string) (Ref, error) {
	segments := strings.Split(path, "/")
	if len(segments) < 2 || segments[0] != refRoot {
		return Ref{}, errkind.Parsef("reference path %q is not under %s/", path, refRoot)
	}
	kind, ok := kindByName(segments[1])
	if !ok {
		return Ref{}, errkind.Parsef("reference path %q: unknown layer kind %q", path, segments[1])
	}

	want := 0
	if kind.NeedsMode() {
		want++
	}
	if kind.NeedsScope() {
		want++
	}
	if kind.NeedsProject() {
		want++
	}
	args := segments[2:]
	if len(args) != want {
		return Ref{}, errkind.Parsef("reference path %q: kind %s takes %d parameter segments, got %d", path, kind, want, len(args))
	}

	var params Params
	next := 0
	if kind.NeedsMode() {
		params.Mode = args[next]
		next++
	}
	if kind.NeedsScope() {
		params.Scope = args[next]
		next++
	}
	if kind.NeedsProject() {
		params.Project = args[next]
	}
	return NewRef(kind, params)
}

func kindByName(name string) (Kind, bool) {
	for k := GlobalBase; k <= UserLocal; k++ {
		if kindNames[k] == name {
			return k, true
		}
	}
	return 0, false
}

// MarshalText implements encoding.TextMarshaler, serializing as the
// reference path.
func (r Ref) MarshalText() ([]byte, error) {
	if r.IsZero() {
		return nil, fmt.Errorf("cannot marshal zero-value layer.Ref")
	}
	return []byte(r.Path()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (r *Ref) UnmarshalText(data []byte) error {
	parsed, err := ParseRef(string(data))
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}

// Activation is the subset of the activation context the layer model
// needs: the currently active names, any of which may be empty.
type Activation struct {
	Mode    string
	Scope   string
	Project string
}

// Applicable returns the stored layers that apply for the given
// activation, ordered by ascending precedence rank. GlobalBase and
// UserLocal are always applicable; every parameterized kind is
// included exactly when all of its parameters are active.
func Applicable(active Activation) []Ref {
	refs := make([]Ref, 0, kindCount)
	for k := GlobalBase; k <= UserLocal; k++ {
		if k.NeedsMode() && active.Mode == "" {
			continue
		}
		if k.NeedsScope() && active.Scope == "" {
			continue
		}
		if k.NeedsProject() && active.Project == "" {
			continue
		}
		var params Params
		if k.NeedsMode() {
			params.Mode = active.Mode
		}
		if k.NeedsScope() {
			params.Scope = active.Scope
		}
		if k.NeedsProject() {
			params.Project = active.Project
		}
		ref, err := NewRef(k, params)
		if err != nil {
			// Active names were validated at activation time; a
			// failure here means the context file was edited by hand.
			continue
		}
		refs = append(refs, ref)
	}
	return refs
}
