// Copyright 2026 The Strata Authors
// SPDX-License-Identifier: Apache-2.0

// Package names is the registry of mode and scope names. Each
// registered name is a reference under names/mode/ or names/scope/
// pointing at a CBOR descriptor blob in the object store. Routing
// trusts this registry: activating a mode or scope first resolves its
// descriptor here, and a scope descriptor's mode binding is what the
// activation rules enforce.
//
// Projects are not registered; they are validated at the point of use
// and exist implicitly through their layer references.
package names

import (
	"sort"
	"strings"
	"time"

	"github.com/strata-config/strata/lib/clock"
	"github.com/strata-config/strata/lib/codec"
	"github.com/strata-config/strata/lib/errkind"
	"github.com/strata-config/strata/lib/layer"
	"github.com/strata-config/strata/lib/objstore"
)

// Name references live outside the layers/ namespace so layer
// enumeration never sees them. modeDir and scopeDir are the ReadAll
// directory prefixes; individual refs append "/<name>".
const (
	modeDir  = "names/mode"
	scopeDir = "names/scope"
)

func modeRef(name string) string  { return modeDir + "/" + name }
func scopeRef(name string) string { return scopeDir + "/" + name }

// ModeDescriptor describes one registered mode.
type ModeDescriptor struct {
	Name        string    `cbor:"name"`
	Description string    `cbor:"description,omitempty"`
	CreatedAt   time.Time `cbor:"created_at"`
}

// ScopeDescriptor describes one registered scope. BoundMode, when set,
// restricts the scope to being active only while that mode is active.
type ScopeDescriptor struct {
	Name        string    `cbor:"name"`
	Description string    `cbor:"description,omitempty"`
	BoundMode   string    `cbor:"bound_mode,omitempty"`
	CreatedAt   time.Time `cbor:"created_at"`
}

// Registry reads and writes name descriptors in the object store.
type Registry struct {
	store *objstore.Store
	clk   clock.Clock
}

// NewRegistry returns a Registry backed by the given store.
func NewRegistry(store *objstore.Store, clk clock.Clock) *Registry {
	return &Registry{store: store, clk: clk}
}

// CreateMode registers a new mode name.
func (r *Registry) CreateMode(name, description string) (*ModeDescriptor, error) {
	if err := layer.ValidateName(name, "mode name"); err != nil {
		return nil, errkind.Configf("%v", err)
	}
	descriptor := &ModeDescriptor{
		Name:        name,
		Description: description,
		CreatedAt:   r.clk.Now().UTC(),
	}
	if err := r.createDescriptor(modeRef(name), descriptor, "mode", name); err != nil {
		return nil, err
	}
	return descriptor, nil
}

// GetMode resolves a registered mode.
func (r *Registry) GetMode(name string) (*ModeDescriptor, error) {
	var descriptor ModeDescriptor
	if err := r.readDescriptor(modeRef(name), &descriptor, "mode", name); err != nil {
		return nil, err
	}
	return &descriptor, nil
}

// ListModes returns every registered mode, sorted by name.
func (r *Registry) ListModes() ([]ModeDescriptor, error) {
	refs, err := r.store.Refs().ReadAll(modeDir)
	if err != nil {
		return nil, err
	}
	descriptors := make([]ModeDescriptor, 0, len(refs))
	for refName := range refs {
		var descriptor ModeDescriptor
		name := strings.TrimPrefix(refName, modeDir+"/")
		if err := r.readDescriptor(refName, &descriptor, "mode", name); err != nil {
			if errkind.Is(err, errkind.NotFound) {
				// Deleted between enumeration and read.
				continue
			}
			return nil, err
		}
		descriptors = append(descriptors, descriptor)
	}
	sort.Slice(descriptors, func(i, j int) bool { return descriptors[i].Name < descriptors[j].Name })
	return descriptors, nil
}

// DeleteMode removes a mode registration. A mode with bound scopes or
// existing layer history cannot be deleted; remove those first.
func (r *Registry) DeleteMode(name string) error {
	if _, err := r.GetMode(name); err != nil {
		return err
	}

	scopes, err := r.ListScopes()
	if err != nil {
		return err
	}
	var bound []string
	for _, scope := range scopes {
		if scope.BoundMode == name {
			bound = append(bound, scope.Name)
		}
	}
	if len(bound) > 0 {
		return errkind.Configf("mode %q has bound scopes (%s); delete or rebind them first",
			name, strings.Join(bound, ", "))
	}

	used, where, err := r.modeHasHistory(name)
	if err != nil {
		return err
	}
	if used {
		return errkind.Configf("mode %q still has layer history at %s; it cannot be deleted", name, where)
	}
	return r.store.Refs().Delete(modeRef(name), nil)
}

// CreateScope registers a new scope name. A non-empty boundMode must
// name a registered mode; the binding is recorded in the descriptor
// and enforced at activation time.
func (r *Registry) CreateScope(name, description, boundMode string) (*ScopeDescriptor, error) {
	if err := layer.ValidateName(name, "scope name"); err != nil {
		return nil, errkind.Configf("%v", err)
	}
	if boundMode != "" {
		if _, err := r.GetMode(boundMode); err != nil {
			if errkind.Is(err, errkind.NotFound) {
				return nil, errkind.Configf("cannot bind scope %q to unregistered mode %q", name, boundMode)
			}
			return nil, err
		}
	}
	descriptor := &ScopeDescriptor{
		Name:        name,
		Description: description,
		BoundMode:   boundMode,
		CreatedAt:   r.clk.Now().UTC(),
	}
	if err := r.createDescriptor(scopeRef(name), descriptor, "scope", name); err != nil {
		return nil, err
	}
	return descriptor, nil
}

// GetScope resolves a registered scope.
func (r *Registry) GetScope(name string) (*ScopeDescriptor, error) {
	var descriptor ScopeDescriptor
	if err := r.readDescriptor(scopeRef(name), &descriptor, "scope", name); err != nil {
		return nil, err
	}
	return &descriptor, nil
}

// ListScopes returns every registered scope, sorted by name.
func (r *Registry) ListScopes() ([]ScopeDescriptor, error) {
	refs, err := r.store.Refs().ReadAll(scopeDir)
	if err != nil {
		return nil, err
	}
	descriptors := make([]ScopeDescriptor, 0, len(refs))
	for refName := range refs {
		var descriptor ScopeDescriptor
		name := strings.TrimPrefix(refName, scopeDir+"/")
		if err := r.readDescriptor(refName, &descriptor, "scope", name); err != nil {
			if errkind.Is(err, errkind.NotFound) {
				continue
			}
			return nil, err
		}
		descriptors = append(descriptors, descriptor)
	}
	sort.Slice(descriptors, func(i, j int) bool { return descriptors[i].Name < descriptors[j].Name })
	return descriptors, nil
}

// DeleteScope removes a scope registration. A scope with existing
// layer history cannot be deleted.
func (r *Registry) DeleteScope(name string) error {
	if _, err := r.GetScope(name); err != nil {
		return err
	}
	used, where, err := r.scopeHasHistory(name)
	if err != nil {
		return err
	}
	if used {
		return errkind.Configf("scope %q still has layer history at %s; it cannot be deleted", name, where)
	}
	return r.store.Refs().Delete(scopeRef(name), nil)
}

// createDescriptor stores the descriptor blob and publishes the name
// reference. The reference must not exist yet; a create race surfaces
// as the same "already exists" error as an ordinary duplicate.
func (r *Registry) createDescriptor(refName string, descriptor any, kind, name string) error {
	if _, err := r.store.Refs().Read(refName); err == nil {
		return errkind.Configf("%s %q already exists", kind, name)
	} else if !errkind.Is(err, errkind.NotFound) {
		return err
	}

	data, err := codec.Marshal(descriptor)
	if err != nil {
		return errkind.Wrap(errkind.ObjectStore, err, "encoding "+kind+" descriptor")
	}
	oid, err := r.store.PutBlob(data)
	if err != nil {
		return err
	}
	if err := r.store.Refs().Update(refName, nil, oid); err != nil {
		if errkind.Is(err, errkind.CommitConflict) {
			return errkind.Configf("%s %q already exists", kind, name)
		}
		return err
	}
	return nil
}

// readDescriptor loads and decodes the descriptor a name reference
// points at.
func (r *Registry) readDescriptor(refName string, descriptor any, kind, name string) error {
	oid, err := r.store.Refs().Read(refName)
	if err != nil {
		if errkind.Is(err, errkind.NotFound) {
			return errkind.NotFoundf("%s %q is not registered", kind, name)
		}
		return err
	}
	data, err := r.store.GetBlob(oid)
	if err != nil {
		return err
	}
	if err := codec.Unmarshal(data, descriptor); err != nil {
		return errkind.ObjectStoref("%s descriptor for %q is corrupt: %v", kind, name, err)
	}
	return nil
}

// modeHasHistory reports whether any layer reference parameterized by
// the mode exists, and names the first one found.
func (r *Registry) modeHasHistory(name string) (bool, string, error) {
	if _, err := r.store.Refs().Read(layer.ModeBase.Prefix() + name); err == nil {
		return true, layer.ModeBase.Prefix() + name, nil
	} else if !errkind.Is(err, errkind.NotFound) {
		return false, "", err
	}

	// ReadAll walks a ref directory, so "<prefix>/dev" never picks up
	// the sibling directory of a mode named "devops".
	for _, kind := range []layer.Kind{layer.ModeScope, layer.ModeScopeProject, layer.ModeProject} {
		refs, err := r.store.Refs().ReadAll(kind.Prefix() + name)
		if err != nil {
			return false, "", err
		}
		for refName := range refs {
			return true, refName, nil
		}
	}
	return false, "", nil
}

// scopeHasHistory reports whether any layer reference parameterized by
// the scope exists. The scope name is the second parameter segment of
// mode-scope kinds, so those namespaces are scanned and matched by
// segment.
func (r *Registry) scopeHasHistory(name string) (bool, string, error) {
	if _, err := r.store.Refs().Read(layer.ScopeBase.Prefix() + name); err == nil {
		return true, layer.ScopeBase.Prefix() + name, nil
	} else if !errkind.Is(err, errkind.NotFound) {
		return false, "", err
	}

	for _, kind := range []layer.Kind{layer.ModeScope, layer.ModeScopeProject} {
		refs, err := r.store.Refs().ReadAll(strings.TrimSuffix(kind.Prefix(), "/"))
		if err != nil {
			return false, "", err
		}
		for refName := range refs {
			// Refs here look like layers/mode-scope/<mode>/<scope>
			// with the scope as the fourth segment.
			segments := strings.Split(refName, "/")
			if len(segments) >= 4 && segments[3] == name {
				return true, refName, nil
			}
		}
	}
	return false, "", nil
}
