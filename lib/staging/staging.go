// Copyright 2026 The Strata Authors
// SPDX-License-Identifier: Apache-2.0

// Package staging holds the pending-change index: every stage
// operation records what content should land in which layer, and
// commit consumes the index transactionally. The index is a single
// CBOR file replaced atomically on every update, so a crash never
// leaves it half-written.
package staging

import (
	"errors"
	"io/fs"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/strata-config/strata/lib/codec"
	"github.com/strata-config/strata/lib/errkind"
	"github.com/strata-config/strata/lib/layer"
	"github.com/strata-config/strata/lib/objstore"
)

// Filename is the workspace-relative location of the index file.
const Filename = ".strata/staging.cbor"

// indexVersion guards the on-disk format. Bump on incompatible
// changes to Entry or indexFile.
const indexVersion = 1

// Op says what a staged entry does to its path at commit time.
type Op uint8

const (
	// OpAddOrModify writes the staged blob at the path, creating or
	// replacing it.
	OpAddOrModify Op = 1

	// OpDelete removes the path from the layer.
	OpDelete Op = 2

	// OpRename removes RenamedFrom and writes the staged blob at the
	// new path in the same commit.
	OpRename Op = 3
)

// String returns the op name used in status output.
func (op Op) String() string {
	switch op {
	case OpAddOrModify:
		return "add"
	case OpDelete:
		return "delete"
	case OpRename:
		return "rename"
	default:
		return "unknown"
	}
}

// Entry is one pending change. The staged content already lives in
// the object store as Blob; the entry only points at it.
type Entry struct {
	Path        string       `cbor:"path"`
	Layer       layer.Ref    `cbor:"layer"`
	Op          Op           `cbor:"op"`
	Blob        objstore.OID `cbor:"blob"`
	Mode        uint32       `cbor:"mode,omitempty"`
	RenamedFrom string       `cbor:"renamed_from,omitempty"`
	Sealed      bool         `cbor:"sealed,omitempty"`
	StagedAt    time.Time    `cbor:"staged_at"`
}

// Validate checks the entry's internal consistency.
func (e Entry) Validate() error {
	if err := ValidatePath(e.Path); err != nil {
		return err
	}
	if e.Layer.IsZero() {
		return errkind.Configf("staged entry for %s has no target layer", e.Path)
	}
	if !e.Layer.Kind().Stored() {
		return errkind.Configf("cannot stage to derived layer %s", e.Layer)
	}
	switch e.Op {
	case OpAddOrModify:
		if e.Blob.IsZero() {
			return errkind.StagingFailedf("staged entry for %s has no content blob", e.Path)
		}
	case OpDelete:
		if !e.Blob.IsZero() {
			return errkind.StagingFailedf("staged delete of %s carries a content blob", e.Path)
		}
	case OpRename:
		if e.Blob.IsZero() {
			return errkind.StagingFailedf("staged rename to %s has no content blob", e.Path)
		}
		if err := ValidatePath(e.RenamedFrom); err != nil {
			return errkind.StagingFailedf("staged rename to %s has invalid source: %v", e.Path, err)
		}
		if e.RenamedFrom == e.Path {
			return errkind.StagingFailedf("staged rename of %s to itself", e.Path)
		}
	default:
		return errkind.StagingFailedf("staged entry for %s has unknown op %d", e.Path, e.Op)
	}
	return nil
}

// ValidatePath checks a workspace-relative file path: clean, relative,
// slash separated, no traversal.
func ValidatePath(filePath string) error {
	if filePath == "" {
		return errkind.Configf("file path is empty")
	}
	if strings.HasPrefix(filePath, "/") {
		return errkind.Configf("file path %q is absolute, want workspace-relative", filePath)
	}
	if strings.Contains(filePath, "\\") {
		return errkind.Configf("file path %q must use forward slashes", filePath)
	}
	if path.Clean(filePath) != filePath {
		return errkind.Configf("file path %q is not in canonical form", filePath)
	}
	for _, segment := range strings.Split(filePath, "/") {
		if segment == "" || segment == "." || segment == ".." {
			return errkind.Configf("file path %q has an invalid segment", filePath)
		}
	}
	return nil
}

// entryKey identifies one slot in the index. The same path may be
// staged to different layers at once; each (layer, path) pair holds
// at most one pending entry.
type entryKey struct {
	layer layer.Ref
	path  string
}

// Index is the in-memory staging index. It is not safe for concurrent
// use; the CLI is a single process and loads one index per command.
type Index struct {
	entries map[entryKey]Entry
}

// NewIndex returns an empty index.
func NewIndex() *Index {
	return &Index{entries: make(map[entryKey]Entry)}
}

// Stage records an entry, replacing any pending entry for the same
// layer and path.
func (x *Index) Stage(e Entry) error {
	if err := e.Validate(); err != nil {
		return err
	}
	x.entries[entryKey{layer: e.Layer, path: e.Path}] = e
	return nil
}

// Unstage drops the pending entry for a layer and path, reporting
// whether one existed.
func (x *Index) Unstage(ref layer.Ref, filePath string) bool {
	key := entryKey{layer: ref, path: filePath}
	if _, ok := x.entries[key]; !ok {
		return false
	}
	delete(x.entries, key)
	return true
}

// UnstagePath drops every pending entry for a path across all layers
// and returns how many were removed.
func (x *Index) UnstagePath(filePath string) int {
	removed := 0
	for key := range x.entries {
		if key.path == filePath {
			delete(x.entries, key)
			removed++
		}
	}
	return removed
}

// Get returns the pending entry for a layer and path.
func (x *Index) Get(ref layer.Ref, filePath string) (Entry, bool) {
	e, ok := x.entries[entryKey{layer: ref, path: filePath}]
	return e, ok
}

// Entries returns all pending entries sorted by layer path, then file
// path. The order is what status output shows and what the on-disk
// encoding uses.
func (x *Index) Entries() []Entry {
	entries := make([]Entry, 0, len(x.entries))
	for _, e := range x.entries {
		entries = append(entries, e)
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Layer != entries[j].Layer {
			return entries[i].Layer.Path() < entries[j].Layer.Path()
		}
		return entries[i].Path < entries[j].Path
	})
	return entries
}

// ByLayer groups pending entries by their target layer, each group
// sorted by path.
func (x *Index) ByLayer() map[layer.Ref][]Entry {
	groups := make(map[layer.Ref][]Entry)
	for _, e := range x.Entries() {
		groups[e.Layer] = append(groups[e.Layer], e)
	}
	return groups
}

// Len returns the number of pending entries.
func (x *Index) Len() int {
	return len(x.entries)
}

// Clear drops all pending entries.
func (x *Index) Clear() {
	x.entries = make(map[entryKey]Entry)
}

// indexFile is the on-disk shape.
type indexFile struct {
	Version int     `cbor:"version"`
	Entries []Entry `cbor:"entries"`
}

// Load reads the index file. A missing file is an empty index, since
// a workspace with nothing staged has nothing to persist.
func Load(filePath string) (*Index, error) {
	var file indexFile
	if err := codec.DecodeFile(filePath, &file); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return NewIndex(), nil
		}
		return nil, errkind.Wrap(errkind.Parse, err, "reading staging index")
	}
	if file.Version != indexVersion {
		return nil, errkind.Parsef("staging index version %d is not supported (want %d)",
			file.Version, indexVersion)
	}
	index := NewIndex()
	for _, e := range file.Entries {
		if err := e.Validate(); err != nil {
			return nil, errkind.Wrap(errkind.Parse, err, "staging index entry "+e.Path)
		}
		index.entries[entryKey{layer: e.Layer, path: e.Path}] = e
	}
	return index, nil
}

// Save atomically replaces the index file.
func (x *Index) Save(filePath string) error {
	file := indexFile{Version: indexVersion, Entries: x.Entries()}
	if err := codec.EncodeFile(filePath, file); err != nil {
		return errkind.Wrap(errkind.IO, err, "writing staging index")
	}
	return nil
}
