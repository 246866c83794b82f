// Copyright 2026 The Strata Authors
// SPDX-License-Identifier: Apache-2.0

package workspace

import (
	"sort"
	"strings"

	"github.com/strata-config/strata/lib/errkind"
	"github.com/strata-config/strata/lib/format"
	"github.com/strata-config/strata/lib/layer"
	"github.com/strata-config/strata/lib/mergeval"
	"github.com/strata-config/strata/lib/objstore"
	"github.com/strata-config/strata/lib/textmerge"
)

// State is the merged configuration for one activation context:
// every path any applicable layer provides, each resolved to final
// content or to a conflict awaiting a human.
type State struct {
	// Layers are the applicable layers that have history, ascending by
	// precedence rank.
	Layers []layer.Ref

	// Files maps workspace-relative paths to their merged outcome.
	Files map[string]*PathState
}

// Paths returns the merged paths in sorted order.
func (s *State) Paths() []string {
	paths := make([]string, 0, len(s.Files))
	for p := range s.Files {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

// Conflicts returns the unresolved conflicts sorted by path.
func (s *State) Conflicts() []*Conflict {
	var conflicts []*Conflict
	for _, p := range s.Paths() {
		if c := s.Files[p].Conflict; c != nil {
			conflicts = append(conflicts, c)
		}
	}
	return conflicts
}

// PathState is the merged outcome for one path.
type PathState struct {
	// Path is workspace-relative.
	Path string

	// Format classifies how the path merged.
	Format format.Format

	// Mode is the file mode to materialize, from the highest-
	// precedence contributor.
	Mode uint32

	// Content is the final bytes. For a path a single layer provides
	// these are the stored bytes unmodified, so hand formatting and
	// comments survive until a second layer actually overlays the
	// path. Nil when Deleted or Conflict is set.
	Content []byte

	// Value is the merged structural value for structured formats,
	// zero otherwise.
	Value mergeval.Value

	// Deleted reports that the fold ended in an explicit deletion
	// marker: apply removes the workspace file.
	Deleted bool

	// Conflict is set when merging needs a human decision.
	Conflict *Conflict

	// Sources are the layers contributing to this path, ascending by
	// precedence rank.
	Sources []layer.Ref
}

// Conflict is one path apply could not auto-resolve. Structured
// conflicts carry the scalar location and every layer's document; text
// conflicts additionally carry the three-way merge with inline
// markers.
type Conflict struct {
	Path    string
	KeyPath string

	// Contributions hold each contributing layer's content for the
	// path, lowest precedence first.
	Contributions []Contribution

	// Marked is the text merge result with conflict markers, nil for
	// structured conflicts.
	Marked []byte
}

// Contribution is one layer's content for a conflicted path.
type Contribution struct {
	Layer   layer.Ref
	Content []byte
}

// layerState is one applicable layer's loaded head.
type layerState struct {
	ref   layer.Ref
	head  objstore.OID
	files map[string]objstore.BlobRef
}

// contributor is one layer's blob for a specific path.
type contributor struct {
	state   *layerState
	blob    objstore.BlobRef
	content []byte
}

// ComputeMergedState resolves every path any applicable layer
// provides. Layers without history are skipped; absence of a path in
// a layer contributes nothing, which is different from an explicit
// null deletion.
func (w *Workspace) ComputeMergedState(active layer.Activation) (*State, error) {
	state := &State{Files: make(map[string]*PathState)}

	var layers []*layerState
	for _, ref := range layer.Applicable(active) {
		head, err := w.store.Refs().Read(ref.Path())
		if err != nil {
			if errkind.Is(err, errkind.NotFound) {
				continue
			}
			return nil, err
		}
		commit, err := w.store.GetCommit(head)
		if err != nil {
			return nil, err
		}
		files, err := w.store.ReadTreePaths(commit.Tree)
		if err != nil {
			return nil, err
		}
		layers = append(layers, &layerState{ref: ref, head: head, files: files})
		state.Layers = append(state.Layers, ref)
	}

	pathSet := make(map[string]struct{})
	for _, ls := range layers {
		for p := range ls.files {
			pathSet[p] = struct{}{}
		}
	}
	paths := make([]string, 0, len(pathSet))
	for p := range pathSet {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	for _, p := range paths {
		ps, err := w.mergePath(p, layers)
		if err != nil {
			return nil, err
		}
		state.Files[p] = ps
	}
	return state, nil
}

// mergePath folds the contributing layers for one path.
func (w *Workspace) mergePath(filePath string, layers []*layerState) (*PathState, error) {
	var contribs []*contributor
	for _, ls := range layers {
		blob, ok := ls.files[filePath]
		if !ok {
			continue
		}
		content, err := w.BlobContent(blob.OID, ls.ref.Path()+":"+filePath)
		if err != nil {
			return nil, err
		}
		contribs = append(contribs, &contributor{state: ls, blob: blob, content: content})
	}

	highest := contribs[len(contribs)-1]
	ps := &PathState{
		Path: filePath,
		Mode: highest.blob.Mode,
	}
	for _, c := range contribs {
		ps.Sources = append(ps.Sources, c.state.ref)
	}

	detected := format.Detect(filePath, highest.content)
	if detected.Structured() {
		ps.Format = detected
		return ps, w.mergeStructured(ps, detected, contribs)
	}

	// Extension did not decide. A single binary contributor anywhere
	// makes the whole path opaque: mixing a text merge into binary
	// bytes can only corrupt them.
	for _, c := range contribs {
		if format.Detect(filePath, c.content) == format.Binary {
			ps.Format = format.Binary
			ps.Content = highest.content
			return ps, nil
		}
	}

	ps.Format = format.Text
	return ps, w.mergeText(ps, contribs)
}

// mergeStructured parses every contribution and folds them through
// the merge engine.
func (w *Workspace) mergeStructured(ps *PathState, f format.Format, contribs []*contributor) error {
	folded := make([]mergeval.Contribution, 0, len(contribs))
	for _, c := range contribs {
		value, err := format.Parse(f, c.content)
		if err != nil {
			return errkind.Parsef("%s in %s: %v", ps.Path, c.state.ref, err)
		}
		folded = append(folded, mergeval.Contribution{Layer: c.state.ref.Path(), Value: value})
	}

	merged, conflict := mergeval.Fold(ps.Path, folded, w.policy)
	if conflict != nil {
		ps.Conflict = &Conflict{
			Path:          ps.Path,
			KeyPath:       conflict.KeyPath,
			Contributions: rawContributions(contribs),
		}
		return nil
	}
	if merged.IsNull() {
		ps.Deleted = true
		return nil
	}

	ps.Value = merged
	if len(contribs) == 1 {
		ps.Content = contribs[0].content
		return nil
	}
	encoded, err := format.Encode(f, merged)
	if err != nil {
		return errkind.Parsef("encoding merged %s: %v", ps.Path, err)
	}
	ps.Content = encoded
	return nil
}

// mergeText folds text contributions pairwise with a three-way merge.
// The accumulated result is the base side of each next pair; the
// ancestor is the newest blob the next layer's history shares with any
// already-folded layer's history, or empty content when the histories
// never met.
func (w *Workspace) mergeText(ps *PathState, contribs []*contributor) error {
	merged := contribs[0].content
	mergedLabel := contribs[0].state.ref.Path()

	seen, err := w.pathBlobHistory(contribs[0].state.head, ps.Path)
	if err != nil {
		return err
	}
	seenSet := make(map[objstore.OID]struct{}, len(seen))
	for _, oid := range seen {
		seenSet[oid] = struct{}{}
	}

	for _, next := range contribs[1:] {
		history, err := w.pathBlobHistory(next.state.head, ps.Path)
		if err != nil {
			return err
		}

		var base []byte
		for _, oid := range history {
			if _, shared := seenSet[oid]; !shared {
				continue
			}
			base, err = w.BlobContent(oid, ps.Path)
			if err != nil {
				return err
			}
			break
		}

		result := textmerge.Merge(base, merged, next.content, mergedLabel, next.state.ref.Path())
		if result.Conflicts > 0 {
			ps.Conflict = &Conflict{
				Path:          ps.Path,
				Contributions: rawContributions(contribs),
				Marked:        result.Content,
			}
			return nil
		}
		merged = result.Content
		mergedLabel = mergedLabel + "+" + next.state.ref.Path()
		for _, oid := range history {
			seenSet[oid] = struct{}{}
		}
	}

	ps.Content = merged
	return nil
}

// pathBlobHistory collects the blob identities a path has pointed at
// across a layer's history, newest first.
func (w *Workspace) pathBlobHistory(head objstore.OID, filePath string) ([]objstore.OID, error) {
	var oids []objstore.OID
	listed := make(map[objstore.OID]struct{})
	err := w.store.WalkHistory(head, func(_ objstore.OID, commit *objstore.Commit) (bool, error) {
		blob, ok, err := w.store.LookupPath(commit.Tree, filePath)
		if err != nil {
			return false, err
		}
		if ok {
			if _, dup := listed[blob.OID]; !dup {
				listed[blob.OID] = struct{}{}
				oids = append(oids, blob.OID)
			}
		}
		return true, nil
	})
	if err != nil {
		return nil, err
	}
	return oids, nil
}

func rawContributions(contribs []*contributor) []Contribution {
	out := make([]Contribution, 0, len(contribs))
	for _, c := range contribs {
		out = append(out, Contribution{Layer: c.state.ref, Content: c.content})
	}
	return out
}

// describeSources renders the contributing layers for log output.
func describeSources(sources []layer.Ref) string {
	parts := make([]string, 0, len(sources))
	for _, ref := range sources {
		parts = append(parts, ref.Path())
	}
	return strings.Join(parts, ", ")
}
