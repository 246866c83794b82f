// Copyright 2026 The Strata Authors
// SPDX-License-Identifier: Apache-2.0

package workspace

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/renameio"

	"github.com/strata-config/strata/lib/codec"
	"github.com/strata-config/strata/lib/errkind"
	"github.com/strata-config/strata/lib/layer"
	"github.com/strata-config/strata/lib/staging"
)

// Action says what apply did (or would do) to one workspace path.
type Action uint8

const (
	ActionAdd Action = iota + 1
	ActionModify
	ActionRemove
	ActionUnchanged
)

// String returns the action name used in status output.
func (a Action) String() string {
	switch a {
	case ActionAdd:
		return "add"
	case ActionModify:
		return "modify"
	case ActionRemove:
		return "remove"
	case ActionUnchanged:
		return "unchanged"
	default:
		return "unknown"
	}
}

// Change is one path's reconciliation outcome.
type Change struct {
	Path   string
	Action Action
}

// Status is the terminal state of an apply run. Paused is not a
// failure: non-conflicting paths were written and the conflicts wait
// for resolve.
type Status uint8

const (
	StatusApplied Status = iota + 1
	StatusPaused
)

// String returns the status name.
func (s Status) String() string {
	switch s {
	case StatusApplied:
		return "applied"
	case StatusPaused:
		return "paused"
	default:
		return "unknown"
	}
}

// Summary reports one apply run.
type Summary struct {
	Status    Status
	DryRun    bool
	Changes   []Change
	Conflicts []*Conflict
}

// Count returns how many changes carry the action.
func (s *Summary) Count(action Action) int {
	n := 0
	for _, c := range s.Changes {
		if c.Action == action {
			n++
		}
	}
	return n
}

// Apply reconciles the workspace directory against a merged state.
// Non-conflicting paths are written even when others conflict; each
// conflicting path gets an artifact under .strata/conflicts/ and the
// run ends Paused with a marker that blocks further applies until the
// conflicts are resolved or aborted. Dry runs report intended actions
// without writing anything, artifacts and marker included.
func (w *Workspace) Apply(state *State, dryRun bool) (*Summary, error) {
	pending, err := w.PendingConflicts()
	if err != nil {
		return nil, err
	}
	if len(pending) > 0 {
		return nil, errkind.Configf(
			"apply is paused on unresolved conflicts (%s); resolve them or discard with `strata resolve --abort`",
			strings.Join(pending, ", "))
	}

	summary := &Summary{Status: StatusApplied, DryRun: dryRun}
	for _, p := range state.Paths() {
		ps := state.Files[p]
		if insideStateDir(p) || staging.ValidatePath(p) != nil {
			w.logger.Warn("skipping unsafe merged path", "path", p)
			continue
		}
		if ps.Conflict != nil {
			summary.Conflicts = append(summary.Conflicts, ps.Conflict)
			continue
		}

		change, err := w.reconcile(ps, dryRun)
		if err != nil {
			return nil, err
		}
		if change.Action == 0 {
			// Deleted path that never existed in the workspace.
			continue
		}
		summary.Changes = append(summary.Changes, change)
		if change.Action != ActionUnchanged {
			w.logger.Debug("path reconciled",
				"path", p, "action", change.Action.String(), "dry_run", dryRun)
		}
	}

	if len(summary.Conflicts) > 0 {
		summary.Status = StatusPaused
		for _, c := range summary.Conflicts {
			refs := make([]layer.Ref, 0, len(c.Contributions))
			for _, contrib := range c.Contributions {
				refs = append(refs, contrib.Layer)
			}
			w.logger.Warn("merge conflict", "path", c.Path, "layers", describeSources(refs))
		}
		if !dryRun {
			if err := w.pause(summary.Conflicts); err != nil {
				return nil, err
			}
		}
		w.logger.Info("apply paused",
			"conflicts", len(summary.Conflicts), "artifacts", w.conflictsDir(), "dry_run", dryRun)
		return summary, nil
	}

	w.logger.Info("apply complete",
		"added", summary.Count(ActionAdd),
		"modified", summary.Count(ActionModify),
		"removed", summary.Count(ActionRemove),
		"unchanged", summary.Count(ActionUnchanged),
		"dry_run", dryRun)
	return summary, nil
}

// reconcile brings one workspace file in line with its merged state.
// A zero-action change means there was nothing to do and nothing worth
// reporting.
func (w *Workspace) reconcile(ps *PathState, dryRun bool) (Change, error) {
	target := w.filePath(ps.Path)

	if ps.Deleted {
		if _, err := os.Stat(target); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return Change{}, nil
			}
			return Change{}, errkind.IOf("checking %s: %v", target, err)
		}
		if !dryRun {
			if err := os.Remove(target); err != nil {
				return Change{}, errkind.IOf("removing %s: %v", target, err)
			}
		}
		return Change{Path: ps.Path, Action: ActionRemove}, nil
	}

	action := ActionAdd
	existing, err := os.ReadFile(target)
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return Change{}, errkind.IOf("reading %s: %v", target, err)
	case bytes.Equal(existing, ps.Content) && w.modeMatches(target, ps.Mode):
		return Change{Path: ps.Path, Action: ActionUnchanged}, nil
	default:
		action = ActionModify
	}

	if !dryRun {
		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return Change{}, errkind.IOf("creating directory for %s: %v", target, err)
		}
		if err := renameio.WriteFile(target, ps.Content, materializeMode(ps.Mode)); err != nil {
			return Change{}, errkind.IOf("writing %s: %v", target, err)
		}
	}
	return Change{Path: ps.Path, Action: action}, nil
}

// modeMatches reports whether the file's permission bits already equal
// the merged mode. A zero merged mode means no mode was recorded and
// always matches.
func (w *Workspace) modeMatches(target string, mode uint32) bool {
	if mode == 0 {
		return true
	}
	info, err := os.Stat(target)
	if err != nil {
		return false
	}
	return info.Mode().Perm() == materializeMode(mode)
}

func materializeMode(mode uint32) fs.FileMode {
	perm := fs.FileMode(mode) & fs.ModePerm
	if perm == 0 {
		perm = 0o644
	}
	return perm
}

// pause writes one artifact per conflict and the paused marker.
func (w *Workspace) pause(conflicts []*Conflict) error {
	paths := make([]string, 0, len(conflicts))
	for _, c := range conflicts {
		artifact := w.artifactPath(c.Path)
		if err := os.MkdirAll(filepath.Dir(artifact), 0o755); err != nil {
			return errkind.IOf("creating conflict directory: %v", err)
		}
		if err := renameio.WriteFile(artifact, renderArtifact(c), 0o644); err != nil {
			return errkind.IOf("writing conflict artifact %s: %v", artifact, err)
		}
		paths = append(paths, c.Path)
	}
	return w.savePaused(paths)
}

// renderArtifact builds the human-readable conflict file. Text
// conflicts are the three-way merge with inline markers, ready to
// hand-edit and feed back through `strata resolve --file`. Structured
// conflicts list every layer's document, lowest precedence first.
func renderArtifact(c *Conflict) []byte {
	if len(c.Marked) > 0 {
		return c.Marked
	}
	var b bytes.Buffer
	fmt.Fprintf(&b, "strata conflict: %s\n", c.Path)
	if c.KeyPath != "" {
		fmt.Fprintf(&b, "key path: %s\n", c.KeyPath)
	}
	for _, contrib := range c.Contributions {
		fmt.Fprintf(&b, "\n--- %s ---\n", contrib.Layer)
		b.Write(contrib.Content)
		if n := len(contrib.Content); n > 0 && contrib.Content[n-1] != '\n' {
			b.WriteByte('\n')
		}
	}
	return b.Bytes()
}

// --- paused marker ---

// pausedVersion guards the marker's on-disk format.
const pausedVersion = 1

type pausedFile struct {
	Version  int       `cbor:"version"`
	PausedAt time.Time `cbor:"paused_at"`
	Paths    []string  `cbor:"paths"`
}

// PendingConflicts returns the paths still awaiting resolution, nil
// when no apply is paused.
func (w *Workspace) PendingConflicts() ([]string, error) {
	var file pausedFile
	if err := codec.DecodeFile(w.pausedPath(), &file); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, errkind.Wrap(errkind.Parse, err, "reading paused marker")
	}
	if file.Version != pausedVersion {
		return nil, errkind.Parsef("paused marker version %d is not supported (want %d)",
			file.Version, pausedVersion)
	}
	return file.Paths, nil
}

func (w *Workspace) savePaused(paths []string) error {
	sort.Strings(paths)
	if err := os.MkdirAll(w.stateDir(), 0o755); err != nil {
		return errkind.IOf("creating %s: %v", w.stateDir(), err)
	}
	file := pausedFile{Version: pausedVersion, PausedAt: w.clk.Now().UTC(), Paths: paths}
	if err := codec.EncodeFile(w.pausedPath(), file); err != nil {
		return errkind.Wrap(errkind.IO, err, "writing paused marker")
	}
	return nil
}
