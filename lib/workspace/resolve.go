// Copyright 2026 The Strata Authors
// SPDX-License-Identifier: Apache-2.0

package workspace

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/google/renameio"

	"github.com/strata-config/strata/lib/errkind"
	"github.com/strata-config/strata/lib/layer"
)

// ResolveTake resolves a pending conflict by writing the chosen
// layer's current content for the path to the workspace.
func (w *Workspace) ResolveTake(filePath string, source layer.Ref) error {
	pending, err := w.requirePending(filePath)
	if err != nil {
		return err
	}

	content, mode, err := w.LayerContent(source, filePath)
	if err != nil {
		// A missing layer or path is a bad resolution choice, not a
		// lookup failure.
		if errkind.Is(err, errkind.NotFound) {
			return errkind.Configf("%v", err)
		}
		return err
	}

	if err := w.writeResolved(filePath, content, mode); err != nil {
		return err
	}
	w.logger.Info("conflict resolved", "path", filePath, "taken_from", source.Path())
	return w.finishResolve(filePath, pending)
}

// ResolveFile resolves a pending conflict with the content of an
// external file, typically a hand-edited conflict artifact.
func (w *Workspace) ResolveFile(filePath, sourcePath string) error {
	pending, err := w.requirePending(filePath)
	if err != nil {
		return err
	}

	content, err := os.ReadFile(sourcePath)
	if err != nil {
		return errkind.Configf("cannot read resolution file %s: %v", sourcePath, err)
	}
	var mode uint32
	if info, err := os.Stat(sourcePath); err == nil {
		mode = uint32(info.Mode().Perm())
	}

	if err := w.writeResolved(filePath, content, mode); err != nil {
		return err
	}
	w.logger.Info("conflict resolved", "path", filePath, "taken_from", sourcePath)
	return w.finishResolve(filePath, pending)
}

// ResolveAbort discards every pending conflict: artifacts and the
// paused marker are removed, the workspace is left as the paused apply
// left it. Returns how many conflicts were discarded.
func (w *Workspace) ResolveAbort() (int, error) {
	pending, err := w.PendingConflicts()
	if err != nil {
		return 0, err
	}
	if len(pending) == 0 {
		return 0, errkind.Configf("no apply is paused; nothing to abort")
	}
	if err := os.RemoveAll(w.conflictsDir()); err != nil {
		return 0, errkind.IOf("removing conflict artifacts: %v", err)
	}
	if err := os.Remove(w.pausedPath()); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return 0, errkind.IOf("removing paused marker: %v", err)
	}
	w.logger.Info("conflicts discarded", "count", len(pending))
	return len(pending), nil
}

// requirePending loads the paused marker and checks the path is in it.
func (w *Workspace) requirePending(filePath string) ([]string, error) {
	pending, err := w.PendingConflicts()
	if err != nil {
		return nil, err
	}
	if len(pending) == 0 {
		return nil, errkind.Configf("no apply is paused; nothing to resolve")
	}
	if !slices.Contains(pending, filePath) {
		return nil, errkind.Configf("%s has no pending conflict (pending: %s)",
			filePath, strings.Join(pending, ", "))
	}
	return pending, nil
}

func (w *Workspace) writeResolved(filePath string, content []byte, mode uint32) error {
	target := w.filePath(filePath)
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return errkind.IOf("creating directory for %s: %v", target, err)
	}
	if err := renameio.WriteFile(target, content, materializeMode(mode)); err != nil {
		return errkind.IOf("writing %s: %v", target, err)
	}
	return nil
}

// finishResolve removes the path's artifact and drops it from the
// paused marker, deleting the marker when nothing is left.
func (w *Workspace) finishResolve(filePath string, pending []string) error {
	artifact := w.artifactPath(filePath)
	if err := os.Remove(artifact); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return errkind.IOf("removing conflict artifact %s: %v", artifact, err)
	}
	// Prune directories the artifact left empty.
	for dir := filepath.Dir(artifact); dir != w.conflictsDir(); dir = filepath.Dir(dir) {
		if os.Remove(dir) != nil {
			break
		}
	}

	remaining := make([]string, 0, len(pending)-1)
	for _, p := range pending {
		if p != filePath {
			remaining = append(remaining, p)
		}
	}
	if len(remaining) > 0 {
		return w.savePaused(remaining)
	}
	if err := os.Remove(w.pausedPath()); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return errkind.IOf("removing paused marker: %v", err)
	}
	os.Remove(w.conflictsDir())
	return nil
}
