// Copyright 2026 The Strata Authors
// SPDX-License-Identifier: Apache-2.0

package workspace

import (
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/strata-config/strata/lib/clock"
	"github.com/strata-config/strata/lib/errkind"
	"github.com/strata-config/strata/lib/layer"
	"github.com/strata-config/strata/lib/objstore"
	"github.com/strata-config/strata/lib/sealed"
	"github.com/strata-config/strata/lib/staging"
)

// Stager captures workspace files into the object store and records
// pending entries in the staging index. Every operation persists the
// index before returning, so a batch interrupted halfway keeps the
// entries already staged.
type Stager struct {
	root      string
	store     *objstore.Store
	index     *staging.Index
	indexPath string
	clk       clock.Clock
	logger    *slog.Logger
}

// Stager returns a Stager recording into the given index.
func (w *Workspace) Stager(index *staging.Index, indexPath string) *Stager {
	return &Stager{
		root:      w.root,
		store:     w.store,
		index:     index,
		indexPath: indexPath,
		clk:       w.clk,
		logger:    w.logger,
	}
}

// Stage captures the workspace file at filePath for the target layer.
// A non-nil sealer encrypts the content before it enters the object
// store; the entry is flagged so apply knows to unseal.
func (s *Stager) Stage(filePath string, target layer.Ref, sealer *sealed.Sealer) (staging.Entry, error) {
	blob, mode, isSealed, err := s.capture(filePath, sealer)
	if err != nil {
		return staging.Entry{}, err
	}
	entry := staging.Entry{
		Path:     filePath,
		Layer:    target,
		Op:       staging.OpAddOrModify,
		Blob:     blob,
		Mode:     mode,
		Sealed:   isSealed,
		StagedAt: s.clk.Now().UTC(),
	}
	if err := s.record(entry); err != nil {
		return staging.Entry{}, err
	}
	return entry, nil
}

// StageDelete records that the path should be removed from the target
// layer. The workspace file itself is untouched and need not exist;
// commit validates that the layer actually has the path.
func (s *Stager) StageDelete(filePath string, target layer.Ref) (staging.Entry, error) {
	if err := checkStagePath(filePath); err != nil {
		return staging.Entry{}, err
	}
	entry := staging.Entry{
		Path:     filePath,
		Layer:    target,
		Op:       staging.OpDelete,
		StagedAt: s.clk.Now().UTC(),
	}
	if err := s.record(entry); err != nil {
		return staging.Entry{}, err
	}
	return entry, nil
}

// StageRename captures the already-renamed workspace file at toPath
// and records that fromPath should move to it in the target layer.
func (s *Stager) StageRename(fromPath, toPath string, target layer.Ref, sealer *sealed.Sealer) (staging.Entry, error) {
	if err := checkStagePath(fromPath); err != nil {
		return staging.Entry{}, err
	}
	blob, mode, isSealed, err := s.capture(toPath, sealer)
	if err != nil {
		return staging.Entry{}, err
	}
	entry := staging.Entry{
		Path:        toPath,
		Layer:       target,
		Op:          staging.OpRename,
		Blob:        blob,
		Mode:        mode,
		RenamedFrom: fromPath,
		Sealed:      isSealed,
		StagedAt:    s.clk.Now().UTC(),
	}
	if err := s.record(entry); err != nil {
		return staging.Entry{}, err
	}
	return entry, nil
}

// capture reads a workspace file, optionally seals it, and writes the
// blob. It returns the blob identity, the file's permission bits, and
// whether the blob is ciphertext.
func (s *Stager) capture(filePath string, sealer *sealed.Sealer) (objstore.OID, uint32, bool, error) {
	if err := checkStagePath(filePath); err != nil {
		return objstore.OID{}, 0, false, err
	}
	source := filepath.Join(s.root, filepath.FromSlash(filePath))
	info, err := os.Stat(source)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return objstore.OID{}, 0, false, errkind.NotFoundf("workspace file %s does not exist", filePath)
		}
		return objstore.OID{}, 0, false, errkind.IOf("checking %s: %v", source, err)
	}
	if info.IsDir() {
		return objstore.OID{}, 0, false, errkind.Configf("%s is a directory; stage files individually", filePath)
	}
	content, err := os.ReadFile(source)
	if err != nil {
		return objstore.OID{}, 0, false, errkind.IOf("reading %s: %v", source, err)
	}

	isSealed := false
	if sealer != nil {
		ciphertext, err := sealer.Seal(content)
		if err != nil {
			return objstore.OID{}, 0, false, err
		}
		content = ciphertext
		isSealed = true
	}

	blob, err := s.store.PutBlob(content)
	if err != nil {
		return objstore.OID{}, 0, false, err
	}
	return blob, uint32(info.Mode().Perm()), isSealed, nil
}

// record validates, indexes, and persists one entry.
func (s *Stager) record(entry staging.Entry) error {
	if err := s.index.Stage(entry); err != nil {
		return err
	}
	if err := s.index.Save(s.indexPath); err != nil {
		return err
	}
	s.logger.Debug("staged",
		"path", entry.Path, "layer", entry.Layer.Path(),
		"op", entry.Op.String(), "sealed", entry.Sealed)
	return nil
}

// checkStagePath rejects invalid paths and anything inside the tool
// state directory.
func checkStagePath(filePath string) error {
	if err := staging.ValidatePath(filePath); err != nil {
		return err
	}
	if insideStateDir(filePath) {
		return errkind.Configf("cannot stage %s: %s holds strata state", filePath, stateDirName)
	}
	return nil
}
