// Copyright 2026 The Strata Authors
// SPDX-License-Identifier: Apache-2.0

package objstore

import (
	"errors"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/strata-config/strata/lib/errkind"
)

// RefStore is the mutable namespace of the object store: slash
// separated names mapped to commit identifiers, one file per ref at
// its literal path. Updates are compare-and-swap guarded by a per-ref
// lock file, so two writers racing on the same layer cannot silently
// drop each other's commit.
type RefStore struct {
	root string
}

const lockSuffix = ".lock"

// Dir returns the directory refs live under. Watch tooling points a
// filesystem watcher at it to notice commits from other processes.
func (r *RefStore) Dir() string { return r.root }

// Read returns the identifier a ref points at.
func (r *RefStore) Read(name string) (OID, error) {
	refPath, err := r.refPath(name)
	if err != nil {
		return OID{}, err
	}
	oid, exists, err := readRefFile(refPath)
	if err != nil {
		return OID{}, err
	}
	if !exists {
		return OID{}, errkind.NotFoundf("ref %s not found", name)
	}
	return oid, nil
}

// ReadAll returns every ref under a directory prefix, keyed by full
// ref name. A prefix that does not exist yields an empty map, since
// an unused namespace and an empty one are the same thing.
func (r *RefStore) ReadAll(prefix string) (map[string]OID, error) {
	if err := checkRefName(prefix); err != nil {
		return nil, err
	}
	dir := filepath.Join(r.root, filepath.FromSlash(prefix))
	refs := make(map[string]OID)

	err := filepath.WalkDir(dir, func(walkPath string, entry fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil
			}
			return err
		}
		if entry.IsDir() || strings.HasSuffix(entry.Name(), lockSuffix) {
			return nil
		}
		rel, err := filepath.Rel(dir, walkPath)
		if err != nil {
			return err
		}
		name := path.Join(prefix, filepath.ToSlash(rel))
		oid, exists, err := readRefFile(walkPath)
		if err != nil || !exists {
			return err
		}
		refs[name] = oid
		return nil
	})
	if err != nil {
		return nil, errkind.Wrap(errkind.ObjectStore, err, "enumerating refs under "+prefix)
	}
	return refs, nil
}

// Update points a ref at target. expected carries the compare half of
// the swap: nil means the ref must not exist yet, otherwise the ref
// must currently equal *expected. A failed comparison returns a
// CommitConflict error and leaves the ref untouched.
func (r *RefStore) Update(name string, expected *OID, target OID) error {
	refPath, err := r.refPath(name)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(refPath), 0o755); err != nil {
		return errkind.Wrap(errkind.ObjectStore, err, "creating ref directory")
	}

	lock, lockPath, err := acquireRefLock(refPath, name)
	if err != nil {
		return err
	}
	locked := true
	defer func() {
		if locked {
			lock.Close()
			os.Remove(lockPath)
		}
	}()

	current, exists, err := readRefFile(refPath)
	if err != nil {
		return err
	}
	switch {
	case expected == nil && exists:
		return errkind.CommitConflictf("ref %s already exists at %s", name, ShortOID(current))
	case expected != nil && !exists:
		return errkind.CommitConflictf("ref %s is gone, expected %s", name, ShortOID(*expected))
	case expected != nil && current != *expected:
		return errkind.CommitConflictf("ref %s moved to %s, expected %s",
			name, ShortOID(current), ShortOID(*expected))
	}

	if _, err := lock.WriteString(FormatOID(target) + "\n"); err != nil {
		return errkind.Wrap(errkind.ObjectStore, err, "writing ref "+name)
	}
	if err := lock.Sync(); err != nil {
		return errkind.Wrap(errkind.ObjectStore, err, "syncing ref "+name)
	}
	if err := lock.Close(); err != nil {
		return errkind.Wrap(errkind.ObjectStore, err, "closing ref "+name)
	}

	// Renaming the lock file over the ref publishes the new value and
	// releases the lock in one atomic step.
	if err := os.Rename(lockPath, refPath); err != nil {
		return errkind.Wrap(errkind.ObjectStore, err, "publishing ref "+name)
	}
	locked = false
	return nil
}

// Delete removes a ref. The same compare-and-swap rules as Update
// apply: a non-nil expected must match the current value. Deleting a
// ref that does not exist returns NotFound.
func (r *RefStore) Delete(name string, expected *OID) error {
	refPath, err := r.refPath(name)
	if err != nil {
		return err
	}

	lock, lockPath, err := acquireRefLock(refPath, name)
	if err != nil {
		return err
	}
	defer func() {
		lock.Close()
		os.Remove(lockPath)
	}()

	current, exists, err := readRefFile(refPath)
	if err != nil {
		return err
	}
	if !exists {
		return errkind.NotFoundf("ref %s not found", name)
	}
	if expected != nil && current != *expected {
		return errkind.CommitConflictf("ref %s moved to %s, expected %s",
			name, ShortOID(current), ShortOID(*expected))
	}

	if err := os.Remove(refPath); err != nil {
		return errkind.Wrap(errkind.ObjectStore, err, "removing ref "+name)
	}
	return nil
}

// acquireRefLock takes the per-ref lock by creating <ref>.lock
// exclusively. A lock already held means another writer is mid-update
// on the same ref, which surfaces as a retryable conflict.
func acquireRefLock(refPath, name string) (*os.File, string, error) {
	lockPath := refPath + lockSuffix
	lock, err := os.OpenFile(lockPath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		if errors.Is(err, fs.ErrExist) {
			return nil, "", errkind.CommitConflictf("ref %s is locked by another writer", name)
		}
		return nil, "", errkind.Wrap(errkind.ObjectStore, err, "locking ref "+name)
	}
	return lock, lockPath, nil
}

// readRefFile reads and parses one ref file, reporting absence
// without error.
func readRefFile(refPath string) (OID, bool, error) {
	data, err := os.ReadFile(refPath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return OID{}, false, nil
		}
		return OID{}, false, errkind.Wrap(errkind.ObjectStore, err, "reading ref")
	}
	oid, err := ParseOID(strings.TrimSpace(string(data)))
	if err != nil {
		return OID{}, false, errkind.ObjectStoref("ref file %s is corrupt: %v", refPath, err)
	}
	return oid, true, nil
}

// refPath validates a ref name and maps it to its file path.
func (r *RefStore) refPath(name string) (string, error) {
	if err := checkRefName(name); err != nil {
		return "", err
	}
	return filepath.Join(r.root, filepath.FromSlash(name)), nil
}

// checkRefName rejects names that would escape the ref root or
// collide with lock files.
func checkRefName(name string) error {
	if name == "" {
		return errkind.ObjectStoref("ref name is empty")
	}
	if path.Clean(name) != name || strings.HasPrefix(name, "/") {
		return errkind.ObjectStoref("ref name %q is not a clean relative path", name)
	}
	for _, segment := range strings.Split(name, "/") {
		if segment == "" || segment == "." || segment == ".." {
			return errkind.ObjectStoref("ref name %q has an invalid segment", name)
		}
		if strings.HasSuffix(segment, lockSuffix) {
			return errkind.ObjectStoref("ref name %q collides with a lock file", name)
		}
	}
	return nil
}
