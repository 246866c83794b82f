// Copyright 2026 The Strata Authors
// SPDX-License-Identifier: Apache-2.0

// Package objstore is the content-addressed half of strata's data
// directory. Blobs, trees, and commits are immutable objects named by
// domain-keyed BLAKE3 digests and stored compressed under sharded
// paths; mutable layer heads live in a separate ref namespace with
// compare-and-swap updates. Everything above this package treats
// objects as values.
package objstore

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/strata-config/strata/lib/codec"
	"github.com/strata-config/strata/lib/errkind"
)

// Directory names within the store root.
const (
	objectsDir = "objects"
	refsDir    = "refs"
	tmpDir     = "tmp"
)

// ObjectType identifies what an object payload decodes to.
type ObjectType uint8

const (
	ObjectBlob   ObjectType = 1
	ObjectTree   ObjectType = 2
	ObjectCommit ObjectType = 3
)

// String returns the object type name used in diagnostics.
func (t ObjectType) String() string {
	switch t {
	case ObjectBlob:
		return "blob"
	case ObjectTree:
		return "tree"
	case ObjectCommit:
		return "commit"
	default:
		return "unknown"
	}
}

// envelope is the on-disk frame around every object payload. Size is
// the uncompressed payload length, used to allocate the exact output
// buffer and to detect truncation.
type envelope struct {
	Type        ObjectType  `cbor:"type"`
	Compression Compression `cbor:"compression"`
	Size        int64       `cbor:"size"`
	Payload     []byte      `cbor:"payload"`
}

// Store reads and writes immutable objects under a single root
// directory. It is safe for concurrent use: object writes are
// idempotent (same content, same identifier, same bytes) and land via
// temp file plus rename, and ref updates take a per-ref lock.
type Store struct {
	root        string
	compression Compression
	refs        *RefStore
}

// Open creates a Store rooted at the given directory, creating the
// layout if needed. The compression argument selects the algorithm
// for newly written objects; existing objects decode by the tag in
// their envelope regardless.
func Open(root string, compression Compression) (*Store, error) {
	for _, dir := range []string{
		root,
		filepath.Join(root, objectsDir),
		filepath.Join(root, refsDir),
		filepath.Join(root, tmpDir),
	} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, errkind.Wrap(errkind.ObjectStore, err, "creating store directory")
		}
	}
	return &Store{
		root:        root,
		compression: compression,
		refs:        &RefStore{root: filepath.Join(root, refsDir)},
	}, nil
}

// Refs returns the mutable ref namespace of this store.
func (s *Store) Refs() *RefStore {
	return s.refs
}

// PutBlob stores raw file content and returns its identifier. Writing
// content that is already stored is a cheap no-op. Empty content is
// valid; empty files are ordinary blobs.
func (s *Store) PutBlob(content []byte) (OID, error) {
	oid := HashBlob(content)
	if err := s.putObject(oid, ObjectBlob, content); err != nil {
		return OID{}, err
	}
	return oid, nil
}

// GetBlob returns the raw content of a blob.
func (s *Store) GetBlob(oid OID) ([]byte, error) {
	return s.getObject(oid, ObjectBlob)
}

// PutTree stores a tree and returns its identifier.
func (s *Store) PutTree(t *Tree) (OID, error) {
	body, err := encodeTree(t)
	if err != nil {
		return OID{}, err
	}
	oid := hashTree(body)
	if err := s.putObject(oid, ObjectTree, body); err != nil {
		return OID{}, err
	}
	return oid, nil
}

// GetTree loads a tree object.
func (s *Store) GetTree(oid OID) (*Tree, error) {
	body, err := s.getObject(oid, ObjectTree)
	if err != nil {
		return nil, err
	}
	return decodeTree(body)
}

// PutCommit stores a commit and returns its identifier.
func (s *Store) PutCommit(c *Commit) (OID, error) {
	body, err := encodeCommit(c)
	if err != nil {
		return OID{}, err
	}
	oid := hashCommit(body)
	if err := s.putObject(oid, ObjectCommit, body); err != nil {
		return OID{}, err
	}
	return oid, nil
}

// GetCommit loads a commit object.
func (s *Store) GetCommit(oid OID) (*Commit, error) {
	body, err := s.getObject(oid, ObjectCommit)
	if err != nil {
		return nil, err
	}
	return decodeCommit(body)
}

// HasObject reports whether an object with this identifier is on
// disk, without reading it.
func (s *Store) HasObject(oid OID) bool {
	_, err := os.Stat(s.objectPath(oid))
	return err == nil
}

// putObject writes one object file via temp file plus rename. When
// the object already exists the write is skipped: content addressing
// guarantees the existing file is identical.
func (s *Store) putObject(oid OID, typ ObjectType, body []byte) error {
	finalPath := s.objectPath(oid)
	if _, err := os.Stat(finalPath); err == nil {
		return nil
	}

	payload, tag, err := compress(body, s.compression)
	if err != nil {
		return err
	}
	data, err := codec.Marshal(envelope{
		Type:        typ,
		Compression: tag,
		Size:        int64(len(body)),
		Payload:     payload,
	})
	if err != nil {
		return errkind.Wrap(errkind.ObjectStore, err, "encoding object envelope")
	}

	tmpFile, err := os.CreateTemp(filepath.Join(s.root, tmpDir), "object-*")
	if err != nil {
		return errkind.Wrap(errkind.ObjectStore, err, "creating temp object file")
	}
	tmpPath := tmpFile.Name()
	success := false
	defer func() {
		if !success {
			os.Remove(tmpPath)
		}
	}()

	if _, err := tmpFile.Write(data); err != nil {
		tmpFile.Close()
		return errkind.Wrap(errkind.ObjectStore, err, "writing object data")
	}
	if err := tmpFile.Close(); err != nil {
		return errkind.Wrap(errkind.ObjectStore, err, "closing temp object file")
	}

	if err := os.MkdirAll(filepath.Dir(finalPath), 0o755); err != nil {
		return errkind.Wrap(errkind.ObjectStore, err, "creating object shard directory")
	}

	// A concurrent writer may have landed the same object between the
	// existence check and here. The rename still succeeds and replaces
	// it with identical bytes.
	if err := os.Rename(tmpPath, finalPath); err != nil {
		return errkind.Wrap(errkind.ObjectStore, err, "renaming object into place")
	}
	success = true
	return nil
}

// getObject reads, decompresses, and verifies one object.
func (s *Store) getObject(oid OID, wantType ObjectType) ([]byte, error) {
	data, err := os.ReadFile(s.objectPath(oid))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, errkind.NotFoundf("object %s not found", ShortOID(oid))
		}
		return nil, errkind.Wrap(errkind.ObjectStore, err, "reading object")
	}

	var env envelope
	if err := codec.Unmarshal(data, &env); err != nil {
		return nil, errkind.ObjectStoref("object %s has a corrupt envelope: %v", ShortOID(oid), err)
	}
	if env.Type != wantType {
		return nil, errkind.ObjectStoref("object %s is a %s, expected %s", ShortOID(oid), env.Type, wantType)
	}

	body, err := decompress(env.Payload, env.Compression, int(env.Size))
	if err != nil {
		return nil, errkind.Wrap(errkind.ObjectStore, err, "object "+ShortOID(oid))
	}

	// Verify content addressing end to end: the decoded body must hash
	// back to the identifier it was fetched by.
	var computed OID
	switch wantType {
	case ObjectBlob:
		computed = HashBlob(body)
	case ObjectTree:
		computed = hashTree(body)
	case ObjectCommit:
		computed = hashCommit(body)
	}
	if computed != oid {
		return nil, errkind.ObjectStoref("object %s failed verification (content hashes to %s)",
			ShortOID(oid), ShortOID(computed))
	}
	return body, nil
}

// objectPath returns the sharded filesystem path for an object:
// objects/a3/f9/a3f9b2c1e7d4...
func (s *Store) objectPath(oid OID) string {
	hexString := FormatOID(oid)
	return filepath.Join(s.root, objectsDir, hexString[:2], hexString[2:4], hexString)
}
