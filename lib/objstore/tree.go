// Copyright 2026 The Strata Authors
// SPDX-License-Identifier: Apache-2.0

package objstore

import (
	"fmt"
	"sort"
	"strings"

	"github.com/strata-config/strata/lib/codec"
	"github.com/strata-config/strata/lib/errkind"
)

// EntryType distinguishes the two things a tree can point at.
type EntryType uint8

const (
	EntryBlob EntryType = 1
	EntryTree EntryType = 2
)

// String returns the entry type name used in diagnostics.
func (t EntryType) String() string {
	switch t {
	case EntryBlob:
		return "blob"
	case EntryTree:
		return "tree"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(t))
	}
}

// TreeEntry is one name in a directory tree. Mode carries the file
// permission bits for blobs and is zero for subtrees.
type TreeEntry struct {
	Name string    `cbor:"name"`
	Type EntryType `cbor:"type"`
	Mode uint32    `cbor:"mode,omitempty"`
	OID  OID       `cbor:"oid"`
}

// Tree is an ordered directory listing. Entries are kept sorted by
// name so that equal contents always produce equal encodings, which
// is what makes unchanged subtrees deduplicate across commits.
type Tree struct {
	entries []TreeEntry
}

// NewTree returns an empty tree.
func NewTree() *Tree {
	return &Tree{}
}

// Insert adds or replaces the entry with the same name.
func (t *Tree) Insert(entry TreeEntry) {
	i := sort.Search(len(t.entries), func(i int) bool {
		return t.entries[i].Name >= entry.Name
	})
	if i < len(t.entries) && t.entries[i].Name == entry.Name {
		t.entries[i] = entry
		return
	}
	t.entries = append(t.entries, TreeEntry{})
	copy(t.entries[i+1:], t.entries[i:])
	t.entries[i] = entry
}

// Get returns the entry with the given name.
func (t *Tree) Get(name string) (TreeEntry, bool) {
	i := sort.Search(len(t.entries), func(i int) bool {
		return t.entries[i].Name >= name
	})
	if i < len(t.entries) && t.entries[i].Name == name {
		return t.entries[i], true
	}
	return TreeEntry{}, false
}

// Remove deletes the named entry, reporting whether it was present.
func (t *Tree) Remove(name string) bool {
	i := sort.Search(len(t.entries), func(i int) bool {
		return t.entries[i].Name >= name
	})
	if i >= len(t.entries) || t.entries[i].Name != name {
		return false
	}
	t.entries = append(t.entries[:i], t.entries[i+1:]...)
	return true
}

// Entries returns the entries in name order. The slice is shared with
// the tree; callers must not modify it.
func (t *Tree) Entries() []TreeEntry {
	return t.entries
}

// Len returns the number of entries.
func (t *Tree) Len() int {
	return len(t.entries)
}

// treeBody is the on-disk shape of a tree payload.
type treeBody struct {
	Entries []TreeEntry `cbor:"entries"`
}

// encodeTree produces the canonical payload bytes. Entries are sorted
// before encoding so the identifier never depends on insertion order,
// and an empty tree always encodes as an empty list rather than null.
func encodeTree(t *Tree) ([]byte, error) {
	entries := make([]TreeEntry, len(t.entries))
	copy(entries, t.entries)
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })
	data, err := codec.Marshal(treeBody{Entries: entries})
	if err != nil {
		return nil, errkind.Wrap(errkind.ObjectStore, err, "encoding tree")
	}
	return data, nil
}

func decodeTree(payload []byte) (*Tree, error) {
	var body treeBody
	if err := codec.Unmarshal(payload, &body); err != nil {
		return nil, errkind.Wrap(errkind.ObjectStore, err, "decoding tree")
	}
	return &Tree{entries: body.Entries}, nil
}

// BlobRef pairs a blob identifier with the file mode it should carry
// when materialized.
type BlobRef struct {
	OID  OID
	Mode uint32
}

// dirNode is the intermediate shape used when assembling nested trees
// from a flat path map.
type dirNode struct {
	blobs map[string]BlobRef
	dirs  map[string]*dirNode
}

func newDirNode() *dirNode {
	return &dirNode{blobs: make(map[string]BlobRef), dirs: make(map[string]*dirNode)}
}

// WriteTreePaths stores the nested trees for a flat map of
// slash-separated file paths and returns the root tree identifier.
// An empty map produces the empty tree, which is how a layer with no
// files is represented.
func (s *Store) WriteTreePaths(files map[string]BlobRef) (OID, error) {
	root := newDirNode()
	for filePath, ref := range files {
		segments := strings.Split(filePath, "/")
		node := root
		for depth, segment := range segments {
			if segment == "" || segment == "." || segment == ".." {
				return OID{}, errkind.ObjectStoref("invalid tree path %q", filePath)
			}
			if depth == len(segments)-1 {
				node.blobs[segment] = ref
				continue
			}
			child, ok := node.dirs[segment]
			if !ok {
				child = newDirNode()
				node.dirs[segment] = child
			}
			node = child
		}
	}
	return s.writeDirNode(root)
}

func (s *Store) writeDirNode(node *dirNode) (OID, error) {
	tree := NewTree()
	for name, child := range node.dirs {
		childOID, err := s.writeDirNode(child)
		if err != nil {
			return OID{}, err
		}
		tree.Insert(TreeEntry{Name: name, Type: EntryTree, OID: childOID})
	}
	for name, ref := range node.blobs {
		tree.Insert(TreeEntry{Name: name, Type: EntryBlob, Mode: ref.Mode, OID: ref.OID})
	}
	return s.PutTree(tree)
}

// ReadTreePaths flattens the tree rooted at root into a map of
// slash-separated file paths.
func (s *Store) ReadTreePaths(root OID) (map[string]BlobRef, error) {
	files := make(map[string]BlobRef)
	if err := s.readTreeInto(root, "", files); err != nil {
		return nil, err
	}
	return files, nil
}

func (s *Store) readTreeInto(oid OID, prefix string, files map[string]BlobRef) error {
	tree, err := s.GetTree(oid)
	if err != nil {
		return err
	}
	for _, entry := range tree.Entries() {
		name := entry.Name
		if prefix != "" {
			name = prefix + "/" + entry.Name
		}
		switch entry.Type {
		case EntryBlob:
			files[name] = BlobRef{OID: entry.OID, Mode: entry.Mode}
		case EntryTree:
			if err := s.readTreeInto(entry.OID, name, files); err != nil {
				return err
			}
		default:
			return errkind.ObjectStoref("tree %s entry %q has unknown type %d",
				ShortOID(oid), name, entry.Type)
		}
	}
	return nil
}

// LookupPath resolves a slash-separated file path inside the tree
// rooted at root. The boolean reports whether the path exists.
func (s *Store) LookupPath(root OID, filePath string) (BlobRef, bool, error) {
	segments := strings.Split(filePath, "/")
	current := root
	for depth, segment := range segments {
		tree, err := s.GetTree(current)
		if err != nil {
			return BlobRef{}, false, err
		}
		entry, ok := tree.Get(segment)
		if !ok {
			return BlobRef{}, false, nil
		}
		if depth == len(segments)-1 {
			if entry.Type != EntryBlob {
				return BlobRef{}, false, nil
			}
			return BlobRef{OID: entry.OID, Mode: entry.Mode}, true, nil
		}
		if entry.Type != EntryTree {
			return BlobRef{}, false, nil
		}
		current = entry.OID
	}
	return BlobRef{}, false, nil
}
