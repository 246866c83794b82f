// Copyright 2026 The Strata Authors
// SPDX-License-Identifier: Apache-2.0

package objstore

import (
	"time"

	"github.com/strata-config/strata/lib/codec"
	"github.com/strata-config/strata/lib/errkind"
)

// Commit records one immutable snapshot of a layer: the tree it
// captured, the commits it descends from, and when it happened.
// Timestamps are stored at second resolution.
type Commit struct {
	Tree    OID       `cbor:"tree"`
	Parents []OID     `cbor:"parents,omitempty"`
	Author  string    `cbor:"author,omitempty"`
	Message string    `cbor:"message"`
	Time    time.Time `cbor:"time"`
}

func encodeCommit(c *Commit) ([]byte, error) {
	data, err := codec.Marshal(c)
	if err != nil {
		return nil, errkind.Wrap(errkind.ObjectStore, err, "encoding commit")
	}
	return data, nil
}

func decodeCommit(payload []byte) (*Commit, error) {
	var c Commit
	if err := codec.Unmarshal(payload, &c); err != nil {
		return nil, errkind.Wrap(errkind.ObjectStore, err, "decoding commit")
	}
	return &c, nil
}

// WalkHistory visits commits breadth-first starting at from, parents
// before grandparents. The visit callback returns false to stop the
// walk early. Each commit is visited at most once even when histories
// converge.
func (s *Store) WalkHistory(from OID, visit func(OID, *Commit) (bool, error)) error {
	seen := make(map[OID]struct{})
	queue := []OID{from}
	for len(queue) > 0 {
		oid := queue[0]
		queue = queue[1:]
		if _, done := seen[oid]; done {
			continue
		}
		seen[oid] = struct{}{}

		commit, err := s.GetCommit(oid)
		if err != nil {
			return err
		}
		cont, err := visit(oid, commit)
		if err != nil {
			return err
		}
		if !cont {
			return nil
		}
		queue = append(queue, commit.Parents...)
	}
	return nil
}

// FirstParentHistory returns up to limit commits following the first
// parent chain from head, newest first. A limit of zero or less means
// no limit.
func (s *Store) FirstParentHistory(head OID, limit int) ([]OID, []*Commit, error) {
	var oids []OID
	var commits []*Commit
	current := head
	for !current.IsZero() {
		commit, err := s.GetCommit(current)
		if err != nil {
			return nil, nil, err
		}
		oids = append(oids, current)
		commits = append(commits, commit)
		if limit > 0 && len(oids) >= limit {
			break
		}
		if len(commit.Parents) == 0 {
			break
		}
		current = commit.Parents[0]
	}
	return oids, commits, nil
}

// MergeBase returns the nearest commit reachable from both a and b,
// or false when the histories share no ancestor. When one side is an
// ancestor of the other, that side is the base.
func (s *Store) MergeBase(a, b OID) (OID, bool, error) {
	if a.IsZero() || b.IsZero() {
		return OID{}, false, nil
	}
	if a == b {
		return a, true, nil
	}

	ancestors := make(map[OID]struct{})
	err := s.WalkHistory(a, func(oid OID, _ *Commit) (bool, error) {
		ancestors[oid] = struct{}{}
		return true, nil
	})
	if err != nil {
		return OID{}, false, err
	}

	var base OID
	found := false
	err = s.WalkHistory(b, func(oid OID, _ *Commit) (bool, error) {
		if _, ok := ancestors[oid]; ok {
			base = oid
			found = true
			return false, nil
		}
		return true, nil
	})
	if err != nil {
		return OID{}, false, err
	}
	return base, found, nil
}
