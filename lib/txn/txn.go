// Copyright 2026 The Strata Authors
// SPDX-License-Identifier: Apache-2.0

// Package txn publishes staged entries as layer history. One commit
// transaction may touch several layers; it lands on all of them or on
// none. References only move after every affected layer has durable
// candidate objects, and a lost compare-and-swap race rolls back the
// references already updated before failing with a retryable conflict.
package txn

import (
	"log/slog"
	"maps"
	"sort"

	"github.com/strata-config/strata/lib/clock"
	"github.com/strata-config/strata/lib/errkind"
	"github.com/strata-config/strata/lib/layer"
	"github.com/strata-config/strata/lib/objstore"
	"github.com/strata-config/strata/lib/staging"
)

// Committer turns a staging index into per-layer commits. It owns the
// staging index file: a successful commit removes the consumed entries
// and persists the index.
type Committer struct {
	store     *objstore.Store
	indexPath string
	author    string
	clk       clock.Clock
	logger    *slog.Logger
}

// NewCommitter creates a Committer. The author string is recorded on
// every commit object this Committer publishes.
func NewCommitter(store *objstore.Store, indexPath, author string, clk clock.Clock, logger *slog.Logger) *Committer {
	return &Committer{
		store:     store,
		indexPath: indexPath,
		author:    author,
		clk:       clk,
		logger:    logger,
	}
}

// LayerCommit reports the outcome for one target layer.
type LayerCommit struct {
	// Layer is the layer the entries were committed to.
	Layer layer.Ref

	// Commit is the published commit, or the prior head when the
	// staged entries matched the layer's current tree.
	Commit objstore.OID

	// Tree is the root tree of the published commit.
	Tree objstore.OID

	// Parent is the head observed before the transaction. Zero when
	// the layer had no history.
	Parent objstore.OID

	// Entries counts the staged entries consumed for this layer.
	Entries int

	// Unchanged reports that the staged entries reproduced the layer's
	// current tree exactly, so no new commit was published. The
	// entries are still consumed.
	Unchanged bool
}

// Summary reports a fully successful commit transaction.
type Summary struct {
	// Message is the commit message shared by every published commit.
	Message string

	// Layers holds one result per affected layer, ordered by layer
	// reference path.
	Layers []LayerCommit

	// Entries counts all staged entries consumed across layers.
	Entries int
}

// candidate is the per-layer working state of an in-flight commit.
type candidate struct {
	layer      layer.Ref
	refName    string
	entries    []staging.Entry
	parent     objstore.OID
	parentTree objstore.OID
	hasParent  bool
	files      map[string]objstore.BlobRef
	unchanged  bool
	tree       objstore.OID
	commit     objstore.OID
}

// Commit publishes every staged entry in the index, one commit per
// target layer, all layers or none.
//
// The transaction runs in phases: validate every entry against the
// store and the current layer trees (no writes), write candidate trees
// and commit objects for every changed layer, then compare-and-swap
// each layer reference from the head observed during validation. A
// reference that moved in between fails the whole transaction: already
// updated references are restored and the error is a retryable
// CommitConflict, with the staging index untouched.
//
// On success the consumed entries are removed from the index and the
// index file is persisted. A non-nil Summary means the references have
// been published even when err reports an index persistence failure.
func (c *Committer) Commit(index *staging.Index, message string) (*Summary, error) {
	if message == "" {
		return nil, errkind.Configf("commit message must not be empty")
	}
	grouped := index.ByLayer()
	if len(grouped) == 0 {
		return nil, errkind.Configf("nothing staged to commit")
	}

	candidates := make([]*candidate, 0, len(grouped))
	for ref, entries := range grouped {
		candidates = append(candidates, &candidate{
			layer:   ref,
			refName: ref.Path(),
			entries: entries,
		})
	}
	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].refName < candidates[j].refName
	})

	// Phase 1: validate everything before writing any object. The
	// staged blobs were written at stage time; a missing one means the
	// store was pruned or the index is stale.
	for _, cand := range candidates {
		if err := c.prepare(cand); err != nil {
			return nil, err
		}
	}

	// Phase 2: write candidate trees and commits. References are still
	// untouched, so a crash here leaves only unreferenced objects.
	when := c.clk.Now().UTC()
	for _, cand := range candidates {
		if cand.unchanged {
			continue
		}
		tree, err := c.store.WriteTreePaths(cand.files)
		if err != nil {
			return nil, err
		}
		commit := &objstore.Commit{
			Tree:    tree,
			Author:  c.author,
			Message: message,
			Time:    when,
		}
		if cand.hasParent {
			commit.Parents = []objstore.OID{cand.parent}
		}
		oid, err := c.store.PutCommit(commit)
		if err != nil {
			return nil, err
		}
		cand.tree = tree
		cand.commit = oid
	}

	// Phase 3: publish. Each reference moves by compare-and-swap from
	// the head observed in phase 1. Any failure restores the
	// references updated so far and aborts.
	if err := c.publish(candidates); err != nil {
		return nil, err
	}

	// Phase 4: consume the entries. The commits are published at this
	// point; an index persistence failure is reported alongside the
	// summary so the caller can tell the user to unstage by hand.
	summary := &Summary{Message: message}
	for _, cand := range candidates {
		for _, e := range cand.entries {
			index.Unstage(e.Layer, e.Path)
		}
		result := LayerCommit{
			Layer:     cand.layer,
			Commit:    cand.commit,
			Tree:      cand.tree,
			Entries:   len(cand.entries),
			Unchanged: cand.unchanged,
		}
		if cand.hasParent {
			result.Parent = cand.parent
			if cand.unchanged {
				result.Commit = cand.parent
				result.Tree = cand.parentTree
			}
		}
		summary.Layers = append(summary.Layers, result)
		summary.Entries += len(cand.entries)
	}
	if err := index.Save(c.indexPath); err != nil {
		return summary, errkind.Wrap(errkind.IO, err, "commit published but staging index not persisted")
	}
	return summary, nil
}

// prepare reads the layer's current head and tree, checks every staged
// entry against them, and builds the candidate file map in memory.
// Nothing is written.
func (c *Committer) prepare(cand *candidate) error {
	head, err := c.store.Refs().Read(cand.refName)
	switch {
	case err == nil:
		cand.parent = head
		cand.hasParent = true
	case errkind.Is(err, errkind.NotFound):
		// First commit on this layer.
	default:
		return err
	}

	current := map[string]objstore.BlobRef{}
	if cand.hasParent {
		parentCommit, err := c.store.GetCommit(cand.parent)
		if err != nil {
			return err
		}
		cand.parentTree = parentCommit.Tree
		current, err = c.store.ReadTreePaths(parentCommit.Tree)
		if err != nil {
			return err
		}
	}

	// Removals first so a rename's source never shadows an addition
	// staged for the same path.
	files := maps.Clone(current)
	for _, e := range cand.entries {
		switch e.Op {
		case staging.OpAddOrModify, staging.OpRename:
			if !c.store.HasObject(e.Blob) {
				return errkind.StagingFailedf("staged blob %s for %s is missing from the object store; restage the file",
					objstore.ShortOID(e.Blob), e.Path)
			}
		}
		switch e.Op {
		case staging.OpDelete:
			if _, ok := current[e.Path]; !ok {
				return errkind.StagingFailedf("cannot delete %s: not present in %s", e.Path, cand.layer)
			}
			delete(files, e.Path)
		case staging.OpRename:
			if _, ok := current[e.RenamedFrom]; !ok {
				return errkind.StagingFailedf("cannot rename %s: not present in %s", e.RenamedFrom, cand.layer)
			}
			delete(files, e.RenamedFrom)
		}
	}
	for _, e := range cand.entries {
		switch e.Op {
		case staging.OpAddOrModify, staging.OpRename:
			files[e.Path] = objstore.BlobRef{OID: e.Blob, Mode: e.Mode}
		}
	}

	cand.files = files
	cand.unchanged = cand.hasParent && maps.Equal(files, current)
	return nil
}

// publish moves every changed layer's reference by compare-and-swap.
// On any failure the references already moved are restored, newest
// first, before the original error is returned.
func (c *Committer) publish(candidates []*candidate) error {
	published := make([]*candidate, 0, len(candidates))
	for _, cand := range candidates {
		if cand.unchanged {
			continue
		}
		var expected *objstore.OID
		if cand.hasParent {
			expected = &cand.parent
		}
		if err := c.store.Refs().Update(cand.refName, expected, cand.commit); err != nil {
			c.rollback(published)
			return err
		}
		published = append(published, cand)
		c.logger.Debug("layer reference updated",
			"layer", cand.refName,
			"commit", objstore.ShortOID(cand.commit),
			"entries", len(cand.entries),
		)
	}
	return nil
}

// rollback restores references updated earlier in this transaction.
// Restore failures are logged and skipped: each reference still points
// at a valid commit, and the caller is about to surface the original
// conflict anyway.
func (c *Committer) rollback(published []*candidate) {
	for i := len(published) - 1; i >= 0; i-- {
		cand := published[i]
		var err error
		if cand.hasParent {
			err = c.store.Refs().Update(cand.refName, &cand.commit, cand.parent)
		} else {
			err = c.store.Refs().Delete(cand.refName, &cand.commit)
		}
		if err != nil {
			c.logger.Error("rollback failed; reference keeps the new commit",
				"layer", cand.refName,
				"commit", objstore.ShortOID(cand.commit),
				"error", err,
			)
			continue
		}
		c.logger.Debug("layer reference rolled back", "layer", cand.refName)
	}
}
