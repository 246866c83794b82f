// Copyright 2026 The Strata Authors
// SPDX-License-Identifier: Apache-2.0

// Package workspace is the apply orchestrator: it computes the merged
// configuration state for an activation context and reconciles the
// workspace directory against it. Merging itself lives in lib/mergeval
// and lib/textmerge; this package owns the layer enumeration, the
// format boundary, conflict artifacts, and the paused/resolve cycle.
package workspace

import (
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/strata-config/strata/lib/clock"
	"github.com/strata-config/strata/lib/errkind"
	"github.com/strata-config/strata/lib/layer"
	"github.com/strata-config/strata/lib/mergeval"
	"github.com/strata-config/strata/lib/objstore"
	"github.com/strata-config/strata/lib/sealed"
	"github.com/strata-config/strata/lib/secret"
)

// stateDirName is the workspace-local directory holding tool state:
// the staging index, conflict artifacts, and the paused marker. Apply
// never materializes into it and stage refuses paths under it.
const stateDirName = ".strata"

// Config carries the collaborators a Workspace needs.
type Config struct {
	// Root is the workspace directory merged files materialize into.
	Root string

	// Store is the layer history store.
	Store *objstore.Store

	// Policy designates strict paths for the structural merge.
	Policy mergeval.Policy

	// Unsealer decrypts sealed blobs during merge and resolve. Leave
	// nil when no identity is configured; applying a sealed path then
	// fails with a Config error naming the path.
	Unsealer *sealed.Unsealer

	// Clock stamps the paused marker. Defaults to the real clock.
	Clock clock.Clock

	// Logger receives apply and resolve progress. Defaults to
	// slog.Default.
	Logger *slog.Logger
}

// Workspace reconciles a directory against merged layer state.
type Workspace struct {
	root     string
	store    *objstore.Store
	policy   mergeval.Policy
	unsealer *sealed.Unsealer
	clk      clock.Clock
	logger   *slog.Logger
}

// New validates the configuration and returns a Workspace.
func New(cfg Config) (*Workspace, error) {
	if cfg.Root == "" {
		return nil, errkind.Configf("workspace root is required")
	}
	if cfg.Store == nil {
		return nil, errkind.Configf("workspace needs an object store")
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.Real()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Workspace{
		root:     cfg.Root,
		store:    cfg.Store,
		policy:   cfg.Policy,
		unsealer: cfg.Unsealer,
		clk:      cfg.Clock,
		logger:   cfg.Logger,
	}, nil
}

// Root returns the workspace directory.
func (w *Workspace) Root() string { return w.root }

func (w *Workspace) stateDir() string {
	return filepath.Join(w.root, stateDirName)
}

func (w *Workspace) pausedPath() string {
	return filepath.Join(w.stateDir(), "paused")
}

func (w *Workspace) conflictsDir() string {
	return filepath.Join(w.stateDir(), "conflicts")
}

func (w *Workspace) artifactPath(filePath string) string {
	return filepath.Join(w.conflictsDir(), filepath.FromSlash(filePath))
}

func (w *Workspace) filePath(filePath string) string {
	return filepath.Join(w.root, filepath.FromSlash(filePath))
}

// insideStateDir reports whether a workspace-relative path would land
// in the tool state directory.
func insideStateDir(filePath string) bool {
	return filePath == stateDirName || strings.HasPrefix(filePath, stateDirName+"/")
}

// BlobContent loads a blob and transparently unseals it. filePath is
// only for error messages.
func (w *Workspace) BlobContent(oid objstore.OID, filePath string) ([]byte, error) {
	content, err := w.store.GetBlob(oid)
	if err != nil {
		return nil, err
	}
	if !sealed.IsSealed(content) {
		return content, nil
	}
	if w.unsealer == nil {
		return nil, errkind.Configf("%s is sealed but no identity is configured; set sealed.identity_file", filePath)
	}
	plaintext, err := w.unsealer.Unseal(content)
	if err != nil {
		return nil, errkind.Wrap(errkind.Config, err, "unsealing "+filePath)
	}
	// The copy outlives the locked buffer; it is about to be merged
	// and materialized into the workspace anyway.
	out := make([]byte, plaintext.Len())
	copy(out, plaintext.Bytes())
	closeQuietly(plaintext)
	return out, nil
}

// LayerContent reads a layer's current content for one workspace path,
// unsealing sealed blobs. The returned mode is the stored file mode.
// Errors are NotFound when the layer has no history or does not carry
// the path.
func (w *Workspace) LayerContent(source layer.Ref, filePath string) ([]byte, uint32, error) {
	head, err := w.store.Refs().Read(source.Path())
	if err != nil {
		if errkind.Is(err, errkind.NotFound) {
			return nil, 0, errkind.NotFoundf("layer %s has no history", source)
		}
		return nil, 0, err
	}
	commit, err := w.store.GetCommit(head)
	if err != nil {
		return nil, 0, err
	}
	blob, ok, err := w.store.LookupPath(commit.Tree, filePath)
	if err != nil {
		return nil, 0, err
	}
	if !ok {
		return nil, 0, errkind.NotFoundf("layer %s does not provide %s", source, filePath)
	}
	content, err := w.BlobContent(blob.OID, filePath)
	if err != nil {
		return nil, 0, err
	}
	return content, blob.Mode, nil
}

func closeQuietly(buffer *secret.Buffer) {
	_ = buffer.Close()
}
