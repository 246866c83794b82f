// Copyright 2026 The Strata Authors
// SPDX-License-Identifier: Apache-2.0

package workspace_test

import (
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/strata-config/strata/lib/clock"
	"github.com/strata-config/strata/lib/errkind"
	"github.com/strata-config/strata/lib/layer"
	"github.com/strata-config/strata/lib/mergeval"
	"github.com/strata-config/strata/lib/objstore"
	"github.com/strata-config/strata/lib/sealed"
	"github.com/strata-config/strata/lib/workspace"
)

var seedTime = time.Date(2026, time.April, 2, 8, 0, 0, 0, time.UTC)

// fixture is a workspace root with an object store underneath it, the
// same shape the CLI sets up.
type fixture struct {
	t     *testing.T
	root  string
	store *objstore.Store
	clk   *clock.FakeClock
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	root := t.TempDir()
	store, err := objstore.Open(filepath.Join(root, ".strata", "store"), objstore.CompressionZstd)
	if err != nil {
		t.Fatalf("opening store: %v", err)
	}
	return &fixture{t: t, root: root, store: store, clk: clock.Fake(seedTime)}
}

func (f *fixture) workspace(policy mergeval.Policy, unsealer *sealed.Unsealer) *workspace.Workspace {
	f.t.Helper()
	ws, err := workspace.New(workspace.Config{
		Root:     f.root,
		Store:    f.store,
		Policy:   policy,
		Unsealer: unsealer,
		Clock:    f.clk,
		Logger:   testLogger(),
	})
	if err != nil {
		f.t.Fatalf("creating workspace: %v", err)
	}
	return ws
}

// commit publishes a whole-tree snapshot to the given layer, chaining
// onto the layer's current head when it has one.
func (f *fixture) commit(ref layer.Ref, files map[string]string) {
	f.t.Helper()
	blobs := make(map[string]objstore.BlobRef, len(files))
	for filePath, content := range files {
		oid, err := f.store.PutBlob([]byte(content))
		if err != nil {
			f.t.Fatalf("writing blob %s: %v", filePath, err)
		}
		blobs[filePath] = objstore.BlobRef{OID: oid, Mode: 0o644}
	}
	f.commitTree(ref, blobs)
}

func (f *fixture) commitTree(ref layer.Ref, blobs map[string]objstore.BlobRef) {
	f.t.Helper()
	tree, err := f.store.WriteTreePaths(blobs)
	if err != nil {
		f.t.Fatalf("writing tree: %v", err)
	}
	commit := &objstore.Commit{
		Tree:    tree,
		Author:  "tester@example.test",
		Message: "seed",
		Time:    f.clk.Now().UTC(),
	}
	var expected *objstore.OID
	head, err := f.store.Refs().Read(ref.Path())
	switch {
	case err == nil:
		commit.Parents = []objstore.OID{head}
		expected = &head
	case errkind.Is(err, errkind.NotFound):
	default:
		f.t.Fatalf("reading %s: %v", ref.Path(), err)
	}
	oid, err := f.store.PutCommit(commit)
	if err != nil {
		f.t.Fatalf("writing commit: %v", err)
	}
	if err := f.store.Refs().Update(ref.Path(), expected, oid); err != nil {
		f.t.Fatalf("updating %s: %v", ref.Path(), err)
	}
}

func (f *fixture) writeFile(rel, content string, perm fs.FileMode) {
	f.t.Helper()
	target := filepath.Join(f.root, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		f.t.Fatalf("creating %s: %v", filepath.Dir(target), err)
	}
	if err := os.WriteFile(target, []byte(content), perm); err != nil {
		f.t.Fatalf("writing %s: %v", rel, err)
	}
}

func (f *fixture) readFile(rel string) string {
	f.t.Helper()
	content, err := os.ReadFile(filepath.Join(f.root, filepath.FromSlash(rel)))
	if err != nil {
		f.t.Fatalf("reading %s: %v", rel, err)
	}
	return string(content)
}

func (f *fixture) exists(rel string) bool {
	f.t.Helper()
	_, err := os.Stat(filepath.Join(f.root, filepath.FromSlash(rel)))
	if err == nil {
		return true
	}
	if !os.IsNotExist(err) {
		f.t.Fatalf("stat %s: %v", rel, err)
	}
	return false
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func mustRef(t *testing.T, kind layer.Kind, params layer.Params) layer.Ref {
	t.Helper()
	ref, err := layer.NewRef(kind, params)
	if err != nil {
		t.Fatalf("building %v ref: %v", kind, err)
	}
	return ref
}

func globalLayer(t *testing.T) layer.Ref {
	return mustRef(t, layer.GlobalBase, layer.Params{})
}

func modeLayer(t *testing.T, mode string) layer.Ref {
	return mustRef(t, layer.ModeBase, layer.Params{Mode: mode})
}

func localLayer(t *testing.T) layer.Ref {
	return mustRef(t, layer.UserLocal, layer.Params{})
}

func strictPolicy(t *testing.T, patterns ...string) mergeval.Policy {
	t.Helper()
	policy, err := mergeval.NewPolicy(patterns)
	if err != nil {
		t.Fatalf("building policy: %v", err)
	}
	return policy
}

func wantKind(t *testing.T, err error, kind errkind.Kind) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected %v error, got nil", kind)
	}
	if !errkind.Is(err, kind) {
		t.Fatalf("expected %v error, got %v (%v)", kind, errkind.KindOf(err), err)
	}
}

// conflictedFixture seeds two layers that disagree on conf/db.json
// under a strict policy, plus a path that merges cleanly.
func conflictedFixture(t *testing.T) (*fixture, *workspace.Workspace) {
	t.Helper()
	f := newFixture(t)
	f.commit(globalLayer(t), map[string]string{
		"conf/db.json": `{"port": 5432}`,
		"app.json":     `{"name": "demo"}`,
	})
	f.commit(modeLayer(t, "dev"), map[string]string{
		"conf/db.json": `{"port": 5433}`,
	})
	return f, f.workspace(strictPolicy(t, "conf/**"), nil)
}
