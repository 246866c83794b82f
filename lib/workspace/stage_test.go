// Copyright 2026 The Strata Authors
// SPDX-License-Identifier: Apache-2.0

package workspace_test

import (
	"path/filepath"
	"testing"

	"github.com/strata-config/strata/lib/errkind"
	"github.com/strata-config/strata/lib/layer"
	"github.com/strata-config/strata/lib/mergeval"
	"github.com/strata-config/strata/lib/sealed"
	"github.com/strata-config/strata/lib/staging"
	"github.com/strata-config/strata/lib/txn"
	"github.com/strata-config/strata/lib/workspace"
)

func newStager(t *testing.T, f *fixture, ws *workspace.Workspace) (*workspace.Stager, *staging.Index, string) {
	t.Helper()
	index := staging.NewIndex()
	indexPath := filepath.Join(f.root, ".strata", "index")
	return ws.Stager(index, indexPath), index, indexPath
}

func TestStageCapturesContent(t *testing.T) {
	f := newFixture(t)
	ws := f.workspace(mergeval.Policy{}, nil)
	f.writeFile("conf/app.json", `{"name": "alpha"}`, 0o640)

	stager, _, indexPath := newStager(t, f, ws)
	entry, err := stager.Stage("conf/app.json", globalLayer(t), nil)
	if err != nil {
		t.Fatalf("stage: %v", err)
	}
	if entry.Op != staging.OpAddOrModify {
		t.Fatalf("op = %v", entry.Op)
	}
	if entry.Mode != 0o640 {
		t.Fatalf("mode = %o, want 0640", entry.Mode)
	}
	if entry.Sealed {
		t.Fatal("unsealed stage marked sealed")
	}
	if !entry.StagedAt.Equal(seedTime) {
		t.Fatalf("staged at %v, want %v", entry.StagedAt, seedTime)
	}

	content, err := f.store.GetBlob(entry.Blob)
	if err != nil {
		t.Fatalf("reading staged blob: %v", err)
	}
	if string(content) != `{"name": "alpha"}` {
		t.Fatalf("blob content = %q", content)
	}

	// The index is persisted on every stage, not just at commit time.
	loaded, err := staging.Load(indexPath)
	if err != nil {
		t.Fatalf("loading index: %v", err)
	}
	if _, ok := loaded.Get(globalLayer(t), "conf/app.json"); !ok {
		t.Fatal("persisted index missing the staged entry")
	}
}

func TestStageSeals(t *testing.T) {
	f := newFixture(t)
	ws := f.workspace(mergeval.Policy{}, nil)
	f.writeFile("secret.json", `{"token": "abc"}`, 0o600)

	keypair, err := sealed.GenerateKeypair()
	if err != nil {
		t.Fatalf("generating keypair: %v", err)
	}
	defer keypair.Close()
	sealer, err := sealed.NewSealer([]string{keypair.Recipient})
	if err != nil {
		t.Fatalf("building sealer: %v", err)
	}

	stager, _, _ := newStager(t, f, ws)
	entry, err := stager.Stage("secret.json", globalLayer(t), sealer)
	if err != nil {
		t.Fatalf("stage: %v", err)
	}
	if !entry.Sealed {
		t.Fatal("entry not marked sealed")
	}

	ciphertext, err := f.store.GetBlob(entry.Blob)
	if err != nil {
		t.Fatalf("reading staged blob: %v", err)
	}
	if !sealed.IsSealed(ciphertext) {
		t.Fatalf("staged blob is not age ciphertext: %q", ciphertext)
	}

	unsealer, err := sealed.NewUnsealer(keypair.Identity)
	if err != nil {
		t.Fatalf("building unsealer: %v", err)
	}
	plaintext, err := unsealer.Unseal(ciphertext)
	if err != nil {
		t.Fatalf("unsealing: %v", err)
	}
	defer plaintext.Close()
	if plaintext.String() != `{"token": "abc"}` {
		t.Fatalf("round trip = %q", plaintext.String())
	}
}

func TestStageDelete(t *testing.T) {
	f := newFixture(t)
	ws := f.workspace(mergeval.Policy{}, nil)

	stager, index, _ := newStager(t, f, ws)
	entry, err := stager.StageDelete("gone.json", globalLayer(t))
	if err != nil {
		t.Fatalf("stage delete: %v", err)
	}
	if entry.Op != staging.OpDelete {
		t.Fatalf("op = %v", entry.Op)
	}
	if _, ok := index.Get(globalLayer(t), "gone.json"); !ok {
		t.Fatal("index missing the delete entry")
	}
}

func TestStageRename(t *testing.T) {
	f := newFixture(t)
	ws := f.workspace(mergeval.Policy{}, nil)
	f.writeFile("conf/new.json", `{"a": 1}`, 0o644)

	stager, index, _ := newStager(t, f, ws)
	entry, err := stager.StageRename("conf/old.json", "conf/new.json", globalLayer(t), nil)
	if err != nil {
		t.Fatalf("stage rename: %v", err)
	}
	if entry.Op != staging.OpRename {
		t.Fatalf("op = %v", entry.Op)
	}
	if entry.Path != "conf/new.json" || entry.RenamedFrom != "conf/old.json" {
		t.Fatalf("rename entry = %+v", entry)
	}
	if index.Len() != 1 {
		t.Fatalf("index holds %d entries, want 1", index.Len())
	}
}

func TestStageRejectsBadPaths(t *testing.T) {
	f := newFixture(t)
	ws := f.workspace(mergeval.Policy{}, nil)
	stager, _, _ := newStager(t, f, ws)

	_, err := stager.Stage(".strata/config.yaml", globalLayer(t), nil)
	wantKind(t, err, errkind.Config)

	_, err = stager.Stage("../escape.json", globalLayer(t), nil)
	wantKind(t, err, errkind.Config)

	_, err = stager.Stage("missing.json", globalLayer(t), nil)
	wantKind(t, err, errkind.NotFound)

	f.writeFile("dir/child.json", `{}`, 0o644)
	_, err = stager.Stage("dir", globalLayer(t), nil)
	wantKind(t, err, errkind.Config)
}

func TestStageCommitApplyRoundTrip(t *testing.T) {
	f := newFixture(t)
	ws := f.workspace(mergeval.Policy{}, nil)
	f.writeFile("conf/app.json", `{"name": "alpha"}`+"\n", 0o644)

	stager, index, indexPath := newStager(t, f, ws)
	if _, err := stager.Stage("conf/app.json", globalLayer(t), nil); err != nil {
		t.Fatalf("stage: %v", err)
	}

	committer := txn.NewCommitter(f.store, indexPath, "tester@example.test", f.clk, testLogger())
	summary, err := committer.Commit(index, "add app config")
	if err != nil {
		t.Fatalf("commit: %v", err)
	}
	if summary.Entries != 1 {
		t.Fatalf("commit consumed %d entries, want 1", summary.Entries)
	}

	// The workspace already holds what the layers now produce.
	apply := applyState(t, ws, layer.Activation{}, false)
	if ch := findChange(t, apply, "conf/app.json"); ch.Action != workspace.ActionUnchanged {
		t.Fatalf("action = %v, want unchanged", ch.Action)
	}
	if f.readFile("conf/app.json") != `{"name": "alpha"}`+"\n" {
		t.Fatal("apply altered the committed file")
	}
}

func TestStageSealedCommitApplyRoundTrip(t *testing.T) {
	f := newFixture(t)
	keypair, err := sealed.GenerateKeypair()
	if err != nil {
		t.Fatalf("generating keypair: %v", err)
	}
	defer keypair.Close()
	sealer, err := sealed.NewSealer([]string{keypair.Recipient})
	if err != nil {
		t.Fatalf("building sealer: %v", err)
	}
	unsealer, err := sealed.NewUnsealer(keypair.Identity)
	if err != nil {
		t.Fatalf("building unsealer: %v", err)
	}

	ws := f.workspace(mergeval.Policy{}, unsealer)
	plaintext := `{"token": "abc"}` + "\n"
	f.writeFile("secret.json", plaintext, 0o600)

	stager, index, indexPath := newStager(t, f, ws)
	if _, err := stager.Stage("secret.json", globalLayer(t), sealer); err != nil {
		t.Fatalf("stage: %v", err)
	}
	committer := txn.NewCommitter(f.store, indexPath, "tester@example.test", f.clk, testLogger())
	if _, err := committer.Commit(index, "add sealed token"); err != nil {
		t.Fatalf("commit: %v", err)
	}

	// Merging unseals, so the applied file matches the original
	// plaintext byte for byte.
	apply := applyState(t, ws, layer.Activation{}, false)
	if ch := findChange(t, apply, "secret.json"); ch.Action != workspace.ActionUnchanged {
		t.Fatalf("action = %v, want unchanged", ch.Action)
	}
	if f.readFile("secret.json") != plaintext {
		t.Fatalf("applied content = %q", f.readFile("secret.json"))
	}
}
