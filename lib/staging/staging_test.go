// Copyright 2026 The Strata Authors
// SPDX-License-Identifier: Apache-2.0

package staging_test

import (
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/strata-config/strata/lib/codec"
	"github.com/strata-config/strata/lib/errkind"
	"github.com/strata-config/strata/lib/layer"
	"github.com/strata-config/strata/lib/objstore"
	"github.com/strata-config/strata/lib/staging"
)

func mustRef(t *testing.T, kind layer.Kind, params layer.Params) layer.Ref {
	t.Helper()
	ref, err := layer.NewRef(kind, params)
	if err != nil {
		t.Fatalf("NewRef(%s) failed: %v", kind, err)
	}
	return ref
}

func stagedAt(seconds int64) time.Time {
	return time.Unix(1700000000+seconds, 0).UTC()
}

func TestIndexRoundTrip(t *testing.T) {
	global := mustRef(t, layer.GlobalBase, layer.Params{})
	mode := mustRef(t, layer.ModeBase, layer.Params{Mode: "dev"})
	local := mustRef(t, layer.UserLocal, layer.Params{})

	entries := []staging.Entry{
		{
			Path:     "app/server.yaml",
			Layer:    mode,
			Op:       staging.OpAddOrModify,
			Blob:     objstore.HashBlob([]byte("port: 9090\n")),
			Mode:     0o644,
			StagedAt: stagedAt(0),
		},
		{
			Path:     "app/old.toml",
			Layer:    global,
			Op:       staging.OpDelete,
			StagedAt: stagedAt(1),
		},
		{
			Path:        "app/new-name.json",
			Layer:       local,
			Op:          staging.OpRename,
			Blob:        objstore.HashBlob([]byte(`{"a":1}`)),
			Mode:        0o600,
			RenamedFrom: "app/old-name.json",
			StagedAt:    stagedAt(2),
		},
		{
			Path:     "secrets/token.env",
			Layer:    local,
			Op:       staging.OpAddOrModify,
			Blob:     objstore.HashBlob([]byte("TOKEN=x\n")),
			Mode:     0o600,
			Sealed:   true,
			StagedAt: stagedAt(3),
		},
	}

	index := staging.NewIndex()
	for _, e := range entries {
		if err := index.Stage(e); err != nil {
			t.Fatalf("Stage(%s) failed: %v", e.Path, err)
		}
	}

	indexPath := filepath.Join(t.TempDir(), "staging.cbor")
	if err := index.Save(indexPath); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	loaded, err := staging.Load(indexPath)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if !reflect.DeepEqual(loaded.Entries(), index.Entries()) {
		t.Errorf("loaded entries differ:\ngot:  %+v\nwant: %+v", loaded.Entries(), index.Entries())
	}
	got, ok := loaded.Get(local, "secrets/token.env")
	if !ok {
		t.Fatal("sealed entry missing after round trip")
	}
	if !got.Sealed || got.Mode != 0o600 || !got.StagedAt.Equal(stagedAt(3)) {
		t.Errorf("sealed entry lost fields: %+v", got)
	}
}

func TestLoadMissingFileIsEmptyIndex(t *testing.T) {
	index, err := staging.Load(filepath.Join(t.TempDir(), "absent.cbor"))
	if err != nil {
		t.Fatalf("Load of a missing file failed: %v", err)
	}
	if index.Len() != 0 {
		t.Errorf("missing file produced %d entries, want 0", index.Len())
	}
}

func TestLoadRejectsUnknownVersion(t *testing.T) {
	indexPath := filepath.Join(t.TempDir(), "staging.cbor")
	future := struct {
		Version int `cbor:"version"`
	}{Version: 99}
	if err := codec.EncodeFile(indexPath, future); err != nil {
		t.Fatalf("writing future index: %v", err)
	}

	_, err := staging.Load(indexPath)
	if err == nil {
		t.Fatal("expected a version error")
	}
	if !errkind.Is(err, errkind.Parse) {
		t.Errorf("error kind = %s, want %s", errkind.KindOf(err), errkind.Parse)
	}
}

func TestRestagingReplacesSameLayerPath(t *testing.T) {
	mode := mustRef(t, layer.ModeBase, layer.Params{Mode: "dev"})
	local := mustRef(t, layer.UserLocal, layer.Params{})
	index := staging.NewIndex()

	first := staging.Entry{
		Path: "a.json", Layer: mode, Op: staging.OpAddOrModify,
		Blob: objstore.HashBlob([]byte("v1")), Mode: 0o644, StagedAt: stagedAt(0),
	}
	second := first
	second.Blob = objstore.HashBlob([]byte("v2"))
	second.StagedAt = stagedAt(1)

	if err := index.Stage(first); err != nil {
		t.Fatalf("Stage failed: %v", err)
	}
	if err := index.Stage(second); err != nil {
		t.Fatalf("re-Stage failed: %v", err)
	}
	if index.Len() != 1 {
		t.Fatalf("Len = %d after re-staging, want 1", index.Len())
	}
	got, _ := index.Get(mode, "a.json")
	if got.Blob != second.Blob {
		t.Error("re-staging did not replace the pending entry")
	}

	// The same path staged to a different layer is a separate slot.
	third := first
	third.Layer = local
	if err := index.Stage(third); err != nil {
		t.Fatalf("Stage to second layer failed: %v", err)
	}
	if index.Len() != 2 {
		t.Errorf("Len = %d, want 2 (one per layer)", index.Len())
	}
}

func TestUnstage(t *testing.T) {
	mode := mustRef(t, layer.ModeBase, layer.Params{Mode: "dev"})
	local := mustRef(t, layer.UserLocal, layer.Params{})
	index := staging.NewIndex()

	for _, ref := range []layer.Ref{mode, local} {
		err := index.Stage(staging.Entry{
			Path: "a.json", Layer: ref, Op: staging.OpAddOrModify,
			Blob: objstore.HashBlob([]byte("x")), Mode: 0o644, StagedAt: stagedAt(0),
		})
		if err != nil {
			t.Fatalf("Stage failed: %v", err)
		}
	}

	if !index.Unstage(mode, "a.json") {
		t.Error("Unstage of a staged entry reported absence")
	}
	if index.Unstage(mode, "a.json") {
		t.Error("second Unstage reported presence")
	}
	if index.Len() != 1 {
		t.Fatalf("Len = %d, want 1", index.Len())
	}

	if removed := index.UnstagePath("a.json"); removed != 1 {
		t.Errorf("UnstagePath removed %d entries, want 1", removed)
	}
	if index.Len() != 0 {
		t.Errorf("Len = %d after UnstagePath, want 0", index.Len())
	}
}

func TestEntriesSortedByLayerThenPath(t *testing.T) {
	global := mustRef(t, layer.GlobalBase, layer.Params{})
	mode := mustRef(t, layer.ModeBase, layer.Params{Mode: "dev"})
	index := staging.NewIndex()

	blob := objstore.HashBlob([]byte("x"))
	for _, e := range []staging.Entry{
		{Path: "z.json", Layer: mode, Op: staging.OpAddOrModify, Blob: blob, Mode: 0o644, StagedAt: stagedAt(0)},
		{Path: "a.json", Layer: mode, Op: staging.OpAddOrModify, Blob: blob, Mode: 0o644, StagedAt: stagedAt(0)},
		{Path: "m.json", Layer: global, Op: staging.OpAddOrModify, Blob: blob, Mode: 0o644, StagedAt: stagedAt(0)},
	} {
		if err := index.Stage(e); err != nil {
			t.Fatalf("Stage failed: %v", err)
		}
	}

	var got []string
	for _, e := range index.Entries() {
		got = append(got, e.Layer.Path()+" "+e.Path)
	}
	want := []string{
		"layers/global m.json",
		"layers/mode/dev a.json",
		"layers/mode/dev z.json",
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("order = %v, want %v", got, want)
	}
}

func TestStageValidation(t *testing.T) {
	mode := mustRef(t, layer.ModeBase, layer.Params{Mode: "dev"})
	blob := objstore.HashBlob([]byte("x"))

	tests := []struct {
		name  string
		entry staging.Entry
	}{
		{"empty path", staging.Entry{Layer: mode, Op: staging.OpAddOrModify, Blob: blob}},
		{"absolute path", staging.Entry{Path: "/etc/app.json", Layer: mode, Op: staging.OpAddOrModify, Blob: blob}},
		{"traversal", staging.Entry{Path: "../escape.json", Layer: mode, Op: staging.OpAddOrModify, Blob: blob}},
		{"backslash", staging.Entry{Path: `app\server.yaml`, Layer: mode, Op: staging.OpAddOrModify, Blob: blob}},
		{"no layer", staging.Entry{Path: "a.json", Op: staging.OpAddOrModify, Blob: blob}},
		{"add without blob", staging.Entry{Path: "a.json", Layer: mode, Op: staging.OpAddOrModify}},
		{"delete with blob", staging.Entry{Path: "a.json", Layer: mode, Op: staging.OpDelete, Blob: blob}},
		{"rename without source", staging.Entry{Path: "a.json", Layer: mode, Op: staging.OpRename, Blob: blob}},
		{"rename to itself", staging.Entry{Path: "a.json", Layer: mode, Op: staging.OpRename, Blob: blob, RenamedFrom: "a.json"}},
		{"unknown op", staging.Entry{Path: "a.json", Layer: mode, Op: staging.Op(9), Blob: blob}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			index := staging.NewIndex()
			if err := index.Stage(tt.entry); err == nil {
				t.Error("Stage succeeded, want validation error")
			}
		})
	}
}
