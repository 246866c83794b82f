// Copyright 2026 The Strata Authors
// SPDX-License-Identifier: Apache-2.0

package activation_test

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/strata-config/strata/lib/activation"
	"github.com/strata-config/strata/lib/clock"
	"github.com/strata-config/strata/lib/errkind"
)

func newTestStore(t *testing.T) (*activation.Store, *clock.FakeClock) {
	t.Helper()
	clk := clock.Fake(time.Date(2026, 8, 25, 10, 0, 0, 0, time.UTC))
	path := filepath.Join(t.TempDir(), "context.yaml")
	return activation.NewStore(path, clk), clk
}

func TestInitAndLoad(t *testing.T) {
	store, clk := newTestStore(t)

	ctx, err := store.Init()
	if err != nil {
		t.Fatalf("Init: %v", err)
	}
	if ctx.Mode != "" || ctx.Scope != "" || ctx.Project != "" {
		t.Errorf("fresh context not empty: %+v", ctx)
	}
	if !ctx.UpdatedAt.Equal(clk.Now()) {
		t.Errorf("UpdatedAt = %v, want %v", ctx.UpdatedAt, clk.Now())
	}

	loaded, err := store.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if *loaded != *ctx {
		t.Errorf("Load() = %+v, want %+v", loaded, ctx)
	}
}

func TestInitTwiceFails(t *testing.T) {
	store, _ := newTestStore(t)
	if _, err := store.Init(); err != nil {
		t.Fatalf("first Init: %v", err)
	}
	if _, err := store.Init(); !errkind.Is(err, errkind.Config) {
		t.Fatalf("second Init = %v, want Config error", err)
	}
}

func TestLoadUninitialized(t *testing.T) {
	store, _ := newTestStore(t)
	_, err := store.Load()
	if !errkind.Is(err, errkind.NotInitialized) {
		t.Fatalf("Load on missing file = %v, want NotInitialized", err)
	}
}

func TestSaveStampsTime(t *testing.T) {
	store, clk := newTestStore(t)
	ctx, err := store.Init()
	if err != nil {
		t.Fatalf("Init: %v", err)
	}

	clk.Advance(5 * time.Minute)
	if _, err := ctx.ActivateMode("dev"); err != nil {
		t.Fatalf("ActivateMode: %v", err)
	}
	if err := store.Save(ctx); err != nil {
		t.Fatalf("Save: %v", err)
	}

	loaded, err := store.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded.Mode != "dev" {
		t.Errorf("Mode = %q, want %q", loaded.Mode, "dev")
	}
	if !loaded.UpdatedAt.Equal(clk.Now()) {
		t.Errorf("UpdatedAt = %v, want %v", loaded.UpdatedAt, clk.Now())
	}
}

func TestScopeBindingInvariant(t *testing.T) {
	tests := []struct {
		name       string
		activeMode string
		boundMode  string
		wantErr    bool
	}{
		{name: "unbound-scope-no-mode", activeMode: "", boundMode: ""},
		{name: "unbound-scope-with-mode", activeMode: "dev", boundMode: ""},
		{name: "bound-scope-matching-mode", activeMode: "dev", boundMode: "dev"},
		{name: "bound-scope-different-mode", activeMode: "prod", boundMode: "dev", wantErr: true},
		{name: "bound-scope-no-mode", activeMode: "", boundMode: "dev", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := &activation.Context{}
			if tt.activeMode != "" {
				if _, err := ctx.ActivateMode(tt.activeMode); err != nil {
					t.Fatalf("ActivateMode: %v", err)
				}
			}
			err := ctx.ActivateScope("web", tt.boundMode)
			if tt.wantErr {
				if !errkind.Is(err, errkind.Config) {
					t.Fatalf("ActivateScope = %v, want Config error", err)
				}
				if ctx.Scope != "" {
					t.Errorf("scope %q activated despite error", ctx.Scope)
				}
				return
			}
			if err != nil {
				t.Fatalf("ActivateScope: %v", err)
			}
			if ctx.Scope != "web" {
				t.Errorf("Scope = %q, want %q", ctx.Scope, "web")
			}
		})
	}
}

func TestModeSwitchDeactivatesBoundScope(t *testing.T) {
	ctx := &activation.Context{}
	if _, err := ctx.ActivateMode("dev"); err != nil {
		t.Fatalf("ActivateMode: %v", err)
	}
	if err := ctx.ActivateScope("web", "dev"); err != nil {
		t.Fatalf("ActivateScope: %v", err)
	}

	dropped, err := ctx.ActivateMode("prod")
	if err != nil {
		t.Fatalf("ActivateMode(prod): %v", err)
	}
	if dropped != "web" {
		t.Errorf("deactivated scope = %q, want %q", dropped, "web")
	}
	if ctx.Scope != "" {
		t.Errorf("Scope = %q after mode switch, want empty", ctx.Scope)
	}
	if ctx.Mode != "prod" {
		t.Errorf("Mode = %q, want %q", ctx.Mode, "prod")
	}
}

func TestModeSwitchKeepsUnboundScope(t *testing.T) {
	ctx := &activation.Context{}
	if _, err := ctx.ActivateMode("dev"); err != nil {
		t.Fatalf("ActivateMode: %v", err)
	}
	if err := ctx.ActivateScope("web", ""); err != nil {
		t.Fatalf("ActivateScope: %v", err)
	}

	dropped, err := ctx.ActivateMode("prod")
	if err != nil {
		t.Fatalf("ActivateMode(prod): %v", err)
	}
	if dropped != "" {
		t.Errorf("deactivated scope = %q, want none", dropped)
	}
	if ctx.Scope != "web" {
		t.Errorf("Scope = %q, want it kept", ctx.Scope)
	}
}

func TestDeactivateModeDropsBoundScope(t *testing.T) {
	ctx := &activation.Context{}
	if _, err := ctx.ActivateMode("dev"); err != nil {
		t.Fatalf("ActivateMode: %v", err)
	}
	if err := ctx.ActivateScope("web", "dev"); err != nil {
		t.Fatalf("ActivateScope: %v", err)
	}

	if dropped := ctx.DeactivateMode(); dropped != "web" {
		t.Errorf("deactivated scope = %q, want %q", dropped, "web")
	}
	if ctx.Mode != "" || ctx.Scope != "" {
		t.Errorf("context not cleared: %+v", ctx)
	}
}

func TestRouting(t *testing.T) {
	ctx := &activation.Context{}
	if _, err := ctx.ActivateMode("dev"); err != nil {
		t.Fatalf("ActivateMode: %v", err)
	}
	if err := ctx.SetProject("shop"); err != nil {
		t.Fatalf("SetProject: %v", err)
	}

	active := ctx.Routing()
	if active.Mode != "dev" || active.Scope != "" || active.Project != "shop" {
		t.Errorf("Routing() = %+v", active)
	}
}

func TestInvalidNamesRejected(t *testing.T) {
	ctx := &activation.Context{}
	if _, err := ctx.ActivateMode("Bad/Name"); !errkind.Is(err, errkind.Config) {
		t.Errorf("ActivateMode = %v, want Config error", err)
	}
	if err := ctx.SetProject(""); !errkind.Is(err, errkind.Config) {
		t.Errorf("SetProject = %v, want Config error", err)
	}
	if err := ctx.ActivateScope("UPPER", ""); !errkind.Is(err, errkind.Config) {
		t.Errorf("ActivateScope = %v, want Config error", err)
	}
}
