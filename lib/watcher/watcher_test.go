// Copyright 2026 The Strata Authors
// SPDX-License-Identifier: Apache-2.0

package watcher

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/strata-config/strata/lib/errkind"
)

const (
	testDebounce = 50 * time.Millisecond
	waitTimeout  = 5 * time.Second
)

func startWatcher(t *testing.T, cfg Config) *Watcher {
	t.Helper()
	if cfg.Debounce == 0 {
		cfg.Debounce = testDebounce
	}
	cfg.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	w, err := New(cfg)
	if err != nil {
		t.Fatalf("creating watcher: %v", err)
	}
	if err := w.Start(); err != nil {
		t.Fatalf("starting watcher: %v", err)
	}
	t.Cleanup(func() { w.Stop() })
	return w
}

func wantSignal(t *testing.T, w *Watcher) {
	t.Helper()
	select {
	case <-w.Signals():
	case <-time.After(waitTimeout):
		t.Fatal("timeout waiting for watch signal")
	}
}

func TestNewRequiresSomethingToWatch(t *testing.T) {
	_, err := New(Config{})
	if !errkind.Is(err, errkind.Config) {
		t.Fatalf("expected config error, got %v", err)
	}
}

func TestTreeSignalsOnWrite(t *testing.T) {
	dir := t.TempDir()
	w := startWatcher(t, Config{Trees: []string{dir}})

	if err := os.WriteFile(filepath.Join(dir, "head"), []byte("abc"), 0o644); err != nil {
		t.Fatalf("writing file: %v", err)
	}
	wantSignal(t, w)
}

func TestTreePicksUpNewDirectories(t *testing.T) {
	dir := t.TempDir()
	w := startWatcher(t, Config{Trees: []string{dir}})

	nested := filepath.Join(dir, "layers", "mode")
	if err := os.MkdirAll(nested, 0o755); err != nil {
		t.Fatalf("creating nested dirs: %v", err)
	}
	wantSignal(t, w)

	// Writes inside the directory created after Start are seen too.
	if err := os.WriteFile(filepath.Join(nested, "dev"), []byte("abc"), 0o644); err != nil {
		t.Fatalf("writing nested file: %v", err)
	}
	wantSignal(t, w)
}

func TestFileWatchIgnoresSiblings(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "activation")
	w := startWatcher(t, Config{Files: []string{target}})

	if err := os.WriteFile(filepath.Join(dir, "other"), []byte("x"), 0o644); err != nil {
		t.Fatalf("writing sibling: %v", err)
	}
	select {
	case <-w.Signals():
		t.Fatal("sibling write produced a signal")
	case <-time.After(4 * testDebounce):
	}

	if err := os.WriteFile(target, []byte("mode: dev"), 0o644); err != nil {
		t.Fatalf("writing target: %v", err)
	}
	wantSignal(t, w)
}

func TestBurstCoalesces(t *testing.T) {
	dir := t.TempDir()
	// A quiet period comfortably longer than the whole burst, so the
	// five writes land inside one debounce window.
	debounce := 300 * time.Millisecond
	w := startWatcher(t, Config{Trees: []string{dir}, Debounce: debounce})

	for i := 0; i < 5; i++ {
		name := filepath.Join(dir, "ref"+string(rune('0'+i)))
		if err := os.WriteFile(name, []byte("abc"), 0o644); err != nil {
			t.Fatalf("writing file: %v", err)
		}
	}
	wantSignal(t, w)

	select {
	case <-w.Signals():
		t.Fatal("burst produced a second signal")
	case <-time.After(2 * debounce):
	}
}

func TestStopIsIdempotent(t *testing.T) {
	dir := t.TempDir()
	w := startWatcher(t, Config{Trees: []string{dir}})
	if err := w.Stop(); err != nil {
		t.Fatalf("stop: %v", err)
	}
	if err := w.Stop(); err != nil {
		t.Fatalf("second stop: %v", err)
	}
}
