// Copyright 2026 The Strata Authors
// SPDX-License-Identifier: Apache-2.0

// Package watcher turns filesystem activity into debounced apply
// triggers. `strata apply --watch` points one at the store's ref
// directory and the activation state file, so layer commits from any
// process and mode or scope switches both schedule a fresh apply.
package watcher

import (
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/strata-config/strata/lib/errkind"
)

// DefaultDebounce is the quiet period used when Config.Debounce is
// zero. A commit touches several refs in quick succession; the quiet
// period folds the burst into one trigger.
const DefaultDebounce = 500 * time.Millisecond

// Config describes what a Watcher observes.
type Config struct {
	// Trees are directory roots watched recursively. Directories
	// created under a root later are picked up as they appear.
	Trees []string

	// Files are individual files to watch. The parent directory must
	// exist; the file itself may not yet.
	Files []string

	// Debounce is the quiet period before a trigger fires.
	Debounce time.Duration

	// Logger receives lifecycle and watch errors. Defaults to
	// slog.Default.
	Logger *slog.Logger
}

// Watcher coalesces filesystem events into triggers on a channel.
type Watcher struct {
	fsw      *fsnotify.Watcher
	trees    []string
	files    map[string]bool
	debounce time.Duration
	logger   *slog.Logger

	signals  chan struct{}
	done     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup

	mu      sync.Mutex
	pending *time.Timer
}

// New builds a watcher. Nothing is watched until Start.
func New(cfg Config) (*Watcher, error) {
	if len(cfg.Trees) == 0 && len(cfg.Files) == 0 {
		return nil, errkind.Configf("watcher needs at least one tree or file to observe")
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, errkind.IOf("creating filesystem watcher: %v", err)
	}
	w := &Watcher{
		fsw:      fsw,
		files:    make(map[string]bool, len(cfg.Files)),
		debounce: cfg.Debounce,
		logger:   cfg.Logger,
		signals:  make(chan struct{}, 1),
		done:     make(chan struct{}),
	}
	if w.debounce <= 0 {
		w.debounce = DefaultDebounce
	}
	if w.logger == nil {
		w.logger = slog.Default()
	}
	for _, root := range cfg.Trees {
		w.trees = append(w.trees, filepath.Clean(root))
	}
	for _, file := range cfg.Files {
		w.files[filepath.Clean(file)] = true
	}
	return w, nil
}

// Signals returns the trigger channel. Triggers are coalesced: however
// many events arrive while the consumer is busy, at most one trigger
// waits for it.
func (w *Watcher) Signals() <-chan struct{} {
	return w.signals
}

// Start adds the configured watches and begins delivering triggers.
func (w *Watcher) Start() error {
	for _, root := range w.trees {
		if err := w.watchTree(root); err != nil {
			w.fsw.Close()
			return err
		}
	}
	for file := range w.files {
		dir := filepath.Dir(file)
		if err := w.fsw.Add(dir); err != nil {
			w.fsw.Close()
			return errkind.IOf("watching %s: %v", dir, err)
		}
	}
	w.wg.Add(1)
	go w.loop()
	w.logger.Debug("watcher started",
		"trees", len(w.trees),
		"files", len(w.files),
		"debounce", w.debounce)
	return nil
}

// Stop ends delivery and releases the underlying watcher. A trigger
// already in flight may still be readable afterwards.
func (w *Watcher) Stop() error {
	var err error
	w.stopOnce.Do(func() {
		close(w.done)
		err = w.fsw.Close()
		w.wg.Wait()
		w.mu.Lock()
		if w.pending != nil {
			w.pending.Stop()
		}
		w.mu.Unlock()
	})
	return err
}

// watchTree registers root and every directory below it.
func (w *Watcher) watchTree(root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return errkind.IOf("walking %s: %v", path, err)
		}
		if !d.IsDir() {
			return nil
		}
		if err := w.fsw.Add(path); err != nil {
			return errkind.IOf("watching %s: %v", path, err)
		}
		return nil
	})
}

func (w *Watcher) loop() {
	defer w.wg.Done()
	for {
		select {
		case <-w.done:
			return
		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			w.handle(event)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.logger.Warn("filesystem watcher error", "error", err)
		}
	}
}

func (w *Watcher) handle(event fsnotify.Event) {
	if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
		return
	}
	name := filepath.Clean(event.Name)
	if !w.files[name] && !w.underTree(name) {
		return
	}
	// A new directory under a watched tree will hold future refs.
	// Events can slip through before the watch lands; the debounced
	// recompute reads everything fresh, so nothing is lost.
	if event.Op&fsnotify.Create != 0 && w.underTree(name) {
		if info, err := os.Stat(name); err == nil && info.IsDir() {
			if err := w.watchTree(name); err != nil {
				w.logger.Warn("watching new directory", "path", name, "error", err)
			}
		}
	}
	w.bump()
}

func (w *Watcher) underTree(name string) bool {
	for _, root := range w.trees {
		if name == root || strings.HasPrefix(name, root+string(filepath.Separator)) {
			return true
		}
	}
	return false
}

// bump restarts the quiet-period timer.
func (w *Watcher) bump() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.pending != nil {
		w.pending.Stop()
	}
	w.pending = time.AfterFunc(w.debounce, w.fire)
}

func (w *Watcher) fire() {
	select {
	case w.signals <- struct{}{}:
	default:
	}
}
