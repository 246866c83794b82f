// Copyright 2026 The Strata Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"bytes"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/strata-config/strata/lib/errkind"
)

// runStrata dispatches through the real command tree, the same entry
// main uses. Every call builds a fresh tree so no flag state leaks
// between invocations.
func runStrata(args ...string) error {
	return Root().Execute(args)
}

// chdir changes the working directory for the duration of the test and
// restores the original during cleanup. It stands in for testing.T.Chdir,
// which needs a newer Go toolchain than this module targets.
func chdir(t *testing.T, dir string) {
	t.Helper()
	oldwd, err := os.Getwd()
	if err != nil {
		t.Fatalf("getwd: %v", err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("chdir %s: %v", dir, err)
	}
	t.Cleanup(func() {
		if err := os.Chdir(oldwd); err != nil {
			t.Errorf("restoring working directory: %v", err)
		}
	})
}

// initWorkspace creates an empty workspace in a fresh directory and
// makes it the working directory. Returns the root as the commands
// will see it (after any symlink resolution in the OS cwd).
func initWorkspace(t *testing.T) string {
	t.Helper()
	chdir(t, t.TempDir())
	root, err := os.Getwd()
	if err != nil {
		t.Fatalf("getwd: %v", err)
	}
	if err := runStrata("init"); err != nil {
		t.Fatalf("init: %v", err)
	}
	return root
}

// captureOutput runs fn with stdout redirected to a pipe and returns
// what it printed alongside fn's error.
func captureOutput(t *testing.T, fn func() error) (string, error) {
	t.Helper()

	original := os.Stdout
	reader, writer, err := os.Pipe()
	if err != nil {
		t.Fatalf("pipe: %v", err)
	}
	os.Stdout = writer

	runErr := fn()

	writer.Close()
	os.Stdout = original

	var buffer bytes.Buffer
	io.Copy(&buffer, reader)
	reader.Close()

	return buffer.String(), runErr
}

// writeFile writes a workspace file, creating parent directories.
func writeFile(t *testing.T, root, relPath, content string) {
	t.Helper()
	target := filepath.Join(root, filepath.FromSlash(relPath))
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", relPath, err)
	}
	if err := os.WriteFile(target, []byte(content), 0o644); err != nil {
		t.Fatalf("writing %s: %v", relPath, err)
	}
}

func TestInitCreatesWorkspace(t *testing.T) {
	root := initWorkspace(t)

	for _, relPath := range []string{
		".strata",
		".strata/config.yaml",
		".strata/context.yaml",
		".strata/store",
	} {
		if _, err := os.Stat(filepath.Join(root, filepath.FromSlash(relPath))); err != nil {
			t.Errorf("after init, %s missing: %v", relPath, err)
		}
	}

	ignore, err := os.ReadFile(filepath.Join(root, ".strata", ".gitignore"))
	if err != nil {
		t.Fatalf("reading state .gitignore: %v", err)
	}
	if string(ignore) != "*\n" {
		t.Errorf("state .gitignore = %q, want %q", ignore, "*\n")
	}

	err = runStrata("init")
	if err == nil {
		t.Fatal("second init succeeded, want already-initialized error")
	}
	if !strings.Contains(err.Error(), "already initialized") {
		t.Errorf("second init error = %v, want mention of already initialized", err)
	}
}

func TestInitWithDirectoryArgument(t *testing.T) {
	chdir(t, t.TempDir())

	if err := runStrata("init", "nested"); err != nil {
		t.Fatalf("init nested: %v", err)
	}
	info, err := os.Stat(filepath.Join("nested", ".strata"))
	if err != nil || !info.IsDir() {
		t.Errorf("init nested did not create nested/.strata: %v", err)
	}
}

func TestRootDiscoveryFromSubdirectory(t *testing.T) {
	root := initWorkspace(t)

	sub := filepath.Join(root, "conf", "deep")
	if err := os.MkdirAll(sub, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	chdir(t, sub)

	out, err := captureOutput(t, func() error { return runStrata("status") })
	if err != nil {
		t.Fatalf("status from subdirectory: %v", err)
	}
	if !strings.Contains(out, "Workspace: "+root) {
		t.Errorf("status output does not name the discovered root %s:\n%s", root, out)
	}
}

func TestCommandsRequireWorkspace(t *testing.T) {
	chdir(t, t.TempDir())

	err := runStrata("status")
	if err == nil {
		t.Fatal("status outside a workspace succeeded")
	}
	if !errkind.Is(err, errkind.NotInitialized) {
		t.Errorf("kind = %v, want NotInitialized", errkind.KindOf(err))
	}
}

func TestModeLifecycle(t *testing.T) {
	initWorkspace(t)

	if err := runStrata("mode", "create", "dev", "--description", "Development"); err != nil {
		t.Fatalf("mode create dev: %v", err)
	}
	if err := runStrata("mode", "create", "prod"); err != nil {
		t.Fatalf("mode create prod: %v", err)
	}

	out, err := captureOutput(t, func() error { return runStrata("mode", "list", "--json") })
	if err != nil {
		t.Fatalf("mode list --json: %v", err)
	}
	var infos []modeInfo
	if err := json.Unmarshal([]byte(out), &infos); err != nil {
		t.Fatalf("unmarshalling mode list output: %v\n%s", err, out)
	}
	if len(infos) != 2 {
		t.Fatalf("mode list returned %d modes, want 2", len(infos))
	}
	if infos[0].Name != "dev" || infos[0].Description != "Development" {
		t.Errorf("first mode = %+v, want dev / Development", infos[0])
	}
	for _, info := range infos {
		if info.Active {
			t.Errorf("mode %s reported active before any mode use", info.Name)
		}
	}

	if err := runStrata("mode", "use", "missing"); err == nil {
		t.Error("mode use of an unregistered name succeeded")
	}

	if err := runStrata("mode", "use", "dev"); err != nil {
		t.Fatalf("mode use dev: %v", err)
	}
	out, err = captureOutput(t, func() error { return runStrata("status") })
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if !strings.Contains(out, "Mode:      dev") {
		t.Errorf("status does not show the active mode:\n%s", out)
	}

	err = runStrata("mode", "delete", "dev")
	if err == nil {
		t.Fatal("deleting the active mode succeeded")
	}
	if !errkind.Is(err, errkind.Config) {
		t.Errorf("kind = %v, want Config", errkind.KindOf(err))
	}

	if err := runStrata("mode", "deactivate"); err != nil {
		t.Fatalf("mode deactivate: %v", err)
	}
	if err := runStrata("mode", "delete", "dev"); err != nil {
		t.Fatalf("mode delete after deactivate: %v", err)
	}

	out, err = captureOutput(t, func() error { return runStrata("mode", "list", "--json") })
	if err != nil {
		t.Fatalf("mode list --json: %v", err)
	}
	infos = nil
	if err := json.Unmarshal([]byte(out), &infos); err != nil {
		t.Fatalf("unmarshalling mode list output: %v", err)
	}
	if len(infos) != 1 || infos[0].Name != "prod" {
		t.Errorf("after delete, modes = %+v, want just prod", infos)
	}
}

func TestScopeBindingFollowsMode(t *testing.T) {
	initWorkspace(t)

	for _, mode := range []string{"dev", "prod"} {
		if err := runStrata("mode", "create", mode); err != nil {
			t.Fatalf("mode create %s: %v", mode, err)
		}
	}
	if err := runStrata("scope", "create", "web", "--bind", "dev"); err != nil {
		t.Fatalf("scope create web --bind dev: %v", err)
	}

	// Binding requires a registered mode.
	if err := runStrata("scope", "create", "bad", "--bind", "nope"); err == nil {
		t.Error("scope create bound to an unregistered mode succeeded")
	}

	if err := runStrata("mode", "use", "dev"); err != nil {
		t.Fatalf("mode use dev: %v", err)
	}
	if err := runStrata("scope", "use", "web"); err != nil {
		t.Fatalf("scope use web: %v", err)
	}

	out, err := captureOutput(t, func() error { return runStrata("mode", "use", "prod") })
	if err != nil {
		t.Fatalf("mode use prod: %v", err)
	}
	if !strings.Contains(out, "Deactivated scope web") {
		t.Errorf("switching modes did not report the bound scope deactivation:\n%s", out)
	}

	out, err = captureOutput(t, func() error { return runStrata("status") })
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if !strings.Contains(out, "Scope:     (none)") {
		t.Errorf("status still shows a scope after the bound mode changed:\n%s", out)
	}
}

func TestProjectActivation(t *testing.T) {
	root := initWorkspace(t)

	if err := runStrata("project", "use", "shop"); err != nil {
		t.Fatalf("project use shop: %v", err)
	}
	out, err := captureOutput(t, func() error { return runStrata("status") })
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if !strings.Contains(out, "Project:   shop") {
		t.Errorf("status does not show the active project:\n%s", out)
	}

	// With a project active and no placement flags, staging routes to
	// the project base layer.
	writeFile(t, root, "app.txt", "hello\n")
	if err := runStrata("stage", "app.txt"); err != nil {
		t.Fatalf("stage without placement: %v", err)
	}
	out, err = captureOutput(t, func() error { return runStrata("status") })
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if !strings.Contains(out, "layers/project/shop") {
		t.Errorf("staged entry not routed to the project layer:\n%s", out)
	}

	if err := runStrata("unstage", "--all"); err != nil {
		t.Fatalf("unstage --all: %v", err)
	}
	if err := runStrata("project", "clear"); err != nil {
		t.Fatalf("project clear: %v", err)
	}
	out, err = captureOutput(t, func() error { return runStrata("status") })
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if !strings.Contains(out, "Project:   (none)") {
		t.Errorf("status still shows a project after clear:\n%s", out)
	}
}

func TestUnknownCommandSuggestion(t *testing.T) {
	initWorkspace(t)

	err := runStrata("stat")
	if err == nil {
		t.Fatal("unknown command succeeded")
	}
	if !strings.Contains(err.Error(), `"status"`) {
		t.Errorf("error does not suggest status: %v", err)
	}
}
