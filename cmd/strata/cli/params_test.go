// Copyright 2026 The Strata Authors
// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"strings"
	"testing"
	"time"

	"github.com/spf13/pflag"
)

func TestBindFlags_BasicTypes(t *testing.T) {
	type params struct {
		Message  string        `flag:"message" desc:"the message"`
		Verbose  bool          `flag:"verbose,v" desc:"enable verbose output"`
		Limit    int           `flag:"limit" desc:"number of entries"`
		Offset   int64         `flag:"offset" desc:"byte offset"`
		Rate     float64       `flag:"rate" desc:"sampling rate"`
		Debounce time.Duration `flag:"debounce" desc:"settle window"`
		Paths    []string      `flag:"paths" desc:"path list"`
		Untagged string        // no flag tag, should be skipped
	}

	var p params
	flagSet := pflag.NewFlagSet("test", pflag.ContinueOnError)
	if err := BindFlags(&p, flagSet); err != nil {
		t.Fatalf("BindFlags: %v", err)
	}

	err := flagSet.Parse([]string{
		"--message", "alpha",
		"-v",
		"--limit", "42",
		"--offset", "1099511627776",
		"--rate", "0.95",
		"--debounce", "30s",
		"--paths", "a,b,c",
	})
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	if p.Message != "alpha" {
		t.Errorf("Message = %q, want %q", p.Message, "alpha")
	}
	if !p.Verbose {
		t.Error("Verbose = false, want true")
	}
	if p.Limit != 42 {
		t.Errorf("Limit = %d, want 42", p.Limit)
	}
	if p.Offset != 1099511627776 {
		t.Errorf("Offset = %d, want 1099511627776", p.Offset)
	}
	if p.Rate != 0.95 {
		t.Errorf("Rate = %f, want 0.95", p.Rate)
	}
	if p.Debounce != 30*time.Second {
		t.Errorf("Debounce = %v, want 30s", p.Debounce)
	}
	if len(p.Paths) != 3 || p.Paths[0] != "a" || p.Paths[1] != "b" || p.Paths[2] != "c" {
		t.Errorf("Paths = %v, want [a b c]", p.Paths)
	}
	if p.Untagged != "" {
		t.Errorf("Untagged = %q, want empty (should be skipped)", p.Untagged)
	}
}

func TestBindFlags_Defaults(t *testing.T) {
	type params struct {
		Out      string        `flag:"out" desc:"output path" default:"artifact.txt"`
		Limit    int           `flag:"limit" desc:"entry limit" default:"10"`
		Offset   int64         `flag:"offset" desc:"byte offset" default:"100"`
		Rate     float64       `flag:"rate" desc:"rate" default:"0.5"`
		Debounce time.Duration `flag:"debounce" desc:"settle window" default:"500ms"`
		Watch    bool          `flag:"watch" desc:"watch mode" default:"true"`
		Paths    []string      `flag:"paths" desc:"paths" default:"x,y"`
	}

	var p params
	flagSet := pflag.NewFlagSet("test", pflag.ContinueOnError)
	if err := BindFlags(&p, flagSet); err != nil {
		t.Fatalf("BindFlags: %v", err)
	}

	// Parse with no arguments: every default applies.
	if err := flagSet.Parse(nil); err != nil {
		t.Fatalf("Parse: %v", err)
	}

	if p.Out != "artifact.txt" {
		t.Errorf("Out = %q, want %q", p.Out, "artifact.txt")
	}
	if p.Limit != 10 {
		t.Errorf("Limit = %d, want 10", p.Limit)
	}
	if p.Offset != 100 {
		t.Errorf("Offset = %d, want 100", p.Offset)
	}
	if p.Rate != 0.5 {
		t.Errorf("Rate = %f, want 0.5", p.Rate)
	}
	if p.Debounce != 500*time.Millisecond {
		t.Errorf("Debounce = %v, want 500ms", p.Debounce)
	}
	if !p.Watch {
		t.Error("Watch = false, want true")
	}
	if len(p.Paths) != 2 || p.Paths[0] != "x" || p.Paths[1] != "y" {
		t.Errorf("Paths = %v, want [x y]", p.Paths)
	}
}

func TestBindFlags_DefaultsOverriddenByCLI(t *testing.T) {
	type params struct {
		Out   string `flag:"out" desc:"output path" default:"artifact.txt"`
		Limit int    `flag:"limit" desc:"entry limit" default:"10"`
	}

	var p params
	flagSet := pflag.NewFlagSet("test", pflag.ContinueOnError)
	if err := BindFlags(&p, flagSet); err != nil {
		t.Fatalf("BindFlags: %v", err)
	}

	if err := flagSet.Parse([]string{"--out", "other.txt", "--limit", "25"}); err != nil {
		t.Fatalf("Parse: %v", err)
	}

	if p.Out != "other.txt" {
		t.Errorf("Out = %q, want %q", p.Out, "other.txt")
	}
	if p.Limit != 25 {
		t.Errorf("Limit = %d, want 25", p.Limit)
	}
}

func TestBindFlags_EmbeddedStructRecursion(t *testing.T) {
	type placement struct {
		Global bool   `flag:"global" desc:"global layer"`
		Scope  string `flag:"scope" desc:"scope layer"`
	}
	type params struct {
		placement
		Seal bool `flag:"seal" desc:"seal content"`
	}

	var p params
	flagSet := pflag.NewFlagSet("test", pflag.ContinueOnError)
	if err := BindFlags(&p, flagSet); err != nil {
		t.Fatalf("BindFlags: %v", err)
	}

	if err := flagSet.Parse([]string{"--global", "--scope", "client-a", "--seal"}); err != nil {
		t.Fatalf("Parse: %v", err)
	}

	if !p.Global {
		t.Error("Global = false, want true")
	}
	if p.Scope != "client-a" {
		t.Errorf("Scope = %q, want %q", p.Scope, "client-a")
	}
	if !p.Seal {
		t.Error("Seal = false, want true")
	}
}

func TestBindFlags_JSONOutputEmbedding(t *testing.T) {
	type params struct {
		JSONOutput
		Limit int `flag:"limit" desc:"entry limit"`
	}

	var p params
	flagSet := pflag.NewFlagSet("test", pflag.ContinueOnError)
	if err := BindFlags(&p, flagSet); err != nil {
		t.Fatalf("BindFlags: %v", err)
	}

	if flagSet.Lookup("json") == nil {
		t.Fatal("expected --json from embedded JSONOutput")
	}
	if err := flagSet.Parse([]string{"--json"}); err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if !p.OutputJSON {
		t.Error("OutputJSON = false, want true")
	}
}

func TestBindFlags_Shorthand(t *testing.T) {
	type params struct {
		Message string `flag:"message,m" desc:"commit message"`
		Verbose bool   `flag:"verbose,v" desc:"verbose mode"`
	}

	var p params
	flagSet := pflag.NewFlagSet("test", pflag.ContinueOnError)
	if err := BindFlags(&p, flagSet); err != nil {
		t.Fatalf("BindFlags: %v", err)
	}

	if err := flagSet.Parse([]string{"-m", "tune pool sizes", "-v"}); err != nil {
		t.Fatalf("Parse: %v", err)
	}

	if p.Message != "tune pool sizes" {
		t.Errorf("Message = %q, want %q", p.Message, "tune pool sizes")
	}
	if !p.Verbose {
		t.Error("Verbose = false, want true")
	}
}

func TestBindFlags_ErrorNotPointer(t *testing.T) {
	type params struct {
		Name string `flag:"name"`
	}
	var p params
	err := BindFlags(p, pflag.NewFlagSet("test", pflag.ContinueOnError))
	if err == nil {
		t.Fatal("expected error for non-pointer, got nil")
	}
	if want := "params must be a pointer to a struct"; !strings.Contains(err.Error(), want) {
		t.Errorf("error = %q, want substring %q", err.Error(), want)
	}
}

func TestBindFlags_ErrorNotStruct(t *testing.T) {
	s := "not a struct"
	err := BindFlags(&s, pflag.NewFlagSet("test", pflag.ContinueOnError))
	if err == nil {
		t.Fatal("expected error for non-struct, got nil")
	}
}

func TestBindFlags_ErrorBadDefault(t *testing.T) {
	type params struct {
		Limit int `flag:"limit" default:"not_a_number"`
	}
	var p params
	err := BindFlags(&p, pflag.NewFlagSet("test", pflag.ContinueOnError))
	if err == nil {
		t.Fatal("expected error for bad default, got nil")
	}
}

func TestFlagsFromParams(t *testing.T) {
	type params struct {
		Message string `flag:"message" desc:"the message" default:"hello"`
	}

	var p params
	flagSet := FlagsFromParams("test", &p)

	if err := flagSet.Parse([]string{"--message", "alpha"}); err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if p.Message != "alpha" {
		t.Errorf("Message = %q, want %q", p.Message, "alpha")
	}
}

func TestFlagsFromParams_DefaultUsedWhenNotParsed(t *testing.T) {
	type params struct {
		Message string `flag:"message" desc:"the message" default:"hello"`
	}

	var p params
	flagSet := FlagsFromParams("test", &p)

	if err := flagSet.Parse(nil); err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if p.Message != "hello" {
		t.Errorf("Message = %q, want %q", p.Message, "hello")
	}
}

func TestFlagsFromParams_Panics(t *testing.T) {
	defer func() {
		if r := recover(); r == nil {
			t.Error("expected panic for nil input, got none")
		}
	}()
	FlagsFromParams("test", nil)
}

func TestBindFlags_FieldsWithoutTagSkipped(t *testing.T) {
	type params struct {
		Tagged   string `flag:"tagged" desc:"has tag"`
		NoTag    string
		JSONOnly string `json:"json_only"`
	}

	var p params
	flagSet := pflag.NewFlagSet("test", pflag.ContinueOnError)
	if err := BindFlags(&p, flagSet); err != nil {
		t.Fatalf("BindFlags: %v", err)
	}

	// Only --tagged should be registered.
	if flagSet.Lookup("tagged") == nil {
		t.Error("expected --tagged to be registered")
	}
	if flagSet.Lookup("no-tag") != nil {
		t.Error("expected no --no-tag flag")
	}
	if flagSet.Lookup("json_only") != nil {
		t.Error("expected no --json_only flag")
	}
}

func TestBindFlags_PositionalArgsRemain(t *testing.T) {
	type params struct {
		Format string `flag:"format" desc:"output format" default:"table"`
	}

	var p params
	flagSet := pflag.NewFlagSet("test", pflag.ContinueOnError)
	if err := BindFlags(&p, flagSet); err != nil {
		t.Fatalf("BindFlags: %v", err)
	}

	if err := flagSet.Parse([]string{"--format", "json", "conf/app.json"}); err != nil {
		t.Fatalf("Parse: %v", err)
	}

	remaining := flagSet.Args()
	if len(remaining) != 1 || remaining[0] != "conf/app.json" {
		t.Errorf("remaining args = %v, want [conf/app.json]", remaining)
	}
	if p.Format != "json" {
		t.Errorf("Format = %q, want %q", p.Format, "json")
	}
}
