// Copyright 2026 The Strata Authors
// SPDX-License-Identifier: Apache-2.0

// Package cli provides the command-line framework for the strata CLI.
//
// The central type is [Command], which represents a named subcommand with
// optional nested [Command.Subcommands], a [pflag.FlagSet] factory, and a
// Run function. Commands are assembled into a tree in cmd/strata/commands
// and dispatched via [Command.Execute], which handles flag parsing,
// subcommand routing, and structured help output with examples.
//
// Most commands declare their flags as a tagged struct and bind it with
// [FlagsFromParams]; see [BindFlags] for the tag grammar. Embedding
// [JSONOutput] in a params struct adds the --json flag and the EmitJSON
// method for machine-readable output.
//
// When a user types an unknown subcommand or flag, the framework computes
// Levenshtein edit distance against all known names and suggests the
// closest match (threshold: distance <= 3). This is implemented in
// suggest.go.
package cli
