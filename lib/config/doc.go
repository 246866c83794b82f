// Copyright 2026 The Strata Authors
// SPDX-License-Identifier: Apache-2.0

// Package config provides YAML configuration loading for the strata
// tool.
//
// Configuration lives at .strata/config.yaml inside the workspace,
// loaded via [Load] (workspace root) or [LoadFile] (explicit path).
// A missing file is not an error: [Default] values apply, so a fresh
// workspace needs no configuration at all. There is no ~/.config
// discovery and no automatic file search; workspace configuration
// describes the workspace, and lives with it.
//
// Environment variables never override configuration values. The only
// expansion performed is ${VAR} and ${VAR:-default} in path fields
// (store.dir, sealed.identity_file), for portability across machines.
//
// Key exports:
//
//   - [Config] -- Author plus Store, Merge, Sealed and Apply sections
//   - [Default] -- the zero-configuration working values
//   - [Load] and [LoadFile] -- the two entry points for loading
//   - [Config.Policy], [Config.Compression], [Config.Sealer],
//     [Config.Unsealer] -- constructors for the subsystems the file
//     configures
package config
