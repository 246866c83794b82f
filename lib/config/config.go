// Copyright 2026 The Strata Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/user"
	"path/filepath"
	"regexp"
	"time"

	"github.com/google/renameio"
	"gopkg.in/yaml.v3"

	"github.com/strata-config/strata/lib/errkind"
	"github.com/strata-config/strata/lib/mergeval"
	"github.com/strata-config/strata/lib/objstore"
	"github.com/strata-config/strata/lib/sealed"
)

// Filename is the workspace-relative location of the tool config.
const Filename = ".strata/config.yaml"

// Config is the strata tool configuration.
type Config struct {
	// Author is recorded on every commit. Defaults to user@host.
	Author string `yaml:"author"`

	// Store configures the object store.
	Store StoreConfig `yaml:"store"`

	// Merge configures the structural merge.
	Merge MergeConfig `yaml:"merge"`

	// Sealed configures secret path encryption.
	Sealed SealedConfig `yaml:"sealed"`

	// Apply configures workspace materialization.
	Apply ApplyConfig `yaml:"apply"`
}

// StoreConfig configures the object store.
type StoreConfig struct {
	// Dir is where the store lives. Relative paths resolve against the
	// workspace root. Default: .strata/store.
	Dir string `yaml:"dir"`

	// Compression names the blob codec: none, lz4 or zstd.
	// Default: zstd.
	Compression string `yaml:"compression"`
}

// MergeConfig configures the structural merge.
type MergeConfig struct {
	// StrictPaths are glob patterns (path.Match plus ** across
	// directories) for paths where a scalar-over-scalar change between
	// layers is a conflict to review instead of last-writer-wins.
	// Default: empty, everything auto-merges.
	StrictPaths []string `yaml:"strict_paths"`
}

// SealedConfig configures secret path encryption.
type SealedConfig struct {
	// Recipients are age public keys content is sealed to. Empty
	// disables `strata stage --seal`.
	Recipients []string `yaml:"recipients"`

	// IdentityFile is the path of the age identity used to unseal.
	// Empty means sealed paths cannot be applied or shown on this
	// machine.
	IdentityFile string `yaml:"identity_file"`
}

// ApplyConfig configures workspace materialization.
type ApplyConfig struct {
	// Debounce is the quiet period for --watch, as a Go duration
	// string. Default: 500ms.
	Debounce string `yaml:"debounce"`
}

// Default returns the configuration used when no file exists. Every
// field carries a working value; the file only ever narrows or
// redirects behavior.
func Default() *Config {
	return &Config{
		Author: defaultAuthor(),
		Store: StoreConfig{
			Dir:         ".strata/store",
			Compression: "zstd",
		},
		Apply: ApplyConfig{
			Debounce: "500ms",
		},
	}
}

func defaultAuthor() string {
	name := "strata"
	if u, err := user.Current(); err == nil && u.Username != "" {
		name = u.Username
	}
	host, err := os.Hostname()
	if err != nil || host == "" {
		return name
	}
	return name + "@" + host
}

// Load reads the workspace configuration under root. A missing file is
// not an error: the defaults apply.
func Load(root string) (*Config, error) {
	cfg, err := LoadFile(filepath.Join(root, filepath.FromSlash(Filename)))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Default(), nil
		}
		return nil, err
	}
	return cfg, nil
}

// LoadFile reads configuration from an explicit path. The file merges
// over the defaults; fields it omits keep their default values.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, errkind.Parsef("parsing %s: %v", path, err)
	}
	cfg.expandVariables()
	return cfg, nil
}

// Save writes the configuration to path, creating parent directories.
// init uses it to materialize the defaults so there is a file to edit.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errkind.IOf("creating %s: %v", filepath.Dir(path), err)
	}
	if err := renameio.WriteFile(path, data, 0o644); err != nil {
		return errkind.IOf("writing %s: %v", path, err)
	}
	return nil
}

// expandVariables expands ${VAR} and ${VAR:-default} in path fields.
func (c *Config) expandVariables() {
	vars := map[string]string{
		"HOME": os.Getenv("HOME"),
	}
	c.Store.Dir = expandVars(c.Store.Dir, vars)
	c.Sealed.IdentityFile = expandVars(c.Sealed.IdentityFile, vars)
}

var varPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

func expandVars(s string, vars map[string]string) string {
	return varPattern.ReplaceAllStringFunc(s, func(match string) string {
		parts := varPattern.FindStringSubmatch(match)
		if len(parts) < 2 {
			return match
		}
		name := parts[1]
		defaultValue := ""
		if len(parts) >= 3 {
			defaultValue = parts[2]
		}
		if value, ok := vars[name]; ok && value != "" {
			return value
		}
		if value := os.Getenv(name); value != "" {
			return value
		}
		return defaultValue
	})
}

// Validate checks the configuration, collecting every problem rather
// than stopping at the first.
func (c *Config) Validate() error {
	var errs []error

	if c.Author == "" {
		errs = append(errs, errkind.Configf("author is required"))
	}
	if c.Store.Dir == "" {
		errs = append(errs, errkind.Configf("store.dir is required"))
	}
	if _, err := objstore.ParseCompression(c.Store.Compression); err != nil {
		errs = append(errs, err)
	}
	if _, err := mergeval.NewPolicy(c.Merge.StrictPaths); err != nil {
		errs = append(errs, errkind.Configf("merge.strict_paths: %v", err))
	}
	for _, recipient := range c.Sealed.Recipients {
		if err := sealed.ValidateRecipient(recipient); err != nil {
			errs = append(errs, errkind.Configf("sealed.recipients: %v", err))
		}
	}
	if c.Apply.Debounce != "" {
		if _, err := time.ParseDuration(c.Apply.Debounce); err != nil {
			errs = append(errs, errkind.Configf("apply.debounce: %v", err))
		}
	}

	return errors.Join(errs...)
}

// StoreDir resolves the store directory against the workspace root.
func (c *Config) StoreDir(root string) string {
	if filepath.IsAbs(c.Store.Dir) {
		return c.Store.Dir
	}
	return filepath.Join(root, filepath.FromSlash(c.Store.Dir))
}

// Compression returns the configured blob codec.
func (c *Config) Compression() (objstore.Compression, error) {
	return objstore.ParseCompression(c.Store.Compression)
}

// Policy returns the strict-path merge policy.
func (c *Config) Policy() (mergeval.Policy, error) {
	policy, err := mergeval.NewPolicy(c.Merge.StrictPaths)
	if err != nil {
		return mergeval.Policy{}, errkind.Configf("merge.strict_paths: %v", err)
	}
	return policy, nil
}

// Debounce returns the --watch quiet period.
func (c *Config) Debounce() (time.Duration, error) {
	if c.Apply.Debounce == "" {
		return 500 * time.Millisecond, nil
	}
	d, err := time.ParseDuration(c.Apply.Debounce)
	if err != nil {
		return 0, errkind.Configf("apply.debounce: %v", err)
	}
	return d, nil
}

// Sealer builds the age sealer from the configured recipients, or nil
// when sealing is not configured.
func (c *Config) Sealer() (*sealed.Sealer, error) {
	if len(c.Sealed.Recipients) == 0 {
		return nil, nil
	}
	return sealed.NewSealer(c.Sealed.Recipients)
}

// Unsealer loads the configured identity and builds the unsealer, or
// nil when no identity is configured.
func (c *Config) Unsealer() (*sealed.Unsealer, error) {
	if c.Sealed.IdentityFile == "" {
		return nil, nil
	}
	identity, err := sealed.LoadIdentity(c.Sealed.IdentityFile)
	if err != nil {
		return nil, err
	}
	// The unsealer keeps only the parsed key, so the locked buffer can
	// be released right away.
	unsealer, err := sealed.NewUnsealer(identity)
	identity.Close()
	return unsealer, err
}
