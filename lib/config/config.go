// Copyright 2026 The VaultFS Authors
// SPDX-License-Identifier: Apache-2.0

// Package config provides configuration loading for the vaultfs
// daemon.
//
// Configuration is loaded from a single YAML file specified by the
// VAULTFS_CONFIG environment variable or the --config flag. There are
// no fallbacks or automatic discovery; command-line flags override
// individual values after the file is loaded.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the daemon configuration.
type Config struct {
	// Socket is the unix socket path for the control protocol.
	Socket string `yaml:"socket"`

	// Mountpoint is the directory the filesystem is attached to.
	Mountpoint string `yaml:"mountpoint"`

	// BWBinary is the Bitwarden CLI executable.
	// Default: bw (found in PATH)
	BWBinary string `yaml:"bw_binary"`

	// Folders restricts the mirror to folders matching these name
	// prefixes. Empty means every folder.
	Folders []string `yaml:"folders"`

	// User and Group own every node in the mount. Empty means the
	// daemon's own identity.
	User  string `yaml:"user"`
	Group string `yaml:"group"`

	// Mode is the octal permission string for files, for example
	// "440". Directories additionally get search permission wherever
	// read is granted.
	Mode string `yaml:"mode"`

	// AutoLock is how long the vault may stay unlocked without
	// activity, for example "15m". Zero disables auto-locking.
	AutoLock string `yaml:"auto_lock"`

	// AllowOther lets users other than the mounting one access the
	// mount. Requires user_allow_other in /etc/fuse.conf.
	AllowOther bool `yaml:"allow_other"`
}

// Default returns the default configuration. These defaults are the
// base before the config file and flags are applied.
func Default() *Config {
	runtimeDir := os.Getenv("XDG_RUNTIME_DIR")
	if runtimeDir == "" {
		runtimeDir = "/tmp"
	}
	return &Config{
		Socket:   filepath.Join(runtimeDir, "vaultfs.sock"),
		BWBinary: "bw",
		Mode:     "440",
		AutoLock: "15m",
	}
}

// Load loads configuration from the VAULTFS_CONFIG environment
// variable. Fails when the variable is not set.
func Load() (*Config, error) {
	configPath := os.Getenv("VAULTFS_CONFIG")
	if configPath == "" {
		return nil, fmt.Errorf("VAULTFS_CONFIG environment variable not set; " +
			"set it to the path of your vaultfs.yaml config file, or use --config flag")
	}
	return LoadFile(configPath)
}

// LoadFile loads configuration from a specific file path. The only
// expansion performed is ${VAR} and ${VAR:-default} in path values.
func LoadFile(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}

	cfg.Socket = expandVars(cfg.Socket)
	cfg.Mountpoint = expandVars(cfg.Mountpoint)
	cfg.BWBinary = expandVars(cfg.BWBinary)

	return cfg, nil
}

var varPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

// expandVars expands ${VAR} and ${VAR:-default} patterns from the
// environment.
func expandVars(s string) string {
	return varPattern.ReplaceAllStringFunc(s, func(match string) string {
		parts := varPattern.FindStringSubmatch(match)
		if len(parts) < 2 {
			return match
		}
		if value := os.Getenv(parts[1]); value != "" {
			return value
		}
		if len(parts) >= 3 {
			return parts[2]
		}
		return ""
	})
}

// FileMode parses the Mode field as octal permission bits.
func (c *Config) FileMode() (uint32, error) {
	mode, err := strconv.ParseUint(c.Mode, 8, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid mode %q: %w", c.Mode, err)
	}
	if mode > 0o777 {
		return 0, fmt.Errorf("invalid mode %q: permission bits only", c.Mode)
	}
	return uint32(mode), nil
}

// AutoLockDuration parses the AutoLock field. Empty means disabled.
func (c *Config) AutoLockDuration() (time.Duration, error) {
	if c.AutoLock == "" || c.AutoLock == "0" {
		return 0, nil
	}
	idle, err := time.ParseDuration(c.AutoLock)
	if err != nil {
		return 0, fmt.Errorf("invalid auto_lock %q: %w", c.AutoLock, err)
	}
	if idle < 0 {
		return 0, fmt.Errorf("invalid auto_lock %q: must not be negative", c.AutoLock)
	}
	return idle, nil
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs []error

	if c.Socket == "" {
		errs = append(errs, fmt.Errorf("socket is required"))
	}
	if c.Mountpoint == "" {
		errs = append(errs, fmt.Errorf("mountpoint is required"))
	}
	if c.BWBinary == "" {
		errs = append(errs, fmt.Errorf("bw_binary is required"))
	}
	if _, err := c.FileMode(); err != nil {
		errs = append(errs, err)
	}
	if _, err := c.AutoLockDuration(); err != nil {
		errs = append(errs, err)
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}
