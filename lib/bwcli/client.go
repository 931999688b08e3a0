// Copyright 2026 The VaultFS Authors
// SPDX-License-Identifier: Apache-2.0

package bwcli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"sync"

	"github.com/vaultfs-project/vaultfs/lib/secret"
)

// passwordEnv carries the master password into "bw unlock". Using
// --passwordenv keeps the password out of argv and the process table.
const passwordEnv = "VAULTFS_PASSWORD"

// Client wraps the Bitwarden CLI binary. All methods serialize on an
// internal mutex; a hung bw invocation blocks the caller, which is
// acceptable because vault calls are infrequent and interactive.
type Client struct {
	mu      sync.Mutex
	binary  string
	logger  *slog.Logger
	session *secret.Buffer // nil while locked
}

// New returns a client for the bw binary at the given path (a bare
// "bw" resolves through PATH). If logger is nil, a stderr logger at
// error level is used.
func New(binary string, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelError,
		}))
	}
	return &Client{binary: binary, logger: logger}
}

// Status runs "bw status" and decodes the result.
func (c *Client) Status() (Status, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	stdout, err := c.runLocked("status")
	if err != nil {
		return Status{}, err
	}
	var status Status
	if err := json.Unmarshal(stdout, &status); err != nil {
		return Status{}, fmt.Errorf("decoding bw status output: %w", err)
	}
	return status, nil
}

// Unlock runs "bw unlock --raw" with the password in the environment
// and captures the session token. A wrong password surfaces as an
// error carrying the subprocess's stderr; the previous session, if
// any, is kept in that case.
func (c *Client) Unlock(password string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	cmd := exec.Command(c.binary, "unlock", "--raw", "--passwordenv", passwordEnv)
	cmd.Env = append(os.Environ(), passwordEnv+"="+password)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	c.logger.Info("unlocking vault", "binary", c.binary)
	if err := cmd.Run(); err != nil {
		return commandError("unlock", err, stderr.Bytes())
	}

	token := bytes.TrimSpace(stdout.Bytes())
	if len(token) == 0 {
		return fmt.Errorf("bw unlock returned an empty session token")
	}
	buffer, err := secret.NewFromBytes(token)
	if err != nil {
		return fmt.Errorf("protecting session token: %w", err)
	}

	if c.session != nil {
		c.session.Close()
	}
	c.session = buffer
	c.logger.Debug("session token captured", "bytes", buffer.Len())
	return nil
}

// Lock runs "bw lock" and drops the in-memory session token. The
// token is dropped even when the subprocess fails: a half-locked
// vault with a live token is worse than a spurious error.
func (c *Client) Lock() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	_, err := c.runLocked("lock")
	if c.session != nil {
		c.session.Close()
		c.session = nil
	}
	return err
}

// ListFolders runs "bw list folders".
func (c *Client) ListFolders() ([]Folder, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	stdout, err := c.runLocked("list", "folders")
	if err != nil {
		return nil, err
	}
	var folders []Folder
	if err := json.Unmarshal(stdout, &folders); err != nil {
		return nil, fmt.Errorf("decoding bw folder list: %w", err)
	}
	return folders, nil
}

// ListItems runs "bw list items".
func (c *Client) ListItems() ([]Item, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	stdout, err := c.runLocked("list", "items")
	if err != nil {
		return nil, err
	}
	var items []Item
	if err := json.Unmarshal(stdout, &items); err != nil {
		return nil, fmt.Errorf("decoding bw item list: %w", err)
	}
	return items, nil
}

// runLocked executes one bw invocation with the session token (when
// unlocked) in the environment. Caller holds c.mu.
func (c *Client) runLocked(args ...string) ([]byte, error) {
	cmd := exec.Command(c.binary, args...)
	cmd.Env = os.Environ()
	if c.session != nil {
		cmd.Env = append(cmd.Env, "BW_SESSION="+c.session.String())
	}
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	c.logger.Debug("running vault CLI", "args", args)
	if err := cmd.Run(); err != nil {
		return nil, commandError(args[0], err, stderr.Bytes())
	}
	return stdout.Bytes(), nil
}

// commandError folds a subprocess failure and its stderr into one
// error. bw writes its useful diagnostics ("Invalid master password.")
// to stderr, so that text is the part worth surfacing.
func commandError(operation string, err error, stderr []byte) error {
	message := strings.TrimSpace(string(stderr))
	if message == "" {
		return fmt.Errorf("bw %s: %w", operation, err)
	}
	return fmt.Errorf("bw %s: %w: %s", operation, err, message)
}
