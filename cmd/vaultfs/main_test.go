// Copyright 2026 The VaultFS Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"os"
	"path/filepath"
	"testing"
)

func TestRootCommandTree(t *testing.T) {
	root := rootCommand()
	want := map[string]bool{
		"status":  false,
		"unlock":  false,
		"lock":    false,
		"refresh": false,
		"version": false,
	}
	for _, sub := range root.Subcommands {
		if _, ok := want[sub.Name]; !ok {
			t.Errorf("unexpected subcommand %q", sub.Name)
			continue
		}
		want[sub.Name] = true
		if sub.Summary == "" {
			t.Errorf("subcommand %q has no summary", sub.Name)
		}
	}
	for name, seen := range want {
		if !seen {
			t.Errorf("subcommand %q missing", name)
		}
	}
}

func TestReadPasswordFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "password")
	if err := os.WriteFile(path, []byte("correct horse\n"), 0o600); err != nil {
		t.Fatalf("writing password file: %v", err)
	}

	password, err := readPassword(path)
	if err != nil {
		t.Fatalf("readPassword: %v", err)
	}
	defer password.Close()
	if got := password.String(); got != "correct horse" {
		t.Errorf("password = %q", got)
	}
}

func TestReadPasswordMissingFile(t *testing.T) {
	if _, err := readPassword(filepath.Join(t.TempDir(), "absent")); err == nil {
		t.Fatal("readPassword should fail for a missing file")
	}
}
