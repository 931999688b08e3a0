// Copyright 2026 The VaultFS Authors
// SPDX-License-Identifier: Apache-2.0

// Package maptree is the in-memory inode table behind the VaultFS
// mount. Vault folders and entries are materialized as directories and
// small immutable files, addressed by uint64 inode numbers with the
// root fixed at inode 1.
//
// The tree is the single piece of state shared between the FUSE
// request loop, the control socket server, and the auto-lock
// supervisor. Every exported method takes the tree's internal mutex,
// and Rebuild holds it for an entire clear-and-repopulate cycle, so
// readers see either the old tree or the new one in full, never a
// mix of generations.
package maptree
