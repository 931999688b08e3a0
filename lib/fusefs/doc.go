// Copyright 2026 The VaultFS Authors
// SPDX-License-Identifier: Apache-2.0

// Package fusefs exposes a maptree.Tree as a read-only FUSE
// filesystem.
//
// The adapter implements the raw go-fuse interface directly: inode
// numbers in the tree are kernel node ids, so lookups and attribute
// reads are map hits with no path resolution. Every mutating
// operation inherits the default not-supported answer; opening a file
// for writing is refused outright.
package fusefs
