// Copyright 2026 The VaultFS Authors
// SPDX-License-Identifier: Apache-2.0

// Package secret holds sensitive byte strings in memory the garbage
// collector never touches: the vault master password on its way to
// the unlock subprocess, and the session token that subprocess
// returns.
//
// Buffer allocates outside the Go heap via mmap(MAP_ANONYMOUS), locks
// the pages into RAM with mlock so they cannot reach swap, and marks
// them MADV_DONTDUMP so they are excluded from core dumps. Close zeros,
// unlocks, and unmaps the region. Because the memory is invisible to
// the collector, it is never copied or relocated, so zeroing it on
// Close actually destroys the secret.
package secret
