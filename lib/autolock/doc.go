// Copyright 2026 The VaultFS Authors
// SPDX-License-Identifier: Apache-2.0

// Package autolock re-locks the vault after a period of inactivity.
//
// The supervisor sleeps until it is told the vault became active,
// then arms an idle timer. If the timer expires before the next
// activity signal, the mirrored tree is cleared and the vault locked.
// Signals while the timer runs re-arm it.
package autolock
