// Copyright 2026 The VaultFS Authors
// SPDX-License-Identifier: Apache-2.0

// Package mirror rebuilds the in-memory filesystem tree from the
// contents of an unlocked vault.
//
// A Synchronizer fetches the folder and item lists, filters folders
// against an optional allow list, and materializes one directory per
// entry with files for the credential material: type, username,
// password, totp, uris, notes, custom fields, and the entry id. The
// rebuild replaces the whole tree in a single atomic step so readers
// never observe a half-populated hierarchy.
package mirror
