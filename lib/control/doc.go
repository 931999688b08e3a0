// Copyright 2026 The VaultFS Authors
// SPDX-License-Identifier: Apache-2.0

// Package control implements the daemon's local control protocol.
//
// Clients connect over a unix domain socket and send a single
// newline-terminated JSON request per connection; the daemon answers
// with a single JSON response and closes. Four actions exist: unlock,
// lock, status, and refresh. Connections are handled one at a time so
// vault operations never interleave.
package control
