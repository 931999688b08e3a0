// Copyright 2026 The VaultFS Authors
// SPDX-License-Identifier: Apache-2.0

// Package bwcli drives the Bitwarden CLI ("bw") as a subprocess. It is
// the only component that talks to the vault; everything else sees the
// narrow session interface of Status / Unlock / Lock plus the folder
// and item listings.
//
// The session token returned by "bw unlock --raw" is held in an
// mlock'd secret buffer and exported as BW_SESSION to later
// invocations. The master password is passed through an environment
// variable ("bw unlock --passwordenv"), never through argv, so it does
// not show up in the process table.
//
// A single mutex serializes all subprocess calls: the vault session is
// one piece of shared state, and bw itself offers no concurrency
// guarantees across invocations.
package bwcli
