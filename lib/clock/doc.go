// Copyright 2026 The VaultFS Authors
// SPDX-License-Identifier: Apache-2.0

// Package clock abstracts time for timer-driven code. Production code
// injects Real(); tests inject Fake() and drive it with Advance, so
// idle-expiry behavior is deterministic and fast.
//
// Every production function that would call time.Now, time.After, or
// time.Sleep should accept a Clock (or be a method on a struct with a
// Clock field) instead of reaching for the time package directly.
package clock
