// Copyright 2026 The VaultFS Authors
// SPDX-License-Identifier: Apache-2.0

// Package testutil provides shared test helpers.
//
// [SocketDir] creates a temporary directory directly under /tmp for
// Unix domain sockets. Unix socket paths are limited to 108 bytes
// (sun_path in sockaddr_un), and t.TempDir() can sit under deeply
// nested build-system paths that blow past that limit.
//
// [RequireReceive] and [RequireClosed] wrap the select-with-timeout
// safety valve so individual tests do not hang forever when a channel
// never delivers.
package testutil
