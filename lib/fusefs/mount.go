// Copyright 2026 The VaultFS Authors
// SPDX-License-Identifier: Apache-2.0

package fusefs

import (
	"fmt"

	"github.com/hanwen/go-fuse/v2/fuse"
)

// MountOptions controls how the filesystem is attached.
type MountOptions struct {
	Mountpoint string

	// AllowOther lets users other than the mounting one access the
	// mount. Requires user_allow_other in /etc/fuse.conf.
	AllowOther bool
}

// Mount attaches the filesystem and returns the serving loop handle.
// The caller runs server.Serve and unmounts on shutdown.
func Mount(fs *Filesystem, options MountOptions) (*fuse.Server, error) {
	server, err := fuse.NewServer(fs, options.Mountpoint, &fuse.MountOptions{
		Name:       "vaultfs",
		FsName:     "vaultfs",
		AllowOther: options.AllowOther,
		Options:    []string{"ro"},
	})
	if err != nil {
		return nil, fmt.Errorf("mounting %s: %w", options.Mountpoint, err)
	}
	return server, nil
}
