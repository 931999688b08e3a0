// Copyright 2026 The VaultFS Authors
// SPDX-License-Identifier: Apache-2.0

package fusefs

import (
	"log/slog"
	"syscall"
	"time"

	"github.com/hanwen/go-fuse/v2/fuse"

	"github.com/vaultfs-project/vaultfs/lib/maptree"
)

// Attribute and entry cache lifetime handed to the kernel. Short so a
// resync or lock becomes visible quickly.
const cacheTimeout = time.Second

// Options configures a Filesystem.
type Options struct {
	Tree *maptree.Tree

	// UID and GID own every node in the mount.
	UID uint32
	GID uint32

	// FileMode is the permission bits for files. Directories get the
	// same bits plus search permission wherever read is granted.
	FileMode uint32

	Logger *slog.Logger
}

// Filesystem serves a tree over the raw FUSE protocol.
type Filesystem struct {
	fuse.RawFileSystem

	tree     *maptree.Tree
	owner    fuse.Owner
	fileMode uint32
	dirMode  uint32
	logger   *slog.Logger
}

// New constructs a Filesystem. Operations that do not apply to a
// read-only tree fall through to the protocol's not-supported answer.
func New(options Options) *Filesystem {
	logger := options.Logger
	if logger == nil {
		logger = slog.Default()
	}
	fileMode := options.FileMode
	if fileMode == 0 {
		fileMode = 0o440
	}
	return &Filesystem{
		RawFileSystem: fuse.NewDefaultRawFileSystem(),
		tree:          options.Tree,
		owner:         fuse.Owner{Uid: options.UID, Gid: options.GID},
		fileMode:      fileMode & 0o777,
		dirMode:       dirPermissions(fileMode & 0o777),
		logger:        logger,
	}
}

// dirPermissions grants search on a directory wherever its file
// permission grants read.
func dirPermissions(fileMode uint32) uint32 {
	return fileMode | ((fileMode & 0o444) >> 2)
}

func (fs *Filesystem) String() string { return "vaultfs" }

func (fs *Filesystem) fillAttr(inode uint64, info maptree.Info, attr *fuse.Attr) {
	attr.Ino = inode
	attr.Owner = fs.owner
	if info.Dir {
		attr.Mode = syscall.S_IFDIR | fs.dirMode
		attr.Nlink = 2
	} else {
		attr.Mode = syscall.S_IFREG | fs.fileMode
		attr.Nlink = 1
		attr.Size = info.Size
		attr.Blocks = (info.Size + 511) / 512
	}
	attr.SetTimes(&info.Mtime, &info.Mtime, &info.Ctime)
	attr.Blksize = 4096
}

func (fs *Filesystem) Lookup(cancel <-chan struct{}, header *fuse.InHeader, name string, out *fuse.EntryOut) fuse.Status {
	child, ok := fs.tree.Find(header.NodeId, name)
	if !ok {
		return fuse.ENOENT
	}
	info, generation, ok := fs.tree.Stat(child)
	if !ok {
		return fuse.ENOENT
	}
	out.NodeId = child
	out.Generation = generation
	fs.fillAttr(child, info, &out.Attr)
	out.SetEntryTimeout(cacheTimeout)
	out.SetAttrTimeout(cacheTimeout)
	return fuse.OK
}

func (fs *Filesystem) GetAttr(cancel <-chan struct{}, input *fuse.GetAttrIn, out *fuse.AttrOut) fuse.Status {
	info, _, ok := fs.tree.Stat(input.NodeId)
	if !ok {
		return fuse.ENOENT
	}
	fs.fillAttr(input.NodeId, info, &out.Attr)
	out.SetTimeout(cacheTimeout)
	return fuse.OK
}

func (fs *Filesystem) Open(cancel <-chan struct{}, input *fuse.OpenIn, out *fuse.OpenOut) fuse.Status {
	if input.Flags&uint32(syscall.O_WRONLY|syscall.O_RDWR) != 0 {
		return fuse.EROFS
	}
	info, _, ok := fs.tree.Stat(input.NodeId)
	if !ok {
		return fuse.ENOENT
	}
	if info.Dir {
		return fuse.EISDIR
	}
	handle, ok := fs.tree.OpenHandle(input.NodeId)
	if !ok {
		return fuse.ENOENT
	}
	out.Fh = handle
	return fuse.OK
}

func (fs *Filesystem) Read(cancel <-chan struct{}, input *fuse.ReadIn, buf []byte) (fuse.ReadResult, fuse.Status) {
	content, ok := fs.tree.Content(input.NodeId)
	if !ok {
		return nil, fuse.ENOENT
	}
	offset := input.Offset
	if offset >= uint64(len(content)) {
		return fuse.ReadResultData(nil), fuse.OK
	}
	end := offset + uint64(input.Size)
	if end > uint64(len(content)) {
		end = uint64(len(content))
	}
	if end > offset+uint64(len(buf)) {
		end = offset + uint64(len(buf))
	}
	return fuse.ReadResultData([]byte(content[offset:end])), fuse.OK
}

func (fs *Filesystem) OpenDir(cancel <-chan struct{}, input *fuse.OpenIn, out *fuse.OpenOut) fuse.Status {
	info, _, ok := fs.tree.Stat(input.NodeId)
	if !ok {
		return fuse.ENOENT
	}
	if !info.Dir {
		return fuse.ENOTDIR
	}
	handle, ok := fs.tree.OpenHandle(input.NodeId)
	if !ok {
		return fuse.ENOENT
	}
	out.Fh = handle
	return fuse.OK
}

// ReadDir serves children starting at the entry index the kernel has
// already consumed. A directory whose handle table entry vanished in
// a rebuild reads as gone.
func (fs *Filesystem) ReadDir(cancel <-chan struct{}, input *fuse.ReadIn, out *fuse.DirEntryList) fuse.Status {
	if !fs.tree.HasHandle(input.NodeId) {
		return fuse.ENOENT
	}
	children, ok := fs.tree.Children(input.NodeId)
	if !ok {
		return fuse.ENOTDIR
	}
	if input.Offset > uint64(len(children)) {
		return fuse.OK
	}
	for _, child := range children[input.Offset:] {
		if !out.AddDirEntry(fs.dirEntry(child)) {
			break
		}
	}
	return fuse.OK
}

func (fs *Filesystem) ReadDirPlus(cancel <-chan struct{}, input *fuse.ReadIn, out *fuse.DirEntryList) fuse.Status {
	if !fs.tree.HasHandle(input.NodeId) {
		return fuse.ENOENT
	}
	children, ok := fs.tree.Children(input.NodeId)
	if !ok {
		return fuse.ENOTDIR
	}
	if input.Offset > uint64(len(children)) {
		return fuse.OK
	}
	for _, child := range children[input.Offset:] {
		details := out.AddDirLookupEntry(fs.dirEntry(child))
		if details == nil {
			break
		}
		info, generation, ok := fs.tree.Stat(child.Inode)
		if !ok {
			continue
		}
		details.NodeId = child.Inode
		details.Generation = generation
		fs.fillAttr(child.Inode, info, &details.Attr)
		details.SetEntryTimeout(cacheTimeout)
		details.SetAttrTimeout(cacheTimeout)
	}
	return fuse.OK
}

func (fs *Filesystem) dirEntry(child maptree.DirEntry) fuse.DirEntry {
	mode := uint32(syscall.S_IFREG)
	if child.Dir {
		mode = syscall.S_IFDIR
	}
	return fuse.DirEntry{Name: child.Name, Ino: child.Inode, Mode: mode}
}

func (fs *Filesystem) StatFs(cancel <-chan struct{}, input *fuse.InHeader, out *fuse.StatfsOut) fuse.Status {
	out.NameLen = 255
	out.Bsize = 4096
	return fuse.OK
}
