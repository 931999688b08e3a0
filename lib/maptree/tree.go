// Copyright 2026 The VaultFS Authors
// SPDX-License-Identifier: Apache-2.0

package maptree

import (
	"sort"
	"strings"
	"sync"
	"time"
)

// RootInode is the fixed inode number of the filesystem root. It
// exists in every generation; Clear replaces its children but never
// removes it.
const RootInode uint64 = 1

// Info is a read-only snapshot of one entry's metadata.
type Info struct {
	// Dir reports whether the entry is a directory.
	Dir bool

	// Size is the payload byte length for files, zero for directories.
	Size uint64

	Ctime time.Time
	Mtime time.Time
}

// DirEntry is one child in a directory listing.
type DirEntry struct {
	Name  string
	Inode uint64
	Dir   bool
}

type entry struct {
	dir      bool
	children map[string]uint64 // directories only
	content  string            // files only
	ctime    time.Time
	mtime    time.Time
}

type nameKey struct {
	parent uint64
	name   string
}

// Tree is the inode table. All methods are safe for concurrent use.
type Tree struct {
	mu         sync.Mutex
	inodes     map[uint64]*entry
	names      map[nameKey]uint64 // (parent, child name) → child inode
	handles    map[uint64]uint64  // inode → open handle
	nextInode  uint64
	nextHandle uint64
	generation uint64
}

// New returns a tree containing only the root directory, at
// generation 1.
func New() *Tree {
	now := time.Now()
	tree := &Tree{
		inodes:     make(map[uint64]*entry),
		names:      make(map[nameKey]uint64),
		handles:    make(map[uint64]uint64),
		nextInode:  RootInode + 1,
		generation: 1,
	}
	tree.inodes[RootInode] = &entry{
		dir:      true,
		children: make(map[string]uint64),
		ctime:    now,
		mtime:    now,
	}
	return tree
}

// AddDirectory inserts an empty directory under parent and returns its
// inode. The name is sanitized first. If the sanitized name is already
// bound in parent, the new inode replaces the binding and the old
// child becomes unreachable until the next Clear. Callers must pass a
// parent that is a real directory inode; anything else leaves the new
// entry orphaned from the name index.
func (t *Tree) AddDirectory(parent uint64, name string, ctime, mtime time.Time) uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.addLocked(parent, name, &entry{
		dir:      true,
		children: make(map[string]uint64),
		ctime:    ctime,
		mtime:    mtime,
	})
}

// AddFile inserts a file with the given payload under parent and
// returns its inode. Binding semantics match AddDirectory.
func (t *Tree) AddFile(parent uint64, name, content string, ctime, mtime time.Time) uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.addLocked(parent, name, &entry{
		content: content,
		ctime:   ctime,
		mtime:   mtime,
	})
}

func (t *Tree) addLocked(parent uint64, name string, e *entry) uint64 {
	name = SanitizeName(name)
	inode := t.nextInode
	t.nextInode++
	if parentEntry, ok := t.inodes[parent]; ok && parentEntry.dir {
		parentEntry.children[name] = inode
		t.names[nameKey{parent, name}] = inode
	}
	t.inodes[inode] = e
	return inode
}

// Find resolves a sanitized child name under parent.
func (t *Tree) Find(parent uint64, name string) (uint64, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.findLocked(parent, name)
}

func (t *Tree) findLocked(parent uint64, name string) (uint64, bool) {
	inode, ok := t.names[nameKey{parent, SanitizeName(name)}]
	return inode, ok
}

// Stat returns the entry's metadata together with the generation the
// snapshot was taken in. The generation lets the FUSE layer tell a
// recycled inode number from a live one.
func (t *Tree) Stat(inode uint64) (Info, uint64, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	e, ok := t.inodes[inode]
	if !ok {
		return Info{}, t.generation, false
	}
	return t.infoLocked(e), t.generation, true
}

func (t *Tree) infoLocked(e *entry) Info {
	info := Info{Dir: e.dir, Ctime: e.ctime, Mtime: e.mtime}
	if !e.dir {
		info.Size = uint64(len(e.content))
	}
	return info
}

// Children returns the directory's children sorted by name. The
// second return is false when inode does not exist or is not a
// directory.
func (t *Tree) Children(inode uint64) ([]DirEntry, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	e, ok := t.inodes[inode]
	if !ok || !e.dir {
		return nil, false
	}
	entries := make([]DirEntry, 0, len(e.children))
	for name, childInode := range e.children {
		child, ok := t.inodes[childInode]
		if !ok {
			continue
		}
		entries = append(entries, DirEntry{Name: name, Inode: childInode, Dir: child.dir})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })
	return entries, true
}

// Content returns a file's payload. The second return is false for
// directories and missing inodes.
func (t *Tree) Content(inode uint64) (string, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	e, ok := t.inodes[inode]
	if !ok || e.dir {
		return "", false
	}
	return e.content, true
}

// Generation returns the current rebuild generation.
func (t *Tree) Generation() uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.generation
}

// OpenHandle registers an open handle for the inode and returns it.
// Repeated opens of the same inode share a handle; handle identity
// carries no meaning beyond satisfying the kernel's open/release
// contract. Returns false when the inode does not exist.
func (t *Tree) OpenHandle(inode uint64) (uint64, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.inodes[inode]; !ok {
		return 0, false
	}
	if handle, ok := t.handles[inode]; ok {
		return handle, true
	}
	t.nextHandle++
	t.handles[inode] = t.nextHandle
	return t.nextHandle, true
}

// HasHandle reports whether the inode has been opened this generation.
func (t *Tree) HasHandle(inode uint64) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.handles[inode]
	return ok
}

// Clear discards every inode except the root, empties the root's
// child map and the name and handle indices, and bumps the
// generation. Inode numbers restart above the root, so the generation
// is the only way to tell pre-clear and post-clear trees apart.
func (t *Tree) Clear() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.clearLocked()
}

func (t *Tree) clearLocked() {
	root := t.inodes[RootInode]
	t.inodes = map[uint64]*entry{RootInode: root}
	root.children = make(map[string]uint64)
	t.names = make(map[nameKey]uint64)
	t.handles = make(map[uint64]uint64)
	t.nextInode = RootInode + 1
	t.nextHandle = 0
	t.generation++
}

// Rebuild clears the tree and repopulates it through the Builder,
// holding the tree lock for the whole cycle. Concurrent readers block
// until the rebuild finishes, so no FUSE request can observe a
// half-built tree.
func (t *Tree) Rebuild(build func(b *Builder)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.clearLocked()
	build(&Builder{tree: t})
}

// Builder mutates the tree inside a Rebuild without re-acquiring the
// lock. It must not be retained after the Rebuild callback returns.
type Builder struct {
	tree *Tree
}

// AddDirectory is AddDirectory on the rebuilding tree.
func (b *Builder) AddDirectory(parent uint64, name string, ctime, mtime time.Time) uint64 {
	return b.tree.addLocked(parent, name, &entry{
		dir:      true,
		children: make(map[string]uint64),
		ctime:    ctime,
		mtime:    mtime,
	})
}

// AddFile is AddFile on the rebuilding tree.
func (b *Builder) AddFile(parent uint64, name, content string, ctime, mtime time.Time) uint64 {
	return b.tree.addLocked(parent, name, &entry{
		content: content,
		ctime:   ctime,
		mtime:   mtime,
	})
}

// Find is Find on the rebuilding tree.
func (b *Builder) Find(parent uint64, name string) (uint64, bool) {
	return b.tree.findLocked(parent, name)
}

// prohibitedNameChars are stripped from child names before insertion.
// The set matches what mainstream filesystems reject, plus "." to
// rule out traversal artifacts; stripping them means no vault entry
// name can escape its directory or collide with path syntax.
const prohibitedNameChars = `/\?%*:|"<>.`

// SanitizeName strips filesystem-hostile characters from a vault name.
// A name that is empty after stripping becomes "_".
func SanitizeName(name string) string {
	cleaned := strings.Map(func(r rune) rune {
		if strings.ContainsRune(prohibitedNameChars, r) || r == 0 {
			return -1
		}
		return r
	}, name)
	if cleaned == "" {
		return "_"
	}
	return cleaned
}
