// Copyright 2026 The VaultFS Authors
// SPDX-License-Identifier: Apache-2.0

package mirror

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/vaultfs-project/vaultfs/lib/bwcli"
	"github.com/vaultfs-project/vaultfs/lib/maptree"
)

// Vault is the subset of the vault client the synchronizer needs.
type Vault interface {
	Status() (bwcli.Status, error)
	ListFolders() ([]bwcli.Folder, error)
	ListItems() ([]bwcli.Item, error)
}

// Options configures a Synchronizer.
type Options struct {
	Tree  *maptree.Tree
	Vault Vault

	// Folders restricts the mirror to folders whose name matches one
	// of these prefixes. Empty means every folder.
	Folders []string

	Logger *slog.Logger
}

// Synchronizer mirrors vault contents into a filesystem tree.
type Synchronizer struct {
	tree   *maptree.Tree
	vault  Vault
	allow  []string
	logger *slog.Logger
}

// New constructs a Synchronizer from options.
func New(options Options) *Synchronizer {
	logger := options.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Synchronizer{
		tree:   options.Tree,
		vault:  options.Vault,
		allow:  options.Folders,
		logger: logger,
	}
}

// Sync fetches folders and items from the vault and atomically
// replaces the tree contents. The tree is left untouched when the
// vault is locked or any fetch fails.
func (s *Synchronizer) Sync() error {
	status, err := s.vault.Status()
	if err != nil {
		return fmt.Errorf("checking vault status: %w", err)
	}
	if status.Locked() {
		return fmt.Errorf("vault is locked")
	}

	folders, err := s.vault.ListFolders()
	if err != nil {
		return fmt.Errorf("listing folders: %w", err)
	}
	folders = s.filterFolders(folders)

	items, err := s.vault.ListItems()
	if err != nil {
		return fmt.Errorf("listing items: %w", err)
	}

	var entries, skipped int
	s.tree.Rebuild(func(b *maptree.Builder) {
		folderInodes := s.buildFolders(b, folders)
		var unfiled uint64
		for i := range items {
			item := &items[i]
			if item.DeletedDate != nil {
				continue
			}
			parent, ok := s.itemParent(folderInodes, item)
			if !ok {
				if len(s.allow) > 0 {
					skipped++
					continue
				}
				if unfiled == 0 {
					now := time.Now()
					unfiled = b.AddDirectory(maptree.RootInode, "unfiled", now, now)
				}
				parent = unfiled
			}
			buildItem(b, parent, item)
			entries++
		}
	})

	s.logger.Info("vault mirrored",
		"folders", len(folders),
		"entries", entries,
		"skipped", skipped)
	return nil
}

// filterFolders drops folders outside the allow list. An empty allow
// list admits everything.
func (s *Synchronizer) filterFolders(folders []bwcli.Folder) []bwcli.Folder {
	if len(s.allow) == 0 {
		return folders
	}
	kept := make([]bwcli.Folder, 0, len(folders))
	for _, folder := range folders {
		for _, prefix := range s.allow {
			if folder.Name == prefix || strings.HasPrefix(folder.Name, prefix+"/") {
				kept = append(kept, folder)
				break
			}
		}
	}
	return kept
}

// buildFolders creates the directory hierarchy for the folder list.
// Folder names split on "/" into nested directories, with shared
// prefixes reusing the same directory. Returns folder id to inode.
func (s *Synchronizer) buildFolders(b *maptree.Builder, folders []bwcli.Folder) map[string]uint64 {
	now := time.Now()
	inodes := make(map[string]uint64, len(folders))
	for _, folder := range folders {
		if folder.ID == nil {
			// The vault reports unfiled entries as a pseudo-folder
			// with a null id; those entries are routed separately.
			continue
		}
		parent := maptree.RootInode
		for _, segment := range strings.Split(folder.Name, "/") {
			if segment == "" {
				continue
			}
			if existing, ok := b.Find(parent, segment); ok {
				parent = existing
			} else {
				parent = b.AddDirectory(parent, segment, now, now)
			}
		}
		inodes[*folder.ID] = parent
	}
	return inodes
}

// itemParent resolves the directory an item lands in. A false return
// means the item has no known folder and the caller decides whether
// it goes under "unfiled" or gets skipped.
func (s *Synchronizer) itemParent(folderInodes map[string]uint64, item *bwcli.Item) (uint64, bool) {
	if item.FolderID != nil {
		if inode, ok := folderInodes[*item.FolderID]; ok {
			return inode, true
		}
	}
	return 0, false
}

// buildItem materializes one vault entry as a directory of files.
func buildItem(b *maptree.Builder, parent uint64, item *bwcli.Item) {
	name := uniqueName(b, parent, item.Name)
	dir := b.AddDirectory(parent, name, item.CreationDate, item.RevisionDate)

	addFile := func(fileName, content string) {
		b.AddFile(dir, fileName, content, item.CreationDate, item.RevisionDate)
	}

	addFile("type", item.Type.String())
	if login := item.Login; login != nil {
		if login.Username != nil && *login.Username != "" {
			addFile("username", *login.Username)
		}
		if login.Password != nil && *login.Password != "" {
			addFile("password", *login.Password)
		}
		if login.TOTP != nil && *login.TOTP != "" {
			addFile("totp", *login.TOTP)
		}
		if len(login.URIs) > 0 {
			uris := b.AddDirectory(dir, "uris", item.CreationDate, item.RevisionDate)
			for i, uri := range login.URIs {
				b.AddFile(uris, fmt.Sprintf("%02d", i+1), uri.URI,
					item.CreationDate, item.RevisionDate)
			}
		}
	}
	if item.Notes != nil && *item.Notes != "" {
		addFile("notes", *item.Notes)
	}
	if len(item.Fields) > 0 {
		fields := b.AddDirectory(dir, "fields", item.CreationDate, item.RevisionDate)
		for _, field := range item.Fields {
			fieldName := uniqueName(b, fields, field.Name)
			b.AddFile(fields, fieldName, field.Value,
				item.CreationDate, item.RevisionDate)
		}
	}
	if item.ID != "" {
		addFile("id", item.ID)
	}
}

// uniqueName returns name, or name with a numeric suffix when the
// sanitized form already exists under parent.
func uniqueName(b *maptree.Builder, parent uint64, name string) string {
	if _, taken := b.Find(parent, name); !taken {
		return name
	}
	for i := 2; ; i++ {
		candidate := fmt.Sprintf("%s (%d)", name, i)
		if _, taken := b.Find(parent, candidate); !taken {
			return candidate
		}
	}
}
