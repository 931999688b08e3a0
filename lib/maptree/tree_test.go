// Copyright 2026 The VaultFS Authors
// SPDX-License-Identifier: Apache-2.0

package maptree

import (
	"fmt"
	"testing"
	"time"
)

var testTime = time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC)

func TestInodeNumbersAreUnique(t *testing.T) {
	tree := New()
	seen := map[uint64]bool{RootInode: true}

	parent := RootInode
	for i := 0; i < 50; i++ {
		var inode uint64
		if i%3 == 0 {
			inode = tree.AddDirectory(parent, fmt.Sprintf("dir%d", i), testTime, testTime)
			parent = inode
		} else {
			inode = tree.AddFile(parent, fmt.Sprintf("file%d", i), "content", testTime, testTime)
		}
		if seen[inode] {
			t.Fatalf("inode %d allocated twice", inode)
		}
		seen[inode] = true
	}
}

func TestFindReturnsMostRecentBinding(t *testing.T) {
	tree := New()
	first := tree.AddFile(RootInode, "name", "old", testTime, testTime)
	second := tree.AddFile(RootInode, "name", "new", testTime, testTime)

	if first == second {
		t.Fatal("rebinding must allocate a fresh inode")
	}
	inode, ok := tree.Find(RootInode, "name")
	if !ok {
		t.Fatal("Find failed after rebinding")
	}
	if inode != second {
		t.Errorf("Find returned %d, want the most recent binding %d", inode, second)
	}
	content, ok := tree.Content(inode)
	if !ok || content != "new" {
		t.Errorf("Content = %q, %v; want %q", content, ok, "new")
	}
}

func TestFindSanitizesLookupName(t *testing.T) {
	tree := New()
	inode := tree.AddFile(RootInode, `pass/word`, "x", testTime, testTime)
	found, ok := tree.Find(RootInode, "password")
	if !ok || found != inode {
		t.Errorf("Find(%q) = %d, %v; want %d", "password", found, ok, inode)
	}
}

func TestClearKeepsOnlyRoot(t *testing.T) {
	tree := New()
	dir := tree.AddDirectory(RootInode, "work", testTime, testTime)
	file := tree.AddFile(dir, "password", "hunter2", testTime, testTime)
	tree.OpenHandle(dir)
	generationBefore := tree.Generation()

	tree.Clear()

	if tree.Generation() <= generationBefore {
		t.Errorf("generation %d did not increase past %d", tree.Generation(), generationBefore)
	}
	if _, _, ok := tree.Stat(RootInode); !ok {
		t.Fatal("root inode missing after Clear")
	}
	for _, inode := range []uint64{dir, file} {
		if _, _, ok := tree.Stat(inode); ok {
			t.Errorf("inode %d survived Clear", inode)
		}
	}
	if children, ok := tree.Children(RootInode); !ok || len(children) != 0 {
		t.Errorf("root children after Clear = %v, want empty", children)
	}
	if tree.HasHandle(dir) {
		t.Error("handle survived Clear")
	}
	if _, ok := tree.Find(RootInode, "work"); ok {
		t.Error("name index survived Clear")
	}
}

func TestChildrenSortedByName(t *testing.T) {
	tree := New()
	tree.AddFile(RootInode, "zeta", "", testTime, testTime)
	tree.AddFile(RootInode, "alpha", "", testTime, testTime)
	tree.AddDirectory(RootInode, "mike", testTime, testTime)

	children, ok := tree.Children(RootInode)
	if !ok {
		t.Fatal("Children failed on root")
	}
	want := []string{"alpha", "mike", "zeta"}
	if len(children) != len(want) {
		t.Fatalf("got %d children, want %d", len(children), len(want))
	}
	for i, name := range want {
		if children[i].Name != name {
			t.Errorf("children[%d] = %q, want %q", i, children[i].Name, name)
		}
	}
	if !children[1].Dir {
		t.Error("directory child not reported as directory")
	}
	if children[0].Dir {
		t.Error("file child reported as directory")
	}
}

func TestChildrenOnFileFails(t *testing.T) {
	tree := New()
	file := tree.AddFile(RootInode, "f", "", testTime, testTime)
	if _, ok := tree.Children(file); ok {
		t.Error("Children on a file should fail")
	}
	if _, ok := tree.Children(999); ok {
		t.Error("Children on a missing inode should fail")
	}
}

func TestContentOnDirectoryFails(t *testing.T) {
	tree := New()
	dir := tree.AddDirectory(RootInode, "d", testTime, testTime)
	if _, ok := tree.Content(dir); ok {
		t.Error("Content on a directory should fail")
	}
}

func TestStatReportsSizeAndTimes(t *testing.T) {
	tree := New()
	mtime := testTime.Add(time.Hour)
	file := tree.AddFile(RootInode, "f", "hunter2", testTime, mtime)

	info, generation, ok := tree.Stat(file)
	if !ok {
		t.Fatal("Stat failed")
	}
	if info.Dir {
		t.Error("file reported as directory")
	}
	if info.Size != 7 {
		t.Errorf("Size = %d, want 7", info.Size)
	}
	if !info.Ctime.Equal(testTime) || !info.Mtime.Equal(mtime) {
		t.Errorf("times = %v/%v, want %v/%v", info.Ctime, info.Mtime, testTime, mtime)
	}
	if generation != tree.Generation() {
		t.Errorf("Stat generation %d != Generation() %d", generation, tree.Generation())
	}
}

func TestOpenHandleSharedPerInode(t *testing.T) {
	tree := New()
	file := tree.AddFile(RootInode, "f", "", testTime, testTime)

	first, ok := tree.OpenHandle(file)
	if !ok {
		t.Fatal("OpenHandle failed on existing inode")
	}
	second, _ := tree.OpenHandle(file)
	if first != second {
		t.Errorf("repeated opens produced %d then %d, want shared handle", first, second)
	}
	other, _ := tree.OpenHandle(RootInode)
	if other == first {
		t.Error("distinct inodes share a handle")
	}
	if _, ok := tree.OpenHandle(999); ok {
		t.Error("OpenHandle on a missing inode should fail")
	}
}

func TestRebuildIsAtomic(t *testing.T) {
	tree := New()
	tree.AddFile(RootInode, "old", "x", testTime, testTime)

	// A reader racing with Rebuild must see either the old listing or
	// the new one, never a mix. The generation read alongside each
	// listing pins which tree it came from.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 200; i++ {
			children, ok := tree.Children(RootInode)
			if !ok {
				t.Error("root listing failed")
				return
			}
			names := map[string]bool{}
			for _, child := range children {
				names[child.Name] = true
			}
			if names["old"] && names["new"] {
				t.Error("listing mixed two generations")
				return
			}
		}
	}()

	for i := 0; i < 50; i++ {
		tree.Rebuild(func(b *Builder) {
			b.AddFile(RootInode, "new", "y", testTime, testTime)
		})
	}
	<-done
}

func TestRebuildFindReusesIntermediates(t *testing.T) {
	tree := New()
	tree.Rebuild(func(b *Builder) {
		work := b.AddDirectory(RootInode, "Work", testTime, testTime)
		if found, ok := b.Find(RootInode, "Work"); !ok || found != work {
			t.Errorf("Builder.Find = %d, %v; want %d", found, ok, work)
		}
		b.AddDirectory(work, "Email", testTime, testTime)
	})
	work, ok := tree.Find(RootInode, "Work")
	if !ok {
		t.Fatal("Work missing after Rebuild")
	}
	if _, ok := tree.Find(work, "Email"); !ok {
		t.Fatal("Work/Email missing after Rebuild")
	}
}

func TestSanitizeName(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"plain", "plain"},
		{"with/slash", "withslash"},
		{`back\slash`, "backslash"},
		{"dots.every.where", "dotseverywhere"},
		{`q?u%o*t:e|d"<>`, "quoted"},
		{"///", "_"},
		{"", "_"},
		{"mixed ünïcode 名前", "mixed ünïcode 名前"},
	}
	for _, test := range tests {
		if got := SanitizeName(test.in); got != test.want {
			t.Errorf("SanitizeName(%q) = %q, want %q", test.in, got, test.want)
		}
	}
}

func TestOrphanedAddDoesNotIndex(t *testing.T) {
	tree := New()
	file := tree.AddFile(RootInode, "f", "", testTime, testTime)
	// Passing a file as parent is a caller bug; the entry must not
	// appear in any index but must not corrupt the tree either.
	orphan := tree.AddFile(file, "child", "", testTime, testTime)
	if _, ok := tree.Find(file, "child"); ok {
		t.Error("orphan reachable through name index")
	}
	if _, _, ok := tree.Stat(orphan); !ok {
		t.Error("orphan should still occupy an inode until Clear")
	}
}
