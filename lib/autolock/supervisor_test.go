// Copyright 2026 The VaultFS Authors
// SPDX-License-Identifier: Apache-2.0

package autolock

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/vaultfs-project/vaultfs/lib/bwcli"
	"github.com/vaultfs-project/vaultfs/lib/clock"
	"github.com/vaultfs-project/vaultfs/lib/maptree"
	"github.com/vaultfs-project/vaultfs/lib/testutil"
)

type fakeVault struct {
	mu     sync.Mutex
	locked bool

	statusChecks chan struct{}
	lockCalls    chan struct{}
}

func newFakeVault() *fakeVault {
	return &fakeVault{
		statusChecks: make(chan struct{}, 16),
		lockCalls:    make(chan struct{}, 16),
	}
}

func (v *fakeVault) Status() (bwcli.Status, error) {
	v.mu.Lock()
	locked := v.locked
	v.mu.Unlock()
	v.statusChecks <- struct{}{}
	if locked {
		return bwcli.Status{Status: "locked"}, nil
	}
	return bwcli.Status{Status: "unlocked"}, nil
}

func (v *fakeVault) Lock() error {
	v.mu.Lock()
	v.locked = true
	v.mu.Unlock()
	v.lockCalls <- struct{}{}
	return nil
}

func (v *fakeVault) setLocked(locked bool) {
	v.mu.Lock()
	v.locked = locked
	v.mu.Unlock()
}

const idle = 5 * time.Minute

func startSupervisor(t *testing.T, vault *fakeVault) (*Supervisor, *maptree.Tree, *clock.FakeClock) {
	t.Helper()
	tree := maptree.New()
	now := time.Now()
	tree.AddFile(maptree.RootInode, "password", "secret", now, now)

	fake := clock.Fake(time.Date(2026, 2, 11, 12, 0, 0, 0, time.UTC))
	supervisor := New(Options{
		Tree:  tree,
		Vault: vault,
		Idle:  idle,
		Clock: fake,
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		supervisor.Run(ctx)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		testutil.RequireClosed(t, done, 5*time.Second, "supervisor did not stop")
	})
	return supervisor, tree, fake
}

func TestIdleExpiryLocksVault(t *testing.T) {
	vault := newFakeVault()
	supervisor, tree, fake := startSupervisor(t, vault)

	supervisor.Notify()
	testutil.RequireReceive(t, vault.statusChecks, 5*time.Second, "no status check on arm")
	fake.WaitForWaiters(1)
	fake.Advance(idle)

	testutil.RequireReceive(t, vault.statusChecks, 5*time.Second, "no status check at expiry")
	testutil.RequireReceive(t, vault.lockCalls, 5*time.Second, "vault was not locked")
	children, _ := tree.Children(maptree.RootInode)
	if len(children) != 0 {
		t.Errorf("tree still holds %d entries after auto-lock", len(children))
	}
}

func TestActivityReArmsTimer(t *testing.T) {
	vault := newFakeVault()
	supervisor, _, fake := startSupervisor(t, vault)

	supervisor.Notify()
	testutil.RequireReceive(t, vault.statusChecks, 5*time.Second, "no status check on arm")
	fake.WaitForWaiters(1)

	fake.Advance(idle - time.Minute)
	supervisor.Notify()
	fake.WaitForWaiters(2)

	// Past the original deadline but short of the re-armed one.
	fake.Advance(2 * time.Minute)
	select {
	case <-vault.lockCalls:
		t.Fatal("vault locked despite recent activity")
	case <-time.After(100 * time.Millisecond):
	}

	fake.Advance(idle)
	testutil.RequireReceive(t, vault.statusChecks, 5*time.Second, "no status check at expiry")
	testutil.RequireReceive(t, vault.lockCalls, 5*time.Second, "vault was not locked after re-armed expiry")
}

func TestLockedVaultSkipsTimer(t *testing.T) {
	vault := newFakeVault()
	vault.setLocked(true)
	supervisor, _, fake := startSupervisor(t, vault)

	supervisor.Notify()
	testutil.RequireReceive(t, vault.statusChecks, 5*time.Second, "no status check on signal")
	if fake.PendingWaiters() != 0 {
		t.Error("timer armed for an already locked vault")
	}

	// Unlocking and signalling again arms the timer normally.
	vault.setLocked(false)
	supervisor.Notify()
	testutil.RequireReceive(t, vault.statusChecks, 5*time.Second, "no status check on re-signal")
	fake.WaitForWaiters(1)
	fake.Advance(idle)
	testutil.RequireReceive(t, vault.lockCalls, 5*time.Second, "vault was not locked")
}

func TestExternalLockBeforeExpiry(t *testing.T) {
	vault := newFakeVault()
	supervisor, tree, fake := startSupervisor(t, vault)

	supervisor.Notify()
	testutil.RequireReceive(t, vault.statusChecks, 5*time.Second, "no status check on arm")
	fake.WaitForWaiters(1)

	vault.setLocked(true)
	fake.Advance(idle)
	testutil.RequireReceive(t, vault.statusChecks, 5*time.Second, "no status check at expiry")
	select {
	case <-vault.lockCalls:
		t.Fatal("locked an already locked vault")
	case <-time.After(100 * time.Millisecond):
	}
	children, _ := tree.Children(maptree.RootInode)
	if len(children) != 1 {
		t.Error("tree cleared even though the vault was locked externally")
	}
}

func TestNotifyNeverBlocks(t *testing.T) {
	supervisor := New(Options{
		Tree:  maptree.New(),
		Vault: newFakeVault(),
		Idle:  idle,
	})
	for i := 0; i < 100; i++ {
		supervisor.Notify()
	}
}
