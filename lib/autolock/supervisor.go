// Copyright 2026 The VaultFS Authors
// SPDX-License-Identifier: Apache-2.0

package autolock

import (
	"context"
	"log/slog"
	"time"

	"github.com/vaultfs-project/vaultfs/lib/bwcli"
	"github.com/vaultfs-project/vaultfs/lib/clock"
	"github.com/vaultfs-project/vaultfs/lib/maptree"
)

// Vault is the subset of the vault client the supervisor drives.
type Vault interface {
	Status() (bwcli.Status, error)
	Lock() error
}

// Options configures a Supervisor.
type Options struct {
	Tree  *maptree.Tree
	Vault Vault

	// Idle is how long the vault may stay unlocked without activity.
	Idle time.Duration

	Clock  clock.Clock
	Logger *slog.Logger
}

// Supervisor locks the vault once it has been idle for too long.
type Supervisor struct {
	tree   *maptree.Tree
	vault  Vault
	idle   time.Duration
	clock  clock.Clock
	logger *slog.Logger
	notify chan struct{}
}

// New constructs a Supervisor from options.
func New(options Options) *Supervisor {
	logger := options.Logger
	if logger == nil {
		logger = slog.Default()
	}
	clk := options.Clock
	if clk == nil {
		clk = clock.Real()
	}
	return &Supervisor{
		tree:   options.Tree,
		vault:  options.Vault,
		idle:   options.Idle,
		clock:  clk,
		logger: logger,
		notify: make(chan struct{}, 1),
	}
}

// Notify records vault activity. Safe to call from any goroutine and
// never blocks.
func (s *Supervisor) Notify() {
	select {
	case s.notify <- struct{}{}:
	default:
	}
}

// Run watches for activity and locks the vault after the idle period.
// Returns when ctx is cancelled.
func (s *Supervisor) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-s.notify:
		}
		s.drain()

		if s.vaultLocked() {
			continue
		}
		s.logger.Debug("idle timer armed", "idle", s.idle)

	armed:
		for {
			select {
			case <-ctx.Done():
				return
			case <-s.notify:
				s.drain()
				s.logger.Debug("idle timer re-armed", "idle", s.idle)
			case <-s.clock.After(s.idle):
				break armed
			}
		}

		if s.vaultLocked() {
			continue
		}
		s.tree.Clear()
		if err := s.vault.Lock(); err != nil {
			s.logger.Error("auto-lock failed", "error", err)
			continue
		}
		s.logger.Info("vault auto-locked", "idle", s.idle)
	}
}

// drain consumes a backlog signal so it cannot immediately re-arm.
func (s *Supervisor) drain() {
	select {
	case <-s.notify:
	default:
	}
}

func (s *Supervisor) vaultLocked() bool {
	status, err := s.vault.Status()
	if err != nil {
		s.logger.Warn("status check failed", "error", err)
		return false
	}
	return status.Locked()
}
