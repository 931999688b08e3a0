// Copyright 2026 The VaultFS Authors
// SPDX-License-Identifier: Apache-2.0

package control

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"time"

	"github.com/vaultfs-project/vaultfs/lib/bwcli"
	"github.com/vaultfs-project/vaultfs/lib/maptree"
)

// Requests longer than this are treated as malformed.
const maxRequestBytes = 64 * 1024

// Vault is the subset of the vault client the server drives.
type Vault interface {
	Status() (bwcli.Status, error)
	Unlock(password string) error
	Lock() error
}

// Syncer rebuilds the mirrored tree from the vault.
type Syncer interface {
	Sync() error
}

// Options configures a Server.
type Options struct {
	Vault  Vault
	Tree   *maptree.Tree
	Syncer Syncer

	// Notify is called after vault activity so an idle timer can
	// re-arm. May be nil.
	Notify func()

	Logger *slog.Logger
}

// Server answers control requests on a unix socket.
type Server struct {
	listener net.Listener
	vault    Vault
	tree     *maptree.Tree
	syncer   Syncer
	notify   func()
	logger   *slog.Logger
}

// Listen binds the control socket. A stale socket file left by a
// crashed daemon is removed and rebound; a socket with a live daemon
// behind it is an error.
func Listen(socketPath string) (net.Listener, error) {
	listener, err := net.Listen("unix", socketPath)
	if err == nil {
		return listener, nil
	}
	if !errors.Is(err, os.ErrExist) && !isAddrInUse(err) {
		return nil, fmt.Errorf("binding control socket: %w", err)
	}
	probe, probeErr := net.DialTimeout("unix", socketPath, time.Second)
	if probeErr == nil {
		probe.Close()
		return nil, fmt.Errorf("control socket %s is in use by a running daemon", socketPath)
	}
	if removeErr := os.Remove(socketPath); removeErr != nil {
		return nil, fmt.Errorf("removing stale control socket: %w", removeErr)
	}
	listener, err = net.Listen("unix", socketPath)
	if err != nil {
		return nil, fmt.Errorf("rebinding control socket: %w", err)
	}
	return listener, nil
}

func isAddrInUse(err error) bool {
	var opErr *net.OpError
	if !errors.As(err, &opErr) {
		return false
	}
	var syscallErr *os.SyscallError
	return errors.As(opErr.Err, &syscallErr) && syscallErr.Syscall == "bind"
}

// NewServer wraps an already-bound listener.
func NewServer(listener net.Listener, options Options) *Server {
	logger := options.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		listener: listener,
		vault:    options.Vault,
		tree:     options.Tree,
		syncer:   options.Syncer,
		notify:   options.Notify,
		logger:   logger,
	}
}

// Serve accepts connections until ctx is cancelled. Connections are
// handled in sequence, not concurrently.
func (s *Server) Serve(ctx context.Context) error {
	go func() {
		<-ctx.Done()
		s.listener.Close()
	}()
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("accepting control connection: %w", err)
		}
		s.handleConnection(conn)
	}
}

// handleConnection reads one request, answers it, and closes. A
// request that cannot be parsed gets no response at all.
func (s *Server) handleConnection(conn net.Conn) {
	defer conn.Close()
	conn.SetDeadline(time.Now().Add(30 * time.Second))

	reader := bufio.NewReaderSize(conn, 4096)
	line, err := reader.ReadBytes('\n')
	if err != nil || len(line) > maxRequestBytes {
		s.logger.Warn("dropping unreadable control request", "error", err)
		return
	}
	var request Request
	if err := json.Unmarshal(line, &request); err != nil {
		s.logger.Warn("dropping malformed control request", "error", err)
		return
	}

	response := s.dispatch(request)
	payload, err := json.Marshal(response)
	if err != nil {
		s.logger.Error("encoding control response", "error", err)
		return
	}
	payload = append(payload, '\n')
	if _, err := conn.Write(payload); err != nil {
		s.logger.Warn("writing control response", "error", err)
	}
}

func (s *Server) dispatch(request Request) Response {
	switch request.Action {
	case ActionUnlock:
		return s.handleUnlock(request.Password)
	case ActionLock:
		return s.handleLock()
	case ActionStatus:
		return s.handleStatus()
	case ActionRefresh:
		return s.handleRefresh()
	default:
		s.logger.Warn("unknown control action", "action", request.Action)
		return failure(fmt.Errorf("unknown action %q", request.Action))
	}
}

func (s *Server) handleUnlock(password string) Response {
	if err := s.vault.Unlock(password); err != nil {
		s.logger.Warn("unlock failed", "error", err)
		return failure(err)
	}
	s.logger.Info("vault unlocked")
	s.signalActivity()
	if err := s.syncer.Sync(); err != nil {
		s.logger.Error("sync after unlock failed", "error", err)
		return failure(err)
	}
	return Response{OK: true}
}

func (s *Server) handleLock() Response {
	s.tree.Clear()
	if err := s.vault.Lock(); err != nil {
		s.logger.Warn("lock failed", "error", err)
		return failure(err)
	}
	s.logger.Info("vault locked")
	return Response{OK: true}
}

func (s *Server) handleStatus() Response {
	status, err := s.vault.Status()
	if err != nil {
		return failure(err)
	}
	locked := status.Locked()
	return Response{OK: true, Locked: &locked}
}

func (s *Server) handleRefresh() Response {
	if err := s.syncer.Sync(); err != nil {
		s.logger.Warn("refresh failed", "error", err)
		return failure(err)
	}
	s.signalActivity()
	return Response{OK: true}
}

func (s *Server) signalActivity() {
	if s.notify != nil {
		s.notify()
	}
}

func failure(err error) Response {
	return Response{OK: false, Reason: err.Error()}
}
