// Copyright 2026 The VaultFS Authors
// SPDX-License-Identifier: Apache-2.0

// Vaultfs-daemon mounts a Bitwarden vault as a read-only filesystem
// and answers control requests on a local socket.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"os/user"
	"strconv"
	"syscall"

	"github.com/vaultfs-project/vaultfs/lib/autolock"
	"github.com/vaultfs-project/vaultfs/lib/bwcli"
	"github.com/vaultfs-project/vaultfs/lib/config"
	"github.com/vaultfs-project/vaultfs/lib/control"
	"github.com/vaultfs-project/vaultfs/lib/fusefs"
	"github.com/vaultfs-project/vaultfs/lib/maptree"
	"github.com/vaultfs-project/vaultfs/lib/mirror"
	"github.com/vaultfs-project/vaultfs/lib/version"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var configPath string
	var mountpoint string
	var socketPath string
	var showVersion bool

	flag.StringVar(&configPath, "config", "", "path to config file (required unless VAULTFS_CONFIG is set)")
	flag.StringVar(&mountpoint, "mountpoint", "", "mount directory (overrides config)")
	flag.StringVar(&socketPath, "socket", "", "control socket path (overrides config)")
	flag.BoolVar(&showVersion, "version", false, "print version information and exit")
	flag.Parse()

	if showVersion {
		fmt.Printf("vaultfs-daemon %s\n", version.Info())
		return nil
	}

	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	if mountpoint != "" {
		cfg.Mountpoint = mountpoint
	}
	if socketPath != "" {
		cfg.Socket = socketPath
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	uid, gid, err := resolveOwner(cfg)
	if err != nil {
		return err
	}
	fileMode, err := cfg.FileMode()
	if err != nil {
		return err
	}
	idle, err := cfg.AutoLockDuration()
	if err != nil {
		return err
	}

	logger.Info("starting vaultfs-daemon",
		"version", version.Info(),
		"mountpoint", cfg.Mountpoint,
		"socket", cfg.Socket,
		"auto_lock", cfg.AutoLock,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	tree := maptree.New()
	vault := bwcli.New(cfg.BWBinary, logger.With("component", "bwcli"))
	syncer := mirror.New(mirror.Options{
		Tree:    tree,
		Vault:   vault,
		Folders: cfg.Folders,
		Logger:  logger.With("component", "mirror"),
	})

	// The mount starts empty when the vault is locked; unlock fills it.
	if err := syncer.Sync(); err != nil {
		logger.Info("initial sync skipped", "reason", err.Error())
	}

	var supervisor *autolock.Supervisor
	notify := func() {}
	if idle > 0 {
		supervisor = autolock.New(autolock.Options{
			Tree:   tree,
			Vault:  vault,
			Idle:   idle,
			Logger: logger.With("component", "autolock"),
		})
		notify = supervisor.Notify
		go supervisor.Run(ctx)
	}

	// Claim the socket before mounting so a second instance dies
	// without ever touching the mountpoint.
	listener, err := control.Listen(cfg.Socket)
	if err != nil {
		return err
	}

	filesystem := fusefs.New(fusefs.Options{
		Tree:     tree,
		UID:      uid,
		GID:      gid,
		FileMode: fileMode,
		Logger:   logger.With("component", "fusefs"),
	})
	server, err := fusefs.Mount(filesystem, fusefs.MountOptions{
		Mountpoint: cfg.Mountpoint,
		AllowOther: cfg.AllowOther,
	})
	if err != nil {
		listener.Close()
		os.Remove(cfg.Socket)
		return err
	}
	go server.Serve()
	if err := server.WaitMount(); err != nil {
		listener.Close()
		os.Remove(cfg.Socket)
		return fmt.Errorf("waiting for mount: %w", err)
	}
	logger.Info("filesystem mounted", "mountpoint", cfg.Mountpoint)

	controlServer := control.NewServer(listener, control.Options{
		Vault:  vault,
		Tree:   tree,
		Syncer: syncer,
		Notify: notify,
		Logger: logger.With("component", "control"),
	})
	controlDone := make(chan error, 1)
	go func() { controlDone <- controlServer.Serve(ctx) }()
	logger.Info("control socket ready", "socket", cfg.Socket)

	<-ctx.Done()
	logger.Info("shutting down")

	if err := server.Unmount(); err != nil {
		logger.Error("unmount failed", "error", err)
	}
	if err := <-controlDone; err != nil {
		logger.Error("control server failed", "error", err)
	}
	os.Remove(cfg.Socket)
	if err := vault.Lock(); err != nil {
		logger.Warn("locking vault on shutdown", "error", err)
	}
	return nil
}

// loadConfig prefers the --config flag over VAULTFS_CONFIG, and falls
// back to defaults when neither names a file.
func loadConfig(configPath string) (*config.Config, error) {
	if configPath != "" {
		cfg, err := config.LoadFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("loading config: %w", err)
		}
		return cfg, nil
	}
	if os.Getenv("VAULTFS_CONFIG") != "" {
		cfg, err := config.Load()
		if err != nil {
			return nil, fmt.Errorf("loading config: %w", err)
		}
		return cfg, nil
	}
	return config.Default(), nil
}

// resolveOwner maps the configured user and group names to ids,
// defaulting to the daemon's own identity.
func resolveOwner(cfg *config.Config) (uint32, uint32, error) {
	uid := uint32(os.Getuid())
	gid := uint32(os.Getgid())

	if cfg.User != "" {
		account, err := user.Lookup(cfg.User)
		if err != nil {
			return 0, 0, fmt.Errorf("resolving user %q: %w", cfg.User, err)
		}
		parsed, err := strconv.ParseUint(account.Uid, 10, 32)
		if err != nil {
			return 0, 0, fmt.Errorf("parsing uid %q: %w", account.Uid, err)
		}
		uid = uint32(parsed)
	}
	if cfg.Group != "" {
		group, err := user.LookupGroup(cfg.Group)
		if err != nil {
			return 0, 0, fmt.Errorf("resolving group %q: %w", cfg.Group, err)
		}
		parsed, err := strconv.ParseUint(group.Gid, 10, 32)
		if err != nil {
			return 0, 0, fmt.Errorf("parsing gid %q: %w", group.Gid, err)
		}
		gid = uint32(parsed)
	}
	return uid, gid, nil
}
