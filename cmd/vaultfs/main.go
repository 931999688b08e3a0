// Copyright 2026 The VaultFS Authors
// SPDX-License-Identifier: Apache-2.0

// Vaultfs is the companion command line for vaultfs-daemon. It talks
// to the daemon's control socket to unlock, lock, refresh, and query
// the mounted vault.
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/pflag"
	"golang.org/x/term"

	"github.com/vaultfs-project/vaultfs/cmd/vaultfs/cli"
	"github.com/vaultfs-project/vaultfs/lib/control"
	"github.com/vaultfs-project/vaultfs/lib/secret"
	"github.com/vaultfs-project/vaultfs/lib/version"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	return rootCommand().Execute(os.Args[1:])
}

func defaultSocket() string {
	runtimeDir := os.Getenv("XDG_RUNTIME_DIR")
	if runtimeDir == "" {
		runtimeDir = "/tmp"
	}
	return filepath.Join(runtimeDir, "vaultfs.sock")
}

func socketFlags(name string, socketPath *string) func() *pflag.FlagSet {
	return func() *pflag.FlagSet {
		flags := pflag.NewFlagSet(name, pflag.ContinueOnError)
		flags.StringVar(socketPath, "socket", defaultSocket(), "daemon control socket path")
		return flags
	}
}

func rootCommand() *cli.Command {
	return &cli.Command{
		Name:    "vaultfs",
		Summary: "control a running vaultfs-daemon",
		Subcommands: []*cli.Command{
			statusCommand(),
			unlockCommand(),
			lockCommand(),
			refreshCommand(),
			versionCommand(),
		},
	}
}

func statusCommand() *cli.Command {
	var socketPath string
	return &cli.Command{
		Name:    "status",
		Summary: "report whether the vault is locked",
		Flags:   socketFlags("status", &socketPath),
		Run: func(args []string) error {
			response, err := control.Send(socketPath, control.Request{Action: control.ActionStatus})
			if err != nil {
				return err
			}
			if !response.OK {
				return fmt.Errorf("status: %s", response.Reason)
			}
			if response.Locked != nil && *response.Locked {
				fmt.Println("locked")
			} else {
				fmt.Println("unlocked")
			}
			return nil
		},
	}
}

func unlockCommand() *cli.Command {
	var socketPath string
	var passwordFile string
	return &cli.Command{
		Name:    "unlock",
		Summary: "unlock the vault and populate the mount",
		Examples: []cli.Example{
			{Description: "prompt for the master password", Command: "vaultfs unlock"},
			{Description: "read the password from a file", Command: "vaultfs unlock --password-file /run/secrets/master"},
		},
		Flags: func() *pflag.FlagSet {
			flags := pflag.NewFlagSet("unlock", pflag.ContinueOnError)
			flags.StringVar(&socketPath, "socket", defaultSocket(), "daemon control socket path")
			flags.StringVar(&passwordFile, "password-file", "", "read the master password from a file instead of prompting")
			return flags
		},
		Run: func(args []string) error {
			password, err := readPassword(passwordFile)
			if err != nil {
				return err
			}
			defer password.Close()

			response, err := control.Send(socketPath, control.Request{
				Action:   control.ActionUnlock,
				Password: password.String(),
			})
			if err != nil {
				return err
			}
			if !response.OK {
				return fmt.Errorf("unlock: %s", response.Reason)
			}
			fmt.Println("unlocked")
			return nil
		},
	}
}

func lockCommand() *cli.Command {
	var socketPath string
	return &cli.Command{
		Name:    "lock",
		Summary: "lock the vault and empty the mount",
		Flags:   socketFlags("lock", &socketPath),
		Run: func(args []string) error {
			response, err := control.Send(socketPath, control.Request{Action: control.ActionLock})
			if err != nil {
				return err
			}
			if !response.OK {
				return fmt.Errorf("lock: %s", response.Reason)
			}
			fmt.Println("locked")
			return nil
		},
	}
}

func refreshCommand() *cli.Command {
	var socketPath string
	return &cli.Command{
		Name:    "refresh",
		Summary: "resync the mount from the vault",
		Flags:   socketFlags("refresh", &socketPath),
		Run: func(args []string) error {
			response, err := control.Send(socketPath, control.Request{Action: control.ActionRefresh})
			if err != nil {
				return err
			}
			if !response.OK {
				return fmt.Errorf("refresh: %s", response.Reason)
			}
			fmt.Println("refreshed")
			return nil
		},
	}
}

func versionCommand() *cli.Command {
	return &cli.Command{
		Name:    "version",
		Summary: "print version information",
		Run: func(args []string) error {
			fmt.Println(version.Full())
			return nil
		},
	}
}

// readPassword loads the master password from the given file, or
// prompts on the terminal when no file is named.
func readPassword(passwordFile string) (*secret.Buffer, error) {
	if passwordFile != "" {
		data, err := os.ReadFile(passwordFile)
		if err != nil {
			return nil, fmt.Errorf("reading password file: %w", err)
		}
		trimmed := []byte(strings.TrimRight(string(data), "\r\n"))
		buffer, err := secret.NewFromBytes(trimmed)
		if err != nil {
			secret.Zero(data)
			return nil, err
		}
		secret.Zero(data)
		return buffer, nil
	}

	stdinFileDescriptor := int(os.Stdin.Fd())
	if !term.IsTerminal(stdinFileDescriptor) {
		return nil, fmt.Errorf("no terminal available for interactive password prompt (use --password-file)")
	}

	fmt.Fprint(os.Stderr, "Master password: ")
	passwordBytes, err := term.ReadPassword(stdinFileDescriptor)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return nil, fmt.Errorf("reading password: %w", err)
	}

	buffer, err := secret.NewFromBytes(passwordBytes)
	if err != nil {
		secret.Zero(passwordBytes)
		return nil, err
	}
	return buffer, nil
}
