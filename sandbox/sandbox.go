// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package sandbox

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/moby/sys/reexec"

	"github.com/bureau-foundation/rootswap/lib/codec"
	"github.com/bureau-foundation/rootswap/lib/idmap"
	"github.com/bureau-foundation/rootswap/lib/namespace"
)

// Sandbox launches one command in a fresh set of namespaces rooted at
// an extracted filesystem tree.
type Sandbox struct {
	config Config
	logger *slog.Logger

	// stage is the reexec name of the stage main function.
	stage string
}

// New creates a new Sandbox, normalizing and checking config.
func New(config Config) (*Sandbox, error) {
	if config.Rootfs == "" {
		return nil, fmt.Errorf("rootfs is required")
	}
	rootfs, err := filepath.Abs(config.Rootfs)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve rootfs path: %w", err)
	}
	info, err := os.Stat(rootfs)
	if err != nil {
		return nil, fmt.Errorf("rootfs: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("rootfs %s is not a directory", rootfs)
	}
	config.Rootfs = rootfs

	if config.Command == "" {
		return nil, fmt.Errorf("command is required")
	}

	if config.Namespaces == (namespace.Set{}) {
		config.Namespaces = namespace.Default
	}
	if err := config.Namespaces.Validate(); err != nil {
		return nil, err
	}

	if config.Namespaces.User {
		if config.Identity == nil {
			identity := idmap.ForCaller()
			config.Identity = &identity
		}
		if err := config.Identity.Validate(); err != nil {
			return nil, err
		}
	} else if config.Identity != nil {
		return nil, fmt.Errorf("an identity mapping needs a user namespace (namespaces: %s)", config.Namespaces)
	}

	if config.Hostname != "" && !config.Namespaces.UTS {
		return nil, fmt.Errorf("hostname %q needs a uts namespace (namespaces: %s)", config.Hostname, config.Namespaces)
	}

	mounts := make([]MountSpec, len(config.Mounts))
	for i, spec := range config.Mounts {
		if err := spec.normalize(); err != nil {
			return nil, err
		}
		mounts[i] = spec
	}
	config.Mounts = mounts

	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Sandbox{
		config: config,
		logger: logger,
		stage:  stageName,
	}, nil
}

// Run launches the command and waits for it. It returns nil when the
// command exits zero and an *ExitError otherwise, including when the
// stage failed before the command ran (the stage has then printed its
// diagnostic to the command's stderr).
//
// ctx is honoured only until the stage process is cloned; after that the
// launch either completes or the stage exits. While waiting, SIGTERM and
// SIGHUP are forwarded to the stage and SIGINT and SIGQUIT are absorbed,
// since the terminal already delivers them to the whole process group.
//
// Run keeps no state between calls and may be called concurrently.
func (s *Sandbox) Run(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	reader, writer, err := os.Pipe()
	if err != nil {
		return fmt.Errorf("creating launch description pipe: %w", err)
	}

	cmd := s.stageCommand(reader)

	signals := make(chan os.Signal, 4)
	signal.Notify(signals, syscall.SIGTERM, syscall.SIGHUP, syscall.SIGINT, syscall.SIGQUIT)
	defer signal.Stop(signals)

	if err := cmd.Start(); err != nil {
		reader.Close()
		writer.Close()
		return &TransitionError{
			From: Unprivileged,
			To:   NamespacedPrivate,
			Err:  &namespace.NamespaceError{Op: "clone", Set: s.config.Namespaces, Err: err},
		}
	}
	reader.Close()

	s.logger.Debug("launching",
		"rootfs", s.config.Rootfs,
		"command", s.config.Command,
		"namespaces", s.config.Namespaces.String(),
		"mounts", len(s.config.Mounts),
		"stage_pid", cmd.Process.Pid,
	)

	sendErr := codec.WriteMessage(writer, s.stageSpec())
	writer.Close()
	if sendErr != nil {
		cmd.Process.Kill()
	}

	done := make(chan error, 1)
	go func() { done <- cmd.Wait() }()

	for {
		select {
		case sig := <-signals:
			if sig == syscall.SIGTERM || sig == syscall.SIGHUP {
				s.logger.Debug("forwarding signal", "signal", sig)
				cmd.Process.Signal(sig)
			}
		case waitErr := <-done:
			if sendErr != nil {
				return &TransitionError{
					From: Unprivileged,
					To:   NamespacedPrivate,
					Err:  fmt.Errorf("sending launch description: %w", sendErr),
				}
			}
			return exitStatus(waitErr)
		}
	}
}

// stageCommand builds the re-exec of this binary that becomes the
// command. The namespaces and identity mapping are created by clone
// itself, all or nothing; the Go runtime writes each map file in a
// single write before the stage runs.
func (s *Sandbox) stageCommand(launchDescription *os.File) *exec.Cmd {
	cmd := reexec.Command(s.stage)
	cmd.Stdin = s.config.Stdin
	if cmd.Stdin == nil {
		cmd.Stdin = os.Stdin
	}
	cmd.Stdout = s.config.Stdout
	if cmd.Stdout == nil {
		cmd.Stdout = os.Stdout
	}
	cmd.Stderr = s.config.Stderr
	if cmd.Stderr == nil {
		cmd.Stderr = os.Stderr
	}
	cmd.ExtraFiles = []*os.File{launchDescription}

	// An explicitly empty environment. A nil Env would copy this
	// process's environment into the stage, where it stays readable in
	// /proc/<pid>/environ until the exec replaces it.
	cmd.Env = []string{}

	if cmd.SysProcAttr == nil {
		cmd.SysProcAttr = &syscall.SysProcAttr{}
	}
	s.config.Namespaces.Apply(cmd.SysProcAttr)
	if s.config.Identity != nil {
		s.config.Identity.Apply(cmd.SysProcAttr)
	}
	return cmd
}

func (s *Sandbox) stageSpec() *stageSpec {
	return &stageSpec{
		Rootfs:     s.config.Rootfs,
		Command:    s.config.Command,
		Args:       s.config.Args,
		Env:        s.config.Env.List(),
		Mounts:     s.config.Mounts,
		Namespaces: s.config.Namespaces,
		Identity:   s.config.Identity,
		Hostname:   s.config.Hostname,
		LogLevel:   s.config.LogLevel,
		LogFormat:  s.config.LogFormat,
	}
}

// exitStatus converts the stage's wait result into Run's return value.
func exitStatus(err error) error {
	if err == nil {
		return nil
	}
	var exitErr *exec.ExitError
	if !errors.As(err, &exitErr) {
		return fmt.Errorf("waiting for command: %w", err)
	}
	if status, ok := exitErr.Sys().(syscall.WaitStatus); ok && status.Signaled() {
		return &ExitError{Code: 128 + int(status.Signal()), Signal: status.Signal()}
	}
	return &ExitError{Code: exitErr.ExitCode()}
}

// Plan describes the launch without performing it, one step per line.
func (s *Sandbox) Plan() []string {
	plan := []string{
		"namespaces " + s.config.Namespaces.String(),
	}
	if identity := s.config.Identity; identity != nil {
		plan = append(plan,
			"uid_map "+strings.TrimSpace(identity.UIDMap()),
			"gid_map "+strings.TrimSpace(identity.GIDMap()),
		)
	}
	plan = append(plan, "make-private /")
	if s.config.Hostname != "" {
		plan = append(plan, "hostname "+s.config.Hostname)
	}
	if s.config.Namespaces.Net {
		plan = append(plan, "loopback up")
	}
	plan = append(plan, "bind "+s.config.Rootfs+" "+s.config.Rootfs)
	for _, spec := range s.config.Mounts {
		plan = append(plan, "mount "+spec.String())
	}
	plan = append(plan,
		"pivot_root . "+scratchPattern,
		"umount --lazy /"+scratchPattern,
		"rmdir /"+scratchPattern,
	)
	for _, assignment := range s.config.Env.List() {
		plan = append(plan, "env "+assignment)
	}
	argv := append([]string{s.config.Command}, s.config.Args...)
	plan = append(plan, fmt.Sprintf("exec %q", argv))
	return plan
}

// DryRun writes Plan to w.
func (s *Sandbox) DryRun(w io.Writer) error {
	for _, line := range s.Plan() {
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	return nil
}

// Validate runs pre-flight validation checks.
func (s *Sandbox) Validate(w io.Writer) error {
	validator := NewValidator()
	validator.ValidateAll(s.config)
	validator.PrintResults(w)

	if validator.HasErrors() {
		return fmt.Errorf("validation failed")
	}
	return nil
}

// Rootfs returns the sandbox's absolute rootfs path.
func (s *Sandbox) Rootfs() string {
	return s.config.Rootfs
}
