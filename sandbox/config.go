// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package sandbox

import (
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/bureau-foundation/rootswap/lib/idmap"
	"github.com/bureau-foundation/rootswap/lib/mount"
	"github.com/bureau-foundation/rootswap/lib/namespace"
)

// Config holds configuration for creating a new Sandbox.
type Config struct {
	// Rootfs is the extracted root filesystem the command runs in. It
	// must be a directory; it is mutated only by the creation and
	// removal of one scratch directory during the root swap.
	Rootfs string

	// Command is the program to execute inside the rootfs. A name
	// without a slash is searched for in the PATH of Env.
	Command string

	// Args are passed to Command verbatim.
	Args []string

	// Mounts are bind-mounted into the rootfs in order before the root
	// swap. Targets must exist in the rootfs.
	Mounts []MountSpec

	// Env is the complete environment of the command.
	Env Environment

	// Namespaces to create. The zero value means namespace.Default.
	Namespaces namespace.Set

	// Identity is the user namespace id mapping. Nil with a user
	// namespace maps root to the calling user.
	Identity *idmap.Mapping

	// Hostname is set inside a UTS namespace.
	Hostname string

	// Standard streams of the command. Nil means the corresponding
	// stream of this process.
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer

	// Logger for sandbox operations. The stage process logs at the same
	// level.
	Logger *slog.Logger

	// LogLevel and LogFormat configure the stage process's logger.
	LogLevel  slog.Level
	LogFormat string
}

// MountSpec is one bind mount from the host into the rootfs.
type MountSpec struct {
	// Host is an absolute host path.
	Host string `cbor:"host"`

	// Container is the target path inside the rootfs. It is resolved
	// as if the rootfs were /: ".." and absolute symlinks cannot leave
	// it.
	Container string `cbor:"container"`

	// Flags are extra mount flags: mount.Recursive and the restrictive
	// flags (ro, nosuid, nodev, noexec).
	Flags mount.Flags `cbor:"flags,omitempty"`
}

func (m MountSpec) String() string {
	if m.Flags == 0 {
		return m.Host + ":" + m.Container
	}
	return m.Host + ":" + m.Container + ":" + m.Flags.String()
}

// ParseMountSpec parses "HOST:CONTAINER[:OPTIONS]" where OPTIONS is a
// comma list accepted by mount.ParseOptions. Paths cannot contain
// colons.
func ParseMountSpec(spec string) (MountSpec, error) {
	parts := strings.Split(spec, ":")
	if len(parts) < 2 || len(parts) > 3 {
		return MountSpec{}, fmt.Errorf("invalid mount %q: must be HOST:CONTAINER[:OPTIONS]", spec)
	}

	var options string
	if len(parts) == 3 {
		options = parts[2]
	}
	return NewMountSpec(parts[0], parts[1], options)
}

// NewMountSpec builds a MountSpec from separate fields, as found in the
// config file.
func NewMountSpec(host, container, options string) (MountSpec, error) {
	flags, err := mount.ParseOptions(options)
	if err != nil {
		return MountSpec{}, fmt.Errorf("mount %s:%s: %w", host, container, err)
	}
	spec := MountSpec{Host: host, Container: container, Flags: flags}
	if err := spec.normalize(); err != nil {
		return MountSpec{}, err
	}
	return spec, nil
}

// normalize makes Host absolute and Container a clean rooted path.
func (m *MountSpec) normalize() error {
	if m.Host == "" || m.Container == "" {
		return fmt.Errorf("mount %q: host and container paths are required", m.String())
	}
	host, err := filepath.Abs(m.Host)
	if err != nil {
		return fmt.Errorf("mount %q: resolving host path: %w", m.String(), err)
	}
	m.Host = host

	m.Container = filepath.Clean("/" + m.Container)
	if m.Container == "/" {
		return fmt.Errorf("mount %q: cannot mount over the rootfs itself", m.String())
	}
	return nil
}
