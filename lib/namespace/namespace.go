// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package namespace

import (
	"fmt"
	"strings"
	"syscall"

	specs "github.com/opencontainers/runtime-spec/specs-go"
	"golang.org/x/sys/unix"
)

// Set selects which namespaces a launch is isolated in.
type Set struct {
	User   bool `yaml:"user" cbor:"user"`
	Mount  bool `yaml:"mount" cbor:"mount"`
	PID    bool `yaml:"pid" cbor:"pid"`
	UTS    bool `yaml:"uts" cbor:"uts"`
	Net    bool `yaml:"net" cbor:"net"`
	IPC    bool `yaml:"ipc" cbor:"ipc"`
	Cgroup bool `yaml:"cgroup" cbor:"cgroup"`
}

// Default is the rootless minimum: a user namespace so an unprivileged
// caller can mount, and a mount namespace to mount in.
var Default = Set{User: true, Mount: true}

var aliases = map[string]specs.LinuxNamespaceType{
	"user":    specs.UserNamespace,
	"mount":   specs.MountNamespace,
	"mnt":     specs.MountNamespace,
	"pid":     specs.PIDNamespace,
	"uts":     specs.UTSNamespace,
	"network": specs.NetworkNamespace,
	"net":     specs.NetworkNamespace,
	"ipc":     specs.IPCNamespace,
	"cgroup":  specs.CgroupNamespace,
}

// Parse builds a Set from namespace kind names. Names are OCI kind names
// or the short aliases mnt and net; case is ignored.
func Parse(names []string) (Set, error) {
	var set Set
	for _, name := range names {
		name = strings.ToLower(strings.TrimSpace(name))
		if name == "" {
			continue
		}
		kind, ok := aliases[name]
		if !ok {
			return Set{}, fmt.Errorf("unknown namespace %q (valid: user, mount, pid, uts, network, ipc, cgroup)", name)
		}
		set.enable(kind)
	}
	return set, nil
}

func (s *Set) enable(kind specs.LinuxNamespaceType) {
	switch kind {
	case specs.UserNamespace:
		s.User = true
	case specs.MountNamespace:
		s.Mount = true
	case specs.PIDNamespace:
		s.PID = true
	case specs.UTSNamespace:
		s.UTS = true
	case specs.NetworkNamespace:
		s.Net = true
	case specs.IPCNamespace:
		s.IPC = true
	case specs.CgroupNamespace:
		s.Cgroup = true
	}
}

// Kinds lists the enabled namespaces in creation order.
func (s Set) Kinds() []specs.LinuxNamespaceType {
	var kinds []specs.LinuxNamespaceType
	for _, entry := range s.entries() {
		if entry.enabled {
			kinds = append(kinds, entry.kind)
		}
	}
	return kinds
}

// CloneFlags returns the CLONE_NEW* flags for the enabled namespaces.
func (s Set) CloneFlags() uintptr {
	var flags uintptr
	for _, entry := range s.entries() {
		if entry.enabled {
			flags |= entry.flag
		}
	}
	return flags
}

// Apply requests the namespaces on the process about to be started.
// Any clone flags already present in attr are replaced.
func (s Set) Apply(attr *syscall.SysProcAttr) {
	attr.Cloneflags = s.CloneFlags()
}

// Validate checks the set can host a root swap. A private mount
// namespace is mandatory: pivoting in the host mount namespace would
// re-root the whole machine.
func (s Set) Validate() error {
	if !s.Mount {
		return fmt.Errorf("namespace set %s lacks a mount namespace, which the root swap requires", s)
	}
	return nil
}

// String renders the set as a comma list, e.g. "user,mount,pid".
func (s Set) String() string {
	kinds := s.Kinds()
	if len(kinds) == 0 {
		return "none"
	}
	names := make([]string, len(kinds))
	for i, kind := range kinds {
		names[i] = string(kind)
	}
	return strings.Join(names, ",")
}

type setEntry struct {
	kind    specs.LinuxNamespaceType
	flag    uintptr
	enabled bool
}

func (s Set) entries() []setEntry {
	return []setEntry{
		{specs.UserNamespace, unix.CLONE_NEWUSER, s.User},
		{specs.MountNamespace, unix.CLONE_NEWNS, s.Mount},
		{specs.PIDNamespace, unix.CLONE_NEWPID, s.PID},
		{specs.UTSNamespace, unix.CLONE_NEWUTS, s.UTS},
		{specs.NetworkNamespace, unix.CLONE_NEWNET, s.Net},
		{specs.IPCNamespace, unix.CLONE_NEWIPC, s.IPC},
		{specs.CgroupNamespace, unix.CLONE_NEWCGROUP, s.Cgroup},
	}
}
