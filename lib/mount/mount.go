// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package mount

import (
	"fmt"
	"sort"
	"strings"

	"golang.org/x/sys/unix"
)

// Flags is a set of mount(2) flags.
type Flags uint64

const (
	Bind      Flags = unix.MS_BIND
	Recursive Flags = unix.MS_REC
	Private   Flags = unix.MS_PRIVATE
	NoSuid    Flags = unix.MS_NOSUID
	NoDev     Flags = unix.MS_NODEV
	NoExec    Flags = unix.MS_NOEXEC
	ReadOnly  Flags = unix.MS_RDONLY
	Remount   Flags = unix.MS_REMOUNT
)

// restrictive flags are ignored by a plain MS_BIND and need a remount.
const restrictive = NoSuid | NoDev | NoExec | ReadOnly

var flagNames = map[Flags]string{
	Bind:      "bind",
	Recursive: "rec",
	Private:   "private",
	NoSuid:    "nosuid",
	NoDev:     "nodev",
	NoExec:    "noexec",
	ReadOnly:  "ro",
	Remount:   "remount",
}

// optionFlags are the flags accepted by ParseOptions.
var optionFlags = map[string]Flags{
	"ro":     ReadOnly,
	"nosuid": NoSuid,
	"nodev":  NoDev,
	"noexec": NoExec,
	"rec":    Recursive,
}

// String renders the set as a comma list in a stable order.
func (f Flags) String() string {
	if f == 0 {
		return "none"
	}
	var names []string
	rest := f
	for flag, name := range flagNames {
		if f&flag != 0 {
			names = append(names, name)
			rest &^= flag
		}
	}
	sort.Strings(names)
	if rest != 0 {
		names = append(names, fmt.Sprintf("%#x", uint64(rest)))
	}
	return strings.Join(names, ",")
}

// Has reports whether every flag in other is set in f.
func (f Flags) Has(other Flags) bool {
	return f&other == other
}

// ParseOptions parses a comma-separated option list such as
// "ro,nosuid,nodev". Empty input yields no flags.
func ParseOptions(options string) (Flags, error) {
	var flags Flags
	if options == "" {
		return 0, nil
	}
	for _, option := range strings.Split(options, ",") {
		option = strings.TrimSpace(option)
		if option == "" || option == "rw" {
			continue
		}
		flag, ok := optionFlags[option]
		if !ok {
			return 0, fmt.Errorf("unknown mount option %q (valid: ro, nosuid, nodev, noexec, rec)", option)
		}
		flags |= flag
	}
	return flags, nil
}

// BindMount bind-mounts source onto target. Recursive in extra makes it a
// recursive bind. Restriction flags in extra (ro, nosuid, nodev, noexec)
// are applied by a second bind-remount because the kernel ignores them
// on the initial MS_BIND call.
func BindMount(source, target string, extra Flags) error {
	flags := Bind | (extra & Recursive)
	if err := unix.Mount(source, target, "", uintptr(flags), ""); err != nil {
		return &MountError{Op: "bind", Source: source, Target: target, Flags: flags, Err: err}
	}
	if extra&restrictive == 0 {
		return nil
	}

	// Inside a user namespace the flags already set on the source mount
	// are locked; a remount that drops any of them fails with EPERM.
	locked, err := lockedFlags(source)
	if err != nil {
		return &MountError{Op: "statfs", Source: source, Target: target, Err: err}
	}
	flags = Remount | Bind | (extra & restrictive) | locked
	if err := unix.Mount("", target, "", uintptr(flags), ""); err != nil {
		return &MountError{Op: "remount", Target: target, Flags: flags, Err: err}
	}
	return nil
}

// MakePrivate marks the mount at path and everything below it private so
// mount events no longer propagate to or from the peer group.
func MakePrivate(path string) error {
	flags := Recursive | Private
	if err := unix.Mount("", path, "", uintptr(flags), ""); err != nil {
		return &MountError{Op: "make-private", Target: path, Flags: flags, Err: err}
	}
	return nil
}

// DetachUnmount lazily unmounts path. The mount disappears from the
// namespace immediately and is released once the last reference goes.
func DetachUnmount(path string) error {
	if err := unix.Unmount(path, unix.MNT_DETACH); err != nil {
		return &MountError{Op: "detach", Target: path, Err: err}
	}
	return nil
}

// lockedFlags returns the mount flags currently in effect on the
// filesystem containing path.
func lockedFlags(path string) (Flags, error) {
	var stat unix.Statfs_t
	if err := unix.Statfs(path, &stat); err != nil {
		return 0, err
	}
	return statfsFlags(uint64(stat.Flags)), nil
}

// statfsFlags converts statfs f_flags (ST_*) into the matching MS_*
// mount flags.
func statfsFlags(st uint64) Flags {
	var flags Flags
	pairs := []struct {
		st   uint64
		flag Flags
	}{
		{unix.ST_RDONLY, ReadOnly},
		{unix.ST_NOSUID, NoSuid},
		{unix.ST_NODEV, NoDev},
		{unix.ST_NOEXEC, NoExec},
		{unix.ST_NOATIME, unix.MS_NOATIME},
		{unix.ST_NODIRATIME, unix.MS_NODIRATIME},
		{unix.ST_RELATIME, unix.MS_RELATIME},
	}
	for _, pair := range pairs {
		if st&pair.st != 0 {
			flags |= pair.flag
		}
	}
	return flags
}
