// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package idmap

import (
	"bufio"
	"bytes"
	"fmt"
	"os"
	"strconv"
	"strings"
	"syscall"

	specs "github.com/opencontainers/runtime-spec/specs-go"
)

// Mapping is the uid and gid mapping installed in a new user namespace.
type Mapping struct {
	UID specs.LinuxIDMapping `cbor:"uid"`
	GID specs.LinuxIDMapping `cbor:"gid"`
}

// New maps container uid 0 to hostUID and gid 0 to hostGID.
func New(hostUID, hostGID uint32) Mapping {
	return Mapping{
		UID: specs.LinuxIDMapping{ContainerID: 0, HostID: hostUID, Size: 1},
		GID: specs.LinuxIDMapping{ContainerID: 0, HostID: hostGID, Size: 1},
	}
}

// ForCaller maps root inside the namespace to the calling process's real
// uid and gid.
func ForCaller() Mapping {
	return New(uint32(os.Getuid()), uint32(os.Getgid()))
}

// Validate rejects mappings other than a single id. Ranges would need
// subordinate ids from /etc/subuid and the setuid newuidmap helper.
func (m Mapping) Validate() error {
	for _, entry := range []struct {
		name    string
		mapping specs.LinuxIDMapping
	}{{"uid", m.UID}, {"gid", m.GID}} {
		if entry.mapping.Size != 1 {
			return &IdentityMapError{
				Op:  "validate " + entry.name + " map",
				Err: fmt.Errorf("range size %d unsupported; only single-id mappings are", entry.mapping.Size),
			}
		}
	}
	return nil
}

// UIDMap renders the uid_map file content.
func (m Mapping) UIDMap() string { return line(m.UID) }

// GIDMap renders the gid_map file content.
func (m Mapping) GIDMap() string { return line(m.GID) }

func line(mapping specs.LinuxIDMapping) string {
	return fmt.Sprintf("%d %d %d\n", mapping.ContainerID, mapping.HostID, mapping.Size)
}

// Apply installs the mapping on a process about to be started in a new
// user namespace. setgroups is denied in the child.
func (m Mapping) Apply(attr *syscall.SysProcAttr) {
	attr.UidMappings = []syscall.SysProcIDMap{toSysProc(m.UID)}
	attr.GidMappings = []syscall.SysProcIDMap{toSysProc(m.GID)}
	attr.GidMappingsEnableSetgroups = false
}

func toSysProc(mapping specs.LinuxIDMapping) syscall.SysProcIDMap {
	return syscall.SysProcIDMap{
		ContainerID: int(mapping.ContainerID),
		HostID:      int(mapping.HostID),
		Size:        int(mapping.Size),
	}
}

// Verify checks /proc/self/uid_map and /proc/self/gid_map of the calling
// process against m.
func Verify(m Mapping) error {
	for _, entry := range []struct {
		path string
		want specs.LinuxIDMapping
	}{
		{"/proc/self/uid_map", m.UID},
		{"/proc/self/gid_map", m.GID},
	} {
		data, err := os.ReadFile(entry.path)
		if err != nil {
			return &IdentityMapError{Op: "read " + entry.path, Err: err}
		}
		if err := verifyMap(data, entry.want); err != nil {
			return &IdentityMapError{Op: "verify " + entry.path, Err: err}
		}
	}
	return nil
}

func verifyMap(data []byte, want specs.LinuxIDMapping) error {
	entries, err := ParseMap(data)
	if err != nil {
		return err
	}
	if len(entries) != 1 {
		return fmt.Errorf("expected 1 mapping, found %d", len(entries))
	}
	if entries[0] != want {
		return fmt.Errorf("found %q, expected %q", strings.TrimSpace(line(entries[0])), strings.TrimSpace(line(want)))
	}
	return nil
}

// ParseMap parses the content of a uid_map or gid_map file.
func ParseMap(data []byte) ([]specs.LinuxIDMapping, error) {
	var entries []specs.LinuxIDMapping
	scanner := bufio.NewScanner(bytes.NewReader(data))
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}
		if len(fields) != 3 {
			return nil, fmt.Errorf("malformed map line %q", scanner.Text())
		}
		var values [3]uint32
		for i, field := range fields {
			value, err := strconv.ParseUint(field, 10, 32)
			if err != nil {
				return nil, fmt.Errorf("malformed map line %q: %w", scanner.Text(), err)
			}
			values[i] = uint32(value)
		}
		entries = append(entries, specs.LinuxIDMapping{ContainerID: values[0], HostID: values[1], Size: values[2]})
	}
	return entries, scanner.Err()
}
