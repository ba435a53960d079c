// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package testutil

import (
	"os"
	"path/filepath"
	"testing"
)

// HostBind is a host directory the caller should bind read-only into
// the fixture rootfs at the same path.
type HostBind struct {
	Host      string
	Container string
}

// hostTree lists the top-level host paths a fixture needs to run
// dynamically linked binaries. On merged-usr hosts most are symlinks
// into /usr and are recreated as symlinks; real directories become
// empty mount points with a HostBind.
var hostTree = []string{"usr", "bin", "sbin", "lib", "lib32", "lib64", "libx32"}

// Rootfs creates a fixture root filesystem and returns its path along
// with the binds that make host binaries usable inside it. The fixture
// also has empty /etc, /tmp, /proc, /dev and /mnt directories.
//
// The directory lives under t.TempDir and is removed with it; the
// caller must not leave mounts on it.
func Rootfs(t *testing.T) (string, []HostBind) {
	t.Helper()

	root := filepath.Join(t.TempDir(), "rootfs")
	for _, dir := range []string{"etc", "tmp", "proc", "dev", "mnt"} {
		if err := os.MkdirAll(filepath.Join(root, dir), 0755); err != nil {
			t.Fatalf("creating fixture %s: %v", dir, err)
		}
	}

	var binds []HostBind
	for _, name := range hostTree {
		hostPath := "/" + name
		info, err := os.Lstat(hostPath)
		if err != nil {
			continue
		}
		fixturePath := filepath.Join(root, name)

		if info.Mode()&os.ModeSymlink != 0 {
			target, err := os.Readlink(hostPath)
			if err != nil {
				t.Fatalf("reading host symlink %s: %v", hostPath, err)
			}
			if err := os.Symlink(target, fixturePath); err != nil {
				t.Fatalf("creating fixture symlink %s: %v", fixturePath, err)
			}
			continue
		}
		if !info.IsDir() {
			continue
		}
		if err := os.Mkdir(fixturePath, 0755); err != nil {
			t.Fatalf("creating fixture mount point %s: %v", fixturePath, err)
		}
		binds = append(binds, HostBind{Host: hostPath, Container: hostPath})
	}

	if len(binds) == 0 {
		t.Fatalf("host has none of %v to bind into the fixture rootfs", hostTree)
	}
	return root, binds
}
