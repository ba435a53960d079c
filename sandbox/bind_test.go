// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package sandbox

import (
	"errors"
	"os"
	"path/filepath"
	"syscall"
	"testing"
)

// scopedTree builds a small tree with symlinks that try to escape it.
func scopedTree(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	for _, dir := range []string{"usr/bin", "data/inner", "etc"} {
		if err := os.MkdirAll(filepath.Join(root, dir), 0755); err != nil {
			t.Fatal(err)
		}
	}
	links := map[string]string{
		"bin":          "usr/bin",
		"abs":          "/data",
		"escape":       "../../../../..",
		"escape-abs":   "/etc",
		"data/up":      "../etc",
		"loop-a":       "loop-b",
		"loop-b":       "loop-a",
		"dangling":     "missing",
		"data/chained": "/bin",
	}
	for name, target := range links {
		if err := os.Symlink(target, filepath.Join(root, name)); err != nil {
			t.Fatal(err)
		}
	}
	return root
}

func TestScopedPath(t *testing.T) {
	root := scopedTree(t)
	t.Chdir(root)

	tests := []struct {
		path string
		want string
	}{
		{"/usr/bin", "usr/bin"},
		{"usr/bin/", "usr/bin"},
		{"/bin", "usr/bin"},
		{"/abs/inner", "data/inner"},
		{"/escape", "."},
		{"/escape/etc", "etc"},
		{"/escape-abs", "etc"},
		{"/../../data", "data"},
		{"/data/up", "etc"},
		{"/data/chained", "usr/bin"},
	}
	for _, test := range tests {
		got, err := scopedPath(test.path)
		if err != nil {
			t.Errorf("scopedPath(%q) failed: %v", test.path, err)
			continue
		}
		if got != test.want {
			t.Errorf("scopedPath(%q) = %q, want %q", test.path, got, test.want)
		}
	}
}

func TestScopedPathErrors(t *testing.T) {
	root := scopedTree(t)
	t.Chdir(root)

	if _, err := scopedPath("/missing/dir"); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("missing path: expected ErrNotExist, got %v", err)
	}
	if _, err := scopedPath("/dangling"); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("dangling symlink: expected ErrNotExist, got %v", err)
	}
	if _, err := scopedPath("/loop-a"); !errors.Is(err, syscall.ELOOP) {
		t.Errorf("symlink loop: expected ELOOP, got %v", err)
	}
}

func TestResolveScopedThroughView(t *testing.T) {
	rootfs := scopedTree(t)
	host := t.TempDir()
	if err := os.MkdirAll(filepath.Join(host, "sub"), 0755); err != nil {
		t.Fatal(err)
	}
	// A symlink inside the mounted host directory resolves in the
	// container's view, back into the rootfs.
	if err := os.Symlink("/etc", filepath.Join(host, "config")); err != nil {
		t.Fatal(err)
	}

	view := newContainerView(rootfs, []MountSpec{{Host: host, Container: "/data/inner"}})

	got, err := resolveScoped("/abs/inner/sub", view.hostPath)
	if err != nil {
		t.Fatalf("resolveScoped failed: %v", err)
	}
	if got != "/data/inner/sub" {
		t.Errorf("resolved = %q", got)
	}
	if hostPath := view.hostPath(got); hostPath != filepath.Join(host, "sub") {
		t.Errorf("hostPath = %q, want %q", hostPath, filepath.Join(host, "sub"))
	}

	got, err = resolveScoped("/data/inner/config", view.hostPath)
	if err != nil {
		t.Fatalf("resolveScoped failed: %v", err)
	}
	if got != "/etc" {
		t.Errorf("symlink in mount resolved to %q, want /etc", got)
	}
}

func TestContainerViewLastMountWins(t *testing.T) {
	tests := []struct {
		name   string
		mounts []plannedMount
		paths  map[string]string
	}{
		{
			name: "nested after parent",
			mounts: []plannedMount{
				{target: "/mnt", host: "/first"},
				{target: "/mnt/deep", host: "/nested"},
			},
			paths: map[string]string{
				"/":              "/rootfs",
				"/mntx":          "/rootfs/mntx",
				"/mnt/file":      "/first/file",
				"/mnt/deep":      "/nested",
				"/mnt/deep/file": "/nested/file",
			},
		},
		{
			name: "parent hides earlier nested",
			mounts: []plannedMount{
				{target: "/mnt/deep", host: "/nested"},
				{target: "/mnt", host: "/second"},
			},
			paths: map[string]string{
				"/mnt":           "/second",
				"/mnt/deep/file": "/second/deep/file",
			},
		},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			view := &containerView{rootfs: "/rootfs", mounts: test.mounts}
			for containerPath, want := range test.paths {
				if got := view.hostPath(containerPath); got != want {
					t.Errorf("hostPath(%q) = %q, want %q", containerPath, got, want)
				}
			}
		})
	}
}
