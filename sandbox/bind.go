// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package sandbox

import (
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/bureau-foundation/rootswap/lib/mount"
)

// maxSymlinks bounds symlink resolution inside the rootfs, matching the
// kernel's MAXSYMLINKS.
const maxSymlinks = 40

// applyMounts bind-mounts each spec in order. The working directory is
// the bound rootfs, not yet pivoted, so targets are resolved relative to
// it. The first failure aborts the rest; mounts already made stay.
func applyMounts(mounts []MountSpec, logger *slog.Logger) error {
	for _, spec := range mounts {
		target, err := scopedPath(spec.Container)
		if err != nil {
			return &mount.MountError{Op: "resolve target", Source: spec.Host, Target: spec.Container, Err: err}
		}
		if err := mount.BindMount(spec.Host, target, spec.Flags); err != nil {
			return err
		}
		logger.Debug("bind mount applied",
			"host", spec.Host,
			"container", spec.Container,
			"flags", spec.Flags,
		)
	}
	return nil
}

// scopedPath resolves path against the working directory as though it
// were /. The result is relative to the working directory.
func scopedPath(path string) (string, error) {
	resolved, err := resolveScoped(path, workingDirectoryView)
	if err != nil {
		return "", err
	}
	return workingDirectoryView(resolved), nil
}

func workingDirectoryView(containerPath string) string {
	return filepath.Join(".", containerPath)
}

// resolveScoped resolves symlinks in the container path path and returns
// the resulting container path. hostPath maps a container path to where
// it can be inspected on the host. ".." stops at / and absolute symlinks
// restart there, so the result never names anything outside the
// container tree. Every component must exist.
func resolveScoped(path string, hostPath func(string) string) (string, error) {
	var resolved []string
	pending := strings.Split(path, "/")
	links := 0

	for len(pending) > 0 {
		part := pending[0]
		pending = pending[1:]

		switch part {
		case "", ".":
			continue
		case "..":
			if len(resolved) > 0 {
				resolved = resolved[:len(resolved)-1]
			}
			continue
		}

		candidate := hostPath(rooted(append(resolved, part)))
		info, err := os.Lstat(candidate)
		if err != nil {
			return "", err
		}
		if info.Mode()&fs.ModeSymlink == 0 {
			resolved = append(resolved, part)
			continue
		}

		links++
		if links > maxSymlinks {
			return "", &fs.PathError{Op: "resolve", Path: path, Err: syscall.ELOOP}
		}
		target, err := os.Readlink(candidate)
		if err != nil {
			return "", err
		}
		if strings.HasPrefix(target, "/") {
			resolved = resolved[:0]
		}
		pending = append(strings.Split(target, "/"), pending...)
	}
	return rooted(resolved), nil
}

func rooted(components []string) string {
	return "/" + strings.Join(components, "/")
}
