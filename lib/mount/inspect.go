// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package mount

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/moby/sys/mountinfo"
)

// Table returns the mount table of the calling process's mount namespace.
func Table() ([]*mountinfo.Info, error) {
	mounts, err := mountinfo.GetMounts(nil)
	if err != nil {
		return nil, fmt.Errorf("reading mount table: %w", err)
	}
	return mounts, nil
}

// IsMountPoint reports whether path is itself a mount point.
func IsMountPoint(path string) (bool, error) {
	return mountinfo.Mounted(path)
}

// Enclosing returns the mount that contains path: the entry with the
// longest mount point that is a parent of (or equal to) path.
func Enclosing(path string) (*mountinfo.Info, error) {
	resolved, err := filepath.EvalSymlinks(path)
	if err != nil {
		return nil, err
	}
	mounts, err := mountinfo.GetMounts(mountinfo.ParentsFilter(resolved))
	if err != nil {
		return nil, fmt.Errorf("reading mount table: %w", err)
	}
	var best *mountinfo.Info
	for _, m := range mounts {
		if best == nil || len(m.Mountpoint) > len(best.Mountpoint) {
			best = m
		}
	}
	if best == nil {
		return nil, fmt.Errorf("no mount contains %s", resolved)
	}
	return best, nil
}

// HasOption reports whether a comma-separated mountinfo option field
// contains option.
func HasOption(options, option string) bool {
	for _, candidate := range strings.Split(options, ",") {
		if candidate == option {
			return true
		}
	}
	return false
}
