// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package mount

import "fmt"

// MountError reports a failed mount, remount or unmount call.
type MountError struct {
	// Op is one of bind, remount, statfs, make-private, detach or
	// resolve target.
	Op     string
	Source string
	Target string
	Flags  Flags
	Err    error
}

func (e *MountError) Error() string {
	switch {
	case e.Source != "" && e.Op == "bind":
		return fmt.Sprintf("mount: bind %s onto %s (%s): %v", e.Source, e.Target, e.Flags, e.Err)
	case e.Flags != 0:
		return fmt.Sprintf("mount: %s %s (%s): %v", e.Op, e.Target, e.Flags, e.Err)
	default:
		return fmt.Sprintf("mount: %s %s: %v", e.Op, e.Target, e.Err)
	}
}

func (e *MountError) Unwrap() error { return e.Err }
