// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package sandbox

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"golang.org/x/sys/unix"

	"github.com/bureau-foundation/rootswap/lib/idmap"
	"github.com/bureau-foundation/rootswap/lib/mount"
	"github.com/bureau-foundation/rootswap/lib/namespace"
)

// State is a stage of the root swap.
type State int

const (
	// Unprivileged: running under the host root. For the stage process
	// the namespaces already exist; nothing has touched them yet.
	Unprivileged State = iota

	// NamespacedPrivate: mount propagation is private and the identity
	// mapping is verified.
	NamespacedPrivate

	// RootfsBound: the rootfs is a mount point and the working directory.
	RootfsBound

	// MountsApplied: caller bind mounts are in place.
	MountsApplied

	// Pivoted: the rootfs is / and the host root sits in the scratch
	// directory.
	Pivoted

	// OldRootDetached: the host root is no longer reachable.
	OldRootDetached

	// Cleaned: the scratch directory is gone. Launch requires this.
	Cleaned
)

var stateNames = [...]string{
	Unprivileged:      "unprivileged",
	NamespacedPrivate: "namespaced-private",
	RootfsBound:       "rootfs-bound",
	MountsApplied:     "mounts-applied",
	Pivoted:           "pivoted",
	OldRootDetached:   "old-root-detached",
	Cleaned:           "cleaned",
}

func (s State) String() string {
	if s >= 0 && int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// scratchPattern names the directory that receives the old root.
const scratchPattern = ".rootswap-oldroot-*"

type step struct {
	to State
	fn func() error
}

// engine moves a stage process from the host root into the rootfs. It
// runs inside the new namespaces, single-threaded in effect: nothing
// else in the stage touches the filesystem while it runs.
type engine struct {
	spec   *stageSpec
	logger *slog.Logger
	state  State

	// scratch is the base name of the old-root directory, captured when
	// it is created. pivot_root does not report where it put the old
	// root.
	scratch string

	steps []step
}

func newEngine(spec *stageSpec, logger *slog.Logger) *engine {
	e := &engine{spec: spec, logger: logger}
	e.steps = []step{
		{NamespacedPrivate, e.enterNamespaces},
		{RootfsBound, e.bindRootfs},
		{MountsApplied, e.applyMounts},
		{Pivoted, e.pivot},
		{OldRootDetached, e.detachOldRoot},
		{Cleaned, e.removeOldRoot},
	}
	return e
}

// replace swaps the function of the transition into to.
func (e *engine) replace(to State, fn func() error) {
	for i := range e.steps {
		if e.steps[i].to == to {
			e.steps[i].fn = fn
		}
	}
}

// run performs every remaining transition in order.
func (e *engine) run() error {
	for _, step := range e.steps {
		if step.to <= e.state {
			continue
		}
		if err := e.transition(step.to, step.fn); err != nil {
			return err
		}
	}
	return nil
}

// transition runs fn to move from the current state to to. Only the
// immediate successor is legal; anything else fails before fn runs.
func (e *engine) transition(to State, fn func() error) error {
	from := e.state
	if to != from+1 {
		return &TransitionError{From: from, To: to, Err: ErrOutOfOrder}
	}
	if err := fn(); err != nil {
		return &TransitionError{From: from, To: to, Err: err}
	}
	e.state = to
	e.logger.Debug("root swap transition", "from", from, "to", to)
	return nil
}

func (e *engine) enterNamespaces() error {
	set := e.spec.Namespaces
	if e.spec.Identity != nil {
		if err := idmap.Verify(*e.spec.Identity); err != nil {
			return err
		}
	}
	if err := namespace.CheckPrivilege(set); err != nil {
		return err
	}
	if err := mount.MakePrivate("/"); err != nil {
		return err
	}
	if e.spec.Hostname != "" {
		if err := namespace.SetHostname(set, e.spec.Hostname); err != nil {
			return err
		}
	}
	if set.Net {
		if err := namespace.LoopbackUp(set); err != nil {
			return err
		}
	}
	return nil
}

// bindRootfs makes the rootfs a mount point of its own, which
// pivot_root requires of its new root, and enters it.
func (e *engine) bindRootfs() error {
	rootfs := e.spec.Rootfs
	if err := mount.BindMount(rootfs, rootfs, 0); err != nil {
		return err
	}
	if err := os.Chdir(rootfs); err != nil {
		return fmt.Errorf("entering rootfs: %w", err)
	}
	return nil
}

func (e *engine) applyMounts() error {
	return applyMounts(e.spec.Mounts, e.logger)
}

// pivot creates the scratch directory in the rootfs and swaps roots. The
// working directory is the rootfs.
func (e *engine) pivot() error {
	path, err := os.MkdirTemp(".", scratchPattern)
	if err != nil {
		return fmt.Errorf("creating old root directory: %w", err)
	}
	e.scratch = filepath.Base(path)

	if err := unix.PivotRoot(".", e.scratch); err != nil {
		// Still an ordinary directory of the host rootfs.
		removeErr := os.Remove(e.scratch)
		return errors.Join(&PivotError{NewRoot: e.spec.Rootfs, PutOld: e.scratch, Err: err}, removeErr)
	}
	return nil
}

func (e *engine) detachOldRoot() error {
	if err := os.Chdir("/"); err != nil {
		return fmt.Errorf("entering new root: %w", err)
	}
	return mount.DetachUnmount("/" + e.scratch)
}

func (e *engine) removeOldRoot() error {
	if err := os.Remove("/" + e.scratch); err != nil {
		return fmt.Errorf("removing old root directory: %w", err)
	}
	return nil
}
