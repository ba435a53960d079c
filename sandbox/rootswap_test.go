// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package sandbox

import (
	"errors"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/bureau-foundation/rootswap/lib/namespace"
	"github.com/bureau-foundation/rootswap/lib/testutil"
)

func TestStateString(t *testing.T) {
	if got := Pivoted.String(); got != "pivoted" {
		t.Errorf("Pivoted.String() = %q", got)
	}
	if got := State(42).String(); got != "state(42)" {
		t.Errorf("State(42).String() = %q", got)
	}
}

func TestTransitionOutOfOrder(t *testing.T) {
	e := newEngine(&stageSpec{}, discardLogger())

	ran := false
	err := e.transition(Pivoted, func() error {
		ran = true
		return nil
	})
	if ran {
		t.Fatal("out-of-order transition ran its step")
	}
	var transitionErr *TransitionError
	if !errors.As(err, &transitionErr) {
		t.Fatalf("expected *TransitionError, got %T: %v", err, err)
	}
	if !errors.Is(err, ErrOutOfOrder) {
		t.Errorf("expected ErrOutOfOrder, got %v", err)
	}
	if transitionErr.From != Unprivileged || transitionErr.To != Pivoted {
		t.Errorf("transition error names %s -> %s", transitionErr.From, transitionErr.To)
	}
	if e.state != Unprivileged {
		t.Errorf("state moved to %s", e.state)
	}

	// Repeating a completed transition is also out of order.
	if err := e.transition(NamespacedPrivate, func() error { return nil }); err != nil {
		t.Fatalf("first transition failed: %v", err)
	}
	if err := e.transition(NamespacedPrivate, func() error { return nil }); !errors.Is(err, ErrOutOfOrder) {
		t.Errorf("repeated transition: expected ErrOutOfOrder, got %v", err)
	}
}

func TestEngineRunsStepsInOrder(t *testing.T) {
	e := newEngine(&stageSpec{}, discardLogger())

	var visited []State
	for _, state := range []State{NamespacedPrivate, RootfsBound, MountsApplied, Pivoted, OldRootDetached, Cleaned} {
		e.replace(state, func() error {
			visited = append(visited, e.state)
			return nil
		})
	}
	if err := e.run(); err != nil {
		t.Fatalf("run failed: %v", err)
	}

	want := []State{Unprivileged, NamespacedPrivate, RootfsBound, MountsApplied, Pivoted, OldRootDetached}
	if !slices.Equal(visited, want) {
		t.Errorf("steps ran from states %v, want %v", visited, want)
	}
	if e.state != Cleaned {
		t.Errorf("final state %s, want cleaned", e.state)
	}
}

func TestEngineStopsAtFirstFailure(t *testing.T) {
	e := newEngine(&stageSpec{}, discardLogger())

	boom := errors.New("boom")
	reached := false
	e.replace(NamespacedPrivate, func() error { return nil })
	e.replace(RootfsBound, func() error { return boom })
	e.replace(MountsApplied, func() error {
		reached = true
		return nil
	})

	err := e.run()
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
	if reached {
		t.Error("transition after the failure ran")
	}
	if !strings.HasPrefix(err.Error(), "namespaced-private -> rootfs-bound: ") {
		t.Errorf("error %q does not name the transition", err)
	}
	if code := err.(*TransitionError).ExitCode(); code != ExitSetupFailure {
		t.Errorf("ExitCode() = %d, want %d", code, ExitSetupFailure)
	}
}

func TestLaunchMarker(t *testing.T) {
	skipIfNoSandbox(t)
	rootfs, mounts := fixtureRootfs(t)
	if err := os.WriteFile(filepath.Join(rootfs, "marker"), []byte("rootswap-marker\n"), 0644); err != nil {
		t.Fatalf("writing marker: %v", err)
	}

	result := runLaunch(t, Config{
		Rootfs:  rootfs,
		Mounts:  mounts,
		Command: "/bin/sh",
		Args:    []string{"-c", "cat /marker"},
	})
	if result.err != nil {
		t.Fatalf("launch failed: %v\nstderr: %s", result.err, result.stderr)
	}
	if result.stdout != "rootswap-marker\n" {
		t.Errorf("/marker = %q, want the rootfs marker", result.stdout)
	}
}

func TestLaunchTrue(t *testing.T) {
	skipIfNoSandbox(t)
	rootfs, mounts := fixtureRootfs(t)

	result := runLaunch(t, Config{Rootfs: rootfs, Mounts: mounts, Command: "/bin/true"})
	if result.err != nil {
		t.Fatalf("/bin/true: %v\nstderr: %s", result.err, result.stderr)
	}
}

func TestLaunchExitCode(t *testing.T) {
	skipIfNoSandbox(t)
	rootfs, mounts := fixtureRootfs(t)

	result := runLaunch(t, Config{
		Rootfs:  rootfs,
		Mounts:  mounts,
		Command: "/bin/sh",
		Args:    []string{"-c", "exit 7"},
	})
	code, ok := IsExitError(result.err)
	if !ok || code != 7 {
		t.Errorf("expected exit code 7, got %v", result.err)
	}
	if result.stderr != "" {
		t.Errorf("command failure produced launcher output: %q", result.stderr)
	}
}

func TestLaunchKilledBySignal(t *testing.T) {
	skipIfNoSandbox(t)
	rootfs, mounts := fixtureRootfs(t)

	result := runLaunch(t, Config{
		Rootfs:  rootfs,
		Mounts:  mounts,
		Command: "/bin/sh",
		Args:    []string{"-c", "kill -KILL $$"},
	})
	var exitErr *ExitError
	if !errors.As(result.err, &exitErr) {
		t.Fatalf("expected *ExitError, got %v", result.err)
	}
	if exitErr.Code != 128+9 {
		t.Errorf("exit code %d, want 137", exitErr.Code)
	}
}

func TestLaunchNotFound(t *testing.T) {
	skipIfNoSandbox(t)
	rootfs, mounts := fixtureRootfs(t)
	before := hostMountPoints(t)

	result := runLaunch(t, Config{Rootfs: rootfs, Mounts: mounts, Command: "/bin/nonexistent"})
	code, ok := IsExitError(result.err)
	if !ok || code != ExitNotFound {
		t.Fatalf("expected exit code %d, got %v", ExitNotFound, result.err)
	}
	if !strings.Contains(result.stderr, "error: launch /bin/nonexistent") {
		t.Errorf("stderr %q lacks the launch diagnostic", result.stderr)
	}
	if strings.Count(result.stderr, "\n") != 1 {
		t.Errorf("expected one diagnostic line, got %q", result.stderr)
	}

	if after := hostMountPoints(t); !slices.Equal(before, after) {
		t.Errorf("host mount table changed:\nbefore: %v\nafter:  %v", before, after)
	}
}

func TestLaunchNotExecutable(t *testing.T) {
	skipIfNoSandbox(t)
	rootfs, mounts := fixtureRootfs(t)
	if err := os.WriteFile(filepath.Join(rootfs, "script"), []byte("#!/bin/sh\n"), 0644); err != nil {
		t.Fatalf("writing script: %v", err)
	}

	result := runLaunch(t, Config{Rootfs: rootfs, Mounts: mounts, Command: "/script"})
	if code, ok := IsExitError(result.err); !ok || code != ExitNotExecutable {
		t.Errorf("expected exit code %d, got %v (stderr %q)", ExitNotExecutable, result.err, result.stderr)
	}
}

func TestLaunchMountsInOrder(t *testing.T) {
	skipIfNoSandbox(t)
	rootfs, mounts := fixtureRootfs(t)

	outer := t.TempDir()
	if err := os.WriteFile(filepath.Join(outer, "outer.txt"), []byte("outer\n"), 0644); err != nil {
		t.Fatal(err)
	}
	// The inner target exists only inside the outer mount, so the inner
	// mount succeeds only if it is applied second.
	if err := os.Mkdir(filepath.Join(outer, "inner"), 0755); err != nil {
		t.Fatal(err)
	}
	inner := t.TempDir()
	if err := os.WriteFile(filepath.Join(inner, "inner.txt"), []byte("inner\n"), 0644); err != nil {
		t.Fatal(err)
	}

	mounts = append(mounts,
		MountSpec{Host: outer, Container: "/mnt"},
		MountSpec{Host: inner, Container: "/mnt/inner"},
	)
	result := runLaunch(t, Config{
		Rootfs:  rootfs,
		Mounts:  mounts,
		Command: "/bin/sh",
		Args:    []string{"-c", "cat /mnt/outer.txt /mnt/inner/inner.txt"},
	})
	if result.err != nil {
		t.Fatalf("launch failed: %v\nstderr: %s", result.err, result.stderr)
	}
	if result.stdout != "outer\ninner\n" {
		t.Errorf("mounted contents = %q", result.stdout)
	}

	// The host directories are untouched by the launch.
	if _, err := os.Stat(filepath.Join(rootfs, "mnt", "outer.txt")); !os.IsNotExist(err) {
		t.Errorf("mount leaked into the host rootfs: %v", err)
	}
}

func TestLaunchMountTargetMissing(t *testing.T) {
	skipIfNoSandbox(t)
	rootfs, mounts := fixtureRootfs(t)

	mounts = append(mounts, MountSpec{Host: t.TempDir(), Container: "/does/not/exist"})
	result := runLaunch(t, Config{Rootfs: rootfs, Mounts: mounts, Command: "/bin/true"})
	if code, ok := IsExitError(result.err); !ok || code != ExitSetupFailure {
		t.Fatalf("expected exit code %d, got %v", ExitSetupFailure, result.err)
	}
	if !strings.Contains(result.stderr, "rootfs-bound -> mounts-applied") {
		t.Errorf("stderr %q does not name the failing transition", result.stderr)
	}
}

func TestLaunchLeavesNoScratchDirectory(t *testing.T) {
	skipIfNoSandbox(t)
	rootfs, mounts := fixtureRootfs(t)

	result := runLaunch(t, Config{
		Rootfs:  rootfs,
		Mounts:  mounts,
		Command: "/bin/sh",
		Args:    []string{"-c", "ls -a /"},
	})
	if result.err != nil {
		t.Fatalf("launch failed: %v\nstderr: %s", result.err, result.stderr)
	}
	for _, name := range strings.Fields(result.stdout) {
		if strings.HasPrefix(name, ".rootswap-oldroot-") {
			t.Errorf("scratch directory %s visible under the new /", name)
		}
	}
	assertNoScratch(t, rootfs)
}

func assertNoScratch(t *testing.T, rootfs string) {
	t.Helper()
	leftovers, err := filepath.Glob(filepath.Join(rootfs, scratchPattern))
	if err != nil {
		t.Fatal(err)
	}
	if len(leftovers) != 0 {
		t.Errorf("scratch directories left in the host rootfs: %v", leftovers)
	}
}

func TestLaunchEnvironmentIsExact(t *testing.T) {
	skipIfNoSandbox(t)
	rootfs, mounts := fixtureRootfs(t)
	t.Setenv("ROOTSWAP_TEST_PARENT_ONLY", "must-not-leak")

	env, err := ParseEnv([]string{"PATH=/usr/bin:/bin", "GREETING=hello world", "EMPTY="})
	if err != nil {
		t.Fatal(err)
	}
	result := runLaunch(t, Config{Rootfs: rootfs, Mounts: mounts, Command: "env", Env: env})
	if result.err != nil {
		t.Fatalf("launch failed: %v\nstderr: %s", result.err, result.stderr)
	}

	got := strings.Split(strings.TrimSuffix(result.stdout, "\n"), "\n")
	slices.Sort(got)
	want := env.List()
	slices.Sort(want)
	if !slices.Equal(got, want) {
		t.Errorf("command environment = %q, want exactly %q", got, want)
	}
}

func TestLaunchConcurrent(t *testing.T) {
	skipIfNoSandbox(t)
	rootfs, mounts := fixtureRootfs(t)
	if err := os.WriteFile(filepath.Join(rootfs, "marker"), []byte("shared\n"), 0644); err != nil {
		t.Fatal(err)
	}

	const launches = 2
	results := make(chan launchResult, launches)
	for range launches {
		sb, stdout, stderr := newTestSandbox(t, Config{
			Rootfs:  rootfs,
			Mounts:  mounts,
			Command: "/bin/sh",
			Args:    []string{"-c", "cat /marker"},
		})
		go func() {
			err := sb.Run(t.Context())
			results <- launchResult{stdout: stdout.String(), stderr: stderr.String(), err: err}
		}()
	}

	for i := range launches {
		result := testutil.RequireReceive(t, results, 30*time.Second, "launch %d", i)
		if result.err != nil {
			t.Errorf("concurrent launch failed: %v\nstderr: %s", result.err, result.stderr)
			continue
		}
		if result.stdout != "shared\n" {
			t.Errorf("concurrent launch saw %q", result.stdout)
		}
	}
	assertNoScratch(t, rootfs)
}

func TestLaunchPivotFailure(t *testing.T) {
	skipIfNoSandbox(t)
	rootfs, mounts := fixtureRootfs(t)
	marker := filepath.Join(t.TempDir(), "ran")
	before := hostMountPoints(t)

	sb, _, stderr := newTestSandbox(t, Config{
		Rootfs:  rootfs,
		Mounts:  mounts,
		Command: "/bin/touch",
		Args:    []string{marker},
	})
	sb.stage = unboundStage

	err := sb.Run(t.Context())
	if code, ok := IsExitError(err); !ok || code != ExitSetupFailure {
		t.Fatalf("expected exit code %d, got %v (stderr %q)", ExitSetupFailure, err, stderr.String())
	}
	if !strings.Contains(stderr.String(), "mounts-applied -> pivoted: pivot_root") {
		t.Errorf("stderr %q does not report the pivot failure", stderr.String())
	}
	if _, err := os.Stat(marker); !os.IsNotExist(err) {
		t.Errorf("command ran despite the failed pivot: %v", err)
	}
	if after := hostMountPoints(t); !slices.Equal(before, after) {
		t.Errorf("host mount table changed:\nbefore: %v\nafter:  %v", before, after)
	}
	assertNoScratch(t, rootfs)
}

func TestLaunchHostname(t *testing.T) {
	skipIfNoSandbox(t)
	rootfs, mounts := fixtureRootfs(t)
	hostname := testutil.UniqueID("rootswap")

	result := runLaunch(t, Config{
		Rootfs:     rootfs,
		Mounts:     mounts,
		Namespaces: namespace.Set{User: true, Mount: true, UTS: true},
		Hostname:   hostname,
		Command:    "uname",
		Args:       []string{"-n"},
	})
	if result.err != nil {
		t.Fatalf("launch failed: %v\nstderr: %s", result.err, result.stderr)
	}
	if strings.TrimSpace(result.stdout) != hostname {
		t.Errorf("hostname = %q, want %q", result.stdout, hostname)
	}
}
