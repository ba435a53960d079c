// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package sandbox

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/bureau-foundation/rootswap/lib/mount"
)

// ValidationResult holds the result of a validation check.
type ValidationResult struct {
	Name    string
	Passed  bool
	Message string
	Warning bool // True if this is a warning, not an error.
}

// Validator performs pre-flight validation for a launch. It checks the
// host without creating namespaces or mounts, apart from the capability
// probe's throwaway process.
type Validator struct {
	results []ValidationResult
	errors  int

	// detect is replaced in tests.
	detect func() *Capabilities
}

// NewValidator creates a new validator.
func NewValidator() *Validator {
	return &Validator{
		results: make([]ValidationResult, 0),
		detect:  DetectCapabilities,
	}
}

// Results returns all validation results.
func (v *Validator) Results() []ValidationResult {
	return v.results
}

// HasErrors returns true if any validation failed.
func (v *Validator) HasErrors() bool {
	return v.errors > 0
}

func (v *Validator) pass(name, message string) {
	v.results = append(v.results, ValidationResult{
		Name:    name,
		Passed:  true,
		Message: message,
	})
}

// warn records a warning (not a failure).
func (v *Validator) warn(name, message string) {
	v.results = append(v.results, ValidationResult{
		Name:    name,
		Passed:  true,
		Message: message,
		Warning: true,
	})
}

func (v *Validator) fail(name, message string) {
	v.results = append(v.results, ValidationResult{
		Name:    name,
		Passed:  false,
		Message: message,
	})
	v.errors++
}

// ValidateAll runs all validation checks for a normalized configuration.
func (v *Validator) ValidateAll(config Config) {
	v.ValidateNamespaces(config)
	v.ValidateRootfs(config.Rootfs)
	v.ValidateMounts(config.Rootfs, config.Mounts)
	v.ValidateCommand(config)
}

// ValidateNamespaces checks that this process can create the requested
// namespaces and mount inside them.
func (v *Validator) ValidateNamespaces(config Config) {
	caps := v.detect()

	if !config.Namespaces.User {
		if caps.HostSysAdmin {
			v.pass("privilege", "CAP_SYS_ADMIN held; launching without a user namespace")
		} else {
			v.fail("privilege", "without a user namespace the launch needs CAP_SYS_ADMIN")
		}
		return
	}

	if !caps.CanLaunch() {
		v.fail("userns", caps.SkipReason())
		return
	}
	v.pass("userns", fmt.Sprintf("rootless launch works (namespaces: %s)", config.Namespaces))
}

// ValidateRootfs checks that the rootfs is a directory on a mount that
// allows executing its binaries.
func (v *Validator) ValidateRootfs(rootfs string) {
	info, err := os.Stat(rootfs)
	if err != nil {
		if os.IsNotExist(err) {
			v.fail("rootfs", fmt.Sprintf("does not exist: %s", rootfs))
		} else {
			v.fail("rootfs", fmt.Sprintf("cannot access: %v", err))
		}
		return
	}
	if !info.IsDir() {
		v.fail("rootfs", fmt.Sprintf("not a directory: %s", rootfs))
		return
	}

	enclosing, err := mount.Enclosing(rootfs)
	if err != nil {
		v.warn("rootfs", fmt.Sprintf("cannot find the mount containing %s: %v", rootfs, err))
		return
	}
	if mount.HasOption(enclosing.Options, "noexec") {
		v.warn("rootfs", fmt.Sprintf("%s is on a noexec mount (%s); only binaries from bind mounts can run", rootfs, enclosing.Mountpoint))
		return
	}
	v.pass("rootfs", fmt.Sprintf("exists: %s", rootfs))
}

// ValidateMounts checks every mount source exists and every target
// resolves inside the rootfs once the mounts before it are applied.
func (v *Validator) ValidateMounts(rootfs string, mounts []MountSpec) {
	seen := make(map[string]int, len(mounts))
	view := &containerView{rootfs: rootfs}
	for i, spec := range mounts {
		name := fmt.Sprintf("mount[%d]", i)

		if _, err := os.Stat(spec.Host); err != nil {
			v.fail(name, fmt.Sprintf("source %s: %v", spec.Host, err))
			continue
		}

		target, err := view.plan(spec)
		if err != nil {
			v.fail(name, fmt.Sprintf("target %s must exist in the rootfs: %v", spec.Container, err))
			continue
		}

		if previous, ok := seen[target]; ok {
			v.warn(name, fmt.Sprintf("target %s is also the target of mount[%d]; the later mount hides the earlier", target, previous))
			continue
		}
		seen[target] = i
		v.pass(name, spec.String())
	}
}

// ValidateCommand checks the command resolves to an executable file in
// the container's view of the filesystem.
func (v *Validator) ValidateCommand(config Config) {
	view := newContainerView(config.Rootfs, config.Mounts)
	command := config.Command

	var candidates []string
	if strings.Contains(command, "/") {
		candidates = []string{command}
	} else {
		for _, dir := range filepath.SplitList(pathFromEnv(config.Env.List())) {
			candidates = append(candidates, filepath.Join("/", dir, command))
		}
	}

	for _, candidate := range candidates {
		resolved, err := resolveScoped(candidate, view.hostPath)
		if err != nil {
			continue
		}
		if err := checkExecutable(view.hostPath(resolved)); err == nil {
			v.pass("command", fmt.Sprintf("%s resolves to %s", command, resolved))
			return
		}
	}
	v.fail("command", fmt.Sprintf("%s: not found or not executable in the rootfs", command))
}

// PrintResults writes validation results to a writer.
func (v *Validator) PrintResults(w io.Writer) {
	for _, r := range v.results {
		var prefix string
		if r.Passed {
			if r.Warning {
				prefix = "⚠"
			} else {
				prefix = "✓"
			}
		} else {
			prefix = "✗"
		}
		fmt.Fprintf(w, "%s %s: %s\n", prefix, r.Name, r.Message)
	}

	fmt.Fprintln(w)
	if v.HasErrors() {
		fmt.Fprintf(w, "Validation failed with %d error(s)\n", v.errors)
	} else {
		fmt.Fprintln(w, "Ready to launch")
	}
}

// containerView maps container paths to host paths before anything is
// mounted: a path under a planned mount target maps into that mount's
// host directory, anything else into the rootfs.
type containerView struct {
	rootfs string
	mounts []plannedMount
}

// plannedMount is a mount keyed by its target after symlink resolution,
// which is where the kernel places it.
type plannedMount struct {
	target string
	host   string
}

// newContainerView plans mounts in order. A mount whose target does not
// resolve is left out; applying it would fail the launch anyway.
func newContainerView(rootfs string, mounts []MountSpec) *containerView {
	view := &containerView{rootfs: rootfs}
	for _, spec := range mounts {
		view.plan(spec)
	}
	return view
}

// plan resolves the target of spec through the mounts planned so far
// and records it. It returns the resolved target.
func (c *containerView) plan(spec MountSpec) (string, error) {
	target, err := resolveScoped(spec.Container, c.hostPath)
	if err != nil {
		return "", err
	}
	c.mounts = append(c.mounts, plannedMount{target: target, host: spec.Host})
	return target, nil
}

func (c *containerView) hostPath(containerPath string) string {
	// A later mount covering the path hides every earlier one, whether
	// it is deeper or shallower.
	for i := len(c.mounts) - 1; i >= 0; i-- {
		planned := c.mounts[i]
		if within(containerPath, planned.target) {
			rest := strings.TrimPrefix(containerPath, planned.target)
			return filepath.Join(planned.host, rest)
		}
	}
	return filepath.Join(c.rootfs, containerPath)
}

// within reports whether path is dir or below it.
func within(path, dir string) bool {
	return path == dir || strings.HasPrefix(path, strings.TrimSuffix(dir, "/")+"/")
}
