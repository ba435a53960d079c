// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package version

import (
	"fmt"
	"io"
	"runtime"
	"runtime/debug"
)

// Set via -ldflags at build time, for example:
//
//	go build -ldflags "-X github.com/bureau-foundation/rootswap/lib/version.GitCommit=$(git rev-parse --short HEAD)"
//
// When GitCommit is left unset, [Info] falls back to the VCS stamp the
// go command embeds in module builds.
var (
	GitCommit = "unknown"
	GitDirty  = "false"
	BuildTime = "unknown"
	Version   = "0.1.0-dev"
)

// build is the identity reported by Info after the VCS fallback.
type build struct {
	commit string
	dirty  bool
	time   string
}

func current() build {
	b := build{commit: GitCommit, dirty: GitDirty == "true", time: BuildTime}
	if b.commit != "unknown" {
		return b
	}
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return b
	}
	return fromSettings(b, info.Settings)
}

func fromSettings(b build, settings []debug.BuildSetting) build {
	for _, setting := range settings {
		switch setting.Key {
		case "vcs.revision":
			b.commit = setting.Value
			if len(b.commit) > 12 {
				b.commit = b.commit[:12]
			}
		case "vcs.modified":
			b.dirty = setting.Value == "true"
		case "vcs.time":
			if b.time == "unknown" {
				b.time = setting.Value
			}
		}
	}
	return b
}

// Info returns a formatted version string suitable for --version output.
func Info() string {
	return current().format()
}

func (b build) format() string {
	dirty := ""
	if b.dirty {
		dirty = "-dirty"
	}
	return fmt.Sprintf("%s (%s%s, %s)", Version, b.commit, dirty, b.time)
}

// Full returns Info plus the Go version and platform.
func Full() string {
	return fmt.Sprintf("%s\n  Go: %s\n  Platform: %s/%s",
		Info(), runtime.Version(), runtime.GOOS, runtime.GOARCH)
}

// Print writes "<binary> <Full()>" to w.
func Print(w io.Writer, binary string) {
	fmt.Fprintf(w, "%s %s\n", binary, Full())
}
