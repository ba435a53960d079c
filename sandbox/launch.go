// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package sandbox

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/sys/unix"
)

// defaultPath is searched when the command's environment has no PATH.
const defaultPath = "/usr/local/sbin:/usr/local/bin:/usr/sbin:/usr/bin:/sbin:/bin"

var (
	errNotFound      = errors.New("command not found")
	errNotExecutable = errors.New("permission denied: not an executable file")
)

// launch replaces the stage process with command. The environment is
// exactly env; the standard streams are inherited. It returns only on
// failure, always with a *LaunchError.
func launch(command string, args []string, env []string) error {
	path, err := lookPath(command, pathFromEnv(env))
	if err != nil {
		return err
	}
	argv := append([]string{command}, args...)
	return execError(command, unix.Exec(path, argv, env))
}

// pathFromEnv returns the last PATH assignment in env.
func pathFromEnv(env []string) string {
	path := defaultPath
	for _, assignment := range env {
		if value, ok := strings.CutPrefix(assignment, "PATH="); ok {
			path = value
		}
	}
	return path
}

// lookPath resolves command the way a shell does. A command containing a
// slash is used as is; a bare name is searched in path, where an empty
// entry means the working directory. A match that exists but is not
// executable is reported only if no executable match follows it.
func lookPath(command, path string) (string, error) {
	if command == "" {
		return "", &LaunchError{Command: command, Err: errNotFound, Code: ExitNotFound}
	}
	if strings.Contains(command, "/") {
		if err := checkExecutable(command); err != nil {
			return "", launchLookupError(command, err)
		}
		return command, nil
	}

	var denied error
	for _, dir := range filepath.SplitList(path) {
		if dir == "" {
			dir = "."
		}
		candidate := filepath.Join(dir, command)
		err := checkExecutable(candidate)
		if err == nil {
			return candidate, nil
		}
		if errors.Is(err, errNotExecutable) && denied == nil {
			denied = err
		}
	}
	if denied != nil {
		return "", launchLookupError(command, denied)
	}
	return "", launchLookupError(command, errNotFound)
}

func checkExecutable(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return errNotFound
		}
		return err
	}
	if !info.Mode().IsRegular() || info.Mode().Perm()&0111 == 0 {
		return errNotExecutable
	}
	return nil
}

func launchLookupError(command string, err error) *LaunchError {
	code := ExitNotExecutable
	if errors.Is(err, errNotFound) {
		code = ExitNotFound
	}
	return &LaunchError{Command: command, Err: err, Code: code}
}
