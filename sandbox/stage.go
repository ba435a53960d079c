// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package sandbox

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/moby/sys/reexec"

	"github.com/bureau-foundation/rootswap/lib/codec"
	"github.com/bureau-foundation/rootswap/lib/idmap"
	"github.com/bureau-foundation/rootswap/lib/namespace"
	"github.com/bureau-foundation/rootswap/lib/process"
)

// stageName is argv[0] of the re-executed binary that performs the root
// swap inside the new namespaces.
const stageName = "rootswap-stage"

// stageSpecFD is the inherited pipe carrying the launch description:
// the first entry of exec.Cmd.ExtraFiles.
const stageSpecFD = 3

// stageSpec is everything the stage needs, sent as CBOR over the pipe.
// Nothing travels through argv or the environment, so the host process's
// environment never reaches the command.
type stageSpec struct {
	Rootfs     string         `cbor:"rootfs"`
	Command    string         `cbor:"command"`
	Args       []string       `cbor:"args,omitempty"`
	Env        []string       `cbor:"env"`
	Mounts     []MountSpec    `cbor:"mounts,omitempty"`
	Namespaces namespace.Set  `cbor:"namespaces"`
	Identity   *idmap.Mapping `cbor:"identity,omitempty"`
	Hostname   string         `cbor:"hostname,omitempty"`
	LogLevel   slog.Level     `cbor:"log_level"`
	LogFormat  string         `cbor:"log_format,omitempty"`
}

func init() {
	reexec.Register(stageName, func() { runStage(nil) })
}

// runStage is the main function of the stage process. It never returns:
// it either execs the command or exits with a diagnostic. adjust, when
// non-nil, may alter the engine before it runs.
func runStage(adjust func(*engine)) {
	spec, err := readStageSpec(os.NewFile(stageSpecFD, "launch-description"))
	if err != nil {
		process.Fatal(&TransitionError{From: Unprivileged, To: NamespacedPrivate, Err: err})
	}

	logger := process.NewLogger(spec.LogLevel, spec.LogFormat).With("stage", os.Getpid())
	rootSwap := newEngine(spec, logger)
	if adjust != nil {
		adjust(rootSwap)
	}
	if err := rootSwap.run(); err != nil {
		process.Fatal(err)
	}

	logger.Debug("launching command", "command", spec.Command, "args", spec.Args)
	process.Fatal(launch(spec.Command, spec.Args, spec.Env))
}

func readStageSpec(file *os.File) (*stageSpec, error) {
	if file == nil {
		return nil, errors.New("launch description pipe is missing")
	}
	defer file.Close()

	var spec stageSpec
	if err := codec.ReadMessage(file, &spec); err != nil {
		return nil, fmt.Errorf("reading launch description: %w", err)
	}
	if spec.Rootfs == "" || spec.Command == "" {
		return nil, errors.New("launch description has no rootfs or command")
	}
	return &spec, nil
}
