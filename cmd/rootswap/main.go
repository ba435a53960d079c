// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"

	"github.com/moby/sys/reexec"
	"github.com/spf13/pflag"

	"github.com/bureau-foundation/rootswap/lib/config"
	"github.com/bureau-foundation/rootswap/lib/namespace"
	"github.com/bureau-foundation/rootswap/lib/process"
	"github.com/bureau-foundation/rootswap/lib/version"
	"github.com/bureau-foundation/rootswap/sandbox"
)

func main() {
	// The stage and the capability probe are this binary re-executed.
	if reexec.Init() {
		return
	}

	if err := run(os.Args[1:], os.Stdout, os.Stderr); err != nil {
		// The launch already reported its own failure; only the status
		// is left to pass on.
		var exitErr *sandbox.ExitError
		if errors.As(err, &exitErr) {
			os.Exit(exitErr.Code)
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(exitCode(err))
	}
}

// exitCode maps errors raised before the launch to the setup failure
// status unless they carry their own.
func exitCode(err error) int {
	var coder process.ExitCoder
	if errors.As(err, &coder) {
		return coder.ExitCode()
	}
	return sandbox.ExitSetupFailure
}

// options are the parsed command line.
type options struct {
	mounts     []string
	env        []string
	namespaces []string
	hostname   string
	configPath string
	dryRun     bool
	validate   bool
	version    bool
	help       bool

	// Flags given explicitly, which override the config file.
	namespacesSet bool
	hostnameSet   bool

	// ROOTFS [COMMAND [ARG...]]
	positional []string
}

func parseFlags(args []string, stderr io.Writer) (*options, error) {
	opts := &options{}

	flagSet := pflag.NewFlagSet("rootswap", pflag.ContinueOnError)
	flagSet.SetOutput(stderr)
	// Everything after ROOTFS belongs to the command.
	flagSet.SetInterspersed(false)
	flagSet.StringArrayVarP(&opts.mounts, "mount", "m", nil, "bind mount `HOST:CONTAINER[:OPTIONS]` (repeatable, applied in order; OPTIONS: ro,nosuid,nodev,noexec,rec)")
	flagSet.StringArrayVarP(&opts.env, "env", "e", nil, "set `NAME=VALUE` in the command's environment (repeatable, later wins)")
	flagSet.StringSliceVar(&opts.namespaces, "ns", nil, "namespaces to create: user,mount,pid,uts,network,ipc,cgroup (default from config: user,mount)")
	flagSet.StringVar(&opts.hostname, "hostname", "", "hostname inside the uts namespace")
	flagSet.StringVar(&opts.configPath, "config", "", "config file (default $"+config.EnvVariable+")")
	flagSet.BoolVar(&opts.dryRun, "dry-run", false, "print the launch plan without running it")
	flagSet.BoolVar(&opts.validate, "validate", false, "run pre-flight checks without launching")
	flagSet.BoolVar(&opts.version, "version", false, "print version information")
	flagSet.BoolVarP(&opts.help, "help", "h", false, "show help")
	flagSet.Usage = func() { printHelp(stderr, flagSet) }

	if err := flagSet.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			opts.help = true
			return opts, nil
		}
		return nil, err
	}
	if opts.help {
		printHelp(stderr, flagSet)
	}

	opts.namespacesSet = flagSet.Changed("ns")
	opts.hostnameSet = flagSet.Changed("hostname")
	opts.positional = flagSet.Args()
	return opts, nil
}

func run(args []string, stdout, stderr io.Writer) error {
	opts, err := parseFlags(args, stderr)
	if err != nil {
		return err
	}
	if opts.help {
		return nil
	}
	if opts.version {
		version.Print(stdout, "rootswap")
		return nil
	}
	if len(opts.positional) == 0 {
		return fmt.Errorf("ROOTFS is required (see rootswap --help)")
	}

	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return err
	}
	level, err := process.ParseLevel(cfg.Log.Level)
	if err != nil {
		return err
	}
	logger := process.NewLoggerTo(stderr, level, cfg.Log.Format)

	launchConfig, err := buildConfig(opts, cfg, logger)
	if err != nil {
		return err
	}
	launchConfig.LogLevel = level
	launchConfig.LogFormat = cfg.Log.Format
	launchConfig.Stdout = stdout
	launchConfig.Stderr = stderr

	sb, err := sandbox.New(launchConfig)
	if err != nil {
		return err
	}

	switch {
	case opts.validate:
		return sb.Validate(stdout)
	case opts.dryRun:
		return sb.DryRun(stdout)
	}
	return sb.Run(context.Background())
}

// buildConfig merges the config file and the command line. Config
// mounts and environment come first; command line entries follow, so
// they win on duplicate variables and their mounts land on top.
func buildConfig(opts *options, cfg *config.Config, logger *slog.Logger) (sandbox.Config, error) {
	launch := sandbox.Config{
		Rootfs:   opts.positional[0],
		Command:  cfg.Launch.DefaultShell,
		Hostname: cfg.Launch.Hostname,
		Logger:   logger,
	}
	if len(opts.positional) > 1 {
		launch.Command = opts.positional[1]
		launch.Args = opts.positional[2:]
	}
	if opts.hostnameSet {
		launch.Hostname = opts.hostname
	}

	names := cfg.Launch.Namespaces
	if opts.namespacesSet {
		names = opts.namespaces
	}
	namespaces, err := namespace.Parse(names)
	if err != nil {
		return sandbox.Config{}, err
	}
	launch.Namespaces = namespaces

	for _, entry := range cfg.Launch.Mounts {
		spec, err := sandbox.NewMountSpec(entry.Host, entry.Container, entry.Options)
		if err != nil {
			return sandbox.Config{}, fmt.Errorf("config: %w", err)
		}
		launch.Mounts = append(launch.Mounts, spec)
	}
	for _, value := range opts.mounts {
		spec, err := sandbox.ParseMountSpec(value)
		if err != nil {
			return sandbox.Config{}, err
		}
		launch.Mounts = append(launch.Mounts, spec)
	}

	// Map order is random; sort so config variables keep a stable order.
	names = make([]string, 0, len(cfg.Launch.Environment))
	for name := range cfg.Launch.Environment {
		names = append(names, name)
	}
	slices.Sort(names)
	for _, name := range names {
		launch.Env.Set(name, cfg.Launch.Environment[name])
	}
	for _, assignment := range opts.env {
		if err := launch.Env.Parse(assignment); err != nil {
			return sandbox.Config{}, err
		}
	}

	return launch, nil
}

func printHelp(w io.Writer, flagSet *pflag.FlagSet) {
	fmt.Fprintf(w, `rootswap - run a command inside an extracted root filesystem

USAGE
    rootswap [flags] ROOTFS [COMMAND [ARG...]]

COMMAND defaults to the configured shell (/bin/sh). Flags must come
before ROOTFS; everything after it is passed to the command verbatim.

FLAGS
`)
	flagSet.SetOutput(w)
	flagSet.PrintDefaults()
	fmt.Fprintf(w, `
EXAMPLES
    # Shell in an extracted image
    rootswap /srv/images/alpine

    # Read-only host tools and a writable work directory
    rootswap -m /usr:/usr:ro -m $PWD:/work -e PATH=/usr/bin:/bin /srv/rootfs make -C /work

    # Isolate pid, hostname and network too
    rootswap --ns user,mount,pid,uts,net --hostname box /srv/rootfs /bin/sh

    # Show what would happen
    rootswap --dry-run -m /usr:/usr:ro /srv/rootfs /bin/true

EXIT STATUS
    The command's status; 125 if the launch failed, 126 if COMMAND is not
    executable, 127 if it is not found, 128+N if it was killed by signal N.

ENVIRONMENT
    %s    Config file used when --config is not given
    %s     Enable debug logging
`, config.EnvVariable, process.DebugEnv)
}
