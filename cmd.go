// Copyright (C) The Lightning Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package pangenie

import (
	"os"
	"runtime/debug"

	"git.arvados.org/arvados.git/lib/cmd"
	"github.com/mattn/go-isatty"
	"github.com/sirupsen/logrus"
)

var handler = cmd.Multi(map[string]cmd.Handler{
	"version":   cmd.Version,
	"-version":  cmd.Version,
	"--version": cmd.Version,

	"genotype":       &genotypeCmd{},
	"genotype-paths": &genotypePathsCmd{},
	"dump":           &dumpCmd{},
})

func init() {
	if os.Getenv("GOGC") == "" {
		debug.SetGCPercent(30)
	}
}

func configureLogging() {
	if !isatty.IsTerminal(os.Stderr.Fd()) {
		logrus.StandardLogger().Formatter = &logrus.TextFormatter{DisableTimestamp: true}
	}
}

// Main is the combined multi-command entry point, used by cmd/pangenie:
// `pangenie genotype ...`, `pangenie genotype-paths ...`, `pangenie dump
// ...`, `pangenie version`.
func Main() {
	configureLogging()
	os.Exit(handler.RunCommand(os.Args[0], os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

// RunGenotypePaths runs the paths-only command directly, without subcommand
// dispatch -- the single-purpose executable shape of
// original_source/src/pggtyper-paths.cpp, exposed as cmd/pangenie-paths.
func RunGenotypePaths(prog string, args []string) int {
	configureLogging()
	return (&genotypePathsCmd{}).RunCommand(prog, args, os.Stdin, os.Stdout, os.Stderr)
}
