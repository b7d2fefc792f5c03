// Copyright (C) The Lightning Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package pangenie

import (
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
)

// dumpCmd is a debug command that prints a gob-encoded genotyping-result
// dump (written by genotypeCmd/genotypePathsCmd's -dump flag) in a
// human-readable form: a local file in, text out.
type dumpCmd struct{}

func (c *dumpCmd) RunCommand(prog string, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet(prog, flag.ContinueOnError)
	fs.SetOutput(stderr)
	path := fs.String("i", "", "path to a chromosome dump file (required)")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	if *path == "" {
		fmt.Fprintln(stderr, "dump: -i is required")
		fs.Usage()
		return 1
	}
	f, err := os.Open(*path)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 1
	}
	defer f.Close()
	gz := strings.HasSuffix(*path, ".gz")
	err = ReadChromosomeDumps(f, gz, func(d *ChromosomeDump) error {
		fmt.Fprintf(stdout, "chromosome %s: %d sites\n", d.Chromosome, len(d.Sites))
		for _, s := range d.Sites {
			fmt.Fprintf(stdout, "  pos=%d genotypes=%v likelihoods=%v", s.Position, s.Genotypes, s.Likelihoods)
			if s.HasHap1 && s.HasHap2 {
				fmt.Fprintf(stdout, " phased=%d|%d", s.Hap1, s.Hap2)
			}
			fmt.Fprintln(stdout)
		}
		return nil
	})
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 1
	}
	return 0
}
