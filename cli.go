// Copyright (C) The Lightning Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package pangenie

import (
	"bytes"
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"runtime"
	"strings"

	log "github.com/sirupsen/logrus"
)

// DefaultRecombinationRate (cM/Mb) is used by both CLIs; neither
// original_source/src/pggtyper.cpp nor pggtyper-paths.cpp exposes it as a
// command-line flag (spec.md §6's flag set has no recombination-rate flag),
// so it's a package constant rather than configurable. 1.26 matches the
// value spec.md §8 scenario S6 uses to exercise multi-site recombination.
const DefaultRecombinationRate = 1.26

// genotypeCmd is the k-mer-evidence CLI, grounded on
// original_source/src/pggtyper.cpp's main().
type genotypeCmd struct{}

func (c *genotypeCmd) RunCommand(prog string, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet(prog, flag.ContinueOnError)
	fs.SetOutput(stderr)
	reads := fs.String("i", "", "sequencing reads in FASTA/FASTQ format (required)")
	ref := fs.String("r", "", "reference genome in FASTA format (required)")
	vcf := fs.String("v", "", "variants in VCF format (required)")
	out := fs.String("o", "result", "prefix of the output files")
	k := fs.Int("k", 31, "kmer size")
	sample := fs.String("s", "sample", "name of the sample (used in the output VCFs)")
	threads := fs.Int("t", 1, "number of worker threads")
	onlyGenotyping := fs.Bool("g", false, "only run genotyping (forward-backward)")
	onlyPhasing := fs.Bool("p", false, "only run phasing (Viterbi)")
	dump := fs.String("dump", "", "write a gob-encoded per-chromosome debug dump to this file (suffix .gz to compress); read back with the dump subcommand")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	if *reads == "" || *ref == "" || *vcf == "" {
		fmt.Fprintln(stderr, "pangenie: -i, -r, and -v are required")
		fs.Usage()
		return 1
	}

	log.Info("This is PGGTyper.")
	log.Info("Determine allele sequences ...")
	source, err := LoadVCFVariantSource(*vcf, *ref)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 1
	}

	segmentFile := *out + "_path_segments.fasta"
	log.Infof("Write path segments to file: %s ...", segmentFile)
	segOut, err := createOutput(segmentFile)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 1
	}
	if err := WritePathSegments(segOut, source, *k-1); err != nil {
		segOut.Close()
		fmt.Fprintln(stderr, err)
		return 1
	}
	if err := segOut.Close(); err != nil {
		fmt.Fprintln(stderr, err)
		return 1
	}

	log.Info("Count kmers in reads ...")
	readKmers := NewKmerCounter(*k)
	readRC, err := openInput(*reads)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 1
	}
	err = readKmers.CountReader(readRC)
	readRC.Close()
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 1
	}

	log.Info("Count kmers in genome ...")
	genomicKmers := NewKmerCounter(*k)
	segIn, err := openInput(segmentFile)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 1
	}
	err = genomicKmers.CountReader(segIn)
	segIn.Close()
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 1
	}

	coverage := readKmers.Coverage(genomicKmers.DistinctKmers())
	log.Infof("Computed kmer-coverage: %v", coverage)
	builder := NewUniqueKmerBuilder(source, genomicKmers, readKmers, coverage)

	doGenotyping := !*onlyPhasing
	doPhasing := !*onlyGenotyping
	return runChromosomesAndWrite(source, builder.Build, *threads, doGenotyping, doPhasing, *out, *sample, *dump, stderr)
}

// genotypePathsCmd is the paths-only CLI, grounded on
// original_source/src/pggtyper-paths.cpp's main(), which skips k-mer
// counting entirely and genotypes from the path prior alone.
type genotypePathsCmd struct{}

func (c *genotypePathsCmd) RunCommand(prog string, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet(prog, flag.ContinueOnError)
	fs.SetOutput(stderr)
	ref := fs.String("r", "", "reference genome in FASTA format (required)")
	vcf := fs.String("v", "", "variants in VCF format (required)")
	out := fs.String("o", "result", "prefix of the output files")
	sample := fs.String("s", "sample", "name of the sample (used in the output VCFs)")
	threads := fs.Int("t", 1, "number of worker threads (at most one per chromosome)")
	onlyGenotyping := fs.Bool("g", false, "only run genotyping (forward-backward)")
	onlyPhasing := fs.Bool("p", false, "only run phasing (Viterbi)")
	dump := fs.String("dump", "", "write a gob-encoded per-chromosome debug dump to this file (suffix .gz to compress); read back with the dump subcommand")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	if *ref == "" || *vcf == "" {
		fmt.Fprintln(stderr, "pangenie-paths: -r and -v are required")
		fs.Usage()
		return 1
	}

	log.Info("program: PGGTyper-paths - genotyping and phasing based on known haplotype paths.")
	timer := NewTimer()
	log.Info("Determine allele sequences ...")
	source, err := LoadVCFVariantSource(*vcf, *ref)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 1
	}

	segmentFile := *out + "_path_segments.fasta"
	log.Infof("Write path segments to file: %s ...", segmentFile)
	segOut, err := createOutput(segmentFile)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 1
	}
	if err := WritePathSegments(segOut, source, 30); err != nil {
		segOut.Close()
		fmt.Fprintln(stderr, err)
		return 1
	}
	if err := segOut.Close(); err != nil {
		fmt.Fprintln(stderr, err)
		return 1
	}
	log.Infof("time spent reading input files:\t%v", timer.ElapsedInterval())

	builder := &UniqueKmerBuilder{source: source}
	doGenotyping := !*onlyPhasing
	doPhasing := !*onlyGenotyping

	available := runtime.NumCPU()
	if len(source.Chromosomes()) < available {
		available = len(source.Chromosomes())
	}
	if *threads > available {
		log.Warnf("set nr_core_threads to %d", available)
		*threads = available
	}

	rc := runChromosomesAndWrite(source, builder.ComputeEmpty, *threads, doGenotyping, doPhasing, *out, *sample, *dump, stderr)
	log.Infof("total wallclock time: %v", timer.ElapsedTotal())
	reportMemoryUsage()
	return rc
}

// runChromosomesAndWrite is the orchestration shared by both CLIs: build
// each chromosome's UniqueKmers/Variant pair via buildFn, run the engine
// per chromosome through RunChromosomes, then write the requested VCFs (and,
// if dumpPath is non-empty, a gob debug dump) in VariantSource chromosome
// order.
func runChromosomesAndWrite(
	source *VCFVariantSource,
	buildFn func(string) ([]*UniqueKmers, []*Variant, error),
	threads int,
	doGenotyping, doPhasing bool,
	outPrefix, sampleName, dumpPath string,
	stderr io.Writer,
) int {
	chromosomes := source.Chromosomes()
	log.Infof("Found %d chromosome(s) in the VCF.", len(chromosomes))

	job := func(chromosome string) ([]*GenotypingResult, []int, error) {
		log.Infof("Processing chromosome %s.", chromosome)
		uks, vs, err := buildFn(chromosome)
		if err != nil {
			return nil, nil, err
		}
		engine, err := NewEngine(uks, vs, DefaultRecombinationRate, doGenotyping, doPhasing)
		if err != nil {
			return nil, nil, err
		}
		results, err := engine.Run()
		if err != nil {
			return nil, nil, err
		}
		positions := make([]int, len(uks))
		for i, u := range uks {
			positions[i] = u.VariantPosition()
		}
		return results, positions, nil
	}

	outcomes := RunChromosomes(context.Background(), chromosomes, threads, job)

	var genoOut, phaseOut io.WriteCloser
	var err error
	if doGenotyping {
		genoOut, err = createOutput(outPrefix + "_genotyping.vcf")
		if err != nil {
			fmt.Fprintln(stderr, err)
			return 1
		}
		defer genoOut.Close()
	}
	if doPhasing {
		phaseOut, err = createOutput(outPrefix + "_phasing.vcf")
		if err != nil {
			fmt.Fprintln(stderr, err)
			return 1
		}
		defer phaseOut.Close()
	}

	var dumpOut io.WriteCloser
	dumpGz := strings.HasSuffix(dumpPath, ".gz")
	if dumpPath != "" {
		log.Infof("Write debug dump to file: %s ...", dumpPath)
		dumpOut, err = os.Create(dumpPath)
		if err != nil {
			fmt.Fprintln(stderr, wrapError(IOError, err, "creating %s", dumpPath))
			return 1
		}
		defer dumpOut.Close()
	}

	var genoHeaderWritten, phaseHeaderWritten bool
	for _, o := range outcomes {
		if o.Err != nil {
			fmt.Fprintf(stderr, "chromosome %s: %v\n", o.Chromosome, o.Err)
			continue
		}
		if doGenotyping {
			if err := writeVCFSection(genoOut, &genoHeaderWritten, true, source, o.Chromosome, o.Results, sampleName); err != nil {
				fmt.Fprintln(stderr, err)
				return 1
			}
		}
		if doPhasing {
			if err := writeVCFSection(phaseOut, &phaseHeaderWritten, false, source, o.Chromosome, o.Results, sampleName); err != nil {
				fmt.Fprintln(stderr, err)
				return 1
			}
		}
		if dumpOut != nil {
			dump, err := NewChromosomeDump(o.Chromosome, o.Positions, o.Results)
			if err != nil {
				fmt.Fprintln(stderr, err)
				return 1
			}
			if err := WriteChromosomeDump(dumpOut, dumpGz, dump); err != nil {
				fmt.Fprintln(stderr, err)
				return 1
			}
		}
	}

	if _, failed := AnyFailed(outcomes); failed {
		return 1
	}
	return 0
}

func writeVCFSection(w io.Writer, headerWritten *bool, genotyping bool, source *VCFVariantSource, chromosome string, results []*GenotypingResult, sampleName string) error {
	// Both writers emit a self-contained header; for a multi-chromosome
	// single-sample VCF we only want it once, so strip the header from
	// every write after the first by writing to a buffer and trimming.
	var buf bytes.Buffer
	var err error
	if genotyping {
		err = WriteGenotypingVCF(&buf, source, chromosome, results, sampleName)
	} else {
		err = WritePhasingVCF(&buf, source, chromosome, results, sampleName)
	}
	if err != nil {
		return err
	}
	body := buf.String()
	if !*headerWritten {
		*headerWritten = true
	} else {
		body = stripVCFHeader(body)
	}
	_, err = io.WriteString(w, body)
	return err
}

// stripVCFHeader drops every line up to and including the #CHROM column
// header, leaving only data records.
func stripVCFHeader(body string) string {
	lines := strings.Split(body, "\n")
	for i, line := range lines {
		if strings.HasPrefix(line, "#CHROM") {
			return strings.Join(lines[i+1:], "\n")
		}
	}
	return body
}

func reportMemoryUsage() {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	log.Infof("Total maximum memory usage: %.3f GB", float64(m.Sys)/1e9)
}
