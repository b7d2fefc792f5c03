// Copyright (C) The Lightning Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package pangenie

import (
	"bufio"
	"encoding/gob"
	"io"
	"io/ioutil"

	"github.com/klauspost/pgzip"
)

// DumpedSite is the gob-encodable projection of one GenotypingResult: the
// unordered genotypes and their normalized likelihoods (as parallel slices,
// since gob has no direct support for a map keyed by [2]uint8 array across
// versions) plus the optional phased haplotype alleles.
type DumpedSite struct {
	Position    int
	Genotypes   [][2]uint8
	Likelihoods []float64
	HasHap1     bool
	Hap1        uint8
	HasHap2     bool
	Hap2        uint8
}

// newDumpedSite projects a GenotypingResult at a given reference position
// into its gob-encodable form.
func newDumpedSite(position int, r *GenotypingResult) DumpedSite {
	genotypes := r.SortedGenotypes()
	likelihoods := make([]float64, len(genotypes))
	all := r.Likelihoods()
	for i, g := range genotypes {
		likelihoods[i] = all[g]
	}
	d := DumpedSite{Position: position, Genotypes: genotypes, Likelihoods: likelihoods}
	if a, ok := r.Haplotype1(); ok {
		d.HasHap1, d.Hap1 = true, a
	}
	if a, ok := r.Haplotype2(); ok {
		d.HasHap2, d.Hap2 = true, a
	}
	return d
}

// ChromosomeDump is one gob record of the per-chromosome dump file written by
// the genotyping commands' -dump flag and printed by the "dump" debug
// command: every site's genotyping result for a single chromosome, in
// variant order.
type ChromosomeDump struct {
	Chromosome string
	Sites      []DumpedSite
}

// NewChromosomeDump builds a dump record from an engine's per-site results
// and their reference positions. len(positions) must equal len(results).
func NewChromosomeDump(chromosome string, positions []int, results []*GenotypingResult) (*ChromosomeDump, error) {
	if len(positions) != len(results) {
		return nil, newError(InputStructural, "chromosome dump %q: %d positions vs %d results", chromosome, len(positions), len(results))
	}
	sites := make([]DumpedSite, len(results))
	for i, r := range results {
		sites[i] = newDumpedSite(positions[i], r)
	}
	return &ChromosomeDump{Chromosome: chromosome, Sites: sites}, nil
}

// WriteChromosomeDump appends one gob-encoded record to w, gzipping via
// pgzip when gz is true. Call once per chromosome; the resulting stream is a
// concatenation of records, read back by ReadChromosomeDumps.
func WriteChromosomeDump(w io.Writer, gz bool, dump *ChromosomeDump) error {
	out := w
	var zw *pgzip.Writer
	if gz {
		zw = pgzip.NewWriter(w)
		out = zw
	}
	if err := gob.NewEncoder(out).Encode(dump); err != nil {
		return wrapError(IOError, err, "encoding chromosome dump %q", dump.Chromosome)
	}
	if zw != nil {
		return zw.Close()
	}
	return nil
}

// ReadChromosomeDumps streams every ChromosomeDump record from rdr, calling
// cb once per chromosome in file order.
func ReadChromosomeDumps(rdr io.Reader, gz bool, cb func(*ChromosomeDump) error) error {
	zrdr := ioutil.NopCloser(rdr)
	var err error
	if gz {
		zrdr, err = pgzip.NewReader(bufio.NewReaderSize(rdr, 1<<20))
		if err != nil {
			return wrapError(IOError, err, "opening gzip dump stream")
		}
	}
	// Each record was written by its own gob.Encoder and so carries its own
	// type definitions; a fresh Decoder per record reads them without a
	// "duplicate type" error. The shared bufio.Reader is an io.ByteReader, so
	// gob reads exactly one record per Decode and no data is lost between
	// decoders.
	br := bufio.NewReader(zrdr)
	for err == nil {
		var d ChromosomeDump
		err = gob.NewDecoder(br).Decode(&d)
		if err == nil {
			err = cb(&d)
		}
	}
	if err != io.EOF {
		return wrapError(IOError, err, "decoding chromosome dump stream")
	}
	return zrdr.Close()
}
