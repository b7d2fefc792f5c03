// Copyright (C) The Lightning Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package pangenie

import (
	"strings"
	"testing"
)

func TestKmerCounterFastaCounting(t *testing.T) {
	c := NewKmerCounter(3)
	fasta := ">seq1\nACGTACGT\n>seq2\nACG\n"
	if err := c.CountReader(strings.NewReader(fasta)); err != nil {
		t.Fatal(err)
	}
	// ACGTACGT has 6 3-mers, seq2 has 1: total 7 observations.
	if c.total != 7 {
		t.Fatalf("total = %d, want 7", c.total)
	}
	if got := c.Abundance("ACG"); got == 0 {
		t.Fatal("expected ACG to have nonzero abundance")
	}
}

func TestKmerCounterFastqCounting(t *testing.T) {
	c := NewKmerCounter(4)
	fastq := "@read1\nACGTACGT\n+\nIIIIIIII\n"
	if err := c.CountReader(strings.NewReader(fastq)); err != nil {
		t.Fatal(err)
	}
	if c.total != 5 {
		t.Fatalf("total = %d, want 5", c.total)
	}
}

func TestKmerCounterSkipsNRuns(t *testing.T) {
	c := NewKmerCounter(3)
	if err := c.CountReader(strings.NewReader(">s\nACNGTT\n")); err != nil {
		t.Fatal(err)
	}
	for kmer := range c.counts {
		if strings.ContainsRune(kmer, 'N') {
			t.Fatalf("counted a k-mer containing N: %s", kmer)
		}
	}
}

func TestCanonicalKmerPicksLexicographicallySmaller(t *testing.T) {
	a := canonicalKmer("AAAA")
	b := canonicalKmer("TTTT")
	if a != b {
		t.Fatalf("AAAA and TTTT should canonicalize to the same k-mer: %s vs %s", a, b)
	}
	if a != "AAAA" {
		t.Fatalf("canonicalKmer(AAAA) = %s, want the lexicographically smaller AAAA", a)
	}
}

func TestKmerCounterCoverage(t *testing.T) {
	c := NewKmerCounter(3)
	c.total = 100
	if got := c.Coverage(50); !almostEqual(got, 2.0) {
		t.Fatalf("coverage = %v, want 2.0", got)
	}
	if got := c.Coverage(0); got != 0 {
		t.Fatalf("coverage with zero genome k-mers = %v, want 0", got)
	}
}
