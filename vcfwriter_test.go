// Copyright (C) The Lightning Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package pangenie

import (
	"bytes"
	"strconv"
	"strings"
	"testing"
)

// TestWriteGenotypingVCFGenotypeLikelihoodOrder pins down VCF's Number=G
// field order for a tri-allelic site: genotype index b*(b+1)/2+a for the
// unordered genotype {a,b} with a<=b, i.e. (0,0),(0,1),(1,1),(0,2),(1,2),(2,2).
func TestWriteGenotypingVCFGenotypeLikelihoodOrder(t *testing.T) {
	src := loadTestSource(t)

	site1 := NewGenotypingResult() // unused site 0, single-allele result is fine for this test
	site2 := NewGenotypingResult()
	want := [][2]uint8{{0, 0}, {0, 1}, {1, 1}, {0, 2}, {1, 2}, {2, 2}}
	for i, g := range want {
		site2.AddToLikelihood(g[0], g[1], float64(i+1)/100)
	}
	results := []*GenotypingResult{site1, site2}

	var buf bytes.Buffer
	if err := WriteGenotypingVCF(&buf, src, "chrA", results, "HG00"); err != nil {
		t.Fatal(err)
	}

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	var dataLine string
	for _, l := range lines {
		if strings.HasPrefix(l, "chrA\t20\t") {
			dataLine = l
		}
	}
	if dataLine == "" {
		t.Fatalf("no data line for the multiallelic site found:\n%s", buf.String())
	}
	fields := strings.Split(dataLine, "\t")
	sample := fields[len(fields)-1]
	parts := strings.Split(sample, ":")
	if len(parts) != 3 {
		t.Fatalf("expected GT:GL:PL, got %q", sample)
	}
	pls := strings.Split(parts[2], ",")
	if len(pls) != 6 {
		t.Fatalf("expected 6 PL values for a tri-allelic site, got %d: %v", len(pls), pls)
	}
	// Likelihoods increase monotonically with genotype index in `want`, so
	// PL (phred, lower is more likely) must decrease monotonically across
	// the emitted order if that order matches `want`.
	prev := 256
	for i, s := range pls {
		v, err := strconv.Atoi(s)
		if err != nil {
			t.Fatalf("PL[%d] = %q not an int", i, s)
		}
		if v > prev {
			t.Fatalf("PL values not monotonically non-increasing in (0,0),(0,1),(1,1),(0,2),(1,2),(2,2) order: %v", pls)
		}
		prev = v
	}
}
