// Copyright (C) The Lightning Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package pangenie

import "testing"

func TestEmissionNoKmersIsUniform(t *testing.T) {
	u, err := NewUniqueKmers(100, []PathAllele{{0, 0}, {1, 1}}, nil, 20)
	if err != nil {
		t.Fatal(err)
	}
	pathIDs, alleleIDs := u.PathAndAlleleIDs()
	ci, _ := NewColumnIndexer(pathIDs, alleleIDs)
	e := NewEmissionProbabilityComputer(u, ci)
	for cell := 0; cell < ci.Size(); cell++ {
		if got := e.GetEmissionProbability(cell); got != 1.0 {
			t.Errorf("cell %d: emission = %v, want 1.0", cell, got)
		}
	}
}

// S4 from spec.md §8: three paths, two alleles, one k-mer supporting allele
// 1 at full coverage; genotype {1,1} should dominate.
func TestEmissionConcentratesOnSupportedGenotype(t *testing.T) {
	paths := []PathAllele{{0, 0}, {1, 0}, {2, 1}}
	kmers := []Kmer{{Multiplicity: 20, AlleleMask: 1 << 1}}
	u, err := NewUniqueKmers(1000, paths, kmers, 20)
	if err != nil {
		t.Fatal(err)
	}
	pathIDs, alleleIDs := u.PathAndAlleleIDs()
	ci, _ := NewColumnIndexer(pathIDs, alleleIDs)
	e := NewEmissionProbabilityComputer(u, ci)

	var total, homAltTotal float64
	for cell := 0; cell < ci.Size(); cell++ {
		p := e.GetEmissionProbability(cell)
		total += p
		ai, aj := ci.GetAlleles(cell)
		if ai == 1 && aj == 1 {
			homAltTotal += p
		}
	}
	if total == 0 {
		t.Fatal("all emission probabilities are zero")
	}
	if homAltTotal/total < 0.5 {
		t.Fatalf("genotype {1,1} share = %v, want a clear majority of emission mass", homAltTotal/total)
	}
}

func TestEmissionCachePerUnorderedGenotype(t *testing.T) {
	paths := []PathAllele{{0, 0}, {1, 1}}
	kmers := []Kmer{{Multiplicity: 5, AlleleMask: 1}}
	u, _ := NewUniqueKmers(5, paths, kmers, 10)
	pathIDs, alleleIDs := u.PathAndAlleleIDs()
	ci, _ := NewColumnIndexer(pathIDs, alleleIDs)
	e := NewEmissionProbabilityComputer(u, ci)

	// cells (0,1) and (1,0) both represent genotype {0,1} and must match.
	var c01, c10 int
	for cell := 0; cell < ci.Size(); cell++ {
		ai, aj := ci.GetAlleles(cell)
		if ai == 0 && aj == 1 {
			c01 = cell
		}
		if ai == 1 && aj == 0 {
			c10 = cell
		}
	}
	if e.GetEmissionProbability(c01) != e.GetEmissionProbability(c10) {
		t.Fatal("unordered genotype {0,1} should have one cached probability regardless of cell order")
	}
}
