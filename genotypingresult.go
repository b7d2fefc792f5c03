// Copyright (C) The Lightning Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package pangenie

import (
	"math"
	"sort"
)

// genotypeKeyOf is genotypeKey under another name for callers outside the
// emission package-section that just need a canonical {a,b} key.
func genotypeKeyOf(a, b uint8) [2]uint8 { return genotypeKey(a, b) }

// GenotypingResult accumulates one site's unordered-genotype likelihoods and
// its phased haplotype alleles (spec.md §3/§4.4.5). It is created empty,
// mutated only during the engine's backward and Viterbi passes, and frozen
// on return: nothing outside the engine holds a pointer into it while it's
// still being written.
type GenotypingResult struct {
	likelihoods map[[2]uint8]float64
	hap1, hap2  *uint8
}

// NewGenotypingResult returns an empty result ready for accumulation.
func NewGenotypingResult() *GenotypingResult {
	return &GenotypingResult{likelihoods: make(map[[2]uint8]float64)}
}

// AddToLikelihood adds delta to the unordered genotype {a,b}'s accumulated
// likelihood.
func (g *GenotypingResult) AddToLikelihood(a, b uint8, delta float64) {
	key := genotypeKeyOf(a, b)
	g.likelihoods[key] += delta
}

// AddFirstHaplotypeAllele records the Viterbi choice for the first phased
// haplotype.
func (g *GenotypingResult) AddFirstHaplotypeAllele(a uint8) { g.hap1 = &a }

// AddSecondHaplotypeAllele records the Viterbi choice for the second phased
// haplotype.
func (g *GenotypingResult) AddSecondHaplotypeAllele(a uint8) { g.hap2 = &a }

// DivideLikelihoodsBy normalizes every accumulated likelihood by z. Called
// once per site after its backward column has been fully folded in.
func (g *GenotypingResult) DivideLikelihoodsBy(z float64) error {
	if z == 0 || isNonFinite(z) {
		return newError(NumericCollapse, "genotyping result: normalization divisor is %v", z)
	}
	for k, v := range g.likelihoods {
		g.likelihoods[k] = v / z
	}
	return nil
}

// Likelihoods returns the unordered-genotype -> probability map. Callers
// must not mutate it.
func (g *GenotypingResult) Likelihoods() map[[2]uint8]float64 { return g.likelihoods }

// Haplotype1 and Haplotype2 return the phased allele ids and whether
// phasing ran for this site.
func (g *GenotypingResult) Haplotype1() (uint8, bool) {
	if g.hap1 == nil {
		return 0, false
	}
	return *g.hap1, true
}

func (g *GenotypingResult) Haplotype2() (uint8, bool) {
	if g.hap2 == nil {
		return 0, false
	}
	return *g.hap2, true
}

// SortedGenotypes returns the site's unordered genotypes in ascending
// (a,b) order, for deterministic VCF output.
func (g *GenotypingResult) SortedGenotypes() [][2]uint8 {
	out := make([][2]uint8, 0, len(g.likelihoods))
	for k := range g.likelihoods {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i][0] != out[j][0] {
			return out[i][0] < out[j][0]
		}
		return out[i][1] < out[j][1]
	})
	return out
}

// LikelihoodSum is the current sum of all accumulated likelihoods, used by
// the tests to check the invariant Σ{a,b} likelihoods = 1 after a completed
// forward-backward pass (spec.md §8, property 2); the engine itself does not
// call it.
func (g *GenotypingResult) LikelihoodSum() float64 {
	sum := 0.0
	for _, v := range g.likelihoods {
		sum += v
	}
	return sum
}

func isNonFinite(f float64) bool {
	return math.IsNaN(f) || math.IsInf(f, 0)
}
