// Copyright (C) The Lightning Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package pangenie

import (
	"math"

	"gonum.org/v1/gonum/stat/distuv"
)

// defaultBackgroundRate is the fraction of local coverage used as the mean
// of the background Poisson for k-mers whose expected copy number is zero in
// a given genotype. Not a literal constant in the original (spec.md §9 flags
// this as an implementer-chosen parameter); 0.05 keeps a k-mer that
// shouldn't be present at all from being assigned zero probability outright
// while still penalizing genotypes it's inconsistent with.
const defaultBackgroundRate = 0.05

// EmissionProbabilityComputer returns, for each cell of a column, the
// probability of the column's observed k-mer evidence given the cell's
// ordered genotype (spec.md §4.3). It is polymorphic over "has k-mers / has
// no k-mers" via the hasKmers flag rather than an inheritance hierarchy: with
// no k-mer evidence every cell emits probability 1 and the engine degenerates
// to the path prior.
type EmissionProbabilityComputer struct {
	indexer         *ColumnIndexer
	kmers           []Kmer
	coverage        float64
	backgroundRate  float64
	hasKmers        bool
	genotypeCache   map[[2]uint8]float64
}

// NewEmissionProbabilityComputer builds the computer for one column from its
// UniqueKmers record and ColumnIndexer.
func NewEmissionProbabilityComputer(u *UniqueKmers, indexer *ColumnIndexer) *EmissionProbabilityComputer {
	return &EmissionProbabilityComputer{
		indexer:        indexer,
		kmers:          u.Kmers(),
		coverage:       u.LocalCoverage(),
		backgroundRate: defaultBackgroundRate,
		hasKmers:       len(u.Kmers()) > 0,
		genotypeCache:  make(map[[2]uint8]float64),
	}
}

// GetEmissionProbability returns the (linear-space) emission probability for
// cell, computing and caching it per unordered genotype {a,b} the first
// time a given pair of alleles is seen: at most |alleles|*(|alleles|+1)/2
// distinct products are ever computed for a column (spec.md §4.3).
func (e *EmissionProbabilityComputer) GetEmissionProbability(cell int) float64 {
	if !e.hasKmers {
		return 1.0
	}
	ai, aj := e.indexer.GetAlleles(cell)
	key := genotypeKey(ai, aj)
	if p, ok := e.genotypeCache[key]; ok {
		return p
	}
	p := e.computeGenotypeProbability(key[0], key[1])
	e.genotypeCache[key] = p
	return p
}

// GetLogEmissionProbability is the log-space counterpart used by the HMM
// engine's log-space accumulation (spec.md §9, "Deep precision": Go has no
// 80-bit long double, so forward/Viterbi run in log-space rather than an
// extended-precision float type).
func (e *EmissionProbabilityComputer) GetLogEmissionProbability(cell int) float64 {
	return math.Log(e.GetEmissionProbability(cell))
}

func genotypeKey(a, b uint8) [2]uint8 {
	if a <= b {
		return [2]uint8{a, b}
	}
	return [2]uint8{b, a}
}

func (e *EmissionProbabilityComputer) computeGenotypeProbability(a, b uint8) float64 {
	product := 1.0
	for _, k := range e.kmers {
		copies := 0
		if k.AlleleMask&(1<<a) != 0 {
			copies++
		}
		if k.AlleleMask&(1<<b) != 0 {
			copies++
		}
		var lambda float64
		if copies == 0 {
			lambda = e.backgroundRate * e.coverage
		} else {
			lambda = float64(copies) * e.coverage / 2
		}
		if lambda <= 0 {
			lambda = 1e-9
		}
		pois := distuv.Poisson{Lambda: lambda}
		product *= pois.Prob(float64(k.Multiplicity))
	}
	return product
}
