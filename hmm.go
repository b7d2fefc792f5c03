// Copyright (C) The Lightning Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package pangenie

import "math"

// Engine is the pair-HMM genotyping/phasing engine of spec.md §4.4: forward,
// backward, and Viterbi passes over an ordered sequence of columns (sites),
// each carrying a squared state space of ordered path pairs.
//
// Go has no 80-bit extended-precision float, so unlike
// original_source/src/hmm.cpp (which accumulates in `long double`), every
// column here is held in log-space: forward/backward use log-sum-exp in
// place of plain summation, Viterbi uses a running max (unaffected by the
// log transform, since log is monotonic). Both strategies satisfy the same
// testable properties (spec.md §8) at a relaxed tolerance. See DESIGN.md,
// "Standard-library justifications".
type Engine struct {
	n            int
	recombRate   float64
	doGenotyping bool
	doPhasing    bool
	k            int // sqrt-checkpoint interval, floor(sqrt(n)), at least 1

	uniqueKmers []*UniqueKmers
	variants    []*Variant
	indexers    []*ColumnIndexer
	transitions []*TransitionProbabilityComputer

	forward   [][]float64 // log-space forward columns; nil if evicted
	viterbi   [][]float64 // log-space viterbi columns; nil if evicted
	backtrace [][]int     // predecessor cell per viterbi cell; nil if evicted

	results []*GenotypingResult
}

// NewEngine builds the engine for one chromosome's worth of sites. It
// indexes all N columns and builds all N-1 transition computers up front
// (spec.md §4.4.1), failing fast if any site has zero covering paths.
func NewEngine(uniqueKmers []*UniqueKmers, variants []*Variant, recombRate float64, doGenotyping, doPhasing bool) (*Engine, error) {
	if !doGenotyping && !doPhasing {
		return nil, newError(UsageError, "hmm: at least one of genotyping or phasing must be requested")
	}
	if len(uniqueKmers) != len(variants) {
		return nil, newError(InputStructural, "hmm: uniqueKmers/variants length mismatch (%d vs %d)", len(uniqueKmers), len(variants))
	}
	e := &Engine{
		n:            len(uniqueKmers),
		recombRate:   recombRate,
		doGenotyping: doGenotyping,
		doPhasing:    doPhasing,
		uniqueKmers:  uniqueKmers,
		variants:     variants,
	}
	e.k = intSqrt(e.n)
	if e.k < 1 {
		e.k = 1
	}
	if err := e.indexColumns(); err != nil {
		return nil, err
	}
	if err := e.buildTransitions(); err != nil {
		return nil, err
	}
	e.results = make([]*GenotypingResult, e.n)
	for i := range e.results {
		e.results[i] = NewGenotypingResult()
	}
	return e, nil
}

// CheckpointInterval returns k = floor(sqrt(N)), exposed mainly so tests can
// verify checkpointing is actually engaged and to support spec.md §8
// property 7 (k=1 vs k=floor(sqrt(N)) agreement).
func (e *Engine) CheckpointInterval() int { return e.k }

func (e *Engine) indexColumns() error {
	e.indexers = make([]*ColumnIndexer, e.n)
	for i, uk := range e.uniqueKmers {
		pathIDs, alleleIDs := uk.PathAndAlleleIDs()
		ci, err := NewColumnIndexer(pathIDs, alleleIDs)
		if err != nil {
			return wrapError(InputStructural, err, "indexing column %d (position %d)", i, uk.VariantPosition())
		}
		e.indexers[i] = ci
	}
	return nil
}

func (e *Engine) buildTransitions() error {
	if e.n < 2 {
		return nil
	}
	e.transitions = make([]*TransitionProbabilityComputer, e.n-1)
	for i := 1; i < e.n; i++ {
		prevPos := e.uniqueKmers[i-1].VariantPosition()
		curPos := e.uniqueKmers[i].VariantPosition()
		tp, err := NewTransitionProbabilityComputer(prevPos, curPos, e.recombRate)
		if err != nil {
			return wrapError(InputStructural, err, "transition between columns %d and %d", i-1, i)
		}
		e.transitions[i-1] = tp
	}
	return nil
}

// Run executes the configured passes and returns one GenotypingResult per
// site. Gating follows spec.md §4.4.4: skipping forward/backward still
// performs Viterbi if doPhasing, and vice versa.
func (e *Engine) Run() ([]*GenotypingResult, error) {
	if e.n == 0 {
		return e.results, nil
	}
	if e.doGenotyping {
		if err := e.computeForward(); err != nil {
			return nil, err
		}
		if err := e.computeBackward(); err != nil {
			return nil, err
		}
	}
	if e.doPhasing {
		if err := e.computeViterbi(); err != nil {
			return nil, err
		}
	}
	return e.results, nil
}

// ---- forward pass ----

func (e *Engine) computeForward() error {
	e.forward = make([][]float64, e.n)
	for t := 0; t < e.n; t++ {
		if err := e.computeForwardColumn(t); err != nil {
			return err
		}
		if e.k > 1 && t > 0 && (t-1)%e.k != 0 {
			e.forward[t-1] = nil
		}
	}
	return nil
}

func (e *Engine) computeForwardColumn(t int) error {
	if e.forward[t] != nil {
		return nil
	}
	ci := e.indexers[t]
	emit := NewEmissionProbabilityComputer(e.uniqueKmers[t], ci)
	size := ci.Size()
	col := make([]float64, size)
	if t == 0 {
		for c := 0; c < size; c++ {
			col[c] = emit.GetLogEmissionProbability(c)
		}
	} else {
		prevCol := e.forward[t-1]
		if prevCol == nil {
			return newError(NumericCollapse, "forward: predecessor column %d not available", t-1)
		}
		prevCI := e.indexers[t-1]
		tp := e.transitions[t-1]
		for c := 0; c < size; c++ {
			pi, pj := ci.GetPaths(c)
			sum := math.Inf(-1)
			for cp := 0; cp < prevCI.Size(); cp++ {
				ppi, ppj := prevCI.GetPaths(cp)
				trans := tp.Transition(ppi, ppj, pi, pj)
				if trans <= 0 {
					continue
				}
				sum = logAddExp(sum, prevCol[cp]+math.Log(trans))
			}
			col[c] = sum + emit.GetLogEmissionProbability(c)
		}
	}
	if err := normalizeLogColumn(col); err != nil {
		return wrapError(NumericCollapse, err, "forward column %d (position %d)", t, e.uniqueKmers[t].VariantPosition())
	}
	e.forward[t] = col
	return nil
}

// reconstructForwardUpTo recomputes forward columns from the nearest stored
// checkpoint through t, inclusive, the way
// original_source/src/hmm.cpp's compute_backward_column does when the
// forward column it needs has been evicted.
func (e *Engine) reconstructForwardUpTo(t int) error {
	if e.forward[t] != nil {
		return nil
	}
	start := (t / e.k) * e.k
	if e.forward[start] == nil {
		return newError(NumericCollapse, "forward: checkpoint %d missing during reconstruction", start)
	}
	for j := start + 1; j <= t; j++ {
		if err := e.computeForwardColumn(j); err != nil {
			return err
		}
	}
	return nil
}

// ---- backward pass ----

func (e *Engine) computeBackward() error {
	var prevBackward []float64
	var prevIndexer *ColumnIndexer
	for t := e.n - 1; t >= 0; t-- {
		ci := e.indexers[t]
		size := ci.Size()
		col := make([]float64, size)
		if t == e.n-1 {
			for c := range col {
				col[c] = 0 // log(1)
			}
		} else {
			tp := e.transitions[t]
			nextEmit := NewEmissionProbabilityComputer(e.uniqueKmers[t+1], prevIndexer)
			for c := 0; c < size; c++ {
				pi, pj := ci.GetPaths(c)
				sum := math.Inf(-1)
				for cp := 0; cp < prevIndexer.Size(); cp++ {
					npi, npj := prevIndexer.GetPaths(cp)
					trans := tp.Transition(pi, pj, npi, npj)
					if trans <= 0 {
						continue
					}
					sum = logAddExp(sum, math.Log(trans)+nextEmit.GetLogEmissionProbability(cp)+prevBackward[cp])
				}
				col[c] = sum
			}
		}

		if e.forward[t] == nil {
			if err := e.reconstructForwardUpTo(t); err != nil {
				return err
			}
		}
		fcol := e.forward[t]

		postSum := 0.0
		raw := make([]float64, size)
		for c := 0; c < size; c++ {
			raw[c] = math.Exp(fcol[c] + col[c])
			postSum += raw[c]
		}
		if postSum == 0 || isNonFinite(postSum) {
			return newError(NumericCollapse, "backward: site %d (position %d) posterior sum is %v", t, e.uniqueKmers[t].VariantPosition(), postSum)
		}
		for c := 0; c < size; c++ {
			ai, aj := ci.GetAlleles(c)
			e.results[t].AddToLikelihood(ai, aj, raw[c])
		}
		if err := e.results[t].DivideLikelihoodsBy(postSum); err != nil {
			return err
		}

		if err := normalizeLogColumn(col); err != nil {
			return wrapError(NumericCollapse, err, "backward column %d (position %d)", t, e.uniqueKmers[t].VariantPosition())
		}

		// memory discipline: only checkpointed forward columns live past
		// the backward step that consumed them (spec.md §5).
		if e.k > 1 && t%e.k != 0 {
			e.forward[t] = nil
		}

		prevBackward = col
		prevIndexer = ci
	}
	return nil
}

// ---- viterbi pass ----

func (e *Engine) computeViterbi() error {
	e.viterbi = make([][]float64, e.n)
	e.backtrace = make([][]int, e.n)
	for t := 0; t < e.n; t++ {
		if err := e.computeViterbiColumn(t); err != nil {
			return err
		}
		if e.k > 1 && t > 0 && (t-1)%e.k != 0 {
			e.viterbi[t-1] = nil
			e.backtrace[t-1] = nil
		}
	}

	last := e.viterbi[e.n-1]
	bestIdx, bestVal := 0, math.Inf(-1)
	for c, v := range last {
		if v >= bestVal { // last-cell-wins tie-break, spec.md §4.4.4
			bestVal = v
			bestIdx = c
		}
	}

	idx := bestIdx
	for t := e.n - 1; t >= 0; t-- {
		if e.backtrace[t] == nil && t > 0 {
			if err := e.reconstructViterbiUpTo(t); err != nil {
				return err
			}
		}
		ci := e.indexers[t]
		ai, aj := ci.GetAlleles(idx)
		e.results[t].AddFirstHaplotypeAllele(ai)
		e.results[t].AddSecondHaplotypeAllele(aj)

		if t == 0 {
			break
		}
		idx = e.backtrace[t][idx]
		if e.k > 1 && t%e.k != 0 {
			e.viterbi[t] = nil
			e.backtrace[t] = nil
		}
	}
	return nil
}

func (e *Engine) computeViterbiColumn(t int) error {
	if e.viterbi[t] != nil {
		return nil
	}
	ci := e.indexers[t]
	emit := NewEmissionProbabilityComputer(e.uniqueKmers[t], ci)
	size := ci.Size()
	col := make([]float64, size)
	var bt []int
	if t > 0 {
		bt = make([]int, size)
	}
	if t == 0 {
		for c := 0; c < size; c++ {
			col[c] = emit.GetLogEmissionProbability(c)
		}
	} else {
		prevCol := e.viterbi[t-1]
		if prevCol == nil {
			return newError(NumericCollapse, "viterbi: predecessor column %d not available", t-1)
		}
		prevCI := e.indexers[t-1]
		tp := e.transitions[t-1]
		for c := 0; c < size; c++ {
			pi, pj := ci.GetPaths(c)
			best, bestJ := math.Inf(-1), 0
			for cp := 0; cp < prevCI.Size(); cp++ {
				ppi, ppj := prevCI.GetPaths(cp)
				trans := tp.Transition(ppi, ppj, pi, pj)
				val := math.Inf(-1)
				if trans > 0 {
					val = prevCol[cp] + math.Log(trans)
				}
				if val >= best { // last-cell-wins tie-break
					best = val
					bestJ = cp
				}
			}
			bt[c] = bestJ
			col[c] = best + emit.GetLogEmissionProbability(c)
		}
	}
	if err := normalizeLogColumn(col); err != nil {
		return wrapError(NumericCollapse, err, "viterbi column %d (position %d)", t, e.uniqueKmers[t].VariantPosition())
	}
	e.viterbi[t] = col
	e.backtrace[t] = bt
	return nil
}

func (e *Engine) reconstructViterbiUpTo(t int) error {
	if e.backtrace[t] != nil {
		return nil
	}
	start := (t / e.k) * e.k
	if e.viterbi[start] == nil {
		return newError(NumericCollapse, "viterbi: checkpoint %d missing during reconstruction", start)
	}
	for j := start + 1; j <= t; j++ {
		if err := e.computeViterbiColumn(j); err != nil {
			return err
		}
	}
	return nil
}

// ---- shared helpers ----

func intSqrt(n int) int {
	return int(math.Sqrt(float64(n)))
}

// logAddExp computes log(exp(a)+exp(b)) without over/underflowing.
func logAddExp(a, b float64) float64 {
	if math.IsInf(a, -1) {
		return b
	}
	if math.IsInf(b, -1) {
		return a
	}
	if a > b {
		return a + math.Log1p(math.Exp(b-a))
	}
	return b + math.Log1p(math.Exp(a-b))
}

// normalizeLogColumn subtracts the column's log-sum-exp from every entry, so
// that Σ exp(col) == 1 (spec.md §8 property 1). A -Inf or NaN log-sum means
// every cell's path prior and emission support collapsed to zero -- the
// NumericCollapse case of spec.md §4.5.
func normalizeLogColumn(col []float64) error {
	logSum := math.Inf(-1)
	for _, v := range col {
		logSum = logAddExp(logSum, v)
	}
	if math.IsInf(logSum, -1) || math.IsNaN(logSum) {
		return newError(NumericCollapse, "column collapsed to zero (log-sum=%v)", logSum)
	}
	for i := range col {
		col[i] -= logSum
	}
	return nil
}
