// Copyright (C) The Lightning Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package pangenie

import (
	"context"
	"sync"
)

// ChromosomeJob genotypes/phases one chromosome and returns its per-site
// results alongside the reference positions they correspond to (for VCF
// writing).
type ChromosomeJob func(chromosome string) (results []*GenotypingResult, positions []int, err error)

// ChromosomeOutcome is one chromosome's result or failure.
type ChromosomeOutcome struct {
	Chromosome string
	Results    []*GenotypingResult
	Positions  []int
	Err        error
}

// RunChromosomes runs job once per chromosome, at most maxWorkers
// concurrently, per spec.md §5: each chromosome is an independent HMM run
// with no shared mutable state, results are merged behind a single mutex,
// and the returned slice is ordered by chromosomes (the VariantSource's
// order), not by completion order.
//
// Cancellation is checked only between chromosomes, never inside a running
// job: once a worker has started a chromosome it always finishes it,
// matching the "no suspension points within a chromosome" rule.
func RunChromosomes(ctx context.Context, chromosomes []string, maxWorkers int, job ChromosomeJob) []ChromosomeOutcome {
	outcomes := make([]ChromosomeOutcome, len(chromosomes))
	if len(chromosomes) == 0 {
		return outcomes
	}
	if maxWorkers < 1 {
		maxWorkers = 1
	}
	if maxWorkers > len(chromosomes) {
		maxWorkers = len(chromosomes)
	}

	var t throttle
	t.Max = maxWorkers
	var mu sync.Mutex

	for i, chrom := range chromosomes {
		select {
		case <-ctx.Done():
			mu.Lock()
			outcomes[i] = ChromosomeOutcome{Chromosome: chrom, Err: ctx.Err()}
			mu.Unlock()
			continue
		default:
		}
		t.Acquire()
		go func(i int, chrom string) {
			defer t.Release()
			results, positions, err := job(chrom)
			mu.Lock()
			outcomes[i] = ChromosomeOutcome{Chromosome: chrom, Results: results, Positions: positions, Err: err}
			mu.Unlock()
			t.Report(err)
		}(i, chrom)
	}
	t.Wait()
	return outcomes
}

// AnyFailed reports whether any outcome carries an error, and the first
// chromosome name that failed -- used by the CLI commands to pick the
// process exit code without aborting the other chromosomes' output.
func AnyFailed(outcomes []ChromosomeOutcome) (string, bool) {
	for _, o := range outcomes {
		if o.Err != nil {
			return o.Chromosome, true
		}
	}
	return "", false
}
