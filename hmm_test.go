// Copyright (C) The Lightning Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package pangenie

import (
	"math"
	"testing"
)

func mustUniqueKmers(t *testing.T, pos int, paths []PathAllele, kmers []Kmer, cov float64) *UniqueKmers {
	t.Helper()
	u, err := NewUniqueKmers(pos, paths, kmers, cov)
	if err != nil {
		t.Fatalf("NewUniqueKmers(%d): %v", pos, err)
	}
	return u
}

// threeSiteFixture builds a 3-site, 2-path chromosome with no k-mer evidence
// (uniform emissions), used to check the structural invariants of spec.md §8
// that hold regardless of the emission model.
func threeSiteFixture(t *testing.T) ([]*UniqueKmers, []*Variant) {
	t.Helper()
	positions := []int{100, 250, 900}
	uks := make([]*UniqueKmers, len(positions))
	vs := make([]*Variant, len(positions))
	for i, pos := range positions {
		paths := []PathAllele{{0, 0}, {1, 1}}
		uks[i] = mustUniqueKmers(t, pos, paths, nil, 20)
		vs[i] = VariantFromUniqueKmers(uks[i])
	}
	return uks, vs
}

func TestEngineForwardColumnsSumToOne(t *testing.T) {
	uks, vs := threeSiteFixture(t)
	e, err := NewEngine(uks, vs, 1.0, true, false)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := e.Run(); err != nil {
		t.Fatal(err)
	}
	for t2 := 0; t2 < e.n; t2++ {
		col := e.forward[t2]
		if col == nil {
			continue // evicted non-checkpoint column, nothing to check here
		}
		sum := 0.0
		for _, v := range col {
			sum += math.Exp(v)
		}
		if !almostEqual(sum, 1.0) {
			t.Fatalf("forward column %d sums to %v, want 1.0", t2, sum)
		}
	}
}

func TestEngineGenotypeLikelihoodsSumToOne(t *testing.T) {
	uks, vs := threeSiteFixture(t)
	e, err := NewEngine(uks, vs, 1.0, true, false)
	if err != nil {
		t.Fatal(err)
	}
	results, err := e.Run()
	if err != nil {
		t.Fatal(err)
	}
	for i, r := range results {
		sum := r.LikelihoodSum()
		if !almostEqual(sum, 1.0) {
			t.Fatalf("site %d: likelihood sum = %v, want 1.0", i, sum)
		}
	}
}

// TestEngineUnorderedGenotypeSymmetry checks spec.md §8 property 6: genotype
// {0,1} and {1,0} fold into one likelihood bucket.
func TestEngineUnorderedGenotypeSymmetry(t *testing.T) {
	uks, vs := threeSiteFixture(t)
	e, err := NewEngine(uks, vs, 1.0, true, false)
	if err != nil {
		t.Fatal(err)
	}
	results, err := e.Run()
	if err != nil {
		t.Fatal(err)
	}
	for i, r := range results {
		if _, ok := r.Likelihoods()[[2]uint8{0, 1}]; !ok {
			t.Fatalf("site %d: expected a single {0,1} bucket", i)
		}
	}
}

func TestEngineViterbiPicksSupportedPath(t *testing.T) {
	positions := []int{100, 500}
	paths := []PathAllele{{0, 0}, {1, 1}}
	// Every k-mer at every site supports allele 1 at full coverage: path 1
	// homozygous should win the Viterbi trace at every site.
	kmers := []Kmer{{Multiplicity: 20, AlleleMask: 1 << 1}}
	uks := []*UniqueKmers{
		mustUniqueKmers(t, positions[0], paths, kmers, 20),
		mustUniqueKmers(t, positions[1], paths, kmers, 20),
	}
	vs := []*Variant{VariantFromUniqueKmers(uks[0]), VariantFromUniqueKmers(uks[1])}

	e, err := NewEngine(uks, vs, 1.0, false, true)
	if err != nil {
		t.Fatal(err)
	}
	results, err := e.Run()
	if err != nil {
		t.Fatal(err)
	}
	for i, r := range results {
		a, ok := r.Haplotype1()
		if !ok || a != 1 {
			t.Errorf("site %d: haplotype1 = (%v,%v), want (1,true)", i, a, ok)
		}
		b, ok := r.Haplotype2()
		if !ok || b != 1 {
			t.Errorf("site %d: haplotype2 = (%v,%v), want (1,true)", i, b, ok)
		}
	}
}

// TestEngineZeroPathColumnIsFatal checks spec.md §4.4.1: a column with no
// covering paths aborts engine construction with InputStructural.
func TestEngineZeroPathColumnIsFatal(t *testing.T) {
	u1 := mustUniqueKmers(t, 10, []PathAllele{{0, 0}}, nil, 10)
	badUK := &UniqueKmers{position: 20, paths: nil}
	v2 := &Variant{position: 20, pathAllele: map[uint64]uint8{}}
	_, err := NewEngine([]*UniqueKmers{u1, badUK}, []*Variant{VariantFromUniqueKmers(u1), v2}, 1.0, true, false)
	if err == nil {
		t.Fatal("expected an error for a zero-path column")
	}
	if KindOf(err) != InputStructural {
		t.Fatalf("KindOf(err) = %v, want InputStructural", KindOf(err))
	}
}

func TestEngineRejectsNeitherModeRequested(t *testing.T) {
	uks, vs := threeSiteFixture(t)
	_, err := NewEngine(uks, vs, 1.0, false, false)
	if err == nil || KindOf(err) != UsageError {
		t.Fatalf("expected UsageError, got %v", err)
	}
}

// TestEngineCheckpointingAgreesWithBruteForce checks spec.md §8 property 7:
// the sqrt-checkpointed engine and a k=1 (no eviction) engine must agree on
// genotype likelihoods up to the epsilon used elsewhere in this package.
func TestEngineCheckpointingAgreesWithBruteForce(t *testing.T) {
	positions := []int{10, 40, 90, 160, 250, 360, 490, 640, 810, 1000}
	paths := []PathAllele{{0, 0}, {1, 0}, {2, 1}}
	kmers := []Kmer{{Multiplicity: 15, AlleleMask: (1 << 0) | (1 << 1)}}
	uks := make([]*UniqueKmers, len(positions))
	vs := make([]*Variant, len(positions))
	for i, pos := range positions {
		uks[i] = mustUniqueKmers(t, pos, paths, kmers, 20)
		vs[i] = VariantFromUniqueKmers(uks[i])
	}

	checkpointed, err := NewEngine(uks, vs, 1.0, true, false)
	if err != nil {
		t.Fatal(err)
	}
	if checkpointed.CheckpointInterval() == 1 {
		t.Fatalf("expected a checkpoint interval > 1 for N=%d", len(positions))
	}
	wantResults, err := checkpointed.Run()
	if err != nil {
		t.Fatal(err)
	}

	bruteForce, err := NewEngine(uks, vs, 1.0, true, false)
	if err != nil {
		t.Fatal(err)
	}
	bruteForce.k = 1
	gotResults, err := bruteForce.Run()
	if err != nil {
		t.Fatal(err)
	}

	for i := range wantResults {
		want := wantResults[i].Likelihoods()
		got := gotResults[i].Likelihoods()
		for key, wv := range want {
			gv := got[key]
			if !almostEqual(wv, gv) {
				t.Fatalf("site %d genotype %v: checkpointed=%v brute-force=%v", i, key, wv, gv)
			}
		}
	}
}

func TestLogAddExp(t *testing.T) {
	if got := logAddExp(math.Inf(-1), math.Inf(-1)); !math.IsInf(got, -1) {
		t.Fatalf("logAddExp(-Inf,-Inf) = %v, want -Inf", got)
	}
	got := logAddExp(math.Log(2), math.Log(3))
	if !almostEqual(math.Exp(got), 5.0) {
		t.Fatalf("exp(logAddExp(log2,log3)) = %v, want 5.0", math.Exp(got))
	}
}

func TestIntSqrt(t *testing.T) {
	cases := map[int]int{0: 0, 1: 1, 4: 2, 15: 3, 16: 4, 100: 10}
	for n, want := range cases {
		if got := intSqrt(n); got != want {
			t.Errorf("intSqrt(%d) = %d, want %d", n, got, want)
		}
	}
}
