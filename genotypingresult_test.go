// Copyright (C) The Lightning Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package pangenie

import "testing"

func TestGenotypingResultNormalize(t *testing.T) {
	g := NewGenotypingResult()
	g.AddToLikelihood(0, 0, 1.0)
	g.AddToLikelihood(0, 1, 2.0)
	g.AddToLikelihood(1, 1, 1.0)
	if err := g.DivideLikelihoodsBy(g.LikelihoodSum()); err != nil {
		t.Fatal(err)
	}
	sum := g.LikelihoodSum()
	if !almostEqual(sum, 1.0) {
		t.Fatalf("sum after normalize = %v, want 1.0", sum)
	}
	l := g.Likelihoods()
	if !almostEqual(l[[2]uint8{0, 1}], 0.5) {
		t.Fatalf("het likelihood = %v, want 0.5", l[[2]uint8{0, 1}])
	}
}

func TestGenotypingResultUnorderedSymmetry(t *testing.T) {
	g := NewGenotypingResult()
	g.AddToLikelihood(2, 1, 3.0)
	g.AddToLikelihood(1, 2, 4.0)
	if got := g.Likelihoods()[[2]uint8{1, 2}]; got != 7.0 {
		t.Fatalf("{1,2} likelihood = %v, want 7.0 (order-independent accumulation)", got)
	}
}

func TestGenotypingResultHaplotypesUnsetUntilPhasing(t *testing.T) {
	g := NewGenotypingResult()
	if _, ok := g.Haplotype1(); ok {
		t.Fatal("Haplotype1 should be unset before phasing")
	}
	g.AddFirstHaplotypeAllele(1)
	g.AddSecondHaplotypeAllele(0)
	if a, ok := g.Haplotype1(); !ok || a != 1 {
		t.Fatalf("Haplotype1() = (%v, %v), want (1, true)", a, ok)
	}
	if a, ok := g.Haplotype2(); !ok || a != 0 {
		t.Fatalf("Haplotype2() = (%v, %v), want (0, true)", a, ok)
	}
}

func TestGenotypingResultZeroDivisorIsNumericCollapse(t *testing.T) {
	g := NewGenotypingResult()
	g.AddToLikelihood(0, 0, 1.0)
	err := g.DivideLikelihoodsBy(0)
	if err == nil {
		t.Fatal("expected error dividing by zero")
	}
	if KindOf(err) != NumericCollapse {
		t.Fatalf("KindOf(err) = %v, want NumericCollapse", KindOf(err))
	}
}
