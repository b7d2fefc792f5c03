// Copyright (C) The Lightning Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package pangenie

import (
	"math"
	"testing"
)

const epsilon = 1e-9

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < epsilon
}

func TestTransitionProbabilityZeroDistance(t *testing.T) {
	tp, err := NewTransitionProbabilityComputer(100, 100, 1.26)
	if err != nil {
		t.Fatal(err)
	}
	if !almostEqual(tp.PStay(), 1.0) {
		t.Fatalf("PStay() = %v, want 1.0", tp.PStay())
	}
	if !almostEqual(tp.Transition(1, 2, 1, 2), 1.0) {
		t.Fatalf("both-stay transition = %v, want 1.0", tp.Transition(1, 2, 1, 2))
	}
	if !almostEqual(tp.Transition(1, 2, 3, 2), 0.0) {
		t.Fatalf("one-switch transition with pStay=1 should be 0, got %v", tp.Transition(1, 2, 3, 2))
	}
}

func TestTransitionProbabilityHugeDistance(t *testing.T) {
	tp, err := NewTransitionProbabilityComputer(1, 1000000000, 1.0)
	if err != nil {
		t.Fatal(err)
	}
	// d = (1e9-1) * 1.0 * 1e-8 ≈ 10, so PStay = 0.5*(1+e^-10) ≈ 0.5000227:
	// close to 0.5, but not within 1e-6 of it.
	want := 0.5 * (1 + math.Exp(-float64(1000000000-1)*1.0*1e-8))
	if !almostEqual(tp.PStay(), want) {
		t.Fatalf("PStay() = %v, want %v (~0.5)", tp.PStay(), want)
	}
}

func TestTransitionProbabilitySumsToOne(t *testing.T) {
	tp, err := NewTransitionProbabilityComputer(100, 50100, 1.26)
	if err != nil {
		t.Fatal(err)
	}
	if !almostEqual(tp.PStay()+tp.PSwitch(), 1.0) {
		t.Fatalf("PStay+PSwitch = %v, want 1.0", tp.PStay()+tp.PSwitch())
	}
	// sum of the four pair transitions out of one predecessor, over the
	// four possible (stay/switch)x(stay/switch) outcomes, is 1.
	sum := tp.bothStay + tp.oneSwitch + tp.oneSwitch + tp.bothSwitch
	if !almostEqual(sum, 1.0) {
		t.Fatalf("sum of four pair transitions = %v, want 1.0", sum)
	}
}

func TestTransitionProbabilityRejectsDecreasingPosition(t *testing.T) {
	_, err := NewTransitionProbabilityComputer(100, 50, 1.0)
	if err == nil {
		t.Fatal("expected error for cur_pos < prev_pos")
	}
	if KindOf(err) != InputStructural {
		t.Fatalf("KindOf(err) = %v, want InputStructural", KindOf(err))
	}
}

func TestTransitionProbabilityPathIdentityNotSlotIdentity(t *testing.T) {
	tp, _ := NewTransitionProbabilityComputer(1, 2, 1.0)
	// same slot positions (0,0)->(0,0) but different path ids must not be
	// treated as "stays".
	got := tp.Transition(7, 7, 8, 8)
	if almostEqual(got, tp.bothStay) {
		t.Fatalf("transition between distinct path ids returned bothStay value")
	}
}
