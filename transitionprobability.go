// Copyright (C) The Lightning Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package pangenie

import "math"

// TransitionProbabilityComputer precomputes the four recombination-kernel
// values between two adjacent columns, per spec.md §4.2. The pair
// transition between cell (i,j) and predecessor (i',j') is the product of
// two independent per-haplotype transitions, so only four distinct values
// ever occur: both-stay, one-switch (two symmetric cases), both-switch.
type TransitionProbabilityComputer struct {
	pStay, pSwitch           float64
	bothStay, oneSwitch, bothSwitch float64
}

// NewTransitionProbabilityComputer builds the kernel from two adjacent
// sites' positions and the recombination rate (cM/Mb). cur_pos must be >=
// prev_pos: equal positions degenerate to pStay=1 (spec.md §4.2's tie-break).
func NewTransitionProbabilityComputer(prevPos, curPos int, recombRate float64) (*TransitionProbabilityComputer, error) {
	if curPos < prevPos {
		return nil, newError(InputStructural, "transition computer: cur_pos (%d) < prev_pos (%d)", curPos, prevPos)
	}
	var pStay float64
	if curPos == prevPos {
		pStay = 1.0
	} else {
		d := float64(curPos-prevPos) * recombRate * 1e-8
		pStay = 0.5 * (1 + math.Exp(-d))
	}
	pSwitch := 1 - pStay
	return &TransitionProbabilityComputer{
		pStay:      pStay,
		pSwitch:    pSwitch,
		bothStay:   pStay * pStay,
		oneSwitch:  pStay * pSwitch,
		bothSwitch: pSwitch * pSwitch,
	}, nil
}

// PStay and PSwitch expose the single-haplotype "no switch"/"switch"
// probabilities, mostly useful for testing the invariant p_stay+p_switch=1.
func (t *TransitionProbabilityComputer) PStay() float64   { return t.pStay }
func (t *TransitionProbabilityComputer) PSwitch() float64 { return t.pSwitch }

// Transition returns the pair-transition probability from predecessor cell
// (prevI, prevJ) to cell (curI, curJ), identified by path id equality only
// -- path ids from different sites are never considered equal just because
// their slot indices happen to coincide.
func (t *TransitionProbabilityComputer) Transition(prevI, prevJ, curI, curJ uint64) float64 {
	iStays := prevI == curI
	jStays := prevJ == curJ
	switch {
	case iStays && jStays:
		return t.bothStay
	case iStays != jStays:
		return t.oneSwitch
	default:
		return t.bothSwitch
	}
}
