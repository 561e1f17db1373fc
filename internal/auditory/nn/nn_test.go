// Copyright (c) 2019, The Emergent Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package nn

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"pgregory.net/rapid"
)

// TestODGRange checks the quantified invariant that ODG always falls in
// [-3.98, 0.22] regardless of the Distortion Index that produced it
// (spec.md §8): sigmoid saturates, so the affine map can never leave its
// own bounds.
func TestODGRange(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		di := rapid.Float64Range(-1e6, 1e6).Draw(t, "di")
		odg := ODG(di)
		assert.GreaterOrEqual(t, odg, bmin)
		assert.LessOrEqual(t, odg, bmax)
	})
}

func TestODGMonotoneInDI(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		a := rapid.Float64Range(-100, 100).Draw(t, "a")
		b := rapid.Float64Range(-100, 100).Draw(t, "b")
		if a > b {
			a, b = b, a
		}
		assert.LessOrEqual(t, ODG(a), ODG(b))
	})
}

func TestODGAtZeroDI(t *testing.T) {
	// sigmoid(0) = 0.5, so ODG(0) sits exactly halfway between bmin/bmax.
	assert.InDelta(t, (bmin+bmax)/2, ODG(0), 1e-12)
}

// TestDistortionIndexBasicAtMinima exercises the full 11-input basic
// network with every MOV pinned at its own amin, which normalizes every
// input to 0, and checks that the resulting DI is a number (not NaN).
func TestDistortionIndexBasicAtMinima(t *testing.T) {
	di := DistortionIndexBasic(aminBasic, false)
	assert.False(t, isNaN(di))
}

func TestDistortionIndexAdvancedAtMinima(t *testing.T) {
	di := DistortionIndexAdvanced(aminAdvanced, false)
	assert.False(t, isNaN(di))
}

// TestClampMOVsNeverMovesInRangeValues checks that clamping leaves an
// already in-range normalized MOV (in [0, 1]) unchanged.
func TestClampMOVsNeverMovesInRangeValues(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		v := rapid.Float64Range(0, 1).Draw(t, "normalized")
		raw := v // amin=0, amax=1 puts v directly into [0,1]
		unclamped := scale(raw, 0, 1, false)
		clamped := scale(raw, 0, 1, true)
		assert.InDelta(t, unclamped, clamped, 1e-12)
	})
}

func isNaN(x float64) bool { return x != x }
