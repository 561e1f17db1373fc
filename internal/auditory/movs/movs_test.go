// Copyright (c) 2019, The Emergent Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package movs

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/dsp/fourier"
	"pgregory.net/rapid"

	"github.com/HSU-ANT/gstpeaq-sub000/internal/auditory/conform"
)

func flatSpectrum(n int, v float64) []float64 {
	s := make([]float64, n)
	for i := range s {
		s[i] = v
	}
	return s
}

func TestBandwidthSkipsFrameBelowFloor(t *testing.T) {
	ref := flatSpectrum(1024, 1e-6)
	test := flatSpectrum(1024, 1e-6)
	_, _, ok := Bandwidth(ref, test)
	assert.False(t, ok, "a silent frame's bwRef cannot exceed the 346 floor")
}

func TestBandwidthIdenticalSpectraGivesEqualBandwidths(t *testing.T) {
	ref := make([]float64, 1024)
	for k := range ref {
		if k < 900 {
			ref[k] = 1.0
		} else {
			ref[k] = 1e-12
		}
	}
	test := append([]float64(nil), ref...)
	bwRef, bwTest, ok := Bandwidth(ref, test)
	require.True(t, ok)
	assert.Equal(t, bwRef, bwTest)
}

func TestNMRIdenticalSignalsIsZero(t *testing.T) {
	n := 110
	p := make([]float64, 512)
	e := make([]float64, n)
	for i := range p {
		p[i] = 1.0
	}
	for i := range e {
		e[i] = 1.0
	}
	group := func(spectrum, out []float64) {
		// trivial uniform grouping for the test's own synthetic spectrum
		per := len(spectrum) / len(out)
		for b := range out {
			sum := 0.0
			for k := b * per; k < (b+1)*per; k++ {
				sum += spectrum[k]
			}
			out[b] = sum
		}
	}
	nmr, nmrMax := NMR(p, p, e, 0.25, group)
	assert.InDelta(t, 0.0, nmr, 1e-9)
	assert.InDelta(t, 0.0, nmrMax, 1e-9)
}

func TestModulationDifferenceIdenticalPatternsIsZero(t *testing.T) {
	n := 40
	mod := make([]float64, n)
	loud := make([]float64, n)
	noise := make([]float64, n)
	for i := range mod {
		mod[i] = 0.3
		loud[i] = 1.0
		noise[i] = 0.01
	}
	modDiff1, modDiff2, tempWt := ModulationDifference(mod, mod, loud, noise, false, 100)
	assert.InDelta(t, 0.0, modDiff1, 1e-9)
	assert.InDelta(t, 0.0, modDiff2, 1e-9)
	assert.Greater(t, tempWt, 0.0)
}

func TestModulationDifferenceAsymmetricPenalty(t *testing.T) {
	// test louder than ref should weight mod_diff_2 by 1, test quieter by
	// 0.1 - so an equal |diff| test-louder case yields 10x the
	// test-quieter case's mod_diff_2 contribution.
	modRef := []float64{1.0}
	modTestHigh := []float64{2.0}
	modTestLow := []float64{0.0}
	loud := []float64{1.0}
	noise := []float64{0.01}

	_, diffHigh, _ := ModulationDifference(modRef, modTestHigh, loud, noise, false, 1)
	_, diffLow, _ := ModulationDifference(modRef, modTestLow, loud, noise, false, 1)
	assert.InDelta(t, 10*diffLow, diffHigh, 1e-9)
}

func TestNoiseLoudnessZeroWhenNoExcess(t *testing.T) {
	n := 40
	mod := make([]float64, n)
	e := make([]float64, n)
	thres := make([]float64, n)
	for i := range mod {
		mod[i] = 0.1
		e[i] = 1.0
		thres[i] = 1.0
	}
	nl := NoiseLoudness(RmsNoiseLoudB, mod, mod, e, e, thres)
	assert.InDelta(t, 0.0, nl, 1e-9)
}

func TestDetectionProbabilityIdenticalExcitationIsZero(t *testing.T) {
	e := [][]float64{{40, 42, 38}}
	pTot, qSum := DetectionProbability(e, e)
	assert.InDelta(t, 0.0, pTot, 1e-9)
	assert.InDelta(t, 0.0, qSum, 1e-9)
}

// TestDetectionProbabilityMonotoneInLevelDifference checks the quantified
// invariant that increasing the reference/test excitation gap in dB can
// only ever increase (never decrease) the per-band detection probability
// P_tot (spec.md §8).
func TestDetectionProbabilityMonotoneInLevelDifference(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		base := rapid.Float64Range(0, 80).Draw(t, "base")
		gapSmall := rapid.Float64Range(0, 20).Draw(t, "gapSmall")
		gapLarge := gapSmall + rapid.Float64Range(0, 20).Draw(t, "gapExtra")

		small := [][]float64{{base + gapSmall}}
		large := [][]float64{{base + gapLarge}}
		ref := [][]float64{{base}}

		pSmall, _ := DetectionProbability(ref, small)
		pLarge, _ := DetectionProbability(ref, large)
		assert.LessOrEqual(t, pSmall, pLarge+1e-9)
	})
}

func TestEHSIdenticalSpectraIsZero(t *testing.T) {
	n := 600
	p := make([]float64, n)
	for i := range p {
		p[i] = 1.0 + float64(i%7)
	}
	fft := fourier.NewFFT(maxLag)
	ehs := EHS(p, p, fft, conform.DefaultToggles())
	assert.InDelta(t, 0.0, ehs, 1e-6)
}

func TestMaskingWeightFlatBelowTwelveBark(t *testing.T) {
	w := maskingWeight(10, 1.0)
	assert.InDelta(t, math.Pow(10, 0.3), w, 1e-9)
}

func TestMaskingWeightRisesAboveTwelveBark(t *testing.T) {
	flat := maskingWeight(12, 1.0)
	risen := maskingWeight(40, 1.0)
	assert.Greater(t, risen, flat)
}
