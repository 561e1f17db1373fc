// Copyright (c) 2019, The Emergent Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package leveladapt implements the level and pattern adapter of BS.1387
// ch. 3: it compensates for a constant level offset between the reference
// and test excitation patterns, then tracks and corrects any remaining
// per-band pattern mismatch so that later MOVs measure perceptual
// distortion rather than an overall gain or spectral-tilt difference.
package leveladapt

import (
	"math"

	"github.com/HSU-ANT/gstpeaq-sub000/internal/auditory/dsp"
	"github.com/HSU-ANT/gstpeaq-sub000/internal/auditory/earmodel"
)

const (
	tauMin = 0.008
	tau100 = 0.050
)

// Params holds the per-band one-pole coefficient derived from the ear
// model's center frequencies and step size, shared across channels.
type Params struct {
	bandCount int
	a         []float64
}

// NewParams derives the level adapter's per-band smoothing coefficients
// from model's band layout.
func NewParams(model earmodel.Model) *Params {
	n := model.BandCount()
	p := &Params{bandCount: n, a: make([]float64, n)}
	for i := 0; i < n; i++ {
		tau := dsp.EarTimeConstant(model.CenterFrequency(i), tauMin, tau100)
		p.a[i] = dsp.TimeConstantFactor(model.StepSize(), tau)
	}
	return p
}

// State is the per-channel running state: the smoothed reference/test
// excitations, the filtered num/den products behind the pattern-adaptation
// factors, and the smoothed pattern-correction factors themselves.
//
// Per DESIGN NOTES, the pattern-correction factors are zero-initialized
// (matching the source), not one.
type State struct {
	params *Params

	smoothRef, smoothTest []float64
	num, den              []float64
	pattCorrRef           []float64
	pattCorrTest          []float64
	adaptedRef            []float64
	adaptedTest           []float64
}

// NewState allocates per-channel state for params.
func NewState(params *Params) *State {
	n := params.bandCount
	return &State{
		params:       params,
		smoothRef:    make([]float64, n),
		smoothTest:   make([]float64, n),
		num:          make([]float64, n),
		den:          make([]float64, n),
		pattCorrRef:  make([]float64, n),
		pattCorrTest: make([]float64, n),
		adaptedRef:   make([]float64, n),
		adaptedTest:  make([]float64, n),
	}
}

// Process runs COMPONENT DESIGN 4.3 on one frame's pair of excitation
// patterns, updating internal state and refreshing AdaptedRef/AdaptedTest.
func (s *State) Process(eRef, eTest []float64) {
	n := s.params.bandCount
	a := s.params.a

	for i := 0; i < n; i++ {
		s.smoothRef[i] = a[i]*s.smoothRef[i] + (1-a[i])*eRef[i]
		s.smoothTest[i] = a[i]*s.smoothTest[i] + (1-a[i])*eTest[i]
	}

	sqrtSum, testSum := 0.0, 0.0
	for i := 0; i < n; i++ {
		sqrtSum += math.Sqrt(s.smoothRef[i] * s.smoothTest[i])
		testSum += s.smoothTest[i]
	}
	levCorr := (sqrtSum * sqrtSum) / (testSum * testSum)

	adjRef := make([]float64, n)
	adjTest := make([]float64, n)
	if levCorr > 1 {
		for i := 0; i < n; i++ {
			adjRef[i] = eRef[i] / levCorr
			adjTest[i] = eTest[i]
		}
	} else {
		for i := 0; i < n; i++ {
			adjRef[i] = eRef[i]
			adjTest[i] = eTest[i] * levCorr
		}
	}

	pRef := make([]float64, n)
	pTest := make([]float64, n)
	for i := 0; i < n; i++ {
		s.num[i] = a[i]*s.num[i] + adjTest[i]*adjRef[i]
		s.den[i] = a[i]*s.den[i] + adjRef[i]*adjRef[i]
		if s.num[i] >= s.den[i] {
			pRef[i] = 1
			pTest[i] = s.den[i] / s.num[i]
		} else {
			pRef[i] = s.num[i] / s.den[i]
			pTest[i] = 1
		}
	}

	m1Max := n / 36
	m2Max := n / 25
	for i := 0; i < n; i++ {
		m1 := i
		if m1 > m1Max {
			m1 = m1Max
		}
		m2 := n - i - 1
		if m2 > m2Max {
			m2 = m2Max
		}
		sumRef, sumTest := 0.0, 0.0
		for l := i - m1; l <= i+m2; l++ {
			sumRef += pRef[l]
			sumTest += pTest[l]
		}
		count := float64(m1 + m2 + 1)
		s.pattCorrRef[i] = a[i]*s.pattCorrRef[i] + (1-a[i])*(sumRef/count)
		s.pattCorrTest[i] = a[i]*s.pattCorrTest[i] + (1-a[i])*(sumTest/count)
	}

	for i := 0; i < n; i++ {
		s.adaptedRef[i] = adjRef[i] * s.pattCorrRef[i]
		s.adaptedTest[i] = adjTest[i] * s.pattCorrTest[i]
	}
}

// AdaptedRef returns the level- and pattern-corrected reference excitation
// from the last call to Process.
func (s *State) AdaptedRef() []float64 { return s.adaptedRef }

// AdaptedTest returns the level- and pattern-corrected test excitation from
// the last call to Process.
func (s *State) AdaptedTest() []float64 { return s.adaptedTest }
