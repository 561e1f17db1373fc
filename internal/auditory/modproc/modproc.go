// Copyright (c) 2019, The Emergent Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package modproc implements the modulation processor of BS.1387 ch. 3.3:
// a per-band estimate of how fast perceived loudness is changing, used by
// the modulation-difference and noise-loudness MOVs to separate temporal
// envelope distortion from steady-state level differences.
package modproc

import (
	"math"

	"github.com/HSU-ANT/gstpeaq-sub000/internal/auditory/dsp"
	"github.com/HSU-ANT/gstpeaq-sub000/internal/auditory/earmodel"
)

const (
	tauMin = 0.008
	tau100 = 0.050
)

// Params holds the per-band one-pole coefficient and the sample-rate/
// step-size ratio used by the loudness-derivative estimate, shared across
// channels.
type Params struct {
	bandCount int
	a         []float64
	rateOverStep float64
}

// NewParams derives the modulation processor's per-band smoothing
// coefficients from model's band layout.
func NewParams(model earmodel.Model) *Params {
	n := model.BandCount()
	p := &Params{
		bandCount:    n,
		a:            make([]float64, n),
		rateOverStep: dsp.SampleRate / float64(model.StepSize()),
	}
	for i := 0; i < n; i++ {
		tau := dsp.EarTimeConstant(model.CenterFrequency(i), tauMin, tau100)
		p.a[i] = dsp.TimeConstantFactor(model.StepSize(), tau)
	}
	return p
}

// State is the per-channel running state: the previous frame's loudness and
// the filtered derivative/loudness used to compute this frame's modulation.
type State struct {
	params *Params

	previousLoudness []float64
	filteredDeriv    []float64
	filteredLoudness []float64
	modulation       []float64
}

// NewState allocates per-channel state for params.
func NewState(params *Params) *State {
	n := params.bandCount
	return &State{
		params:           params,
		previousLoudness: make([]float64, n),
		filteredDeriv:    make([]float64, n),
		filteredLoudness: make([]float64, n),
		modulation:       make([]float64, n),
	}
}

// Process runs COMPONENT DESIGN 4.4 on one frame's unsmeared excitation
// pattern, updating Modulation() and AverageLoudness().
func (s *State) Process(unsmearedExcitation []float64) {
	a := s.params.a
	for i, e := range unsmearedExcitation {
		loudness := math.Pow(e, 0.3)
		d := s.params.rateOverStep * math.Abs(loudness-s.previousLoudness[i])
		s.filteredDeriv[i] = a[i]*s.filteredDeriv[i] + (1-a[i])*d
		s.filteredLoudness[i] = a[i]*s.filteredLoudness[i] + (1-a[i])*loudness
		s.modulation[i] = s.filteredDeriv[i] / (1 + s.filteredLoudness[i]/0.3)
		s.previousLoudness[i] = loudness
	}
}

// Modulation returns the per-band modulation pattern from the last call to
// Process.
func (s *State) Modulation() []float64 { return s.modulation }

// AverageLoudness returns the per-band smoothed loudness from the last call
// to Process, used as the temporal weight in the modulation-difference MOV.
func (s *State) AverageLoudness() []float64 { return s.filteredLoudness }
