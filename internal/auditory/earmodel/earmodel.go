// Copyright (c) 2019, The Emergent Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package earmodel holds the critical-band table and the small Model
// interface shared by the FFT and filterbank ear models, so that the level
// adapter, the modulation processor and the MOV extractors can work against
// either one without caring which produced a given excitation pattern.
package earmodel

import "math"

// Model is the minimal per-band contract the level adapter, the modulation
// processor, and the MOV extractors need from either ear model variant.
type Model interface {
	BandCount() int
	CenterFrequency(band int) float64
	InternalNoise(band int) float64
	StepSize() int
}

// BandLayout is the critical-band table common to both ear models: center
// frequency, internal noise floor, absolute hearing threshold and the
// per-band loudness factor used by the total-loudness bookkeeping in the
// orchestrator.
type BandLayout struct {
	CenterFreq         []float64
	EdgeFreq           []float64 // len BandCount+1, band i spans [EdgeFreq[i], EdgeFreq[i+1])
	InternalNoise      []float64
	ExcitationThreshold []float64
	Threshold          []float64
	LoudnessFactor     []float64
}

// NewBandLayout builds a bandCount-band critical-band table spanning
// [fLow, fHigh] Hz, evenly spaced in Bark (BS.1387 ch. 2, z = 7*asinh(f/650)),
// with internal-noise, threshold and loudness-factor tables computed per
// band center frequency. loudnessScale is the model-specific constant in the
// loudness-factor formula (1.07664 for the FFT model, 1.26539 for the
// filterbank model).
func NewBandLayout(bandCount int, fLow, fHigh, loudnessScale float64) BandLayout {
	zLow := bark(fLow)
	zHigh := bark(fHigh)
	layout := BandLayout{
		CenterFreq:          make([]float64, bandCount),
		EdgeFreq:             make([]float64, bandCount+1),
		InternalNoise:        make([]float64, bandCount),
		ExcitationThreshold:  make([]float64, bandCount),
		Threshold:            make([]float64, bandCount),
		LoudnessFactor:       make([]float64, bandCount),
	}
	for i := 0; i <= bandCount; i++ {
		z := zLow + float64(i)*(zHigh-zLow)/float64(bandCount)
		layout.EdgeFreq[i] = invBark(z)
	}
	for i := 0; i < bandCount; i++ {
		z := zLow + (float64(i)+0.5)*(zHigh-zLow)/float64(bandCount)
		fc := invBark(z)
		layout.CenterFreq[i] = fc
		layout.InternalNoise[i] = math.Pow(10, 0.4*0.364*math.Pow(fc/1000, -0.8))
		layout.ExcitationThreshold[i] = math.Pow(10, 0.364*math.Pow(fc/1000, -0.8))
		layout.Threshold[i] = math.Pow(10, 0.1*(-2-2.05*math.Atan(fc/4000)-
			0.75*math.Atan((fc/1600)*(fc/1600))))
		layout.LoudnessFactor[i] = loudnessScale *
			math.Pow(layout.ExcitationThreshold[i]/(1e4*layout.Threshold[i]), 0.23)
	}
	return layout
}

// NewEmptyBandLayout allocates a bandCount-band layout with no center
// frequencies assigned yet, for models (like the filterbank) that place
// bands by their own formula rather than even Bark spacing; call
// SetCenterFrequencies to fill it in.
func NewEmptyBandLayout(bandCount int) BandLayout {
	return BandLayout{
		CenterFreq:          make([]float64, bandCount),
		InternalNoise:       make([]float64, bandCount),
		ExcitationThreshold: make([]float64, bandCount),
		Threshold:           make([]float64, bandCount),
		LoudnessFactor:      make([]float64, bandCount),
	}
}

// SetCenterFrequencies overrides the Bark-evenly-spaced center frequencies
// with an explicit table, used by the filterbank ear model whose bands are
// placed by its own formula rather than even Bark spacing, while keeping
// the noise/threshold/loudness derivation identical.
func (l *BandLayout) SetCenterFrequencies(fc []float64, loudnessScale float64) {
	copy(l.CenterFreq, fc)
	for i, f := range fc {
		l.InternalNoise[i] = math.Pow(10, 0.4*0.364*math.Pow(f/1000, -0.8))
		l.ExcitationThreshold[i] = math.Pow(10, 0.364*math.Pow(f/1000, -0.8))
		l.Threshold[i] = math.Pow(10, 0.1*(-2-2.05*math.Atan(f/4000)-
			0.75*math.Atan((f/1600)*(f/1600))))
		l.LoudnessFactor[i] = loudnessScale *
			math.Pow(l.ExcitationThreshold[i]/(1e4*l.Threshold[i]), 0.23)
	}
}

// TotalLoudness computes 24/band_count * sum_b loudness_factor[b] *
// max((1 - threshold[b] + threshold[b]*excitation[b]/excitation_threshold[b])^0.23 - 1, 0),
// the per-frame reference total loudness used to gate the noise-loudness
// MOVs once it exceeds a small floor (COMPONENT DESIGN 4.8).
func (l *BandLayout) TotalLoudness(excitation []float64) float64 {
	sum := 0.0
	for b, e := range excitation {
		term := 1 - l.Threshold[b] + l.Threshold[b]*e/l.ExcitationThreshold[b]
		v := math.Pow(term, 0.23) - 1
		if v > 0 {
			sum += l.LoudnessFactor[b] * v
		}
	}
	return 24 / float64(len(excitation)) * sum
}

func bark(fHz float64) float64 {
	return 7 * math.Asinh(fHz/650)
}

func invBark(z float64) float64 {
	return 650 * math.Sinh(z/7)
}
