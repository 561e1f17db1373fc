// Copyright (c) 2019, The Emergent Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package fftear implements the FFT-based ear model of BS.1387: a 2048-point,
// 50%-overlapped analysis window feeding a critical-band power spectrum,
// frequency-domain spreading (Kabal 2003), and a forward-masking low-pass
// per band.
package fftear

import (
	"math"

	"gonum.org/v1/gonum/dsp/fourier"

	"github.com/HSU-ANT/gstpeaq-sub000/internal/auditory/dsp"
	"github.com/HSU-ANT/gstpeaq-sub000/internal/auditory/earmodel"
)

const (
	// FrameSize is the analysis window length in samples at 48kHz.
	FrameSize = 2048
	// StepSize is the hop between successive frames (50% overlap).
	StepSize = FrameSize / 2

	// gamma calibrates the analysis window so a full-scale sine reproduces
	// the configured playback level in dB SPL.
	gamma = 0.84971762641205

	tauMin = 0.008
	tau100 = 0.030

	silenceThreshold = 8000.0 / (32768.0 * 32768.0)

	// freqLow and freqHigh bound the critical-band table the power
	// spectrum's bins are grouped into.
	freqLow  = 80.0
	freqHigh = 18000.0

	loudnessScale = 1.07664
)

// Params holds everything that depends only on the band count (109 for the
// basic version, 55 for the advanced version's FFT-domain MOVs) and the
// playback level calibration, shared across every channel and every frame.
type Params struct {
	bandCount    int
	layout       earmodel.BandLayout
	hann         [FrameSize]float64
	outerMiddle  [FrameSize/2 + 1]float64
	binLo, binHi []int
	binLoWeight  []float64
	binHiWeight  []float64
	deltaZ       float64
	aL           float64
	aUC          []float64
	spreadNorm   []float64
	levelFactor  float64
	fft          *fourier.FFT
}

// NewParams builds the FFT ear model's band table for bandCount critical
// bands and a playbackLevel dB SPL calibration.
func NewParams(bandCount int, playbackLevel float64) *Params {
	p := &Params{
		bandCount: bandCount,
		layout:    earmodel.NewBandLayout(bandCount, freqLow, freqHigh, loudnessScale),
		fft:       fourier.NewFFT(FrameSize),
	}
	for k := range p.hann {
		p.hann[k] = math.Sqrt(8.0/3.0) * 0.5 * (1 - math.Cos(2*math.Pi*float64(k)/(FrameSize-1)))
	}
	for k := range p.outerMiddle {
		fk := float64(k) * dsp.SampleRate / FrameSize
		p.outerMiddle[k] = dsp.OuterMiddleEarWeight(fk)
	}
	p.groupBins()
	p.deltaZ = 27.0 / float64(bandCount-1)
	p.aL = math.Pow(10, -2.7*p.deltaZ)
	p.aUC = make([]float64, bandCount)
	for i, fc := range p.layout.CenterFreq {
		p.aUC[i] = math.Pow(10, (-2.4-23/fc)*p.deltaZ)
	}
	p.SetPlaybackLevel(playbackLevel)
	p.computeSpreadNormalization()
	return p
}

// groupBins precomputes, for each critical band, the integer lower/upper
// FFT bin indices and their fractional (partial-bin) weights, so that
// groupIntoBands can compute
//
//	P[b] = wLo[b]*S[lo[b]] + wHi[b]*S[hi[b]] + sum_{k=lo[b]+1}^{hi[b]-1} S[k]
func (p *Params) groupBins() {
	n := p.bandCount
	p.binLo = make([]int, n)
	p.binHi = make([]int, n)
	p.binLoWeight = make([]float64, n)
	p.binHiWeight = make([]float64, n)
	for b := 0; b < n; b++ {
		loBin := p.layout.EdgeFreq[b] * FrameSize / dsp.SampleRate
		hiBin := p.layout.EdgeFreq[b+1] * FrameSize / dsp.SampleRate
		lo := int(math.Floor(loBin))
		hi := int(math.Floor(hiBin))
		if hi > FrameSize/2 {
			hi = FrameSize / 2
		}
		if hi <= lo {
			hi = lo + 1
		}
		p.binLo[b], p.binHi[b] = lo, hi
		p.binLoWeight[b] = float64(lo+1) - loBin
		p.binHiWeight[b] = hiBin - float64(hi)
	}
}

// SetPlaybackLevel recalibrates the analysis window gain so that a full
// scale sine reproduces playbackLevel dB SPL, per BS.1387 ch. 2.1.5.
func (p *Params) SetPlaybackLevel(playbackLevel float64) {
	denom := 8.0 / 3.0 * math.Pow(gamma/4*(FrameSize-1), 2)
	p.levelFactor = math.Pow(10, playbackLevel/10) / denom
}

func (p *Params) BandCount() int                { return p.bandCount }
func (p *Params) CenterFrequency(i int) float64 { return p.layout.CenterFreq[i] }
func (p *Params) InternalNoise(i int) float64   { return p.layout.InternalNoise[i] }
func (p *Params) StepSize() int                 { return StepSize }

// DeltaZ is the per-band Bark-scale width, 27/(BandCount-1), used by the
// NMR MOV's masking-weight formula.
func (p *Params) DeltaZ() float64 { return p.deltaZ }

// Layout exposes the full band table, used by the orchestrator's total
// loudness bookkeeping.
func (p *Params) Layout() *earmodel.BandLayout { return &p.layout }

// groupIntoBands implements the partial-bin-weighted band grouping of
// COMPONENT DESIGN 4.1 step 5, floored at 1e-12.
func (p *Params) groupIntoBands(spectrum, out []float64) {
	for b := 0; b < p.bandCount; b++ {
		lo, hi := p.binLo[b], p.binHi[b]
		sum := p.binLoWeight[b]*spectrum[lo] + p.binHiWeight[b]*spectrum[hi]
		for k := lo + 1; k < hi; k++ {
			sum += spectrum[k]
		}
		if sum < 1e-12 {
			sum = 1e-12
		}
		out[b] = sum
	}
}

// GroupIntoBands exposes the band-grouping step for the NMR MOV, which
// groups a synthetic noise spectrum the same way (BS.1387 eq. 70).
func (p *Params) GroupIntoBands(spectrum, out []float64) {
	p.groupIntoBands(spectrum, out)
}

// spread runs the Kabal-2003 frequency-domain spreading function (4.1 step
// 7) on pPrime (post-internal-noise band powers) and returns
// E2[i]^(1/0.4), unnormalized.
func (p *Params) spread(pPrime []float64) []float64 {
	n := p.bandCount
	en := make([]float64, n)
	gIL := make([]float64, n)
	for i := 0; i < n; i++ {
		aUCE := p.aUC[i] * math.Pow(pPrime[i], 0.2*p.deltaZ)
		gIU := (1 - math.Pow(aUCE, float64(n-i))) / (1 - aUCE)
		gIL[i] = (1 - math.Pow(p.aL, float64(i+1))) / (1 - p.aL)
		en[i] = pPrime[i] / (gIL[i] + gIU - 1)
	}

	e2 := make([]float64, n)
	e2[n-1] = math.Pow(en[n-1], 0.4)
	for i := n - 1; i >= 1; i-- {
		e2[i-1] = math.Pow(p.aL, 0.4)*e2[i] + math.Pow(en[i-1], 0.4)
	}

	for i := 0; i < n; i++ {
		aUCE := p.aUC[i] * math.Pow(pPrime[i], 0.2*p.deltaZ)
		factor := math.Pow(en[i], 0.4)
		step := math.Pow(aUCE, 0.4)
		contrib := step
		for j := i + 1; j < n; j++ {
			e2[j] += factor * contrib
			contrib *= step
		}
	}

	out := make([]float64, n)
	for i := range out {
		out[i] = math.Pow(e2[i], 1/0.4)
	}
	return out
}

// computeSpreadNormalization applies spread to an all-ones band-power
// vector and stores the result, per 4.1 step 7's closing normalization.
func (p *Params) computeSpreadNormalization() {
	ones := make([]float64, p.bandCount)
	for i := range ones {
		ones[i] = 1
	}
	p.spreadNorm = p.spread(ones)
}

// State is the per-channel running state of the FFT ear model: the filtered
// excitation pattern (forward-masking smoothed) carried from frame to frame.
type State struct {
	params                 *Params
	filteredExcitation     []float64
	excitation             []float64
	powerSpectrum          []float64
	weightedPowerSpectrum  []float64
	unsmearedExcitation    []float64
	energyThresholdReached bool
}

// NewState allocates per-channel state for params. Per DESIGN NOTES, the
// filtered excitation begins each channel at zero (matching the source),
// not at the first frame's unsmeared value.
func NewState(params *Params) *State {
	return &State{
		params:                params,
		filteredExcitation:    make([]float64, params.bandCount),
		excitation:            make([]float64, params.bandCount),
		powerSpectrum:         make([]float64, FrameSize/2+1),
		weightedPowerSpectrum: make([]float64, FrameSize/2+1),
		unsmearedExcitation:   make([]float64, params.bandCount),
	}
}

// ProcessBlock runs one 2048-sample analysis frame through the model. frame
// must have length FrameSize.
func (s *State) ProcessBlock(frame []float32) {
	windowed := make([]float64, FrameSize)
	for i, x := range frame {
		windowed[i] = float64(x) * s.params.hann[i]
	}

	tailEnergy := 0.0
	for _, x := range frame[FrameSize/2:] {
		v := float64(x)
		tailEnergy += v * v
	}
	s.energyThresholdReached = tailEnergy >= silenceThreshold

	coeffs := s.params.fft.Coefficients(nil, windowed)
	for k := range s.powerSpectrum {
		c := coeffs[k]
		s.powerSpectrum[k] = (real(c)*real(c) + imag(c)*imag(c)) * s.params.levelFactor
	}
	for k := range s.weightedPowerSpectrum {
		s.weightedPowerSpectrum[k] = s.powerSpectrum[k] * s.params.outerMiddle[k]
	}

	bandPower := make([]float64, s.params.bandCount)
	s.params.groupIntoBands(s.weightedPowerSpectrum, bandPower)

	pPrime := make([]float64, s.params.bandCount)
	for i := range pPrime {
		pPrime[i] = bandPower[i] + s.params.layout.InternalNoise[i]
	}

	spread := s.params.spread(pPrime)
	for i := range s.unsmearedExcitation {
		s.unsmearedExcitation[i] = spread[i] / s.params.spreadNorm[i]
	}

	for i, fc := range s.params.layout.CenterFreq {
		tau := dsp.EarTimeConstant(fc, tauMin, tau100)
		a := dsp.TimeConstantFactor(StepSize, tau)
		s.filteredExcitation[i] = a*s.filteredExcitation[i] + (1-a)*s.unsmearedExcitation[i]
		s.excitation[i] = s.filteredExcitation[i]
		if s.unsmearedExcitation[i] > s.excitation[i] {
			s.excitation[i] = s.unsmearedExcitation[i]
		}
	}
}

// PowerSpectrum returns the unweighted, level-calibrated power spectrum of
// the last processed frame (length FrameSize/2+1), used by the bandwidth
// MOV.
func (s *State) PowerSpectrum() []float64 { return s.powerSpectrum }

// WeightedPowerSpectrum returns the outer/middle-ear-weighted power
// spectrum of the last processed frame, used by the NMR and EHS MOVs.
func (s *State) WeightedPowerSpectrum() []float64 { return s.weightedPowerSpectrum }

// Excitation returns this frame's excitation pattern, the per-band max of
// the forward-masking-smoothed recursion state and the unsmeared
// excitation, length BandCount. It never feeds back into the recursion
// itself, which runs on filteredExcitation alone.
func (s *State) Excitation() []float64 { return s.excitation }

// UnsmearedExcitation returns this frame's excitation before temporal
// smoothing, used by the modulation processor.
func (s *State) UnsmearedExcitation() []float64 { return s.unsmearedExcitation }

// EnergyThresholdReached reports whether the second half of this frame
// carries enough energy to be considered non-silent (4.1 step 9), used to
// gate the EHS extractor.
func (s *State) EnergyThresholdReached() bool { return s.energyThresholdReached }
