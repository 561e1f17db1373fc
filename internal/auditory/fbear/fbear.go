// Copyright (c) 2019, The Emergent Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package fbear implements the filterbank-based ear model of BS.1387: a
// bank of 40 complex FIR critical-band filters run on a
// DC-rejected time-domain signal every 32 samples, followed by
// time-smoothed slope spreading, rectification, a backward-masking FIR and
// forward-masking time smoothing -- the advanced conformance mode's
// alternative to fftear's block-transform approach.
package fbear

import (
	"math"
	"math/cmplx"

	"github.com/HSU-ANT/gstpeaq-sub000/internal/auditory/dsp"
	"github.com/HSU-ANT/gstpeaq-sub000/internal/auditory/earmodel"
)

const (
	bandCount = 40

	// FrameSize is the number of samples the advanced algorithm's filterbank
	// model consumes per process_block call; the analysis substep below
	// fires every 32 of them.
	FrameSize   = 192
	substepSize = 32

	tauMin = 0.004
	tau100 = 0.020

	loudnessScale = 1.26539

	slopeFilterA = 0.993355506255034
	distConst    = 0.921851456499719
	clConst      = 0.0802581846102741
)

// filterLengths is the tabulated per-band FIR length N_b, longest (lowest
// frequency band) first.
var filterLengths = [bandCount]int{
	1456, 1438, 1406, 1362, 1308, 1244, 1176, 1104, 1030, 956,
	884, 814, 748, 686, 626, 570, 520, 472, 430, 390,
	354, 320, 290, 262, 238, 214, 194, 176, 158, 144,
	130, 118, 106, 96, 86, 78, 70, 64, 58, 52,
}

// backwardMaskingCoeff is the length-11 symmetric backward-masking FIR,
// h_bm[i] = cos^2(pi*(i-5)/12) * 0.9761/6 for i in 0..5, mirrored for i in
// 6..10.
var backwardMaskingCoeff = buildBackwardMaskingCoeff()

func buildBackwardMaskingCoeff() [11]float64 {
	var h [11]float64
	for i := 0; i <= 5; i++ {
		v := math.Cos(math.Pi*float64(i-5)/12) * math.Cos(math.Pi*float64(i-5)/12) * 0.9761 / 6
		h[i] = v
		h[10-i] = v
	}
	return h
}

// Params holds the filterbank ear model's per-band center frequencies,
// complex FIR coefficients, and internal-noise table, shared across
// channels.
type Params struct {
	layout      earmodel.BandLayout
	hRe, hIm    [bandCount][]float64
	levelFactor float64
}

// NewParams builds the filterbank ear model's 40-band table and FIR
// coefficients, calibrated to playbackLevel dB SPL.
func NewParams(playbackLevel float64) *Params {
	p := &Params{layout: earmodel.NewEmptyBandLayout(bandCount)}

	zLow := math.Asinh(50.0 / 650)
	zHigh := math.Asinh(18000.0 / 650)
	fc := make([]float64, bandCount)
	for b := range fc {
		fc[b] = 650 * math.Sinh(zLow+float64(b)*(zHigh-zLow)/(bandCount-1))
	}
	p.layout.SetCenterFrequencies(fc, loudnessScale)

	for b := 0; b < bandCount; b++ {
		nb := filterLengths[b]
		wt := math.Pow(10, dsp.OuterMiddleEarWeightDB(fc[b])/20)
		re := make([]float64, nb/2+1)
		im := make([]float64, nb/2+1)
		for n := 0; n <= nb/2; n++ {
			mag := (4.0 / float64(nb)) * math.Pow(math.Sin(math.Pi*float64(n)/float64(nb)), 2) * wt
			phase := 2 * math.Pi * fc[b] * (float64(n) - float64(nb)/2) / dsp.SampleRate
			re[n] = mag * math.Cos(phase)
			im[n] = mag * math.Sin(phase)
		}
		p.hRe[b], p.hIm[b] = re, im
	}

	p.SetPlaybackLevel(playbackLevel)
	return p
}

// SetPlaybackLevel recalibrates the per-band gain for a full-scale input,
// per the filterbank's simpler calibration in COMPONENT DESIGN 6.
func (p *Params) SetPlaybackLevel(playbackLevel float64) {
	p.levelFactor = math.Pow(10, playbackLevel/20)
}

func (p *Params) BandCount() int                { return bandCount }
func (p *Params) CenterFrequency(i int) float64 { return p.layout.CenterFreq[i] }
func (p *Params) InternalNoise(i int) float64   { return p.layout.InternalNoise[i] }
func (p *Params) StepSize() int                 { return FrameSize }
func (p *Params) Layout() *earmodel.BandLayout  { return &p.layout }

// State is the per-channel running state of the filterbank ear model.
type State struct {
	params *Params

	dcX1, dcX2     float64
	dcY1_1, dcY1_2 float64
	dcY2_1, dcY2_2 float64

	history        []float64
	historyBase    int
	sinceSubstep   int

	cu                 [bandCount]float64
	backwardBuf        [bandCount][11]float64
	filteredExcitation []float64
	unsmearedExcitation []float64
}

// NewState allocates per-channel state for params.
func NewState(params *Params) *State {
	return &State{
		params:              params,
		filteredExcitation:  make([]float64, bandCount),
		unsmearedExcitation: make([]float64, bandCount),
	}
}

// ProcessBlock runs one FrameSize-sample block of audio through the
// filterbank model: a two-stage DC-reject biquad, then -- every 32 samples
// -- the complex filterbank, time-smoothed slope spreading, rectification
// and the backward-masking FIR's running buffer update; once per
// FrameSize-sample call, the backward-masking dot product, internal-noise
// addition and forward-masking time smoothing. frame must have length
// FrameSize.
func (s *State) ProcessBlock(frame []float32) {
	for _, x := range frame {
		v := float64(x) * s.params.levelFactor
		y1 := v - 2*s.dcX1 + s.dcX2 + 1.99517*s.dcY1_1 - 0.995174*s.dcY1_2
		y2 := y1 - 2*s.dcY1_1 + s.dcY1_2 + 1.99799*s.dcY2_1 - 0.997998*s.dcY2_2
		s.dcX2, s.dcX1 = s.dcX1, v
		s.dcY1_2, s.dcY1_1 = s.dcY1_1, y1
		s.dcY2_2, s.dcY2_1 = s.dcY2_1, y2

		s.push(y2)
		s.sinceSubstep++
		if s.sinceSubstep == substepSize {
			s.sinceSubstep = 0
			s.runSubstep()
		}
	}
	s.runFrame()
}

const historyCap = 1456 + 32

func (s *State) push(y float64) {
	s.history = append(s.history, y)
	if len(s.history) > historyCap {
		drop := len(s.history) - historyCap
		s.history = s.history[drop:]
		s.historyBase += drop
	}
}

func (s *State) at(absIdx int) float64 {
	idx := absIdx - s.historyBase
	if idx < 0 || idx >= len(s.history) {
		return 0
	}
	return s.history[idx]
}

// runSubstep performs one 32-sample analysis step across all 40 bands: the
// complex filterbank, time-smoothed slope spreading, rectification, and
// pushing the resulting E0 into each band's backward-masking history. The
// backward-masking dot product itself, internal-noise addition, and
// forward-masking smoothing run once per FrameSize-sample call, in
// runFrame, not here.
func (s *State) runSubstep() {
	end := s.historyBase + len(s.history) - 1

	var a [bandCount]complex128
	for b := 0; b < bandCount; b++ {
		nb := filterLengths[b]
		var outRe, outIm float64
		hRe, hIm := s.params.hRe[b], s.params.hIm[b]
		for n := 0; n <= nb/2; n++ {
			x1 := s.at(end - nb + n)
			x2 := s.at(end - n)
			outRe += (x1 + x2) * hRe[n] / 2
			outIm += (x1 - x2) * hIm[n] / 2
		}
		a[b] = complex(outRe, outIm)

		mag2 := outRe*outRe + outIm*outIm
		lb := -300.0
		if mag2 > 0 {
			lb = 10 * math.Log10(mag2)
		}
		sb := 24 + 230/s.params.layout.CenterFreq[b] - 0.2*lb
		if sb < 4 {
			sb = 4
		}
		distS := math.Pow(distConst, sb)
		alpha := 1 - slopeFilterA
		s.cu[b] += alpha * (distS - s.cu[b])
	}

	for b := 0; b < bandCount; b++ {
		contrib := a[b] * complex(s.cu[b], 0)
		for j := b + 1; j < bandCount; j++ {
			a[j] += contrib
			contrib *= complex(s.cu[b], 0)
		}
	}
	for b := bandCount - 1; b >= 1; b-- {
		a[b-1] += complex(clConst, 0) * a[b]
	}

	for b := 0; b < bandCount; b++ {
		e0 := cmplx.Abs(a[b])
		e0 *= e0
		copy(s.backwardBuf[b][1:], s.backwardBuf[b][:10])
		s.backwardBuf[b][0] = e0
	}
}

// runFrame performs the backward-masking FIR, internal-noise addition and
// forward-masking time smoothing once per FrameSize-sample ProcessBlock
// call, reading whatever E0 history the frame's substeps left behind.
func (s *State) runFrame() {
	for b := 0; b < bandCount; b++ {
		buf := s.backwardBuf[b]
		e1 := buf[5] * backwardMaskingCoeff[5]
		for i := 0; i < 5; i++ {
			e1 += (buf[i] + buf[10-i]) * backwardMaskingCoeff[i]
		}

		unsmeared := e1 + s.params.layout.InternalNoise[b]
		s.unsmearedExcitation[b] = unsmeared

		fc := s.params.layout.CenterFreq[b]
		tau := dsp.EarTimeConstant(fc, tauMin, tau100)
		af := dsp.TimeConstantFactor(FrameSize, tau)
		s.filteredExcitation[b] = af*s.filteredExcitation[b] + (1-af)*unsmeared
	}
}

// Excitation returns the forward-masking-smoothed excitation pattern as of
// the last FrameSize-sample ProcessBlock call.
func (s *State) Excitation() []float64 { return s.filteredExcitation }

// UnsmearedExcitation returns the last frame's excitation before temporal
// smoothing.
func (s *State) UnsmearedExcitation() []float64 { return s.unsmearedExcitation }
