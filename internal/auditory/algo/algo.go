// Copyright (c) 2019, The Emergent Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package algo is the PEAQ algorithm facade: it buffers incoming
// reference/test audio into fixed-size analysis windows, drives the ear
// models, level adapter, modulation processor and MOV extractors in the
// order BS.1387 prescribes, and reduces the accumulated MOVs to a
// Distortion Index and an Objective Difference Grade.
package algo

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/dsp/fourier"

	"github.com/HSU-ANT/gstpeaq-sub000/internal/auditory/conform"
	"github.com/HSU-ANT/gstpeaq-sub000/internal/auditory/fbear"
	"github.com/HSU-ANT/gstpeaq-sub000/internal/auditory/fftear"
	"github.com/HSU-ANT/gstpeaq-sub000/internal/auditory/leveladapt"
	"github.com/HSU-ANT/gstpeaq-sub000/internal/auditory/modproc"
	"github.com/HSU-ANT/gstpeaq-sub000/internal/auditory/movaccum"
	"github.com/HSU-ANT/gstpeaq-sub000/internal/auditory/movs"
	"github.com/HSU-ANT/gstpeaq-sub000/internal/auditory/nn"
)

// ErrUnsupportedChannelCount is returned by SetChannels for anything other
// than mono or stereo.
var ErrUnsupportedChannelCount = errors.New("algo: channel count must be 1 or 2")

// ErrPlaybackLevelOutOfRange is returned by SetPlaybackLevel for a level
// outside the ear models' calibrated 0-130 dB SPL range.
var ErrPlaybackLevelOutOfRange = errors.New("algo: playback level out of range")

func checkChannels(n int) error {
	if n != 1 && n != 2 {
		return fmt.Errorf("%w: got %d", ErrUnsupportedChannelCount, n)
	}
	return nil
}

func checkPlaybackLevel(dB float64) error {
	if dB < 0 || dB > 130 {
		return fmt.Errorf("%w: got %g dB SPL", ErrPlaybackLevelOutOfRange, dB)
	}
	return nil
}

const (
	defaultPlaybackLevel = 92.0

	// noSentinel marks loudness_reached_frame as "not yet reached", mirroring
	// the source's std::numeric_limits<unsigned int>::max().
	noSentinel = math.MaxInt32

	silentTailThreshold = 200.0 / 32768
	ehsMaxLag           = 256
)

// aboveThreshold reports whether frame carries a 5-sample sliding sum of
// absolute values exceeding 200/32768 anywhere, the criterion that
// distinguishes a "silent tail" from genuine signal (4.8).
func aboveThreshold(frame []float32) bool {
	if len(frame) < 5 {
		return false
	}
	sum := 0.0
	for i := 0; i < 5; i++ {
		sum += math.Abs(float64(frame[i]))
	}
	if sum >= silentTailThreshold {
		return true
	}
	for i := 5; i < len(frame); i++ {
		sum += math.Abs(float64(frame[i])) - math.Abs(float64(frame[i-5]))
		if sum >= silentTailThreshold {
			return true
		}
	}
	return false
}

func excitationDB(e []float64) []float64 {
	out := make([]float64, len(e))
	for i, v := range e {
		out[i] = 10 * math.Log10(v)
	}
	return out
}

// fftChannel is the per-channel state needed to run the FFT ear model
// twice (reference and test) plus its downstream level/modulation stages.
type fftChannel struct {
	earRef, earTest *fftear.State
	level           *leveladapt.State
	modRef, modTest *modproc.State

	bufRef, bufTest []float32
}

func newFFTChannel(earParams *fftear.Params, levelParams *leveladapt.Params, modParams *modproc.Params) *fftChannel {
	return &fftChannel{
		earRef:  fftear.NewState(earParams),
		earTest: fftear.NewState(earParams),
		level:   leveladapt.NewState(levelParams),
		modRef:  modproc.NewState(modParams),
		modTest: modproc.NewState(modParams),
	}
}

// Basic implements the basic conformance mode's 11-MOV algorithm over a
// single 109-band FFT ear model.
type Basic struct {
	toggles conform.Toggles

	earParams   *fftear.Params
	levelParams *leveladapt.Params
	modParams   *modproc.Params
	ehsFFT      *fourier.FFT

	channels []*fftChannel
	accums   [11]*movaccum.Accum

	frameCounter         int
	loudnessReachedFrame int
}

const (
	movBandwidthRef = iota
	movBandwidthTest
	movTotalNMR
	movWinModDiff1
	movADB
	movEHS
	movAvgModDiff1
	movAvgModDiff2
	movRmsNoiseLoud
	movMFPD
	movRelDistFrames
)

// NewBasic constructs a basic-mode algorithm instance with one channel at
// the default 92 dB SPL playback level.
func NewBasic(toggles conform.Toggles) *Basic {
	b := &Basic{
		toggles:     toggles,
		earParams:   fftear.NewParams(109, defaultPlaybackLevel),
		ehsFFT:      fourier.NewFFT(ehsMaxLag),
		loudnessReachedFrame: noSentinel,
	}
	b.levelParams = leveladapt.NewParams(b.earParams)
	b.modParams = modproc.NewParams(b.earParams)
	b.accums[movBandwidthRef] = movaccum.New(movaccum.Avg)
	b.accums[movBandwidthTest] = movaccum.New(movaccum.Avg)
	b.accums[movTotalNMR] = movaccum.New(movaccum.AvgLog)
	b.accums[movWinModDiff1] = movaccum.New(movaccum.AvgWindow)
	b.accums[movADB] = movaccum.New(movaccum.ADB)
	b.accums[movEHS] = movaccum.New(movaccum.Avg)
	b.accums[movAvgModDiff1] = movaccum.New(movaccum.Avg)
	b.accums[movAvgModDiff2] = movaccum.New(movaccum.Avg)
	b.accums[movRmsNoiseLoud] = movaccum.New(movaccum.RMS)
	b.accums[movMFPD] = movaccum.New(movaccum.FilteredMax)
	b.accums[movRelDistFrames] = movaccum.New(movaccum.Avg)
	_ = b.SetChannels(1)
	return b
}

// SetChannels resizes the algorithm for n channels (1 or 2), discarding any
// accumulated state.
func (b *Basic) SetChannels(n int) error {
	if err := checkChannels(n); err != nil {
		return err
	}
	b.channels = make([]*fftChannel, n)
	for c := range b.channels {
		b.channels[c] = newFFTChannel(b.earParams, b.levelParams, b.modParams)
	}
	for i, a := range b.accums {
		if i == movADB || i == movMFPD {
			a.SetChannels(1)
		} else {
			a.SetChannels(n)
		}
	}
	b.frameCounter = 0
	b.loudnessReachedFrame = noSentinel
	return nil
}

// SetPlaybackLevel recalibrates the FFT ear model for a new playback level
// in dB SPL.
func (b *Basic) SetPlaybackLevel(dB float64) error {
	if err := checkPlaybackLevel(dB); err != nil {
		return err
	}
	b.earParams.SetPlaybackLevel(dB)
	return nil
}

// ProcessBlock feeds one chunk of per-channel reference/test samples
// (each ref[c]/test[c] the same length) through the algorithm, buffering
// partial frames across calls.
func (b *Basic) ProcessBlock(ref, test [][]float32) {
	for c, ch := range b.channels {
		ch.bufRef = append(ch.bufRef, ref[c]...)
		ch.bufTest = append(ch.bufTest, test[c]...)
	}
	for len(b.channels[0].bufRef) >= fftear.FrameSize {
		frames := make([][2][]float32, len(b.channels))
		for c, ch := range b.channels {
			frames[c][0] = ch.bufRef[:fftear.FrameSize]
			frames[c][1] = ch.bufTest[:fftear.FrameSize]
		}
		b.doProcess(frames)
		for _, ch := range b.channels {
			ch.bufRef = append([]float32{}, ch.bufRef[fftear.StepSize:]...)
			ch.bufTest = append([]float32{}, ch.bufTest[fftear.StepSize:]...)
		}
	}
}

// Flush zero-pads any residual partial frame to the frame size, processes
// it once, and discards any still-tentative accumulation.
func (b *Basic) Flush() {
	if len(b.channels[0].bufRef) == 0 {
		return
	}
	frames := make([][2][]float32, len(b.channels))
	for c, ch := range b.channels {
		r := make([]float32, fftear.FrameSize)
		t := make([]float32, fftear.FrameSize)
		copy(r, ch.bufRef)
		copy(t, ch.bufTest)
		frames[c][0], frames[c][1] = r, t
		ch.bufRef, ch.bufTest = nil, nil
	}
	b.doProcess(frames)
}

func (b *Basic) doProcess(frames [][2][]float32) {
	above := aboveThreshold(frames[0][0])
	for _, a := range b.accums {
		a.SetTentative(!above)
	}

	for c, ch := range b.channels {
		ch.earRef.ProcessBlock(frames[c][0])
		ch.earTest.ProcessBlock(frames[c][1])
		ch.level.Process(ch.earRef.Excitation(), ch.earTest.Excitation())
		ch.modRef.Process(ch.earRef.UnsmearedExcitation())
		ch.modTest.Process(ch.earTest.UnsmearedExcitation())
	}

	b.frameCounter++

	if b.loudnessReachedFrame == noSentinel {
		loud := b.earParams.Layout().TotalLoudness(b.channels[0].earRef.Excitation())
		if loud > 0 {
			b.loudnessReachedFrame = b.frameCounter
		}
	}

	for c, ch := range b.channels {
		if bwRef, bwTest, ok := movs.Bandwidth(ch.earRef.PowerSpectrum(), ch.earTest.PowerSpectrum()); ok {
			b.accums[movBandwidthRef].Accumulate(c, float64(bwRef), 1)
			b.accums[movBandwidthTest].Accumulate(c, float64(bwTest), 1)
		}

		nmr, nmrMax := movs.NMR(ch.earRef.WeightedPowerSpectrum(), ch.earTest.WeightedPowerSpectrum(),
			ch.earRef.Excitation(), b.earParams.DeltaZ(), b.earParams.GroupIntoBands)
		b.accums[movTotalNMR].Accumulate(c, nmr, 1)
		rel := 0.0
		if nmrMax > math.Pow(10, 1.5/10) {
			rel = 1
		}
		b.accums[movRelDistFrames].Accumulate(c, rel, 1)

		if b.frameCounter >= 24 {
			modDiff1, modDiff2, tempWt := movs.ModulationDifference(
				ch.modRef.Modulation(), ch.modTest.Modulation(),
				ch.modRef.AverageLoudness(), b.earParams.Layout().InternalNoise, false, 100)
			b.accums[movAvgModDiff1].Accumulate(c, modDiff1, tempWt)
			b.accums[movAvgModDiff2].Accumulate(c, modDiff2, tempWt)
			b.accums[movWinModDiff1].Accumulate(c, modDiff1, 1)
		}

		if b.frameCounter >= 24 && b.frameCounter-3 >= b.loudnessReachedFrame {
			nl := movs.NoiseLoudness(movs.RmsNoiseLoudB, ch.modRef.Modulation(), ch.modTest.Modulation(),
				ch.level.AdaptedRef(), ch.level.AdaptedTest(), b.earParams.Layout().ExcitationThreshold)
			b.accums[movRmsNoiseLoud].Accumulate(c, nl, 1)
		}
	}

	eRefDB := make([][]float64, len(b.channels))
	eTestDB := make([][]float64, len(b.channels))
	anyEnergy := false
	for c, ch := range b.channels {
		eRefDB[c] = excitationDB(ch.earRef.Excitation())
		eTestDB[c] = excitationDB(ch.earTest.Excitation())
		if ch.earRef.EnergyThresholdReached() || ch.earTest.EnergyThresholdReached() {
			anyEnergy = true
		}
	}
	pTot, qSum := movs.DetectionProbability(eRefDB, eTestDB)
	b.accums[movMFPD].Accumulate(0, pTot, 1)
	if pTot > 0.5 {
		b.accums[movADB].Accumulate(0, qSum, 1)
	}

	if anyEnergy {
		for c, ch := range b.channels {
			ehs := movs.EHS(ch.earRef.WeightedPowerSpectrum(), ch.earTest.WeightedPowerSpectrum(), b.ehsFFT, b.toggles)
			b.accums[movEHS].Accumulate(c, ehs, 1)
		}
	}
}

// movVector returns the 11 basic MOVs in the neural network's fixed order.
func (b *Basic) movVector() [11]float64 {
	var m [11]float64
	for i, a := range b.accums {
		m[i] = a.GetValue()
	}
	return m
}

// MOVs returns the 11 accumulated basic-mode Model Output Variables, in the
// same order as the network's input layer.
func (b *Basic) MOVs() []float64 {
	m := b.movVector()
	return m[:]
}

// CalculateDI returns the basic mode's Distortion Index.
func (b *Basic) CalculateDI() float64 {
	return nn.DistortionIndexBasic(b.movVector(), b.toggles.ClampMOVs)
}

// CalculateODG returns the basic mode's Objective Difference Grade.
func (b *Basic) CalculateODG() float64 {
	return nn.ODG(b.CalculateDI())
}

// fftOnlyChannel is the per-channel state for advanced mode's FFT ear
// model, which only feeds NMR and EHS and so needs no level adapter or
// modulation processor.
type fftOnlyChannel struct {
	earRef, earTest *fftear.State
	bufRef, bufTest []float32
}

// fbChannel is the per-channel state needed to run the filterbank ear
// model twice plus its downstream level/modulation stages.
type fbChannel struct {
	earRef, earTest *fbear.State
	level           *leveladapt.State
	modRef, modTest *modproc.State

	bufRef, bufTest []float32
}

// Advanced implements the advanced conformance mode's 5-MOV algorithm,
// running a 55-band FFT ear model (for NMR and EHS) and a 40-band
// filterbank ear model (for modulation difference, noise-loudness-asym and
// linear distortion) at independent cadences.
type Advanced struct {
	toggles conform.Toggles

	fftParams *fftear.Params
	fbParams  *fbear.Params

	fbLevelParams *leveladapt.Params
	fbModParams   *modproc.Params
	ehsFFT        *fourier.FFT

	fftChannels []*fftOnlyChannel
	fbChannels  []*fbChannel
	accums      [5]*movaccum.Accum

	fftFrameCounter      int
	fbFrameCounter       int
	loudnessReachedFrame int
}

const (
	movRmsModDiff = iota
	movRmsNoiseLoudAsym
	movSegmentalNMR
	movEHSAdv
	movAvgLinDist
)

// NewAdvanced constructs an advanced-mode algorithm instance with one
// channel at the default 92 dB SPL playback level.
func NewAdvanced(toggles conform.Toggles) *Advanced {
	a := &Advanced{
		toggles:              toggles,
		fftParams:            fftear.NewParams(55, defaultPlaybackLevel),
		fbParams:             fbear.NewParams(defaultPlaybackLevel),
		ehsFFT:               fourier.NewFFT(ehsMaxLag),
		loudnessReachedFrame: noSentinel,
	}
	a.fbLevelParams = leveladapt.NewParams(a.fbParams)
	a.fbModParams = modproc.NewParams(a.fbParams)
	a.accums[movRmsModDiff] = movaccum.New(movaccum.RMS)
	a.accums[movRmsNoiseLoudAsym] = movaccum.New(movaccum.RMSAsym)
	a.accums[movSegmentalNMR] = movaccum.New(movaccum.Avg)
	a.accums[movEHSAdv] = movaccum.New(movaccum.Avg)
	a.accums[movAvgLinDist] = movaccum.New(movaccum.Avg)
	_ = a.SetChannels(1)
	return a
}

// SetChannels resizes the algorithm for n channels (1 or 2), discarding any
// accumulated state.
func (a *Advanced) SetChannels(n int) error {
	if err := checkChannels(n); err != nil {
		return err
	}
	a.fftChannels = make([]*fftOnlyChannel, n)
	a.fbChannels = make([]*fbChannel, n)
	for c := 0; c < n; c++ {
		a.fftChannels[c] = &fftOnlyChannel{
			earRef:  fftear.NewState(a.fftParams),
			earTest: fftear.NewState(a.fftParams),
		}
		a.fbChannels[c] = &fbChannel{
			earRef:  fbear.NewState(a.fbParams),
			earTest: fbear.NewState(a.fbParams),
			level:   leveladapt.NewState(a.fbLevelParams),
			modRef:  modproc.NewState(a.fbModParams),
			modTest: modproc.NewState(a.fbModParams),
		}
	}
	for _, acc := range a.accums {
		acc.SetChannels(n)
	}
	a.fftFrameCounter, a.fbFrameCounter = 0, 0
	a.loudnessReachedFrame = noSentinel
	return nil
}

// SetPlaybackLevel recalibrates both ear models for a new playback level in
// dB SPL.
func (a *Advanced) SetPlaybackLevel(dB float64) error {
	if err := checkPlaybackLevel(dB); err != nil {
		return err
	}
	a.fftParams.SetPlaybackLevel(dB)
	a.fbParams.SetPlaybackLevel(dB)
	return nil
}

// ProcessBlock feeds one chunk of per-channel reference/test samples
// through both ear models at their own cadences.
func (a *Advanced) ProcessBlock(ref, test [][]float32) {
	for c := range a.fftChannels {
		a.fftChannels[c].bufRef = append(a.fftChannels[c].bufRef, ref[c]...)
		a.fftChannels[c].bufTest = append(a.fftChannels[c].bufTest, test[c]...)
		a.fbChannels[c].bufRef = append(a.fbChannels[c].bufRef, ref[c]...)
		a.fbChannels[c].bufTest = append(a.fbChannels[c].bufTest, test[c]...)
	}
	for len(a.fftChannels[0].bufRef) >= fftear.FrameSize {
		a.doProcessFFT()
		for _, ch := range a.fftChannels {
			ch.bufRef = append([]float32{}, ch.bufRef[fftear.StepSize:]...)
			ch.bufTest = append([]float32{}, ch.bufTest[fftear.StepSize:]...)
		}
	}
	for len(a.fbChannels[0].bufRef) >= fbear.FrameSize {
		a.doProcessFB()
		for _, ch := range a.fbChannels {
			ch.bufRef = ch.bufRef[fbear.FrameSize:]
			ch.bufTest = ch.bufTest[fbear.FrameSize:]
		}
	}
}

// Flush zero-pads any residual partial frames in both cadences, processes
// them once each, and discards any still-tentative accumulation.
func (a *Advanced) Flush() {
	if len(a.fftChannels[0].bufRef) > 0 {
		for _, ch := range a.fftChannels {
			r := make([]float32, fftear.FrameSize)
			t := make([]float32, fftear.FrameSize)
			copy(r, ch.bufRef)
			copy(t, ch.bufTest)
			ch.bufRef, ch.bufTest = r, t
		}
		a.doProcessFFT()
		for _, ch := range a.fftChannels {
			ch.bufRef, ch.bufTest = nil, nil
		}
	}
	if len(a.fbChannels[0].bufRef) > 0 {
		for _, ch := range a.fbChannels {
			r := make([]float32, fbear.FrameSize)
			t := make([]float32, fbear.FrameSize)
			copy(r, ch.bufRef)
			copy(t, ch.bufTest)
			ch.bufRef, ch.bufTest = r, t
		}
		a.doProcessFB()
		for _, ch := range a.fbChannels {
			ch.bufRef, ch.bufTest = nil, nil
		}
	}
}

func (a *Advanced) doProcessFFT() {
	above := aboveThreshold(a.fftChannels[0].bufRef[:fftear.FrameSize])
	a.accums[movSegmentalNMR].SetTentative(!above)
	a.accums[movEHSAdv].SetTentative(!above)

	a.fftFrameCounter++

	anyEnergy := false
	for c, ch := range a.fftChannels {
		ch.earRef.ProcessBlock(ch.bufRef[:fftear.FrameSize])
		ch.earTest.ProcessBlock(ch.bufTest[:fftear.FrameSize])

		nmr, _ := movs.NMR(ch.earRef.WeightedPowerSpectrum(), ch.earTest.WeightedPowerSpectrum(),
			ch.earRef.Excitation(), a.fftParams.DeltaZ(), a.fftParams.GroupIntoBands)
		a.accums[movSegmentalNMR].Accumulate(c, 10*math.Log10(nmr), 1)

		if ch.earRef.EnergyThresholdReached() || ch.earTest.EnergyThresholdReached() {
			anyEnergy = true
		}
	}
	if anyEnergy {
		for c, ch := range a.fftChannels {
			ehs := movs.EHS(ch.earRef.WeightedPowerSpectrum(), ch.earTest.WeightedPowerSpectrum(), a.ehsFFT, a.toggles)
			a.accums[movEHSAdv].Accumulate(c, ehs, 1)
		}
	}
}

func (a *Advanced) doProcessFB() {
	above := aboveThreshold(a.fbChannels[0].bufRef[:fbear.FrameSize])
	a.accums[movRmsModDiff].SetTentative(!above)
	a.accums[movRmsNoiseLoudAsym].SetTentative(!above)
	a.accums[movAvgLinDist].SetTentative(!above)

	a.fbFrameCounter++

	for _, ch := range a.fbChannels {
		ch.earRef.ProcessBlock(ch.bufRef[:fbear.FrameSize])
		ch.earTest.ProcessBlock(ch.bufTest[:fbear.FrameSize])
		ch.level.Process(ch.earRef.Excitation(), ch.earTest.Excitation())
		ch.modRef.Process(ch.earRef.UnsmearedExcitation())
		ch.modTest.Process(ch.earTest.UnsmearedExcitation())
	}

	if a.loudnessReachedFrame == noSentinel {
		loud := a.fbParams.Layout().TotalLoudness(a.fbChannels[0].earRef.Excitation())
		if loud > 0 {
			a.loudnessReachedFrame = a.fbFrameCounter
		}
	}

	for c, ch := range a.fbChannels {
		if a.fbFrameCounter >= 125 {
			modDiff1, _, tempWt := movs.ModulationDifference(
				ch.modRef.Modulation(), ch.modTest.Modulation(),
				ch.modRef.AverageLoudness(), a.fbParams.Layout().InternalNoise, true, 1)
			a.accums[movRmsModDiff].Accumulate(c, modDiff1, tempWt)
		}

		if a.fbFrameCounter >= 125 && a.fbFrameCounter-13 >= a.loudnessReachedFrame {
			missingModRef, missingModTest := ch.modRef.Modulation(), ch.modTest.Modulation()
			if a.toggles.SwapModPattsForNoiseLoudnessMovs {
				missingModRef, missingModTest = missingModTest, missingModRef
			}
			main := movs.NoiseLoudness(movs.RmsNoiseLoudAsymAMain, ch.modRef.Modulation(), ch.modTest.Modulation(),
				ch.level.AdaptedRef(), ch.level.AdaptedTest(), a.fbParams.Layout().ExcitationThreshold)
			missing := movs.NoiseLoudness(movs.RmsNoiseLoudAsymAMissing, missingModRef, missingModTest,
				ch.level.AdaptedTest(), ch.level.AdaptedRef(), a.fbParams.Layout().ExcitationThreshold)
			a.accums[movRmsNoiseLoudAsym].Accumulate(c, main, missing)

			lin := movs.NoiseLoudness(movs.AvgLinDistA, ch.modRef.Modulation(), ch.modRef.Modulation(),
				ch.level.AdaptedRef(), ch.earRef.UnsmearedExcitation(), a.fbParams.Layout().ExcitationThreshold)
			a.accums[movAvgLinDist].Accumulate(c, lin, 1)
		}
	}
}

// movVector returns the 5 advanced MOVs in the neural network's fixed
// order.
func (a *Advanced) movVector() [5]float64 {
	var m [5]float64
	for i, acc := range a.accums {
		m[i] = acc.GetValue()
	}
	return m
}

// MOVs returns the 5 accumulated advanced-mode Model Output Variables, in
// the same order as the network's input layer.
func (a *Advanced) MOVs() []float64 {
	m := a.movVector()
	return m[:]
}

// CalculateDI returns the advanced mode's Distortion Index.
func (a *Advanced) CalculateDI() float64 {
	return nn.DistortionIndexAdvanced(a.movVector(), a.toggles.ClampMOVs)
}

// CalculateODG returns the advanced mode's Objective Difference Grade.
func (a *Advanced) CalculateODG() float64 {
	return nn.ODG(a.CalculateDI())
}
