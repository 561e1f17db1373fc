// Copyright (c) 2019, The Emergent Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package movs implements the Model Output Variable extractors of BS.1387
// ch. 4.6: per-frame measurements computed from the ear models' excitation
// and power-spectrum outputs, destined for the movaccum accumulators and
// ultimately the neural network.
package movs

import (
	"math"

	"gonum.org/v1/gonum/dsp/fourier"

	"github.com/HSU-ANT/gstpeaq-sub000/internal/auditory/conform"
)

// Bandwidth computes the reference and test bandwidth MOVs from a frame's
// FFT power spectra. ok is false when the reference spectrum's own
// bandwidth falls at or below the floor (346), in which case the frame
// contributes nothing to either accumulator.
func Bandwidth(powerRef, powerTest []float64) (bwRef, bwTest int, ok bool) {
	zeroThreshold := 0.0
	for k := 921; k <= 1023; k++ {
		if powerTest[k] > zeroThreshold {
			zeroThreshold = powerTest[k]
		}
	}

	bwRef = 0
	for k := 921; k >= 1; k-- {
		if powerRef[k-1] > 10*zeroThreshold {
			bwRef = k
			break
		}
	}
	if bwRef <= 346 {
		return 0, 0, false
	}

	testThreshold := math.Pow(10, 0.5) * zeroThreshold
	bwTest = 0
	for k := bwRef; k >= 1; k-- {
		if powerTest[k-1] >= testThreshold {
			bwTest = k
			break
		}
	}
	return bwRef, bwTest, true
}

// maskingWeight is the NMR MOV's per-band masking weight: a flat
// 10^(3/10) up to 12 Bark, rising as 10^(0.25*b*deltaZ/10) beyond.
func maskingWeight(band int, deltaZ float64) float64 {
	if float64(band)*deltaZ <= 12 {
		return math.Pow(10, 3.0/10)
	}
	return math.Pow(10, 0.25*float64(band)*deltaZ/10)
}

// NMR computes the noise-to-mask ratio and its per-band maximum for one
// frame, given the reference and test weighted power spectra, the
// reference excitation pattern and a band-grouping helper matching the
// FFT ear model that produced the spectra.
func NMR(powerRefW, powerTestW []float64, eRef []float64, deltaZ float64, group func(spectrum, out []float64)) (nmr, nmrMax float64) {
	noise := make([]float64, len(powerRefW))
	for k := range noise {
		noise[k] = powerRefW[k] - 2*math.Sqrt(powerRefW[k]*powerTestW[k]) + powerTestW[k]
	}
	n := make([]float64, len(eRef))
	group(noise, n)

	sum := 0.0
	for b := range n {
		ratio := n[b] / (eRef[b] / maskingWeight(b, deltaZ))
		sum += ratio
		if ratio > nmrMax {
			nmrMax = ratio
		}
	}
	nmr = sum / float64(len(n))
	return nmr, nmrMax
}

// ModulationDifference computes the three modulation-difference
// quantities for one frame's pair of modulation patterns. rmsScale selects
// the 100/band_count (false) or 100/sqrt(band_count) (true) scaling for
// mod_diff_1, per whether it feeds an RMS accumulator. levWt is 100 when
// two separate basic-mode accumulators (AvgModDiff1B, AvgModDiff2B)
// consume this frame's output, else 1.
func ModulationDifference(modRef, modTest, avgLoudnessRef, internalNoise []float64, rmsScale bool, levWt float64) (modDiff1, modDiff2, tempWt float64) {
	n := len(modRef)
	for b := 0; b < n; b++ {
		diff := math.Abs(modRef[b] - modTest[b])
		modDiff1 += diff / (1 + modRef[b])
		factor := 0.1
		if modTest[b] >= modRef[b] {
			factor = 1
		}
		modDiff2 += factor * diff / (0.01 + modRef[b])
		tempWt += avgLoudnessRef[b] / (avgLoudnessRef[b] + levWt*math.Pow(internalNoise[b], 0.3))
	}
	scale1 := 100 / float64(n)
	if rmsScale {
		scale1 = 100 / math.Sqrt(float64(n))
	}
	modDiff1 *= scale1
	modDiff2 *= 100 / float64(n)
	return modDiff1, modDiff2, tempWt
}

// NoiseLoudnessParams is one of the three BS.1387 table-68 instantiations
// of the noise-loudness formula.
type NoiseLoudnessParams struct {
	Alpha    float64
	ThresFac float64
	S0       float64
	NLMin    float64
}

var (
	// RmsNoiseLoudB is the basic mode's single noise-loudness MOV.
	RmsNoiseLoudB = NoiseLoudnessParams{Alpha: 1.5, ThresFac: 0.15, S0: 0.5, NLMin: 0}
	// RmsNoiseLoudAsymAMain is the advanced mode's main noise-loudness call.
	RmsNoiseLoudAsymAMain = NoiseLoudnessParams{Alpha: 2.5, ThresFac: 0.3, S0: 1, NLMin: 0.1}
	// RmsNoiseLoudAsymAMissing is the advanced mode's "missing components"
	// call, run with the excitation roles and modulation patterns swapped.
	RmsNoiseLoudAsymAMissing = NoiseLoudnessParams{Alpha: 1.5, ThresFac: 0.15, S0: 1, NLMin: 0}
	// AvgLinDistA is the advanced mode's linear-distortion MOV.
	AvgLinDistA = NoiseLoudnessParams{Alpha: 1.5, ThresFac: 0.15, S0: 1, NLMin: 0}
)

// NoiseLoudness computes one frame's noise-loudness value per BS.1387 eq.
// 66-68, given the params' constants, the band's modulation patterns, and
// the excitation-threshold table (from the band layout of the ear model
// that produced the excitations).
func NoiseLoudness(p NoiseLoudnessParams, modRef, modTest, eRef, eTest []float64, excitationThreshold []float64) float64 {
	n := len(eRef)
	sum := 0.0
	for b := 0; b < n; b++ {
		sRef := p.ThresFac*modRef[b] + p.S0
		sTest := p.ThresFac*modTest[b] + p.S0
		beta := math.Exp(-p.Alpha * (eTest[b] - eRef[b]) / eRef[b])
		num := sTest*eTest[b] - sRef*eRef[b]
		if num < 0 {
			num = 0
		}
		eThres := excitationThreshold[b]
		term := math.Pow(1+num/(eThres+sRef*eRef[b]*beta), 0.23) - 1
		sum += math.Pow(eThres/sTest, 0.23) * term
	}
	nl := 24 / float64(n) * sum
	if nl < p.NLMin {
		nl = 0
	}
	return nl
}

// DetectionProbability computes the binaural detection-probability MOVs
// for one frame across all channels: P_tot for the MFPD (filtered-max)
// accumulator, and the ADB's contribution Sum_b q_band, which is only
// meaningful (per the caller) when P_tot exceeds 0.5.
func DetectionProbability(eRefDB, eTestDB [][]float64) (pTot, qSum float64) {
	bandCount := len(eRefDB[0])
	prodOneMinusP := 1.0
	for b := 0; b < bandCount; b++ {
		pBand, qBand := 0.0, 0.0
		for c := range eRefDB {
			l := 0.3*math.Max(eRefDB[c][b], eTestDB[c][b]) + 0.7*eTestDB[c][b]
			var s float64
			if l > 0 {
				s = 5.95072*math.Pow(6.39468/l, 1.71332) + 9.01033e-11*l*l*l*l +
					5.05622e-6*l*l*l - 0.00102438*l*l + 0.0550197*l - 0.198719
			} else {
				s = 1e30
			}
			e := eRefDB[c][b] - eTestDB[c][b]
			bExp := 6.0
			if e > 0 {
				bExp = 4.0
			}
			pc := 1 - math.Pow(0.5, math.Pow(e/s, bExp))
			qc := math.Abs(math.Trunc(e)) / s
			if pc > pBand {
				pBand = pc
			}
			if qc > qBand {
				qBand = qc
			}
		}
		prodOneMinusP *= 1 - pBand
		qSum += qBand
	}
	pTot = 1 - prodOneMinusP
	return pTot, qSum
}

const maxLag = 256

// EHS computes the error-harmonic-structure MOV for one channel's frame,
// given the reference and test weighted power spectra (length
// FrameSize/2+1 >= 2*maxLag) and an FFT plan of size maxLag.
// toggles.EHSSubtractDCBeforeWindow selects whether the autocorrelation
// sequence's mean is subtracted before or after the Hann window is applied.
func EHS(powerRefW, powerTestW []float64, fft *fourier.FFT, toggles conform.Toggles) float64 {
	d := make([]float64, 2*maxLag)
	for k := range d {
		if powerRefW[k] == 0 && powerTestW[k] == 0 {
			d[k] = 0
			continue
		}
		d[k] = math.Log(powerTestW[k] / powerRefW[k])
	}

	c := make([]float64, maxLag)
	for i := 0; i < maxLag; i++ {
		sum := 0.0
		for k := 0; k < maxLag; k++ {
			sum += d[k] * d[k+i]
		}
		c[i] = sum
	}

	d0 := c[0]
	dk := d0
	for i := 0; i < maxLag; i++ {
		if i > 0 {
			dk += d[i+maxLag]*d[i+maxLag] - d[i]*d[i]
		}
		c[i] /= math.Sqrt(d0 * dk)
	}

	mean := 0.0
	for _, v := range c {
		mean += v
	}
	mean /= float64(maxLag)

	win := make([]float64, maxLag)
	windowScale := 0.81649658092773 / maxLag
	for i := range win {
		w := windowScale * (1 - math.Cos(2*math.Pi*float64(i)/float64(maxLag-1)))
		if toggles.EHSSubtractDCBeforeWindow {
			win[i] = (c[i] - mean) * w
		} else {
			win[i] = c[i] * w
		}
	}
	if !toggles.EHSSubtractDCBeforeWindow {
		winMean := 0.0
		for _, v := range win {
			winMean += v
		}
		winMean /= float64(maxLag)
		for i := range win {
			win[i] -= winMean
		}
	}

	spectrum := fft.Coefficients(nil, win)
	mag2 := make([]float64, len(spectrum))
	for k, v := range spectrum {
		mag2[k] = real(v)*real(v) + imag(v)*imag(v)
	}

	minIdx := 0
	for k := 1; k < len(mag2); k++ {
		if mag2[k] < mag2[minIdx] {
			minIdx = k
		} else if mag2[k] > mag2[minIdx] {
			break
		}
	}
	ehs := 0.0
	for k := minIdx + 1; k < len(mag2); k++ {
		if mag2[k] > ehs {
			ehs = mag2[k]
		}
	}
	return 1000 * ehs
}
