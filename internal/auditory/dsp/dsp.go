// Package dsp collects the small numeric helpers shared by the ear models,
// the level/pattern adapter, and the modulation processor: the one-pole
// time-constant factor used for every temporal smoothing stage in the
// model, the outer/middle ear weighting function, and a logistic sigmoid.
package dsp

import "math"

// SampleRate is the only sampling rate the perceptual model supports.
const SampleRate = 48000.0

// TimeConstantFactor returns the one-pole filter coefficient `a` such that
// `y[n] = a*y[n-1] + (1-a)*x[n]` has time constant tau (seconds) when the
// filter runs once every stepSize samples at SampleRate.
func TimeConstantFactor(stepSize int, tau float64) float64 {
	return math.Exp(-float64(stepSize) / (SampleRate * tau))
}

// EarTimeConstant computes the per-band forward-masking / smoothing time
// constant tau(fc) = tauMin + 100/fc*(tau100-tauMin): it equals tau100 at
// 100 Hz and approaches tauMin as the center frequency rises.
func EarTimeConstant(centerFreqHz, tauMin, tau100 float64) float64 {
	return tauMin + 100/centerFreqHz*(tau100-tauMin)
}

// OuterMiddleEarWeightDB returns the outer/middle ear frequency weighting
// in dB at fHz, per BS.1387 Annex B:
//
//	Wt(f) = -0.6*3.64*(f/1000)^-0.8 + 6.5*exp(-0.6*(f/1000-3.3)^2) - 1e-3*(f/1000)^3.6
func OuterMiddleEarWeightDB(fHz float64) float64 {
	fkHz := fHz / 1000
	return -0.6*3.64*math.Pow(fkHz, -0.8) +
		6.5*math.Exp(-0.6*math.Pow(fkHz-3.3, 2)) -
		1e-3*math.Pow(fkHz, 3.6)
}

// OuterMiddleEarWeight converts OuterMiddleEarWeightDB to a power-domain
// (squared-magnitude) multiplicative weight.
func OuterMiddleEarWeight(fHz float64) float64 {
	return math.Pow(10, OuterMiddleEarWeightDB(fHz)/10)
}

// Sigmoid is the standard logistic function 1/(1+e^-x). The nn package
// uses its own copy of it.
func Sigmoid(x float64) float64 {
	return 1 / (1 + math.Exp(-x))
}

// Bark computes an approximate Bark-scale position purely for diagnostic
// or test use; the model itself never needs to invert center frequencies
// back to Bark, it only consumes precomputed per-band tables.
func Bark(fHz float64) float64 {
	fkHz := fHz / 1000
	return 13*math.Atan(0.76*fkHz) + 3.5*math.Atan(math.Pow(fkHz/7.5, 2))
}
