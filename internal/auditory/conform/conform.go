// Copyright (c) 2019, The Emergent Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package conform collects the handful of compile-time conformance
// toggles the reference implementation exposes for points where BS.1387's
// text and the Kabal (2003) independent interpretation disagree. They are
// construction-time configuration here rather than build flags, and the
// defaults match the reference implementation's. Only three of the six
// change behaviour; the field comments below name the ones no code reads.
package conform

// Toggles selects one interpretation for each documented disagreement
// between the standard's text and the Kabal (2003) reading. The zero value
// is not the default; use DefaultToggles.
type Toggles struct {
	// SwapModPattsForNoiseLoudnessMovs swaps which channel's modulation
	// pattern feeds the "missing components" noise-loudness call in
	// advanced mode's RmsNoiseLoudAsymA.
	SwapModPattsForNoiseLoudnessMovs bool
	// CenterEHSCorrelationWindow selects centering the EHS correlation
	// window on the autocorrelation sequence instead of aligning it at
	// index 0. No code reads it: movs.EHS always aligns the window at
	// index 0.
	CenterEHSCorrelationWindow bool
	// EHSSubtractDCBeforeWindow subtracts the autocorrelation sequence's
	// mean before applying the Hann window, rather than after.
	EHSSubtractDCBeforeWindow bool
	// UseFloorForStepsAboveThreshold selects rounding the advanced
	// orchestrator's dual-cadence step count down instead of using the exact
	// minimum. No code reads it: algo.Advanced steps each ear model on its
	// own buffer regardless of its value.
	UseFloorForStepsAboveThreshold bool
	// ClampMOVs clamps the neural network's normalized inputs to [0, 1].
	ClampMOVs bool
	// SwapSlopeFilterCoefficients selects swapping the filterbank model's
	// slope-filter coefficients. No code reads it: fbear always uses its
	// fixed slope-filter constants.
	SwapSlopeFilterCoefficients bool
}

// DefaultToggles returns the reference implementation's own choices: 1, 0,
// 1, 0, 0, 0 in the order the toggles are declared above.
func DefaultToggles() Toggles {
	return Toggles{
		SwapModPattsForNoiseLoudnessMovs: true,
		CenterEHSCorrelationWindow:       false,
		EHSSubtractDCBeforeWindow:        true,
		UseFloorForStepsAboveThreshold:   false,
		ClampMOVs:                        false,
		SwapSlopeFilterCoefficients:      false,
	}
}
