// Copyright (c) 2019, The Emergent Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package nn maps a frame's Model Output Variables to a Distortion Index
// and from there to an Objective Difference Grade, using the two small
// fixed two-layer sigmoid networks trained for the basic (11 MOV) and
// advanced (5 MOV) conformance modes.
package nn

import "math"

const (
	bmin = -3.98
	bmax = 0.22
)

// Basic network: 11 inputs, 3 hidden sigmoid units, 1 linear output.
var (
	aminBasic = [11]float64{
		393.916656, 361.965332, -24.045116, 1.110661, -0.206623,
		0.074318, 1.113683, 0.950345, 0.029985, 0.000101, 0.,
	}
	amaxBasic = [11]float64{
		921, 881.131226, 16.212030, 107.137772, 2.886017,
		13.933351, 63.257874, 1145.018555, 14.819740, 1., 1.,
	}
	wxBasic = [11][3]float64{
		{-0.502657, 0.436333, 1.219602},
		{4.307481, 3.246017, 1.123743},
		{4.984241, -2.211189, -0.192096},
		{0.051056, -1.762424, 4.331315},
		{2.321580, 1.789971, -0.754560},
		{-5.303901, -3.452257, -10.814982},
		{2.730991, -6.111805, 1.519223},
		{0.624950, -1.331523, -5.955151},
		{3.102889, 0.871260, -5.922878},
		{-1.051468, -0.939882, -0.142913},
		{-1.804679, -0.503610, -0.620456},
	}
	wxbBasic = [3]float64{-2.518254, 0.654841, -2.207228}
	// wyBasic holds only the three weights the hidden-to-output sum
	// actually uses; the source's literal array carries a fourth entry
	// equal to wybBasic, which its loop (i < 3) never reads.
	wyBasic  = [3]float64{-3.817048, 4.107138, 4.629582}
	wybBasic = -0.307594
)

// Advanced network: 5 inputs, 5 hidden sigmoid units, 1 linear output.
var (
	aminAdvanced = [5]float64{13.298751, 0.041073, -25.018791, 0.061560, 0.02452}
	amaxAdvanced = [5]float64{2166.5, 13.24326, 13.46708, 10.226771, 14.224874}
	wxAdvanced   = [5][5]float64{
		{21.211773, -39.013052, -1.382553, -14.545348, -0.320899},
		{-8.981803, 19.956049, 0.935389, -1.686586, -3.238586},
		{1.633830, -2.877505, -7.442935, 5.606502, -1.783120},
		{6.103821, 19.587435, -0.240284, 1.088213, -0.511314},
		{11.556344, 3.892028, 9.720441, -3.287205, -11.031250},
	}
	wxbAdvanced = [5]float64{1.330890, 2.686103, 2.096598, -1.327851, 3.087055}
	wyAdvanced  = [5]float64{-4.696996, -3.289959, 7.004782, 6.651897, 4.009144}
	wybAdvanced = -1.360308
)

func sigmoid(x float64) float64 { return 1 / (1 + math.Exp(-x)) }

// scale maps a raw MOV into the network's normalized [0,1]-ish input range.
// When clamp is true, the normalized value is clamped to [0,1] per the
// CLAMP_MOVS conformance toggle.
func scale(v, amin, amax float64, clamp bool) float64 {
	s := (v - amin) / (amax - amin)
	if clamp {
		if s < 0 {
			s = 0
		}
		if s > 1 {
			s = 1
		}
	}
	return s
}

// DistortionIndexBasic computes the basic mode's Distortion Index from its
// 11 MOVs, in the fixed order bandwidth_ref, bandwidth_test, total_nmr,
// win_mod_diff, adb, ehs, avg_mod_diff_1, avg_mod_diff_2, rms_noise_loud,
// mfpd, rel_dist_frames.
func DistortionIndexBasic(movs [11]float64, clamp bool) float64 {
	var hidden [3]float64
	for j := 0; j < 3; j++ {
		x := wxbBasic[j]
		for i := 0; i < 11; i++ {
			x += wxBasic[i][j] * scale(movs[i], aminBasic[i], amaxBasic[i], clamp)
		}
		hidden[j] = sigmoid(x)
	}
	di := wybBasic
	for j := 0; j < 3; j++ {
		di += wyBasic[j] * hidden[j]
	}
	return di
}

// DistortionIndexAdvanced computes the advanced mode's Distortion Index
// from its 5 MOVs, in the fixed order rms_mod_diff, rms_noise_loud_asym,
// segmental_nmr, ehs, avg_lin_dist.
func DistortionIndexAdvanced(movs [5]float64, clamp bool) float64 {
	var hidden [5]float64
	for j := 0; j < 5; j++ {
		x := wxbAdvanced[j]
		for i := 0; i < 5; i++ {
			x += wxAdvanced[i][j] * scale(movs[i], aminAdvanced[i], amaxAdvanced[i], clamp)
		}
		hidden[j] = sigmoid(x)
	}
	di := wybAdvanced
	for j := 0; j < 5; j++ {
		di += wyAdvanced[j] * hidden[j]
	}
	return di
}

// ODG maps a Distortion Index to an Objective Difference Grade in
// [bmin, bmax] = [-3.98, 0.22].
func ODG(di float64) float64 {
	return bmin + (bmax-bmin)*sigmoid(di)
}
