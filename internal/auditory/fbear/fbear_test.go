// Copyright (c) 2019, The Emergent Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package fbear

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sineFrame(freq, amplitude float64, n int) []float32 {
	frame := make([]float32, n)
	for i := range frame {
		frame[i] = float32(amplitude * math.Sin(2*math.Pi*freq*float64(i)/48000))
	}
	return frame
}

func TestProcessBlockSilenceGivesNonNegativeExcitation(t *testing.T) {
	p := NewParams(92)
	s := NewState(p)
	for i := 0; i < 10; i++ {
		s.ProcessBlock(make([]float32, FrameSize))
	}
	for _, e := range s.Excitation() {
		assert.GreaterOrEqual(t, e, 0.0)
	}
}

func TestBandCountIsForty(t *testing.T) {
	p := NewParams(92)
	require.Equal(t, 40, p.BandCount())
}

func TestStepSizeIsFrameSize(t *testing.T) {
	p := NewParams(92)
	assert.Equal(t, 192, p.StepSize())
}

func TestCenterFrequenciesAreMonotoneIncreasing(t *testing.T) {
	p := NewParams(92)
	for i := 1; i < p.BandCount(); i++ {
		assert.Greater(t, p.CenterFrequency(i), p.CenterFrequency(i-1))
	}
}

func TestSineEventuallyRaisesExcitationAboveSilence(t *testing.T) {
	p := NewParams(92)
	silent := NewState(p)
	loud := NewState(p)

	for i := 0; i < 30; i++ {
		silent.ProcessBlock(make([]float32, FrameSize))
		loud.ProcessBlock(sineFrame(1000, 1.0, FrameSize))
	}

	sumSilent, sumLoud := 0.0, 0.0
	for i := range silent.Excitation() {
		sumSilent += silent.Excitation()[i]
		sumLoud += loud.Excitation()[i]
	}
	assert.Greater(t, sumLoud, sumSilent)
}
