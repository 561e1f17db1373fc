// Copyright (c) 2019, The Emergent Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package earmodel

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestNewBandLayoutCentersAreMonotoneIncreasing(t *testing.T) {
	l := NewBandLayout(109, 80, 18000, 1.07664)
	require.Len(t, l.CenterFreq, 109)
	for i := 1; i < len(l.CenterFreq); i++ {
		assert.Greater(t, l.CenterFreq[i], l.CenterFreq[i-1])
	}
}

func TestNewBandLayoutEdgesSpanRange(t *testing.T) {
	l := NewBandLayout(55, 80, 18000, 1.07664)
	assert.InDelta(t, 80.0, l.EdgeFreq[0], 1e-6)
	assert.InDelta(t, 18000.0, l.EdgeFreq[len(l.EdgeFreq)-1], 1e-3)
}

func TestTotalLoudnessOfSilenceIsZero(t *testing.T) {
	l := NewBandLayout(40, 80, 18000, 1.26539)
	assert.Equal(t, 0.0, l.TotalLoudness(make([]float64, 40)))
}

// TestTotalLoudnessMonotoneInExcitation checks the quantified invariant
// that raising any band's excitation can only ever raise (never lower) the
// total loudness (spec.md §8): each band's contribution is clamped to be
// non-negative and is itself non-decreasing in excitation.
func TestTotalLoudnessMonotoneInExcitation(t *testing.T) {
	l := NewBandLayout(40, 80, 18000, 1.26539)
	rapid.Check(t, func(t *rapid.T) {
		e := make([]float64, 40)
		for i := range e {
			e[i] = rapid.Float64Range(0, 1e6).Draw(t, "e")
		}
		base := l.TotalLoudness(e)
		band := rapid.IntRange(0, 39).Draw(t, "band")
		bumped := append([]float64(nil), e...)
		bumped[band] += rapid.Float64Range(0, 1e6).Draw(t, "bump")
		assert.GreaterOrEqual(t, l.TotalLoudness(bumped), base-1e-9)
	})
}

func TestSetCenterFrequenciesOverridesEmptyLayout(t *testing.T) {
	l := NewEmptyBandLayout(3)
	l.SetCenterFrequencies([]float64{100, 1000, 8000}, 1.26539)
	assert.Equal(t, []float64{100, 1000, 8000}, l.CenterFreq)
	for _, v := range l.InternalNoise {
		assert.Greater(t, v, 0.0)
	}
}
