// Copyright (c) 2019, The Emergent Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package modproc

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"pgregory.net/rapid"
)

type fakeModel struct{ n int }

func (m fakeModel) BandCount() int                { return m.n }
func (m fakeModel) CenterFrequency(i int) float64 { return 100 + float64(i)*200 }
func (m fakeModel) InternalNoise(i int) float64   { return 1e-3 }
func (m fakeModel) StepSize() int                 { return 1024 }

func TestConstantExcitationDrivesModulationToZero(t *testing.T) {
	n := 10
	p := NewParams(fakeModel{n: n})
	s := NewState(p)
	e := make([]float64, n)
	for i := range e {
		e[i] = 4.0
	}
	for i := 0; i < 50; i++ {
		s.Process(e)
	}
	for _, m := range s.Modulation() {
		assert.InDelta(t, 0.0, m, 1e-6)
	}
}

func TestModulationNonNegative(t *testing.T) {
	n := 6
	p := NewParams(fakeModel{n: n})
	rapid.Check(t, func(t *rapid.T) {
		s := NewState(p)
		for step := 0; step < 5; step++ {
			e := make([]float64, n)
			for i := range e {
				e[i] = rapid.Float64Range(0, 1000).Draw(t, "e")
			}
			s.Process(e)
			for _, m := range s.Modulation() {
				assert.GreaterOrEqual(t, m, 0.0)
			}
		}
	})
}

func TestAverageLoudnessTracksExcitation(t *testing.T) {
	n := 4
	p := NewParams(fakeModel{n: n})
	s := NewState(p)
	e := make([]float64, n)
	for i := range e {
		e[i] = 8.0
	}
	for i := 0; i < 100; i++ {
		s.Process(e)
	}
	for i, loud := range s.AverageLoudness() {
		want := math.Pow(e[i], 0.3)
		assert.InDelta(t, want, loud, 1e-6)
	}
}
