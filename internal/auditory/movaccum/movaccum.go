// Copyright (c) 2019, The Emergent Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package movaccum implements the seven Model Output Variable accumulator
// strategies of BS.1387 ch. 4 and their shared tentative/commit protocol,
// which lets the orchestrator process a silent tail speculatively and
// discard it if the stream simply ends there.
package movaccum

import "math"

// Kind selects one of the seven accumulation strategies.
type Kind int

const (
	Avg Kind = iota
	AvgLog
	RMS
	RMSAsym
	AvgWindow
	FilteredMax
	ADB
)

type channelState struct {
	num, den float64
	count    float64
	fifo     [4]float64
	fifoLen  int
	filter   float64
	max      float64
}

func (c channelState) value(kind Kind) float64 {
	switch kind {
	case Avg:
		if c.den == 0 {
			return 0
		}
		return c.num / c.den
	case AvgLog:
		if c.den == 0 {
			return 0
		}
		return 10 * math.Log10(c.num/c.den)
	case RMS:
		if c.den == 0 {
			return 0
		}
		return math.Sqrt(c.num / c.den)
	case RMSAsym:
		if c.count == 0 {
			return 0
		}
		return math.Sqrt(c.num/c.count) + 0.5*math.Sqrt(c.den/c.count)
	case AvgWindow:
		if c.count == 0 {
			return 0
		}
		return math.Sqrt(c.num / c.count)
	case FilteredMax:
		return c.max
	case ADB:
		if c.den <= 0 {
			return 0
		}
		if c.num == 0 {
			return -0.5
		}
		return math.Log10(c.num / c.den)
	}
	return 0
}

func (c *channelState) accumulate(kind Kind, x, w float64) {
	switch kind {
	case Avg, AvgLog, ADB:
		c.num += w * x
		c.den += w
	case RMS:
		c.num += w * w * x * x
		c.den += w * w
	case RMSAsym:
		// x is the main noise-loudness value, w the "missing components"
		// value; see COMPONENT DESIGN 4.6 RmsNoiseLoudAsymA.
		c.num += x * x
		c.den += w * w
		c.count++
	case AvgWindow:
		sq := math.Sqrt(x)
		copy(c.fifo[1:], c.fifo[:3])
		c.fifo[0] = sq
		if c.fifoLen < 4 {
			c.fifoLen++
		}
		if c.fifoLen == 4 {
			winSum := (c.fifo[0] + c.fifo[1] + c.fifo[2] + c.fifo[3]) / 4
			c.num += winSum * winSum * winSum * winSum
			c.count++
		}
	case FilteredMax:
		c.filter = 0.9*c.filter + 0.1*x
		if c.filter > c.max {
			c.max = c.filter
		}
	}
}

// Accum is one MOV accumulator, holding per-channel state for the given
// Kind plus the tentative/commit snapshot.
type Accum struct {
	kind      Kind
	live      []channelState
	snapshot  []channelState
	tentative bool
}

// New creates an accumulator of the given strategy with channels == 1;
// call SetChannels to resize.
func New(kind Kind) *Accum {
	return &Accum{kind: kind, live: make([]channelState, 1)}
}

// SetChannels resizes the accumulator's per-channel state, discarding any
// prior accumulation.
func (a *Accum) SetChannels(n int) {
	a.live = make([]channelState, n)
	a.snapshot = nil
	a.tentative = false
}

// SetTentative enters or leaves speculative accumulation. Entering
// (tentative=true) snapshots the current per-channel state, so that
// GetValue keeps reporting the pre-snapshot value while Accumulate keeps
// updating the live state underneath. Leaving (tentative=false) discards
// the snapshot, committing whatever Accumulate calls happened while
// tentative.
func (a *Accum) SetTentative(tentative bool) {
	if tentative && !a.tentative {
		a.snapshot = make([]channelState, len(a.live))
		copy(a.snapshot, a.live)
	}
	if !tentative {
		a.snapshot = nil
	}
	a.tentative = tentative
}

// Accumulate folds one (channel, x, w) observation into the live state.
func (a *Accum) Accumulate(channel int, x, w float64) {
	a.live[channel].accumulate(a.kind, x, w)
}

// GetValue returns the strategy's value, averaged over channels, computed
// from the snapshot while tentative or from the live state otherwise.
func (a *Accum) GetValue() float64 {
	states := a.live
	if a.tentative {
		states = a.snapshot
	}
	if len(states) == 0 {
		return 0
	}
	sum := 0.0
	for _, c := range states {
		sum += c.value(a.kind)
	}
	return sum / float64(len(states))
}
