// Copyright (c) 2019, The Emergent Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package wavio loads 48kHz WAV files into per-channel float32 PCM, the
// input format the algo package's facade expects.
package wavio

import (
	"fmt"
	"os"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// SampleRate is the only sample rate the PEAQ ear models are calibrated
// for; files at any other rate are rejected rather than silently
// resampled.
const SampleRate = 48000

// File holds one WAV file's de-interleaved samples, normalized to
// [-1, 1].
type File struct {
	Channels int
	Samples  [][]float32
}

// Load reads path as a 48kHz WAV file and de-interleaves it into one
// float32 slice per channel.
func Load(path string) (*File, error) {
	inFile, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("wavio: opening %s: %w", path, err)
	}
	defer inFile.Close()

	dec := wav.NewDecoder(inFile)
	if !dec.IsValidFile() {
		return nil, fmt.Errorf("wavio: %s is not a valid WAV file", path)
	}
	if int(dec.SampleRate) != SampleRate {
		return nil, fmt.Errorf("wavio: %s is %dHz, want %dHz", path, dec.SampleRate, SampleRate)
	}

	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("wavio: reading %s: %w", path, err)
	}

	channels := int(dec.NumChans)
	nFrames := buf.NumFrames()
	out := &File{Channels: channels, Samples: make([][]float32, channels)}
	for c := range out.Samples {
		out.Samples[c] = make([]float32, nFrames)
	}

	idx := 0
	for i := 0; i < nFrames; i++ {
		for c := 0; c < channels; c, idx = c+1, idx+1 {
			out.Samples[c][i] = floatAtIdx(buf, idx)
		}
	}
	return out, nil
}

// floatAtIdx normalizes one PCM sample to [-1, 1] per its source bit
// depth, the same table the teacher's own WAV loader uses.
func floatAtIdx(buf *audio.IntBuffer, idx int) float32 {
	switch buf.SourceBitDepth {
	case 32:
		return float32(buf.Data[idx]) / float32(0x7FFFFFFF)
	case 24:
		return float32(buf.Data[idx]) / float32(0x7FFFFF)
	case 16:
		return float32(buf.Data[idx]) / float32(0x7FFF)
	case 8:
		return float32(buf.Data[idx]) / float32(0x7F)
	}
	return 0
}
