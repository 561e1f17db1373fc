// Copyright (c) 2019, The Emergent Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package wavio

import (
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeWAV encodes a small mono or stereo 16-bit WAV file for round-trip
// testing, mirroring the encoder side of the go-audio/wav API that Load
// decodes against.
func writeWAV(t *testing.T, path string, sampleRate, bitDepth, channels int, samples []int) {
	t.Helper()
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	enc := wav.NewEncoder(f, sampleRate, bitDepth, channels, 1)
	buf := &audio.IntBuffer{
		Format:         &audio.Format{NumChannels: channels, SampleRate: sampleRate},
		Data:           samples,
		SourceBitDepth: bitDepth,
	}
	require.NoError(t, enc.Write(buf))
	require.NoError(t, enc.Close())
}

func TestLoadMonoRoundTrips(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "mono.wav")
	raw := []int{0, 16384, -16384, 32767, -32768}
	writeWAV(t, path, SampleRate, 16, 1, raw)

	f, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, 1, f.Channels)
	require.Len(t, f.Samples, 1)
	require.Len(t, f.Samples[0], len(raw))

	for i, v := range raw {
		want := float32(v) / float32(0x7FFF)
		assert.InDelta(t, want, f.Samples[0][i], 1e-6)
	}
}

func TestLoadStereoDeinterleaves(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "stereo.wav")
	// interleaved L,R,L,R...
	raw := []int{100, -100, 200, -200, 300, -300}
	writeWAV(t, path, SampleRate, 16, 2, raw)

	f, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, 2, f.Channels)
	require.Len(t, f.Samples[0], 3)
	require.Len(t, f.Samples[1], 3)

	assert.InDelta(t, float32(100)/float32(0x7FFF), f.Samples[0][0], 1e-6)
	assert.InDelta(t, float32(-100)/float32(0x7FFF), f.Samples[1][0], 1e-6)
	assert.InDelta(t, float32(300)/float32(0x7FFF), f.Samples[0][2], 1e-6)
	assert.InDelta(t, float32(-300)/float32(0x7FFF), f.Samples[1][2], 1e-6)
}

func TestLoadRejectsWrongSampleRate(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "wrongrate.wav")
	writeWAV(t, path, 44100, 16, 1, []int{0, 1, 2})

	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoadRejectsMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nonexistent.wav"))
	assert.Error(t, err)
}

func TestFloatAtIdxNormalizesFullScale(t *testing.T) {
	buf := &audio.IntBuffer{SourceBitDepth: 16, Data: []int{32767, -32768}}
	assert.InDelta(t, 1.0, float64(floatAtIdx(buf, 0)), 1e-4)
	assert.InDelta(t, -1.0, float64(floatAtIdx(buf, 1)), 1e-4)
}

func TestFloatAtIdxUnknownBitDepthIsZero(t *testing.T) {
	buf := &audio.IntBuffer{SourceBitDepth: 12, Data: []int{12345}}
	assert.Equal(t, float32(0), floatAtIdx(buf, 0))
}

func TestLoadPreservesMonotoneSampleOrder(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "ramp.wav")
	n := 100
	raw := make([]int, n)
	for i := range raw {
		raw[i] = int(math.Round(float64(i) * 100))
	}
	writeWAV(t, path, SampleRate, 16, 1, raw)

	f, err := Load(path)
	require.NoError(t, err)
	for i := 1; i < n; i++ {
		assert.GreaterOrEqual(t, f.Samples[0][i], f.Samples[0][i-1])
	}
}
