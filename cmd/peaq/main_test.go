// Copyright (c) 2019, The Emergent Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/HSU-ANT/gstpeaq-sub000/internal/auditory/algo"
	"github.com/HSU-ANT/gstpeaq-sub000/wavio"
)

func writeTestWAV(t *testing.T, path string, sampleRate, channels int) {
	t.Helper()
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	n := 4800
	data := make([]int, n*channels)
	for i := range data {
		data[i] = (i % 2000) - 1000
	}
	enc := wav.NewEncoder(f, sampleRate, 16, channels, 1)
	buf := &audio.IntBuffer{
		Format:         &audio.Format{NumChannels: channels, SampleRate: sampleRate},
		Data:           data,
		SourceBitDepth: 16,
	}
	require.NoError(t, enc.Write(buf))
	require.NoError(t, enc.Close())
}

func TestRunNoArgsPrintsUsage(t *testing.T) {
	assert.Equal(t, exitUsage, run(nil))
}

func TestRunVersionExitsSuccess(t *testing.T) {
	assert.Equal(t, exitSuccess, run([]string{"--version"}))
}

func TestRunMutuallyExclusiveModeFlags(t *testing.T) {
	dir := t.TempDir()
	ref := filepath.Join(dir, "ref.wav")
	test := filepath.Join(dir, "test.wav")
	writeTestWAV(t, ref, 48000, 1)
	writeTestWAV(t, test, 48000, 1)

	assert.Equal(t, exitUsage, run([]string{"--advanced", "--basic", ref, test}))
}

func TestRunMissingFileIsEnvError(t *testing.T) {
	dir := t.TempDir()
	assert.Equal(t, exitEnv, run([]string{filepath.Join(dir, "nope.wav"), filepath.Join(dir, "also-nope.wav")}))
}

func TestRunChannelMismatchIsUsageError(t *testing.T) {
	dir := t.TempDir()
	ref := filepath.Join(dir, "ref.wav")
	test := filepath.Join(dir, "test.wav")
	writeTestWAV(t, ref, 48000, 1)
	writeTestWAV(t, test, 48000, 2)

	assert.Equal(t, exitUsage, run([]string{ref, test}))
}

func TestRunBasicModeSucceeds(t *testing.T) {
	dir := t.TempDir()
	ref := filepath.Join(dir, "ref.wav")
	test := filepath.Join(dir, "test.wav")
	writeTestWAV(t, ref, 48000, 1)
	writeTestWAV(t, test, 48000, 1)

	assert.Equal(t, exitSuccess, run([]string{"--verbose", ref, test}))
}

func TestRunAdvancedModeSucceeds(t *testing.T) {
	dir := t.TempDir()
	ref := filepath.Join(dir, "ref.wav")
	test := filepath.Join(dir, "test.wav")
	writeTestWAV(t, ref, 48000, 1)
	writeTestWAV(t, test, 48000, 1)

	assert.Equal(t, exitSuccess, run([]string{"--advanced", ref, test}))
}

func TestRunRejectsPlaybackLevelOutOfRange(t *testing.T) {
	dir := t.TempDir()
	ref := filepath.Join(dir, "ref.wav")
	test := filepath.Join(dir, "test.wav")
	writeTestWAV(t, ref, 48000, 1)
	writeTestWAV(t, test, 48000, 1)

	assert.Equal(t, exitUsage, run([]string{"--playback-level", "500", ref, test}))
}

func TestComputePropagatesSetChannelsError(t *testing.T) {
	bogus := &wavio.File{Channels: 3, Samples: [][]float32{{}, {}, {}}}
	_, _, _, _, err := compute(false, 92, bogus, bogus)
	assert.True(t, errors.Is(err, algo.ErrUnsupportedChannelCount))
}
