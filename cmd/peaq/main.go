// Copyright (c) 2019, The Emergent Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Command peaq computes the ITU-R BS.1387 Objective Difference Grade
// between a reference and a test WAV file.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/charmbracelet/log"
	"github.com/spf13/pflag"

	"github.com/HSU-ANT/gstpeaq-sub000/internal/auditory/algo"
	"github.com/HSU-ANT/gstpeaq-sub000/internal/auditory/conform"
	"github.com/HSU-ANT/gstpeaq-sub000/wavio"
)

// ErrChannelCountMismatch is returned when the reference and test files
// carry a different number of channels.
var ErrChannelCountMismatch = errors.New("peaq: reference and test channel counts differ")

const version = "0.1.0"

const (
	exitSuccess = 0
	exitUsage   = 1
	exitEnv     = 2
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	flags := pflag.NewFlagSet("peaq", pflag.ContinueOnError)
	advanced := flags.Bool("advanced", false, "use the advanced conformance mode (default: basic)")
	basic := flags.Bool("basic", false, "use the basic conformance mode (default)")
	showVersion := flags.Bool("version", false, "print version and exit")
	verbose := flags.BoolP("verbose", "v", false, "print every Model Output Variable before the ODG")
	playbackLevel := flags.Float64("playback-level", 92, "playback level in dB SPL (0..130)")

	flags.Usage = func() {
		fmt.Fprintln(os.Stderr, "usage: peaq [--advanced|--basic] [--verbose] [--playback-level dB] REFFILE TESTFILE")
		flags.PrintDefaults()
	}
	if err := flags.Parse(args); err != nil {
		return exitUsage
	}

	if *showVersion {
		fmt.Println("peaq", version)
		return exitSuccess
	}
	if *advanced && *basic {
		log.Error("--advanced and --basic are mutually exclusive")
		return exitUsage
	}
	if flags.NArg() != 2 {
		flags.Usage()
		return exitUsage
	}
	refPath, testPath := flags.Arg(0), flags.Arg(1)

	ref, err := wavio.Load(refPath)
	if err != nil {
		log.Error("loading reference file", "err", err)
		return exitEnv
	}
	test, err := wavio.Load(testPath)
	if err != nil {
		log.Error("loading test file", "err", err)
		return exitEnv
	}
	if ref.Channels != test.Channels {
		err := fmt.Errorf("%w: ref has %d, test has %d", ErrChannelCountMismatch, ref.Channels, test.Channels)
		log.Error(err.Error())
		return exitUsage
	}

	odg, di, movNames, movValues, err := compute(*advanced, *playbackLevel, ref, test)
	if err != nil {
		if errors.Is(err, algo.ErrUnsupportedChannelCount) || errors.Is(err, algo.ErrPlaybackLevelOutOfRange) {
			log.Error(err.Error())
			return exitUsage
		}
		log.Error(err.Error())
		return exitEnv
	}

	if *verbose {
		for i, name := range movNames {
			fmt.Printf("%16s: %f\n", name, movValues[i])
		}
		fmt.Printf("Distortion Index: %f\n", di)
	}
	fmt.Printf("Objective Difference Grade: %.3f\n", odg)
	return exitSuccess
}

func compute(advanced bool, playbackLevel float64, ref, test *wavio.File) (odg, di float64, movNames []string, movValues []float64, err error) {
	toggles := conform.DefaultToggles()
	if advanced {
		a := algo.NewAdvanced(toggles)
		if err := a.SetChannels(ref.Channels); err != nil {
			return 0, 0, nil, nil, err
		}
		if err := a.SetPlaybackLevel(playbackLevel); err != nil {
			return 0, 0, nil, nil, err
		}
		a.ProcessBlock(ref.Samples, test.Samples)
		a.Flush()
		return a.CalculateODG(), a.CalculateDI(), advancedMOVNames, a.MOVs(), nil
	}
	b := algo.NewBasic(toggles)
	if err := b.SetChannels(ref.Channels); err != nil {
		return 0, 0, nil, nil, err
	}
	if err := b.SetPlaybackLevel(playbackLevel); err != nil {
		return 0, 0, nil, nil, err
	}
	b.ProcessBlock(ref.Samples, test.Samples)
	b.Flush()
	return b.CalculateODG(), b.CalculateDI(), basicMOVNames, b.MOVs(), nil
}

var basicMOVNames = []string{
	"BandwidthRefB", "BandwidthTestB", "Total NMRB", "WinModDiff1B", "ADBB",
	"EHSB", "AvgModDiff1B", "AvgModDiff2B", "RmsNoiseLoudB", "MFPDB", "RelDistFramesB",
}

var advancedMOVNames = []string{
	"RmsModDiffA", "RmsNoiseLoudAsymA", "SegmentalNMRB", "EHSB", "AvgLinDistA",
}
