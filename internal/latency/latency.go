// SPDX-License-Identifier: MIT
/*
Package latency estimates the fixed input/output latency of the capture
pipeline by cross-correlating a known reference signal against a recording
of it. The calibration is a pure function: deterministic, stateless and safe
to run repeatedly.
*/
package latency

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

const epsilon = 1e-6

// Result is the outcome of one calibration run.
type Result struct {
	// OffsetMS is the estimated latency in milliseconds. Positive values
	// mean the captured signal lags the reference.
	OffsetMS float64
	// Correlation is the peak cross-correlation normalized by the product
	// of the two signals' L2 norms. Near zero for degenerate inputs.
	Correlation float64
	// ReferencePeak and CapturedPeak are the indexes of the peak absolute
	// sample in each input, for diagnostic display.
	ReferencePeak int
	CapturedPeak  int
}

// Calibrator cross-correlates captured audio against a reference to estimate
// the pipeline's fixed latency.
type Calibrator struct {
	sampleRate float64
}

// NewCalibrator creates a calibrator for signals at the given sample rate.
func NewCalibrator(sampleRate float64) *Calibrator {
	return &Calibrator{sampleRate: sampleRate}
}

// Calibrate estimates the lag of captured behind reference. Both signals
// must be mono and at the calibrator's sample rate; use Downmix first for
// interleaved multi-channel input. Degenerate inputs (e.g. all-zero
// reference) yield a near-zero correlation rather than an error.
func (c *Calibrator) Calibrate(reference, captured []float64) Result {
	ref := demean(reference)
	capt := demean(captured)

	peakIndex, peakValue := crossCorrelate(capt, ref)

	lag := peakIndex - len(ref) + 1
	offsetSeconds := float64(lag) / c.sampleRate
	correlation := peakValue / (floats.Norm(ref, 2)*floats.Norm(capt, 2) + epsilon)

	return Result{
		OffsetMS:      offsetSeconds * 1000.0,
		Correlation:   correlation,
		ReferencePeak: peakAbsIndex(ref),
		CapturedPeak:  peakAbsIndex(capt),
	}
}

// Downmix reduces interleaved multi-channel samples to mono by arithmetic
// mean. Mono input is copied unchanged.
func Downmix(samples []float64, channels int) []float64 {
	if channels < 1 {
		channels = 1
	}
	frames := len(samples) / channels
	mono := make([]float64, frames)
	if channels == 1 {
		copy(mono, samples[:frames])
		return mono
	}
	inv := 1.0 / float64(channels)
	for i := 0; i < frames; i++ {
		sum := 0.0
		for ch := 0; ch < channels; ch++ {
			sum += samples[i*channels+ch]
		}
		mono[i] = sum * inv
	}
	return mono
}

// demean returns a copy of signal with its DC offset removed.
func demean(signal []float64) []float64 {
	out := make([]float64, len(signal))
	copy(out, signal)
	if len(out) > 0 {
		floats.AddConst(-stat.Mean(out, nil), out)
	}
	return out
}

// crossCorrelate computes the full cross-correlation of a against b and
// returns the index and value of its maximum. Index n corresponds to lag
// n-(len(b)-1) of a relative to b.
func crossCorrelate(a, b []float64) (peakIndex int, peakValue float64) {
	if len(a) == 0 || len(b) == 0 {
		return 0, 0
	}

	total := len(a) + len(b) - 1
	peakValue = math.Inf(-1)
	for n := 0; n < total; n++ {
		lag := n - (len(b) - 1)
		sum := 0.0
		for j := 0; j < len(b); j++ {
			i := j + lag
			if i < 0 || i >= len(a) {
				continue
			}
			sum += a[i] * b[j]
		}
		if sum > peakValue {
			peakValue = sum
			peakIndex = n
		}
	}
	return peakIndex, peakValue
}

// peakAbsIndex returns the index of the sample with the largest absolute
// value.
func peakAbsIndex(signal []float64) int {
	peak := -1.0
	index := 0
	for i, v := range signal {
		if abs := math.Abs(v); abs > peak {
			peak = abs
			index = i
		}
	}
	return index
}
