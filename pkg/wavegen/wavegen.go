// SPDX-License-Identifier: MIT
//
// Package wavegen generates deterministic test signals for analysis and
// calibration tests.
package wavegen

import "math"

// Sine returns n samples of a sine wave at the given frequency and amplitude.
func Sine(n int, sampleRate, frequency, amplitude float64) []float64 {
	buffer := make([]float64, n)
	for i := range buffer {
		t := float64(i) / sampleRate
		buffer[i] = amplitude * math.Sin(2*math.Pi*frequency*t)
	}
	return buffer
}

// ComplexWave returns n samples of a 440Hz fundamental with two harmonics,
// useful as a broadband non-trivial input.
func ComplexWave(n int, sampleRate float64) []float64 {
	buffer := make([]float64, n)
	for i := range buffer {
		t := float64(i) / sampleRate
		buffer[i] = math.Sin(2*math.Pi*440*t)*0.5 +
			math.Sin(2*math.Pi*880*t)*0.3 +
			math.Sin(2*math.Pi*1320*t)*0.2
	}
	return buffer
}

// Impulse returns n samples of silence with a single spike of the given
// amplitude at index at. Out-of-range indexes yield pure silence.
func Impulse(n, at int, amplitude float64) []float64 {
	buffer := make([]float64, n)
	if at >= 0 && at < n {
		buffer[at] = amplitude
	}
	return buffer
}

// Silence returns n zero samples.
func Silence(n int) []float64 {
	return make([]float64, n)
}

// PeakBin returns the index of the largest value in magnitudes within
// [startBin, endBin], clamped to the slice bounds.
func PeakBin(magnitudes []float64, startBin, endBin int) int {
	if len(magnitudes) == 0 {
		return 0
	}
	if startBin < 0 {
		startBin = 0
	}
	if endBin >= len(magnitudes) {
		endBin = len(magnitudes) - 1
	}

	peakBin := startBin
	peakValue := magnitudes[startBin]
	for bin := startBin + 1; bin <= endBin; bin++ {
		if magnitudes[bin] > peakValue {
			peakValue = magnitudes[bin]
			peakBin = bin
		}
	}
	return peakBin
}
