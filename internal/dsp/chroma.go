// SPDX-License-Identifier: MIT
package dsp

import "math"

// Chroma is the optional pitch-class analysis capability. A nil result from
// Compute means the feature is unavailable for this frame; that is never an
// error, the frame simply omits the field.
type Chroma interface {
	Compute(spectrum []float64) []float64
}

// NoChroma is the absent implementation, injected when chroma analysis is
// disabled or unavailable.
type NoChroma struct{}

func (NoChroma) Compute([]float64) []float64 { return nil }

// SpectralChroma folds magnitude spectrum bins into 12 pitch classes. The
// pitch class of each bin is fixed by the bin's center frequency, so the
// mapping is precomputed at construction.
type SpectralChroma struct {
	pitchClass []int // -1 for bins outside the mappable range.
	out        [12]float64
}

// NewSpectralChroma builds the bin-to-pitch-class mapping for the given FFT
// bin center frequencies.
func NewSpectralChroma(freqs []float64) *SpectralChroma {
	pc := make([]int, len(freqs))
	for i, f := range freqs {
		if f < 20 {
			pc[i] = -1
			continue
		}
		midi := 69.0 + 12.0*math.Log2(f/440.0)
		pc[i] = ((int(math.Round(midi)) % 12) + 12) % 12
	}
	return &SpectralChroma{pitchClass: pc}
}

// Compute accumulates spectrum magnitudes per pitch class and normalizes by
// the strongest class. Returns a fresh 12-element vector.
func (c *SpectralChroma) Compute(spectrum []float64) []float64 {
	for i := range c.out {
		c.out[i] = 0
	}
	n := len(spectrum)
	if n > len(c.pitchClass) {
		n = len(c.pitchClass)
	}
	for i := 0; i < n; i++ {
		if pc := c.pitchClass[i]; pc >= 0 {
			c.out[pc] += spectrum[i]
		}
	}

	max := 0.0
	for _, v := range c.out {
		if v > max {
			max = v
		}
	}
	chroma := make([]float64, 12)
	for i, v := range c.out {
		if max > 0 {
			chroma[i] = v / max
		}
	}
	return chroma
}
