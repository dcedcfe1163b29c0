// SPDX-License-Identifier: MIT
package dsp

import "math"

// EnvelopeFollower tracks per-band amplitude envelopes with an asymmetric
// one-pole filter: a fast attack coefficient when the input rises above the
// envelope and a slower release coefficient otherwise. State persists across
// hops. Not safe for concurrent use.
type EnvelopeFollower struct {
	attackCoeff  float64
	releaseCoeff float64
	values       []float64
}

// NewEnvelopeFollower precomputes the filter coefficients from the attack
// and release time constants (seconds) at the given sample rate.
func NewEnvelopeFollower(bands int, attackSeconds, releaseSeconds, sampleRate float64) *EnvelopeFollower {
	return &EnvelopeFollower{
		attackCoeff:  math.Exp(-1.0 / (attackSeconds * sampleRate)),
		releaseCoeff: math.Exp(-1.0 / (releaseSeconds * sampleRate)),
		values:       make([]float64, bands),
	}
}

// Update feeds one hop of band energies through the follower and returns a
// defensive copy of the envelope state, so consumers cannot mutate it.
func (f *EnvelopeFollower) Update(energies []float64) []float64 {
	for i, v := range energies {
		if i >= len(f.values) {
			break
		}
		coeff := f.releaseCoeff
		if v > f.values[i] {
			coeff = f.attackCoeff
		}
		f.values[i] = coeff*f.values[i] + (1-coeff)*v
	}

	out := make([]float64, len(f.values))
	copy(out, f.values)
	return out
}
