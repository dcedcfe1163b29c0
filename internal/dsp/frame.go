// SPDX-License-Identifier: MIT
/*
Package dsp computes perceptual audio features from captured blocks:
- Windowed real-FFT magnitude spectrum with one-pole smoothing
- Geometrically spaced band energies, RMS, peak, centroid, rolloff
- Adaptive beat/tempo tracking with a refractory gate
- Per-band attack/release envelope following
- Optional chroma output via an injected capability

One Frame is produced per hop. The per-hop transform is total: any finite
input, including silence, yields a well-formed frame.
*/
package dsp

import "time"

// Frame is the feature bundle produced for one analysis hop. Frames are
// immutable once produced; ownership transfers to the consumer.
//
// BandEnergies and Envelopes are normalized per frame against the frame's
// own loudest band, so they are relative, not comparable across frames on an
// absolute scale. RMS and Peak are absolute.
type Frame struct {
	Timestamp        time.Time `json:"timestamp"`
	Spectrum         []float64 `json:"spectrum"`      // Smoothed magnitudes, length FFTSize/2+1.
	BandEnergies     []float64 `json:"band_energies"` // Length = configured band count.
	RMS              float64   `json:"rms"`
	Peak             float64   `json:"peak"`
	SpectralCentroid float64   `json:"spectral_centroid"` // Hz
	SpectralRolloff  float64   `json:"spectral_rolloff"`  // Hz
	Tempo            float64   `json:"tempo"`             // BPM, seeded at 120 before the first beat.
	Beat             bool      `json:"beat"`
	Onset            bool      `json:"onset"`
	BeatPhase        float64   `json:"beat_phase"` // In [0,1).
	Envelopes        []float64 `json:"envelopes"`
	Chroma           []float64 `json:"chroma,omitempty"` // Nil when the capability is absent.
}
