// SPDX-License-Identifier: MIT
package dsp

import (
	"sort"
	"time"
)

const (
	// seedTempo is reported before the first beat has been observed.
	seedTempo = 120.0

	// refractoryPeriod is the hard floor between fired beats, regardless of
	// onset strength. Prevents double-triggering on a single transient.
	refractoryPeriod = 100 * time.Millisecond

	// defaultBeatThreshold is the onset strength required to fire a beat.
	// Distinct from the onset sensitivity, which only gates the onset flag.
	defaultBeatThreshold = 0.3
)

// TempoEstimator is an adaptive tempo/beat-phase state machine, advanced one
// transition per hop. Not safe for concurrent use; each pipeline owns one.
type TempoEstimator struct {
	sampleRate float64
	hopSize    int
	threshold  float64

	history  *ring // Recent instantaneous BPM values.
	scratch  []float64
	lastBeat time.Time
	tempo    float64
	phase    float64 // Seconds into the current beat period.
}

// NewTempoEstimator creates an estimator whose inter-beat history spans
// historySeconds at the given hop cadence.
func NewTempoEstimator(sampleRate float64, hopSize int, historySeconds float64) *TempoEstimator {
	historyFrames := int(historySeconds * sampleRate / float64(hopSize))
	if historyFrames < 1 {
		historyFrames = 1
	}
	return &TempoEstimator{
		sampleRate: sampleRate,
		hopSize:    hopSize,
		threshold:  defaultBeatThreshold,
		history:    newRing(historyFrames),
		scratch:    make([]float64, 0, historyFrames),
		tempo:      seedTempo,
	}
}

// Update advances the state machine with a new onset strength and returns
// the current tempo (BPM), the beat phase normalized to [0,1), and whether a
// beat fired this hop.
func (e *TempoEstimator) Update(onsetStrength float64, timestamp time.Time) (tempo, phaseNorm float64, beat bool) {
	fire := onsetStrength >= e.threshold &&
		(e.lastBeat.IsZero() || timestamp.Sub(e.lastBeat) >= refractoryPeriod)

	if fire {
		beat = true
		if !e.lastBeat.IsZero() {
			interval := timestamp.Sub(e.lastBeat).Seconds()
			if interval < 1e-6 {
				interval = 1e-6
			}
			bpm := 60.0 / interval
			e.history.push(bpm)
			if e.history.len() > 4 {
				e.tempo = 0.8*e.tempo + 0.2*e.medianBPM()
			} else {
				e.tempo = bpm
			}
		}
		e.lastBeat = timestamp
		e.phase = 0
	} else if e.tempo > 0 {
		period := 60.0 / e.tempo
		e.phase += float64(e.hopSize) / e.sampleRate
		for e.phase >= period {
			e.phase -= period
		}
	}

	phaseNorm = 0
	if e.tempo > 0 {
		phaseNorm = e.phase * e.tempo / 60.0
	}
	return e.tempo, phaseNorm, beat
}

// Tempo returns the current tempo estimate in BPM.
func (e *TempoEstimator) Tempo() float64 {
	return e.tempo
}

func (e *TempoEstimator) medianBPM() float64 {
	e.scratch = e.history.values(e.scratch[:0])
	sort.Float64s(e.scratch)
	n := len(e.scratch)
	if n == 0 {
		return e.tempo
	}
	if n%2 == 1 {
		return e.scratch[n/2]
	}
	return (e.scratch[n/2-1] + e.scratch[n/2]) / 2
}
