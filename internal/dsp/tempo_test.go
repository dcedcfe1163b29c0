// SPDX-License-Identifier: MIT
package dsp

import (
	"math"
	"testing"
	"time"
)

func TestSeedTempoBeforeFirstBeat(t *testing.T) {
	e := NewTempoEstimator(48000, 512, 8)
	if e.Tempo() != 120 {
		t.Errorf("seed tempo = %v, want 120", e.Tempo())
	}

	tempo, phase, beat := e.Update(0, time.Now())
	if beat {
		t.Error("no beat expected below threshold")
	}
	if tempo != 120 {
		t.Errorf("tempo = %v, want 120 before first beat", tempo)
	}
	if phase < 0 || phase >= 1 {
		t.Errorf("phase %v outside [0,1)", phase)
	}
}

func TestRefractoryInvariant(t *testing.T) {
	// Saturated onset strength on every hop: beats must still never fire
	// closer than 100ms apart.
	e := NewTempoEstimator(48000, 512, 8)
	start := time.Now()
	hop := 512 * time.Second / 48000 // ~10.7ms

	var beatTimes []time.Time
	for i := 0; i < 200; i++ {
		ts := start.Add(time.Duration(i) * hop)
		if _, _, beat := e.Update(100.0, ts); beat {
			beatTimes = append(beatTimes, ts)
		}
	}

	if len(beatTimes) < 2 {
		t.Fatalf("expected multiple beats, got %d", len(beatTimes))
	}
	for i := 1; i < len(beatTimes); i++ {
		if gap := beatTimes[i].Sub(beatTimes[i-1]); gap < 100*time.Millisecond {
			t.Errorf("beats %d and %d fired %s apart, refractory is 100ms", i-1, i, gap)
		}
	}
}

func TestTempoTracksBeatInterval(t *testing.T) {
	e := NewTempoEstimator(48000, 512, 8)
	start := time.Now()

	// Beats every 400ms = 150 BPM.
	for i := 0; i < 12; i++ {
		ts := start.Add(time.Duration(i) * 400 * time.Millisecond)
		_, _, beat := e.Update(1.0, ts)
		if !beat {
			t.Fatalf("expected beat at interval %d", i)
		}
	}
	if math.Abs(e.Tempo()-150) > 1 {
		t.Errorf("tempo = %v, want ~150", e.Tempo())
	}
	if e.Tempo() <= 0 {
		t.Error("tempo must stay positive once beats observed")
	}
}

func TestTempoMedianResistsOutliers(t *testing.T) {
	e := NewTempoEstimator(48000, 512, 8)
	start := time.Now()

	// Steady 500ms beats with a single 150ms outlier interval in between;
	// the median-based update should stay near 120 BPM.
	ts := start
	for i := 0; i < 10; i++ {
		e.Update(1.0, ts)
		ts = ts.Add(500 * time.Millisecond)
	}
	e.Update(1.0, ts.Add(-350*time.Millisecond)) // 150ms after the last beat

	if math.Abs(e.Tempo()-120) > 60 {
		t.Errorf("tempo = %v, want near 120 despite outlier", e.Tempo())
	}
}

func TestPhaseResetsOnBeatAndAdvances(t *testing.T) {
	e := NewTempoEstimator(48000, 512, 8)
	start := time.Now()

	_, phase, beat := e.Update(1.0, start)
	if !beat {
		t.Fatal("expected first beat")
	}
	if phase != 0 {
		t.Errorf("phase after beat = %v, want 0", phase)
	}

	// Non-beat hops advance the phase by hop/sampleRate of the beat period.
	prev := phase
	for i := 1; i <= 20; i++ {
		_, phase, _ = e.Update(0, start.Add(time.Duration(i)*10*time.Millisecond))
		if phase < 0 || phase >= 1 {
			t.Fatalf("phase %v outside [0,1)", phase)
		}
		if phase < prev && i < 40 {
			// At 120 BPM the period is 500ms; 20 hops of ~10.7ms stay below it.
			t.Fatalf("phase wrapped unexpectedly at hop %d", i)
		}
		prev = phase
	}

	// Expected advance per hop: (512/48000) / (60/120) per hop.
	hopSeconds := 512.0 / 48000.0
	expected := 20 * hopSeconds / 0.5
	if math.Abs(prev-expected) > 1e-9 {
		t.Errorf("phase after 20 hops = %v, want %v", prev, expected)
	}
}

func TestPhaseWrapsModuloPeriod(t *testing.T) {
	e := NewTempoEstimator(48000, 512, 8)
	start := time.Now()
	e.Update(1.0, start) // beat, phase 0, tempo 120 (period 0.5s)

	// 512/48000 = 10.667ms per hop; 47 hops ≈ 0.501s crosses one period.
	var phase float64
	for i := 1; i <= 47; i++ {
		_, phase, _ = e.Update(0, start.Add(time.Duration(i)*10*time.Millisecond))
	}
	if phase < 0 || phase >= 1 {
		t.Errorf("phase %v outside [0,1) after wrap", phase)
	}
	if phase > 0.1 {
		t.Errorf("phase = %v, expected a small value just past the wrap", phase)
	}
}
