// SPDX-License-Identifier: MIT
package dsp

import (
	"fmt"
	"math"
	"math/cmplx"
	"sort"
	"time"

	"gonum.org/v1/gonum/dsp/fourier"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"spectra/pkg/bitint"
)

// epsilon guards divisions so silence yields well-defined features instead
// of NaN.
const epsilon = 1e-6

// rolloffFraction is the share of cumulative spectral energy below the
// reported rolloff frequency.
const rolloffFraction = 0.85

// onsetWindow is the number of trailing total-energy samples averaged when
// computing onset strength.
const onsetWindow = 8

// minOnsetHistory is the number of prior energy samples required before
// onset strength is meaningful; the value is 0 until then.
const minOnsetHistory = 4

// Config holds analyzer settings. Immutable after construction; NewAnalyzer
// derives the per-instance tables (window, bin frequencies, band edges).
type Config struct {
	SampleRate         float64
	FFTSize            int
	HopSize            int
	Bands              int
	MinFrequency       float64
	MaxFrequency       float64
	OnsetSensitivity   float64
	BeatHistorySeconds float64
	EnvelopeAttack     float64
	EnvelopeRelease    float64
	SmoothingFactor    float64
	Chroma             bool
}

// bandRange is the half-open FFT bin range [start, end) of one band.
type bandRange struct {
	start, end int
}

// workspace holds pre-allocated buffers reused across hops.
type workspace struct {
	mono     []float64    // Down-mixed, length-normalized samples.
	windowed []float64    // Windowed input handed to the FFT.
	coeffs   []complex128 // FFT complex output.
	mag      []float64    // Raw magnitude spectrum.
	smoothed []float64    // Exponentially smoothed spectrum (persistent state).
	cumsum   []float64    // Cumulative spectrum for rolloff search.
	bands    []float64    // Per-band energies for the current hop.
	onset    []float64    // Scratch for the trailing onset-energy window.
}

// Analyzer converts one audio block per hop into a Frame. Apart from its
// smoothing, onset, tempo and envelope state it is a deterministic
// side-effect-free transform. Not safe for concurrent use.
type Analyzer struct {
	cfg    Config
	fftObj *fourier.FFT

	window     []float64
	freqs      []float64 // Bin center frequencies, length FFTSize/2+1.
	bandRanges []bandRange

	ws            workspace
	energyHistory *ring
	tempo         *TempoEstimator
	envelopes     *EnvelopeFollower
	chroma        Chroma
}

// NewAnalyzer creates an analyzer and derives its fixed tables. The FFT size
// must be a power of 2 and the frequency range must be ordered and positive.
func NewAnalyzer(cfg Config) (*Analyzer, error) {
	if !bitint.IsPowerOfTwo(cfg.FFTSize) {
		return nil, fmt.Errorf("fft size must be a power of 2, got %d", cfg.FFTSize)
	}
	if cfg.Bands < 1 {
		return nil, fmt.Errorf("band count must be >= 1, got %d", cfg.Bands)
	}
	if cfg.MinFrequency <= 0 || cfg.MaxFrequency <= cfg.MinFrequency {
		return nil, fmt.Errorf("invalid frequency range [%g, %g]", cfg.MinFrequency, cfg.MaxFrequency)
	}
	if cfg.HopSize < 1 {
		return nil, fmt.Errorf("hop size must be >= 1, got %d", cfg.HopSize)
	}

	fftObj := fourier.NewFFT(cfg.FFTSize)
	bins := cfg.FFTSize/2 + 1

	window := make([]float64, cfg.FFTSize)
	for i := range window {
		window[i] = 0.5 * (1 - math.Cos(2*math.Pi*float64(i)/float64(cfg.FFTSize-1)))
	}

	freqs := make([]float64, bins)
	for i := range freqs {
		freqs[i] = fftObj.Freq(i) * cfg.SampleRate
	}

	a := &Analyzer{
		cfg:        cfg,
		fftObj:     fftObj,
		window:     window,
		freqs:      freqs,
		bandRanges: computeBandRanges(freqs, cfg.Bands, cfg.MinFrequency, cfg.MaxFrequency),
		ws: workspace{
			mono:     make([]float64, cfg.FFTSize),
			windowed: make([]float64, cfg.FFTSize),
			coeffs:   make([]complex128, bins),
			mag:      make([]float64, bins),
			smoothed: make([]float64, bins),
			cumsum:   make([]float64, bins),
			bands:    make([]float64, cfg.Bands),
			onset:    make([]float64, 0, onsetWindow),
		},
		energyHistory: newRing(historyFrames(cfg)),
		tempo:         NewTempoEstimator(cfg.SampleRate, cfg.HopSize, cfg.BeatHistorySeconds),
		envelopes:     NewEnvelopeFollower(cfg.Bands, cfg.EnvelopeAttack, cfg.EnvelopeRelease, cfg.SampleRate),
		chroma:        NoChroma{},
	}
	if cfg.Chroma {
		a.chroma = NewSpectralChroma(freqs)
	}
	return a, nil
}

func historyFrames(cfg Config) int {
	frames := int(cfg.BeatHistorySeconds * cfg.SampleRate / float64(cfg.HopSize))
	if frames < 1 {
		frames = 1
	}
	return frames
}

// computeBandRanges partitions the FFT bins into bands whose edges are
// spaced geometrically between minHz and maxHz. A band covering no bins gets
// an empty range and reports zero energy.
func computeBandRanges(freqs []float64, bands int, minHz, maxHz float64) []bandRange {
	ratio := maxHz / minHz
	ranges := make([]bandRange, bands)
	for i := 0; i < bands; i++ {
		low := minHz * math.Pow(ratio, float64(i)/float64(bands))
		high := minHz * math.Pow(ratio, float64(i+1)/float64(bands))
		start := sort.SearchFloat64s(freqs, low)
		end := sort.SearchFloat64s(freqs, high)
		ranges[i] = bandRange{start: start, end: end}
	}
	return ranges
}

// SetChroma injects a chroma capability, replacing the default chosen at
// construction. Pass NoChroma{} to disable.
func (a *Analyzer) SetChroma(c Chroma) {
	if c == nil {
		c = NoChroma{}
	}
	a.chroma = c
}

// BinFrequency returns the center frequency in Hz for an FFT bin index.
func (a *Analyzer) BinFrequency(i int) float64 {
	if i < 0 || i >= len(a.freqs) {
		return 0
	}
	return a.freqs[i]
}

// Process analyzes one block of samples (interleaved when channels > 1) and
// returns the frame for this hop, stamped with timestamp. The input is
// down-mixed, then truncated or zero-padded to the FFT size.
func (a *Analyzer) Process(samples []float64, channels int, timestamp time.Time) *Frame {
	a.downmix(samples, channels)

	rms, peak := a.levels()

	for i := range a.ws.mono {
		a.ws.windowed[i] = a.ws.mono[i] * a.window[i]
	}
	a.fftObj.Coefficients(a.ws.coeffs, a.ws.windowed)
	for i, c := range a.ws.coeffs {
		a.ws.mag[i] = cmplx.Abs(c)
	}

	alpha := a.cfg.SmoothingFactor
	for i := range a.ws.smoothed {
		a.ws.smoothed[i] = alpha*a.ws.smoothed[i] + (1-alpha)*a.ws.mag[i]
	}

	a.computeBands()

	centroid := floats.Dot(a.freqs, a.ws.smoothed) / (floats.Sum(a.ws.smoothed) + epsilon)
	rolloff := a.computeRolloff()

	onsetStrength := a.onsetStrength()
	tempo, beatPhase, beat := a.tempo.Update(onsetStrength, timestamp)
	onset := onsetStrength > a.cfg.OnsetSensitivity

	envelopes := a.envelopes.Update(a.ws.bands)

	spectrum := make([]float64, len(a.ws.smoothed))
	copy(spectrum, a.ws.smoothed)
	bandEnergies := make([]float64, len(a.ws.bands))
	copy(bandEnergies, a.ws.bands)

	return &Frame{
		Timestamp:        timestamp,
		Spectrum:         spectrum,
		BandEnergies:     bandEnergies,
		RMS:              rms,
		Peak:             peak,
		SpectralCentroid: centroid,
		SpectralRolloff:  rolloff,
		Tempo:            tempo,
		Beat:             beat,
		Onset:            onset,
		BeatPhase:        beatPhase,
		Envelopes:        envelopes,
		Chroma:           a.chroma.Compute(a.ws.smoothed),
	}
}

// downmix averages interleaved channels into the mono workspace, truncating
// or zero-padding to the FFT size.
func (a *Analyzer) downmix(samples []float64, channels int) {
	if channels < 1 {
		channels = 1
	}
	frames := len(samples) / channels
	n := frames
	if n > a.cfg.FFTSize {
		n = a.cfg.FFTSize
	}
	if channels == 1 {
		copy(a.ws.mono[:n], samples[:n])
	} else {
		inv := 1.0 / float64(channels)
		for i := 0; i < n; i++ {
			sum := 0.0
			base := i * channels
			for ch := 0; ch < channels; ch++ {
				sum += samples[base+ch]
			}
			a.ws.mono[i] = sum * inv
		}
	}
	for i := n; i < a.cfg.FFTSize; i++ {
		a.ws.mono[i] = 0
	}
}

// levels computes RMS and peak over the time-domain block, before windowing.
func (a *Analyzer) levels() (rms, peak float64) {
	var sumSquare float64
	for _, s := range a.ws.mono {
		sumSquare += s * s
		if abs := math.Abs(s); abs > peak {
			peak = abs
		}
	}
	rms = math.Sqrt(sumSquare / float64(len(a.ws.mono)))
	return rms, peak
}

// computeBands fills the band workspace with the mean smoothed magnitude per
// band, then normalizes the vector by its own maximum so the loudest band in
// this frame is 1.0.
func (a *Analyzer) computeBands() {
	maxEnergy := 0.0
	for i, br := range a.bandRanges {
		energy := 0.0
		if br.end > br.start {
			energy = stat.Mean(a.ws.smoothed[br.start:br.end], nil)
		}
		a.ws.bands[i] = energy
		if energy > maxEnergy {
			maxEnergy = energy
		}
	}
	if maxEnergy > 0 {
		floats.Scale(1/maxEnergy, a.ws.bands)
	}
}

// computeRolloff returns the frequency below which rolloffFraction of the
// cumulative spectral energy lies.
func (a *Analyzer) computeRolloff() float64 {
	cum := 0.0
	for i, v := range a.ws.smoothed {
		cum += v
		a.ws.cumsum[i] = cum
	}
	target := cum * rolloffFraction
	index := sort.SearchFloat64s(a.ws.cumsum, target)
	if index >= len(a.freqs) {
		index = len(a.freqs) - 1
	}
	return a.freqs[index]
}

// onsetStrength reports the relative excess of the current total band energy
// over the trailing average. Returns 0 until enough history has accumulated.
func (a *Analyzer) onsetStrength() float64 {
	energy := floats.Sum(a.ws.bands)
	a.energyHistory.push(energy)
	if a.energyHistory.len() < minOnsetHistory {
		return 0
	}
	a.ws.onset = a.energyHistory.last(a.ws.onset[:0], onsetWindow)
	avg := stat.Mean(a.ws.onset, nil)
	return (energy - avg) / (avg + epsilon)
}
