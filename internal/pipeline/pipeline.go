// SPDX-License-Identifier: MIT
/*
Package pipeline composes the capture source and the analyzer into a
continuous sequence of analysis frames. The pipeline is the single logical
consumer of the capture queue: Run must not be invoked from more than one
goroutine, and frames are emitted strictly in capture order.
*/
package pipeline

import (
	"context"
	"sync/atomic"
	"time"

	"spectra/internal/capture"
	"spectra/internal/dsp"
	applog "spectra/internal/log"
	"spectra/internal/transport"
)

// pollTimeout bounds each wait for a capture block so Run stays responsive
// to cancellation without busy-spinning.
const pollTimeout = 50 * time.Millisecond

// BlockSource is the capture-side contract the pipeline consumes. Satisfied
// by *capture.Source.
type BlockSource interface {
	Start() error
	Stop() error
	PollBlock(timeout time.Duration) (capture.Block, bool)
	InputLatency() time.Duration
}

// Config holds the stream parameters the pipeline needs beyond what the
// source and analyzer already own.
type Config struct {
	SampleRate     float64
	Channels       int
	BlockSize      int
	RecordBitDepth int // Bit depth for the WAV tap, 16 when zero.
}

// Pipeline drives poll → stamp → analyze → emit at the hop cadence.
type Pipeline struct {
	cfg        Config
	source     BlockSource
	analyzer   *dsp.Analyzer
	transports []transport.Transport

	latencyOffset atomic.Int64 // Nanoseconds subtracted from frame timestamps.

	rec recorder
}

// New creates a pipeline over the given source and analyzer. Transports
// receive every emitted frame; delivery errors are logged, never fatal.
func New(cfg Config, source BlockSource, analyzer *dsp.Analyzer, transports ...transport.Transport) *Pipeline {
	if cfg.RecordBitDepth == 0 {
		cfg.RecordBitDepth = 16
	}
	return &Pipeline{
		cfg:        cfg,
		source:     source,
		analyzer:   analyzer,
		transports: transports,
	}
}

// Start opens the capture source.
func (p *Pipeline) Start() error {
	applog.Infof("pipeline: starting (%.0f Hz, %d ch, block %d)",
		p.cfg.SampleRate, p.cfg.Channels, p.cfg.BlockSize)
	return p.source.Start()
}

// Stop stops the capture source and finalizes any active recording.
func (p *Pipeline) Stop() error {
	applog.Infof("pipeline: stopping")
	if err := p.StopRecording(); err != nil {
		applog.Errorf("pipeline: error finalizing recording: %v", err)
	}
	return p.source.Stop()
}

// Close stops the pipeline and closes all transports.
func (p *Pipeline) Close() error {
	err := p.Stop()
	for _, t := range p.transports {
		if cerr := t.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}
	return err
}

// Run consumes blocks until ctx is cancelled, emitting one frame per block
// to the transports and the handler. A missed poll is "no data yet", not an
// error. Run is not restartable after it returns.
func (p *Pipeline) Run(ctx context.Context, handler func(*dsp.Frame)) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		block, ok := p.source.PollBlock(pollTimeout)
		if !ok {
			continue
		}

		timestamp := time.Now().Add(-time.Duration(p.latencyOffset.Load()))
		p.rec.writeBlock(block)
		frame := p.analyzer.Process(block.Samples, block.Channels, timestamp)

		for _, t := range p.transports {
			if err := t.Send(frame); err != nil {
				applog.Debugf("pipeline: transport send failed: %v", err)
			}
		}
		if handler != nil {
			handler(frame)
		}
	}
}

// CalibrateLatency applies a measured latency offset (milliseconds) to all
// subsequently emitted frames. Already-emitted frames are unaffected.
func (p *Pipeline) CalibrateLatency(offsetMS float64) {
	p.latencyOffset.Store(int64(offsetMS * float64(time.Millisecond)))
	applog.Infof("pipeline: applied latency offset: %.2f ms", offsetMS)
}

// LatencyOffset returns the currently applied latency offset.
func (p *Pipeline) LatencyOffset() time.Duration {
	return time.Duration(p.latencyOffset.Load())
}

// LatencyBudget approximates the capture-to-analysis latency in
// milliseconds: the device-reported input latency plus one block duration.
func (p *Pipeline) LatencyBudget() float64 {
	blockSeconds := float64(p.cfg.BlockSize) / p.cfg.SampleRate
	return (p.source.InputLatency().Seconds() + blockSeconds) * 1000.0
}
