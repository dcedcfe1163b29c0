// SPDX-License-Identifier: MIT
package pipeline

import (
	"fmt"
	"os"
	"sync"
	"sync/atomic"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"spectra/internal/capture"
	applog "spectra/internal/log"
)

// recorder mirrors polled blocks to a WAV file. Write errors are logged and
// non-fatal; recording never disturbs the analysis path.
type recorder struct {
	active atomic.Int32 // 1 while recording.

	mu         sync.Mutex
	outputFile *os.File
	encoder    *wav.Encoder
	sampleBuf  *audio.IntBuffer
	scale      float64
}

// StartRecording begins mirroring captured blocks to filename.
func (p *Pipeline) StartRecording(filename string) error {
	return p.rec.start(filename, p.cfg)
}

// StopRecording finalizes the WAV file. Safe to call when not recording.
func (p *Pipeline) StopRecording() error {
	return p.rec.stop()
}

// Recording reports whether a recording is active.
func (p *Pipeline) Recording() bool {
	return p.rec.active.Load() == 1
}

func (r *recorder) start(filename string, cfg Config) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.active.Load() == 1 {
		return fmt.Errorf("already recording")
	}

	file, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("failed to create recording file: %w", err)
	}

	r.outputFile = file
	r.encoder = wav.NewEncoder(file, int(cfg.SampleRate), cfg.RecordBitDepth, cfg.Channels, 1)
	r.sampleBuf = &audio.IntBuffer{
		Format: &audio.Format{
			NumChannels: cfg.Channels,
			SampleRate:  int(cfg.SampleRate),
		},
		SourceBitDepth: cfg.RecordBitDepth,
		Data:           make([]int, cfg.BlockSize*cfg.Channels),
	}
	r.scale = float64(int(1)<<(cfg.RecordBitDepth-1)) - 1

	r.active.Store(1)
	applog.Infof("pipeline: recording to %s (%d-bit)", filename, cfg.RecordBitDepth)
	return nil
}

func (r *recorder) stop() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.active.Load() == 0 {
		return nil
	}
	r.active.Store(0)

	var firstErr error
	if r.encoder != nil {
		if err := r.encoder.Close(); err != nil {
			firstErr = fmt.Errorf("failed to finalize WAV encoder: %w", err)
		}
		r.encoder = nil
	}
	if r.outputFile != nil {
		if err := r.outputFile.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("failed to close recording file: %w", err)
		}
		r.outputFile = nil
	}
	return firstErr
}

// writeBlock converts the block to integer PCM and appends it to the WAV
// file. A no-op when not recording.
func (r *recorder) writeBlock(block capture.Block) {
	if r.active.Load() == 0 {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.encoder == nil {
		return
	}

	n := len(block.Samples)
	if n > cap(r.sampleBuf.Data) {
		n = cap(r.sampleBuf.Data)
	}
	r.sampleBuf.Data = r.sampleBuf.Data[:n]
	for i := 0; i < n; i++ {
		s := block.Samples[i]
		if s > 1 {
			s = 1
		} else if s < -1 {
			s = -1
		}
		r.sampleBuf.Data[i] = int(s * r.scale)
	}

	if err := r.encoder.Write(r.sampleBuf); err != nil {
		applog.Errorf("pipeline: error writing to WAV file: %v", err)
	}
}
