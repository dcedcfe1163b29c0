// SPDX-License-Identifier: MIT
package capture

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gordonklaus/portaudio"

	applog "spectra/internal/log"
)

// ErrDeviceUnavailable is returned by Start when no suitable input device
// exists and fallback is not permitted.
var ErrDeviceUnavailable = errors.New("no suitable audio input device available")

// Source captures audio from an input device into a bounded block queue.
// The PortAudio callback is the producer; PollBlock is the single consumer.
type Source struct {
	cfg   Config
	queue *blockQueue

	mu      sync.Mutex
	stream  *portaudio.Stream
	device  *portaudio.DeviceInfo
	started bool

	inputLatency atomic.Int64 // Last reported input latency, nanoseconds.
	lastOverflow atomic.Int64 // Unix nanoseconds of last hardware overflow.

	// buffers is the callback's sample buffer ring, sized queue capacity + 2
	// so a slot is rewritten only after its block has been dequeued (or
	// dropped) and the consumer has moved past it. Touched only from the
	// callback goroutine.
	buffers  [][]float64
	bufIndex int
}

// NewSource creates a capture source for the given configuration. No device
// is touched until Start.
func NewSource(cfg Config) *Source {
	if cfg.QueueBlocks < 1 {
		cfg.QueueBlocks = 1
	}
	buffers := make([][]float64, cfg.QueueBlocks+2)
	if n := cfg.BlockSize * cfg.Channels; n > 0 {
		for i := range buffers {
			buffers[i] = make([]float64, n)
		}
	}
	return &Source{
		cfg:     cfg,
		queue:   newBlockQueue(cfg.QueueBlocks),
		buffers: buffers,
	}
}

// Start resolves the input device and opens the capture stream. Returns an
// error wrapping ErrDeviceUnavailable when no device can be acquired.
// Calling Start on a started source is a no-op.
func (s *Source) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}

	device, err := s.resolveDevice()
	if err != nil {
		return err
	}
	s.device = device

	latency := device.DefaultHighInputLatency
	if s.cfg.LowLatency {
		latency = device.DefaultLowInputLatency
	}

	params := portaudio.StreamParameters{
		Input: portaudio.StreamDeviceParameters{
			Device:   device,
			Channels: s.cfg.Channels,
			Latency:  latency,
		},
		FramesPerBuffer: s.cfg.BlockSize,
		SampleRate:      s.cfg.SampleRate,
	}

	stream, err := portaudio.OpenStream(params, s.onBlock)
	if err != nil {
		return fmt.Errorf("failed to open input stream on %q: %w", device.Name, err)
	}
	if err := stream.Start(); err != nil {
		stream.Close()
		return fmt.Errorf("failed to start input stream on %q: %w", device.Name, err)
	}
	s.stream = stream
	s.started = true

	if info := stream.Info(); info != nil {
		s.inputLatency.Store(int64(info.InputLatency))
	}
	applog.Infof("capture: started on %q (%.0f Hz, %d ch, %d frames/block)",
		device.Name, s.cfg.SampleRate, s.cfg.Channels, s.cfg.BlockSize)
	return nil
}

// resolveDevice picks the input device per the configured selection policy:
// explicit index, then loopback discovery, then the default input if
// microphone fallback is permitted.
func (s *Source) resolveDevice() (*portaudio.DeviceInfo, error) {
	if s.cfg.Device >= 0 {
		return InputDevice(s.cfg.Device)
	}
	if s.cfg.Loopback {
		if device := SuggestLoopbackDevice(); device != nil {
			applog.Infof("capture: using loopback device %q", device.Name)
			return device, nil
		}
		if !s.cfg.MicFallback {
			return nil, fmt.Errorf("%w: loopback unavailable and microphone fallback disabled", ErrDeviceUnavailable)
		}
		applog.Warnf("capture: loopback device unavailable; falling back to default input")
	}
	return InputDevice(-1)
}

// onBlock is the real-time audio callback. It must never block or allocate:
// the block is timestamped, copied into a recycled buffer and handed to the
// queue; a full queue drops the block.
func (s *Source) onBlock(in []float32, _ portaudio.StreamCallbackTimeInfo, flags portaudio.StreamCallbackFlags) {
	if flags&portaudio.InputOverflow != 0 {
		s.lastOverflow.Store(time.Now().UnixNano())
	}

	samples := s.nextBuffer(len(in))
	for i, v := range in {
		samples[i] = float64(v)
	}
	block := Block{
		Samples:   samples,
		Channels:  s.cfg.Channels,
		Timestamp: time.Now(),
	}
	if !s.queue.push(block) {
		applog.Warnf("capture: queue full, dropping block (%d dropped total)", s.queue.droppedCount())
	}
}

// nextBuffer returns the next ring slot, grown if the device delivered more
// samples than configured. Called only from the callback.
func (s *Source) nextBuffer(n int) []float64 {
	i := s.bufIndex
	s.bufIndex = (s.bufIndex + 1) % len(s.buffers)
	if cap(s.buffers[i]) < n {
		s.buffers[i] = make([]float64, n)
	}
	return s.buffers[i][:n]
}

// PollBlock returns the next captured block, waiting up to timeout. The
// second return value is false when no block arrived; this is not an error,
// the caller decides whether to retry.
func (s *Source) PollBlock(timeout time.Duration) (Block, bool) {
	return s.queue.poll(timeout)
}

// Stop shuts down the capture stream and discards queued blocks. Idempotent
// and safe to call on a source that was never started.
func (s *Source) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return nil
	}
	s.started = false

	var firstErr error
	if s.stream != nil {
		if err := s.stream.Stop(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("failed to stop input stream: %w", err)
		}
		if err := s.stream.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("failed to close input stream: %w", err)
		}
		s.stream = nil
	}
	s.queue.drain()
	s.inputLatency.Store(0)
	applog.Infof("capture: stopped")
	return firstErr
}

// InputLatency returns the input latency most recently reported by the
// device, or zero when not running.
func (s *Source) InputLatency() time.Duration {
	return time.Duration(s.inputLatency.Load())
}

// LastOverflow returns the timestamp of the last hardware input overflow, or
// the zero time when none occurred.
func (s *Source) LastOverflow() time.Time {
	ns := s.lastOverflow.Load()
	if ns == 0 {
		return time.Time{}
	}
	return time.Unix(0, ns)
}

// Dropped returns the number of blocks dropped due to a full queue.
func (s *Source) Dropped() uint64 {
	return s.queue.droppedCount()
}

// LastDrop returns the timestamp of the most recent queue drop, or the zero
// time when none occurred.
func (s *Source) LastDrop() time.Time {
	return s.queue.lastDropTime()
}
