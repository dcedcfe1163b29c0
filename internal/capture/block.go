// SPDX-License-Identifier: MIT
/*
Package capture provides resilient real-time audio capture on top of
PortAudio:
- Non-blocking producer: the audio callback never waits on the consumer
- Bounded block queue with drop-on-full overflow accounting
- Loopback device discovery with microphone fallback

The callback context does the minimum required work per delivered block:
timestamp, copy, enqueue. Everything CPU-bound happens on the consumer side.
*/
package capture

import "time"

// Block is one fixed-size chunk of captured audio. Samples are interleaved
// when Channels > 1. Samples point into the source's recycled buffer ring:
// they stay valid for at least queue-capacity further blocks, so the consumer
// must copy anything it keeps beyond the current poll.
type Block struct {
	Samples   []float64
	Channels  int
	Timestamp time.Time
}

// Frames returns the number of sample frames in the block.
func (b Block) Frames() int {
	if b.Channels <= 0 {
		return len(b.Samples)
	}
	return len(b.Samples) / b.Channels
}

// Config holds the capture stream settings. Immutable after construction.
type Config struct {
	SampleRate  float64
	Channels    int
	BlockSize   int // Frames per delivered block.
	Device      int // Device index, -1 for default/loopback discovery.
	Loopback    bool
	MicFallback bool
	QueueBlocks int // Bounded queue capacity.
	LowLatency  bool
}
