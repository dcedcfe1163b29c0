// SPDX-License-Identifier: MIT
package capture

import (
	"testing"
	"time"

	"github.com/gordonklaus/portaudio"
)

func makeBlock(marker float64) Block {
	return Block{
		Samples:   []float64{marker},
		Channels:  1,
		Timestamp: time.Now(),
	}
}

func TestQueueFIFOOrder(t *testing.T) {
	q := newBlockQueue(8)
	for i := 0; i < 5; i++ {
		if !q.push(makeBlock(float64(i))) {
			t.Fatalf("push %d dropped unexpectedly", i)
		}
	}
	for i := 0; i < 5; i++ {
		b, ok := q.poll(time.Millisecond)
		if !ok {
			t.Fatalf("poll %d returned no block", i)
		}
		if b.Samples[0] != float64(i) {
			t.Errorf("out of order: got %v at position %d", b.Samples[0], i)
		}
	}
}

func TestQueueDropsOnFullWithoutBlocking(t *testing.T) {
	const capacity = 4
	q := newBlockQueue(capacity)

	// Push far more than capacity; every call must return immediately.
	done := make(chan struct{})
	go func() {
		for i := 0; i < 100; i++ {
			q.push(makeBlock(float64(i)))
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("producer blocked on full queue")
	}

	if got := q.droppedCount(); got != 100-capacity {
		t.Errorf("dropped = %d, want %d", got, 100-capacity)
	}
	if q.lastDropTime().IsZero() {
		t.Error("expected last drop timestamp to be recorded")
	}

	// Delivered blocks never exceed capacity and are the oldest ones.
	delivered := 0
	for {
		b, ok := q.poll(0)
		if !ok {
			break
		}
		if b.Samples[0] != float64(delivered) {
			t.Errorf("expected oldest-first delivery, got marker %v at %d", b.Samples[0], delivered)
		}
		delivered++
	}
	if delivered != capacity {
		t.Errorf("delivered = %d, want %d", delivered, capacity)
	}
}

func TestQueuePollTimeout(t *testing.T) {
	q := newBlockQueue(2)

	start := time.Now()
	_, ok := q.poll(20 * time.Millisecond)
	if ok {
		t.Error("expected no block from empty queue")
	}
	if elapsed := time.Since(start); elapsed < 15*time.Millisecond {
		t.Errorf("poll returned too early: %s", elapsed)
	}

	// A block arriving during the wait is delivered.
	go func() {
		time.Sleep(5 * time.Millisecond)
		q.push(makeBlock(7))
	}()
	b, ok := q.poll(200 * time.Millisecond)
	if !ok || b.Samples[0] != 7 {
		t.Errorf("expected block 7 during wait, got ok=%v", ok)
	}
}

func TestQueueDrain(t *testing.T) {
	q := newBlockQueue(4)
	for i := 0; i < 4; i++ {
		q.push(makeBlock(float64(i)))
	}
	q.drain()
	if _, ok := q.poll(0); ok {
		t.Error("expected empty queue after drain")
	}
}

func TestSourceStopNeverStarted(t *testing.T) {
	s := NewSource(Config{SampleRate: 48000, Channels: 1, BlockSize: 512, QueueBlocks: 4})
	// Stop without Start must be a safe no-op, repeatedly.
	if err := s.Stop(); err != nil {
		t.Errorf("Stop on never-started source: %v", err)
	}
	if err := s.Stop(); err != nil {
		t.Errorf("second Stop: %v", err)
	}
	if s.Dropped() != 0 {
		t.Errorf("expected zero drops, got %d", s.Dropped())
	}
	if !s.LastOverflow().IsZero() {
		t.Error("expected zero overflow timestamp")
	}
	if s.InputLatency() != 0 {
		t.Error("expected zero latency before start")
	}
}

func TestBlockFrames(t *testing.T) {
	b := Block{Samples: make([]float64, 2048), Channels: 2}
	if got := b.Frames(); got != 1024 {
		t.Errorf("Frames = %d, want 1024", got)
	}
	b = Block{Samples: make([]float64, 512), Channels: 0}
	if got := b.Frames(); got != 512 {
		t.Errorf("Frames with zero channels = %d, want 512", got)
	}
}

func TestQueuePushDoesNotAllocate(t *testing.T) {
	q := newBlockQueue(1)
	block := Block{Samples: make([]float64, 512), Channels: 1}
	q.push(block)

	// Callback-side enqueue: the drop path must stay allocation-free.
	allocs := testing.AllocsPerRun(100, func() {
		q.push(block)
	})
	if allocs != 0 {
		t.Errorf("push allocated %v times per run, want 0", allocs)
	}
}

func TestCallbackRecyclesBuffers(t *testing.T) {
	s := NewSource(Config{SampleRate: 48000, Channels: 1, BlockSize: 4, QueueBlocks: 2})
	in := make([]float32, 4)

	// Cycle well past the ring length; each polled block must carry the
	// samples of its own callback invocation.
	for round := 0; round < 12; round++ {
		for i := range in {
			in[i] = float32(round)
		}
		s.onBlock(in, portaudio.StreamCallbackTimeInfo{}, 0)
		block, ok := s.PollBlock(0)
		if !ok {
			t.Fatalf("round %d: no block delivered", round)
		}
		if block.Samples[0] != float64(round) {
			t.Fatalf("round %d: got samples from round %v", round, block.Samples[0])
		}
	}
	if s.Dropped() != 0 {
		t.Errorf("expected zero drops, got %d", s.Dropped())
	}
}

func TestCallbackDoesNotAllocate(t *testing.T) {
	s := NewSource(Config{SampleRate: 48000, Channels: 2, BlockSize: 32, QueueBlocks: 4})
	in := make([]float32, 64)

	allocs := testing.AllocsPerRun(100, func() {
		s.onBlock(in, portaudio.StreamCallbackTimeInfo{}, 0)
		s.queue.poll(0)
	})
	if allocs != 0 {
		t.Errorf("callback allocated %v times per run, want 0", allocs)
	}
}
