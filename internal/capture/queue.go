// SPDX-License-Identifier: MIT
package capture

import (
	"sync/atomic"
	"time"
)

// blockQueue is the single-producer/single-consumer bounded queue between
// the audio callback and the analysis consumer. Enqueue never blocks: when
// the queue is full the block is dropped and accounted for. Dequeue blocks
// up to a timeout.
type blockQueue struct {
	ch       chan Block
	dropped  atomic.Uint64
	lastDrop atomic.Int64 // Unix nanoseconds of the most recent drop.
}

func newBlockQueue(capacity int) *blockQueue {
	if capacity < 1 {
		capacity = 1
	}
	return &blockQueue{ch: make(chan Block, capacity)}
}

// push enqueues without blocking. Returns false if the block was dropped.
func (q *blockQueue) push(b Block) bool {
	select {
	case q.ch <- b:
		return true
	default:
		q.dropped.Add(1)
		q.lastDrop.Store(time.Now().UnixNano())
		return false
	}
}

// poll dequeues the next block, waiting up to timeout. The second return
// value is false when no block arrived in time.
func (q *blockQueue) poll(timeout time.Duration) (Block, bool) {
	select {
	case b := <-q.ch:
		return b, true
	default:
	}
	if timeout <= 0 {
		return Block{}, false
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case b := <-q.ch:
		return b, true
	case <-timer.C:
		return Block{}, false
	}
}

// drain discards any queued blocks. Used on shutdown.
func (q *blockQueue) drain() {
	for {
		select {
		case <-q.ch:
		default:
			return
		}
	}
}

func (q *blockQueue) droppedCount() uint64 {
	return q.dropped.Load()
}

func (q *blockQueue) lastDropTime() time.Time {
	ns := q.lastDrop.Load()
	if ns == 0 {
		return time.Time{}
	}
	return time.Unix(0, ns)
}
