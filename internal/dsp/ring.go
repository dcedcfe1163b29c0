// SPDX-License-Identifier: MIT
package dsp

// ring is a fixed-capacity float ring buffer. Pushing past capacity evicts
// the oldest value. Used for the bounded onset-energy and tempo histories.
type ring struct {
	buf   []float64
	head  int // Next write position.
	count int
}

func newRing(capacity int) *ring {
	if capacity < 1 {
		capacity = 1
	}
	return &ring{buf: make([]float64, capacity)}
}

func (r *ring) push(v float64) {
	r.buf[r.head] = v
	r.head = (r.head + 1) % len(r.buf)
	if r.count < len(r.buf) {
		r.count++
	}
}

func (r *ring) len() int {
	return r.count
}

// last appends the most recent k values (oldest first) to dst and returns
// it. k is clamped to the number of stored values.
func (r *ring) last(dst []float64, k int) []float64 {
	if k > r.count {
		k = r.count
	}
	start := r.head - k
	if start < 0 {
		start += len(r.buf)
	}
	for i := 0; i < k; i++ {
		dst = append(dst, r.buf[(start+i)%len(r.buf)])
	}
	return dst
}

// values appends all stored values (oldest first) to dst and returns it.
func (r *ring) values(dst []float64) []float64 {
	return r.last(dst, r.count)
}
