// SPDX-License-Identifier: MIT
//
// Package transport delivers analysis frames to external consumers. The
// rendering collaborator treats every frame as read-only; backpressure on
// the consumer side is the collaborator's responsibility, so transports rate
// limit and drop rather than block the pipeline.
package transport

import "spectra/internal/dsp"

// Transport sends analysis frames to a consumer. Implementations must be
// safe for sequential calls from the pipeline goroutine and must never block
// it; a frame that cannot be delivered in time is dropped.
type Transport interface {
	Send(frame *dsp.Frame) error
	Close() error
}
