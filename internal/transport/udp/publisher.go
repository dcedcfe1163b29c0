// SPDX-License-Identifier: MIT
package udp

import (
	"bytes"
	"encoding/binary"
	"time"

	"spectra/internal/dsp"
	applog "spectra/internal/log"
)

/*
Frame packet layout (BigEndian):

	Sequence       uint32      monotonically increasing
	Timestamp      int64       nanoseconds since epoch
	Flags          uint8       bit0 = beat, bit1 = onset
	Tempo          float32     BPM
	BeatPhase      float32     [0,1)
	RMS            float32
	Peak           float32
	Centroid       float32     Hz
	Rolloff        float32     Hz
	BandCount      uint16
	Bands          BandCount * float32
	EnvelopeCount  uint16
	Envelopes      EnvelopeCount * float32
*/

const (
	flagBeat  = 1 << 0
	flagOnset = 1 << 1
)

// Publisher packs analysis frames into binary datagrams and sends them via a
// Sender, rate limited to the configured interval. Implements
// transport.Transport.
type Publisher struct {
	sender   *Sender
	interval time.Duration
	lastSend time.Time
	sequence uint32
	packet   *bytes.Buffer // Reused across sends.
}

// NewPublisher creates a publisher sending at most one packet per interval.
// Invalid intervals default to 16ms (~60Hz).
func NewPublisher(sender *Sender, interval time.Duration) *Publisher {
	if interval <= 0 {
		interval = 16 * time.Millisecond
		applog.Warnf("transport: invalid UDP send interval, defaulting to %s", interval)
	}
	return &Publisher{
		sender:   sender,
		interval: interval,
		packet:   new(bytes.Buffer),
	}
}

// Send packs and transmits the frame, unless the rate limit suppresses it.
func (p *Publisher) Send(frame *dsp.Frame) error {
	now := time.Now()
	if now.Sub(p.lastSend) < p.interval {
		return nil
	}
	p.lastSend = now
	p.sequence++

	var flags uint8
	if frame.Beat {
		flags |= flagBeat
	}
	if frame.Onset {
		flags |= flagOnset
	}

	p.packet.Reset()
	write := func(v any) error {
		return binary.Write(p.packet, binary.BigEndian, v)
	}

	err := write(p.sequence)
	if err == nil {
		err = write(frame.Timestamp.UnixNano())
	}
	if err == nil {
		err = write(flags)
	}
	if err == nil {
		err = write(float32(frame.Tempo))
	}
	if err == nil {
		err = write(float32(frame.BeatPhase))
	}
	if err == nil {
		err = write(float32(frame.RMS))
	}
	if err == nil {
		err = write(float32(frame.Peak))
	}
	if err == nil {
		err = write(float32(frame.SpectralCentroid))
	}
	if err == nil {
		err = write(float32(frame.SpectralRolloff))
	}
	if err == nil {
		err = writeVector(p.packet, frame.BandEnergies)
	}
	if err == nil {
		err = writeVector(p.packet, frame.Envelopes)
	}
	if err != nil {
		applog.Errorf("transport: failed to pack frame packet: %v", err)
		return err
	}

	if err := p.sender.Send(p.packet.Bytes()); err != nil {
		applog.Debugf("transport: UDP send failed: %v", err)
		return err
	}
	return nil
}

func writeVector(buf *bytes.Buffer, values []float64) error {
	if err := binary.Write(buf, binary.BigEndian, uint16(len(values))); err != nil {
		return err
	}
	for _, v := range values {
		if err := binary.Write(buf, binary.BigEndian, float32(v)); err != nil {
			return err
		}
	}
	return nil
}

// Close shuts down the underlying sender.
func (p *Publisher) Close() error {
	return p.sender.Close()
}
