// SPDX-License-Identifier: MIT
package udp

import (
	"bytes"
	"encoding/binary"
	"net"
	"testing"
	"time"

	"spectra/internal/dsp"
)

func testFrame() *dsp.Frame {
	return &dsp.Frame{
		Timestamp:        time.Unix(0, 1234567890),
		BandEnergies:     []float64{0.1, 0.5, 1.0},
		Envelopes:        []float64{0.2, 0.4, 0.6},
		RMS:              0.3,
		Peak:             0.9,
		SpectralCentroid: 1200,
		SpectralRolloff:  8000,
		Tempo:            128,
		Beat:             true,
		Onset:            false,
		BeatPhase:        0.25,
	}
}

func TestPublisherPacketRoundTrip(t *testing.T) {
	listener, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer listener.Close()

	sender, err := NewSender(listener.LocalAddr().String())
	if err != nil {
		t.Fatalf("NewSender: %v", err)
	}
	publisher := NewPublisher(sender, time.Nanosecond)
	defer publisher.Close()

	if err := publisher.Send(testFrame()); err != nil {
		t.Fatalf("Send: %v", err)
	}

	listener.SetReadDeadline(time.Now().Add(time.Second))
	buf := make([]byte, 2048)
	n, _, err := listener.ReadFromUDP(buf)
	if err != nil {
		t.Fatalf("read packet: %v", err)
	}

	r := bytes.NewReader(buf[:n])
	var sequence uint32
	var timestamp int64
	var flags uint8
	var tempo, phase, rms, peak, centroid, rolloff float32
	var bandCount uint16

	for _, v := range []any{&sequence, &timestamp, &flags, &tempo, &phase, &rms, &peak, &centroid, &rolloff, &bandCount} {
		if err := binary.Read(r, binary.BigEndian, v); err != nil {
			t.Fatalf("unpack header: %v", err)
		}
	}

	if sequence != 1 {
		t.Errorf("sequence = %d, want 1", sequence)
	}
	if timestamp != 1234567890 {
		t.Errorf("timestamp = %d, want 1234567890", timestamp)
	}
	if flags != flagBeat {
		t.Errorf("flags = %b, want beat only", flags)
	}
	if tempo != 128 {
		t.Errorf("tempo = %v, want 128", tempo)
	}
	if bandCount != 3 {
		t.Errorf("band count = %d, want 3", bandCount)
	}

	bands := make([]float32, bandCount)
	if err := binary.Read(r, binary.BigEndian, bands); err != nil {
		t.Fatalf("unpack bands: %v", err)
	}
	if bands[2] != 1.0 {
		t.Errorf("band[2] = %v, want 1.0", bands[2])
	}

	var envCount uint16
	if err := binary.Read(r, binary.BigEndian, &envCount); err != nil {
		t.Fatalf("unpack envelope count: %v", err)
	}
	if envCount != 3 {
		t.Errorf("envelope count = %d, want 3", envCount)
	}
}

func TestPublisherRateLimits(t *testing.T) {
	listener, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer listener.Close()

	sender, err := NewSender(listener.LocalAddr().String())
	if err != nil {
		t.Fatalf("NewSender: %v", err)
	}
	publisher := NewPublisher(sender, time.Hour)
	defer publisher.Close()

	if err := publisher.Send(testFrame()); err != nil {
		t.Fatalf("first Send: %v", err)
	}
	// Within the interval: suppressed, no error, sequence unchanged.
	if err := publisher.Send(testFrame()); err != nil {
		t.Fatalf("suppressed Send: %v", err)
	}
	if publisher.sequence != 1 {
		t.Errorf("sequence = %d, want 1 (second send suppressed)", publisher.sequence)
	}
}

func TestSenderClosedRejectsSend(t *testing.T) {
	listener, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer listener.Close()

	sender, err := NewSender(listener.LocalAddr().String())
	if err != nil {
		t.Fatalf("NewSender: %v", err)
	}
	if err := sender.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := sender.Close(); err != nil {
		t.Errorf("second Close should be a no-op, got %v", err)
	}
	if err := sender.Send([]byte{1}); err == nil {
		t.Error("expected error sending on closed sender")
	}
}
