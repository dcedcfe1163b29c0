// SPDX-License-Identifier: MIT
package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err == nil {
		t.Fatal("expected error for missing explicit config path")
	}

	// Empty path with no config.yaml in cwd falls back to defaults.
	cfg, err = Load("")
	if err != nil {
		t.Fatalf("Load defaults: %v", err)
	}
	if cfg.Audio.SampleRate != DefaultSampleRate {
		t.Errorf("expected default sample rate %d, got %g", DefaultSampleRate, cfg.Audio.SampleRate)
	}
	if cfg.Analysis.FFTSize != DefaultFFTSize {
		t.Errorf("expected default fft size %d, got %d", DefaultFFTSize, cfg.Analysis.FFTSize)
	}
	if cfg.Analysis.Bands != DefaultBands {
		t.Errorf("expected default bands %d, got %d", DefaultBands, cfg.Analysis.Bands)
	}
}

func TestLoadFromFile(t *testing.T) {
	content := `
debug: true
log_level: debug
audio:
  sample_rate: 44100
  block_size: 512
  queue_blocks: 4
analysis:
  fft_size: 1024
  hop_size: 256
  bands: 32
transport:
  udp_enabled: true
  udp_target_address: "127.0.0.1:7000"
  udp_send_interval: 33ms
`
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !cfg.Debug {
		t.Error("expected debug true")
	}
	if cfg.Audio.SampleRate != 44100 {
		t.Errorf("expected sample rate 44100, got %g", cfg.Audio.SampleRate)
	}
	if cfg.Analysis.FFTSize != 1024 || cfg.Analysis.HopSize != 256 {
		t.Errorf("unexpected analysis sizes: fft=%d hop=%d", cfg.Analysis.FFTSize, cfg.Analysis.HopSize)
	}
	if cfg.Transport.UDPSendInterval != 33*time.Millisecond {
		t.Errorf("expected 33ms send interval, got %s", cfg.Transport.UDPSendInterval)
	}
	// Unset fields keep defaults.
	if cfg.Analysis.MinFrequency != DefaultMinFrequency {
		t.Errorf("expected default min frequency, got %g", cfg.Analysis.MinFrequency)
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("SPECTRA_DEBUG", "true")
	t.Setenv("SPECTRA_UDP_TARGET_ADDRESS", "10.0.0.1:9999")
	t.Setenv("SPECTRA_DEVICE", "3")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !cfg.Debug {
		t.Error("expected SPECTRA_DEBUG override")
	}
	if cfg.Transport.UDPTargetAddress != "10.0.0.1:9999" {
		t.Errorf("expected UDP target override, got %s", cfg.Transport.UDPTargetAddress)
	}
	if cfg.Audio.Device != 3 {
		t.Errorf("expected device override 3, got %d", cfg.Audio.Device)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"fft not power of two", func(c *Config) { c.Analysis.FFTSize = 1000 }},
		{"hop exceeds fft", func(c *Config) { c.Analysis.HopSize = c.Analysis.FFTSize * 2 }},
		{"zero bands", func(c *Config) { c.Analysis.Bands = 0 }},
		{"inverted frequency range", func(c *Config) { c.Analysis.MinFrequency = 5000; c.Analysis.MaxFrequency = 100 }},
		{"smoothing out of range", func(c *Config) { c.Analysis.SmoothingFactor = 1.0 }},
		{"negative attack", func(c *Config) { c.Analysis.EnvelopeAttack = -1 }},
		{"sample rate too low", func(c *Config) { c.Audio.SampleRate = 100 }},
		{"zero queue", func(c *Config) { c.Audio.QueueBlocks = 0 }},
		{"udp enabled without target", func(c *Config) { c.Transport.UDPEnabled = true; c.Transport.UDPTargetAddress = "" }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := NewConfig()
			tc.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}
