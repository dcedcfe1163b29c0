// SPDX-License-Identifier: MIT
//
// Package config loads, validates and defaults the engine configuration.
package config

import "time"

// Defaults and limits for the capture and analysis configuration.
const (
	DefaultSampleRate  = 48000
	DefaultChannels    = 2
	DefaultBlockSize   = 1024
	DefaultDeviceID    = MinDeviceID // System default device.
	DefaultQueueBlocks = 8

	DefaultFFTSize            = 2048
	DefaultHopSize            = 512
	DefaultBands              = 96
	DefaultMinFrequency       = 20.0
	DefaultMaxFrequency       = 18000.0
	DefaultOnsetSensitivity   = 1.5
	DefaultBeatHistorySeconds = 8.0
	DefaultEnvelopeAttack     = 0.015
	DefaultEnvelopeRelease    = 0.12
	DefaultSmoothingFactor    = 0.35

	MinDeviceID   = -1 // -1 selects the system default input device.
	MinSampleRate = 8000
	MaxSampleRate = 192000
	MaxBlockSize  = 8192
)

// Config is the root application configuration, loaded from YAML with
// environment variable overrides.
type Config struct {
	Debug    bool   `yaml:"debug"`
	LogLevel string `yaml:"log_level"`
	// Command is a one-off command selected by the CLI instead of running
	// the pipeline (e.g. "list", "devices", "calibrate"). Never read from
	// the config file.
	Command string `yaml:"-"`

	Audio     AudioConfig     `yaml:"audio"`
	Analysis  AnalysisConfig  `yaml:"analysis"`
	Transport TransportConfig `yaml:"transport"`
	Recording RecordingConfig `yaml:"recording"`
}

// AudioConfig holds capture device and queue settings.
type AudioConfig struct {
	Device      int     `yaml:"device"`       // Input device index (-1 for default).
	SampleRate  float64 `yaml:"sample_rate"`  // Sample rate in Hz.
	Channels    int     `yaml:"channels"`     // Input channels to capture.
	BlockSize   int     `yaml:"block_size"`   // Frames per capture block.
	Loopback    bool    `yaml:"loopback"`     // Prefer a loopback-capable device.
	MicFallback bool    `yaml:"mic_fallback"` // Fall back to the default input when no loopback device exists.
	QueueBlocks int     `yaml:"queue_blocks"` // Bounded capture queue capacity in blocks.
	LowLatency  bool    `yaml:"low_latency"`  // Request the device's low-latency setting.
}

// AnalysisConfig holds the spectral/beat/envelope analysis settings.
type AnalysisConfig struct {
	FFTSize            int     `yaml:"fft_size"`             // Must be a power of 2.
	HopSize            int     `yaml:"hop_size"`             // Samples advanced per analysis window.
	Bands              int     `yaml:"bands"`                // Number of geometric frequency bands.
	MinFrequency       float64 `yaml:"min_frequency"`        // Lower band edge in Hz.
	MaxFrequency       float64 `yaml:"max_frequency"`        // Upper band edge in Hz.
	OnsetSensitivity   float64 `yaml:"onset_sensitivity"`    // Onset strength threshold.
	BeatHistorySeconds float64 `yaml:"beat_history_seconds"` // Rolling tempo history window.
	EnvelopeAttack     float64 `yaml:"envelope_attack"`      // Attack time constant in seconds.
	EnvelopeRelease    float64 `yaml:"envelope_release"`     // Release time constant in seconds.
	SmoothingFactor    float64 `yaml:"smoothing_factor"`     // Spectral smoothing alpha in [0,1).
	Chroma             bool    `yaml:"chroma"`               // Enable the optional chroma output.
}

// TransportConfig holds frame delivery settings for external consumers.
type TransportConfig struct {
	WebsocketEnabled bool          `yaml:"websocket_enabled"`
	WebsocketPort    string        `yaml:"websocket_port"`
	UDPEnabled       bool          `yaml:"udp_enabled"`
	UDPTargetAddress string        `yaml:"udp_target_address"`
	UDPSendInterval  time.Duration `yaml:"udp_send_interval"`
}

// RecordingConfig holds the capture tap recording settings.
type RecordingConfig struct {
	Enabled    bool   `yaml:"enabled"`
	OutputFile string `yaml:"output_file"`
	BitDepth   int    `yaml:"bit_depth"`
}

// NewConfig returns a Config populated with defaults.
func NewConfig() *Config {
	return &Config{
		Debug:    false,
		LogLevel: "info",
		Audio: AudioConfig{
			Device:      DefaultDeviceID,
			SampleRate:  DefaultSampleRate,
			Channels:    DefaultChannels,
			BlockSize:   DefaultBlockSize,
			Loopback:    true,
			MicFallback: true,
			QueueBlocks: DefaultQueueBlocks,
			LowLatency:  false,
		},
		Analysis: AnalysisConfig{
			FFTSize:            DefaultFFTSize,
			HopSize:            DefaultHopSize,
			Bands:              DefaultBands,
			MinFrequency:       DefaultMinFrequency,
			MaxFrequency:       DefaultMaxFrequency,
			OnsetSensitivity:   DefaultOnsetSensitivity,
			BeatHistorySeconds: DefaultBeatHistorySeconds,
			EnvelopeAttack:     DefaultEnvelopeAttack,
			EnvelopeRelease:    DefaultEnvelopeRelease,
			SmoothingFactor:    DefaultSmoothingFactor,
			Chroma:             false,
		},
		Transport: TransportConfig{
			WebsocketEnabled: false,
			WebsocketPort:    "8080",
			UDPEnabled:       false,
			UDPTargetAddress: "127.0.0.1:9090",
			UDPSendInterval:  16 * time.Millisecond, // ~60Hz
		},
		Recording: RecordingConfig{
			Enabled:    false,
			OutputFile: "",
			BitDepth:   16,
		},
	}
}
