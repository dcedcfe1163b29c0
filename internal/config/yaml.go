// SPDX-License-Identifier: MIT
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"spectra/pkg/bitint"
)

// Load reads configuration from a YAML file at path. If path is empty, it
// searches default locations ("config.yaml"); if no file is found the
// built-in defaults are used. Environment variable overrides are applied
// after loading, and the final configuration is validated.
func Load(path string) (*Config, error) {
	cfg := NewConfig()

	if path == "" {
		candidates := []string{"config.yaml"}
		for _, candidate := range candidates {
			if _, err := os.Stat(candidate); err == nil {
				path = candidate
				break
			}
		}
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Validate checks the configuration for values the capture and analysis
// layers cannot operate with.
func (c *Config) Validate() error {
	if c.Audio.SampleRate < MinSampleRate || c.Audio.SampleRate > MaxSampleRate {
		return fmt.Errorf("audio.sample_rate %g outside [%d, %d]", c.Audio.SampleRate, MinSampleRate, MaxSampleRate)
	}
	if c.Audio.Channels < 1 {
		return fmt.Errorf("audio.channels must be >= 1, got %d", c.Audio.Channels)
	}
	if c.Audio.BlockSize < 1 || c.Audio.BlockSize > MaxBlockSize {
		return fmt.Errorf("audio.block_size %d outside [1, %d]", c.Audio.BlockSize, MaxBlockSize)
	}
	if c.Audio.QueueBlocks < 1 {
		return fmt.Errorf("audio.queue_blocks must be >= 1, got %d", c.Audio.QueueBlocks)
	}

	if !bitint.IsPowerOfTwo(c.Analysis.FFTSize) {
		return fmt.Errorf("analysis.fft_size must be a power of 2, got %d", c.Analysis.FFTSize)
	}
	if c.Analysis.HopSize < 1 || c.Analysis.HopSize > c.Analysis.FFTSize {
		return fmt.Errorf("analysis.hop_size %d outside [1, fft_size=%d]", c.Analysis.HopSize, c.Analysis.FFTSize)
	}
	if c.Analysis.Bands < 1 {
		return fmt.Errorf("analysis.bands must be >= 1, got %d", c.Analysis.Bands)
	}
	if c.Analysis.MinFrequency <= 0 || c.Analysis.MaxFrequency <= c.Analysis.MinFrequency {
		return fmt.Errorf("analysis frequency range [%g, %g] is invalid", c.Analysis.MinFrequency, c.Analysis.MaxFrequency)
	}
	if c.Analysis.SmoothingFactor < 0 || c.Analysis.SmoothingFactor >= 1 {
		return fmt.Errorf("analysis.smoothing_factor must be in [0,1), got %g", c.Analysis.SmoothingFactor)
	}
	if c.Analysis.EnvelopeAttack <= 0 || c.Analysis.EnvelopeRelease <= 0 {
		return fmt.Errorf("envelope time constants must be positive")
	}
	if c.Analysis.BeatHistorySeconds <= 0 {
		return fmt.Errorf("analysis.beat_history_seconds must be positive, got %g", c.Analysis.BeatHistorySeconds)
	}

	if c.Transport.UDPEnabled {
		if c.Transport.UDPTargetAddress == "" {
			return fmt.Errorf("transport.udp_target_address must be set when UDP is enabled")
		}
		if c.Transport.UDPSendInterval <= 0 {
			return fmt.Errorf("transport.udp_send_interval must be positive when UDP is enabled")
		}
	}
	if c.Transport.WebsocketEnabled && c.Transport.WebsocketPort == "" {
		return fmt.Errorf("transport.websocket_port must be set when websocket is enabled")
	}

	return nil
}

// applyEnvOverrides applies SPECTRA_* environment variables on top of the
// loaded configuration.
func (cfg *Config) applyEnvOverrides() {
	if val, ok := os.LookupEnv("SPECTRA_DEBUG"); ok {
		if bVal, err := strconv.ParseBool(val); err == nil {
			cfg.Debug = bVal
		}
	}
	if val, ok := os.LookupEnv("SPECTRA_LOG_LEVEL"); ok {
		cfg.LogLevel = val
	}
	if val, ok := os.LookupEnv("SPECTRA_DEVICE"); ok {
		if iVal, err := strconv.Atoi(val); err == nil {
			cfg.Audio.Device = iVal
		}
	}
	if val, ok := os.LookupEnv("SPECTRA_WS_ENABLED"); ok {
		if bVal, err := strconv.ParseBool(val); err == nil {
			cfg.Transport.WebsocketEnabled = bVal
		}
	}
	if val, ok := os.LookupEnv("SPECTRA_WS_PORT"); ok {
		cfg.Transport.WebsocketPort = val
	}
	if val, ok := os.LookupEnv("SPECTRA_UDP_ENABLED"); ok {
		if bVal, err := strconv.ParseBool(val); err == nil {
			cfg.Transport.UDPEnabled = bVal
		}
	}
	if val, ok := os.LookupEnv("SPECTRA_UDP_TARGET_ADDRESS"); ok {
		cfg.Transport.UDPTargetAddress = val
	}
	if val, ok := os.LookupEnv("SPECTRA_UDP_SEND_INTERVAL"); ok {
		if dur, err := time.ParseDuration(val); err == nil {
			cfg.Transport.UDPSendInterval = dur
		}
	}
}
