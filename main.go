// SPDX-License-Identifier: MIT
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"spectra/cmd"
	"spectra/internal/capture"
	"spectra/internal/config"
	"spectra/internal/dsp"
	applog "spectra/internal/log"
	"spectra/internal/pipeline"
	"spectra/internal/transport"
	"spectra/internal/transport/udp"
	"spectra/internal/tui"
	"spectra/pkg/build"
)

// main is the entry point for the audio analysis engine. The program flow is
// divided into three distinct phases:
//
// 1. Startup Phase (Cold Path):
//   - Initialize build information
//   - Configure runtime settings
//   - Parse command line arguments and load configuration
//   - Execute one-off commands if requested
//
// 2. Concurrent Phase (Hot Path):
//   - Start the capture source and analysis pipeline
//   - Begin recording if enabled
//   - Deliver frames to the configured transports
//
// 3. Shutdown Phase (Cold Path):
//   - Handle termination signals
//   - Stop recording if active
//   - Clean up resources
func main() {
	// ==================== STARTUP PHASE (Cold Path) ====================

	build.Initialize()

	// One thread for the capture callback, one for analysis and I/O.
	runtime.GOMAXPROCS(2)

	cfg, err := cmd.ParseArgs()
	if err != nil {
		applog.Fatalf("%v", err)
	}

	configureLogging(cfg)

	// One-off commands run without the pipeline. Calibration already ran
	// inside the CLI; device commands need PortAudio.
	switch cfg.Command {
	case "calibrate":
		return
	case "list", "devices":
		if err := capture.Initialize(); err != nil {
			applog.Fatalf("failed to initialize audio subsystem: %v", err)
		}
		defer capture.Terminate()

		if cfg.Command == "list" {
			if err := capture.ListDevices(); err != nil {
				applog.Fatalf("%v", err)
			}
		} else if err := tui.Run(); err != nil {
			applog.Fatalf("%v", err)
		}
		return
	}

	if err := capture.Initialize(); err != nil {
		applog.Fatalf("failed to initialize audio subsystem: %v", err)
	}
	defer capture.Terminate()

	pipe, err := buildPipeline(cfg)
	if err != nil {
		applog.Fatalf("%v", err)
	}

	// ==================== CONCURRENT PHASE (Hot Path) ====================

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// The first Start triggers the capture callback, marking the start of
	// the hot path.
	if err := pipe.Start(); err != nil {
		if !errors.Is(err, capture.ErrDeviceUnavailable) {
			applog.Fatalf("failed to start pipeline: %v", err)
		}
		// Hotplug grace: wait for any input device to appear, then retry.
		applog.Warnf("%v; waiting for an input device", err)
		id := capture.WaitForDevice(func(d capture.Device) bool {
			return d.MaxInputChannels > 0
		}, 10*time.Second)
		if id < 0 {
			applog.Fatalf("no input device appeared: %v", err)
		}
		if err := pipe.Start(); err != nil {
			applog.Fatalf("failed to start pipeline: %v", err)
		}
	}

	if cfg.Recording.Enabled {
		if err := pipe.StartRecording(cfg.Recording.OutputFile); err != nil {
			applog.Fatalf("failed to start recording: %v", err)
		}
	}

	applog.Infof("%s %s running, latency budget ~%.1f ms (Ctrl+C to stop)",
		build.GetBuildFlags().Name, build.GetBuildFlags().Version, pipe.LatencyBudget())

	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := pipe.Run(ctx, nil); err != nil {
			applog.Errorf("pipeline stopped: %v", err)
		}
	}()

	<-ctx.Done()
	<-done

	// ==================== SHUTDOWN PHASE (Cold Path) ====================

	if err := pipe.Close(); err != nil {
		applog.Errorf("error closing pipeline: %v", err)
	}
	if cfg.Recording.Enabled {
		fmt.Printf("\nRecording saved to: %s\n", cfg.Recording.OutputFile)
	}
}

func configureLogging(cfg *config.Config) {
	if cfg.Debug {
		applog.SetLevel(applog.LevelDebug)
		return
	}
	if level, ok := applog.ParseLevel(cfg.LogLevel); ok {
		applog.SetLevel(level)
	}
}

// buildPipeline wires the capture source, analyzer and transports from the
// configuration.
func buildPipeline(cfg *config.Config) (*pipeline.Pipeline, error) {
	source := capture.NewSource(capture.Config{
		SampleRate:  cfg.Audio.SampleRate,
		Channels:    cfg.Audio.Channels,
		BlockSize:   cfg.Audio.BlockSize,
		Device:      cfg.Audio.Device,
		Loopback:    cfg.Audio.Loopback,
		MicFallback: cfg.Audio.MicFallback,
		QueueBlocks: cfg.Audio.QueueBlocks,
		LowLatency:  cfg.Audio.LowLatency,
	})

	analyzer, err := dsp.NewAnalyzer(dsp.Config{
		SampleRate:         cfg.Audio.SampleRate,
		FFTSize:            cfg.Analysis.FFTSize,
		HopSize:            cfg.Analysis.HopSize,
		Bands:              cfg.Analysis.Bands,
		MinFrequency:       cfg.Analysis.MinFrequency,
		MaxFrequency:       cfg.Analysis.MaxFrequency,
		OnsetSensitivity:   cfg.Analysis.OnsetSensitivity,
		BeatHistorySeconds: cfg.Analysis.BeatHistorySeconds,
		EnvelopeAttack:     cfg.Analysis.EnvelopeAttack,
		EnvelopeRelease:    cfg.Analysis.EnvelopeRelease,
		SmoothingFactor:    cfg.Analysis.SmoothingFactor,
		Chroma:             cfg.Analysis.Chroma,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create analyzer: %w", err)
	}

	var transports []transport.Transport
	if cfg.Transport.WebsocketEnabled {
		transports = append(transports, transport.NewWebSocketTransport(cfg.Transport.WebsocketPort))
	}
	if cfg.Transport.UDPEnabled {
		sender, err := udp.NewSender(cfg.Transport.UDPTargetAddress)
		if err != nil {
			return nil, fmt.Errorf("failed to create UDP sender: %w", err)
		}
		transports = append(transports, udp.NewPublisher(sender, cfg.Transport.UDPSendInterval))
	}

	return pipeline.New(pipeline.Config{
		SampleRate:     cfg.Audio.SampleRate,
		Channels:       cfg.Audio.Channels,
		BlockSize:      cfg.Audio.BlockSize,
		RecordBitDepth: cfg.Recording.BitDepth,
	}, source, analyzer, transports...), nil
}
