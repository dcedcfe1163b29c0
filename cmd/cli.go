// SPDX-License-Identifier: MIT
package cmd

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/go-audio/wav"
	"github.com/spf13/cobra"

	"spectra/internal/config"
	"spectra/internal/latency"
	"spectra/pkg/build"
)

// ParseArgs builds the runtime configuration from the config file, the
// environment and the command line (in that order of precedence). One-off
// commands record themselves in Config.Command; an empty Command means
// "run the analysis pipeline".
func ParseArgs() (*config.Config, error) {
	buildInfo := build.GetBuildFlags()
	options := config.NewConfig()

	var configPath string
	var flags cliFlags

	rootCmd := &cobra.Command{
		Use:           buildInfo.Name,
		Short:         buildInfo.Description,
		Version:       buildInfo.Version,
		SilenceErrors: true,
		SilenceUsage:  true,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd:   true,
			DisableDescriptions: true,
			DisableNoDescFlag:   true,
			HiddenDefaultCmd:    true,
		},
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			loaded, err := config.Load(configPath)
			if err != nil {
				return err
			}
			flags.apply(cmd, loaded)
			*options = *loaded
			return options.Validate()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			// No subcommand: run the pipeline.
			return nil
		},
	}

	rootCmd.SetHelpCommand(&cobra.Command{Hidden: true})

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List available audio capture devices",
		Run: func(cmd *cobra.Command, args []string) {
			options.Command = "list"
		},
	}
	rootCmd.AddCommand(listCmd)

	devicesCmd := &cobra.Command{
		Use:   "devices",
		Short: "Browse audio capture devices interactively",
		Run: func(cmd *cobra.Command, args []string) {
			options.Command = "devices"
		},
	}
	rootCmd.AddCommand(devicesCmd)

	calibrateCmd := &cobra.Command{
		Use:   "calibrate <reference.wav> <captured.wav>",
		Short: "Measure capture latency by cross-correlating a reference recording with its captured copy",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			options.Command = "calibrate"
			return runCalibrate(args[0], args[1], os.Stdout)
		},
	}
	rootCmd.AddCommand(calibrateCmd)

	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "f", "",
		"Path to the YAML config file. Defaults to ./config.yaml when present.")

	// Audio Device Configuration
	rootCmd.PersistentFlags().IntVarP(&flags.device, "device", "d", config.DefaultDeviceID,
		"Input device ID. Use 'list' to see available devices.")
	rootCmd.PersistentFlags().IntVarP(&flags.channels, "channels", "c", config.DefaultChannels,
		"Number of channels to capture (1=mono, 2=stereo)")
	rootCmd.PersistentFlags().Float64VarP(&flags.sampleRate, "sample-rate", "s", config.DefaultSampleRate,
		"Sample rate, measured in Hertz (Hz)")
	rootCmd.PersistentFlags().IntVarP(&flags.blockSize, "block-size", "b", config.DefaultBlockSize,
		"Frames per capture block (affects latency)")
	rootCmd.PersistentFlags().BoolVarP(&flags.lowLatency, "low-latency", "l", false,
		"Request the device's low-latency setting")

	// Recording Configuration
	rootCmd.PersistentFlags().BoolVarP(&flags.record, "record", "r", false,
		"Mirror the capture stream to a WAV file while analyzing")
	rootCmd.PersistentFlags().StringVarP(&flags.output, "output", "o", "",
		"Recording file name. Default is recording-DD-MM-YYYY-HHMMSS.wav")

	// Transport Configuration
	rootCmd.PersistentFlags().BoolVar(&flags.websocket, "ws", false,
		"Serve analysis frames as JSON over a websocket")
	rootCmd.PersistentFlags().BoolVar(&flags.udp, "udp", false,
		"Publish analysis frames as binary UDP packets")
	rootCmd.PersistentFlags().StringVar(&flags.udpTarget, "udp-target", "",
		"UDP target address (host:port)")

	// Debug Configuration
	rootCmd.PersistentFlags().BoolVarP(&flags.verbose, "verbose", "v", false,
		"Show verbose output")

	rootCmd.SetArgs(os.Args[1:])
	if err := rootCmd.Execute(); err != nil {
		return nil, err
	}

	return options, nil
}

// cliFlags holds the raw flag values; only flags the user actually set
// override the loaded configuration.
type cliFlags struct {
	device     int
	channels   int
	sampleRate float64
	blockSize  int
	lowLatency bool
	record     bool
	output     string
	websocket  bool
	udp        bool
	udpTarget  string
	verbose    bool
}

func (f *cliFlags) apply(cmd *cobra.Command, cfg *config.Config) {
	set := cmd.Flags()

	if set.Changed("device") {
		cfg.Audio.Device = f.device
		// An explicit device wins over loopback discovery.
		cfg.Audio.Loopback = false
	}
	if set.Changed("channels") {
		cfg.Audio.Channels = f.channels
	}
	if set.Changed("sample-rate") {
		cfg.Audio.SampleRate = f.sampleRate
	}
	if set.Changed("block-size") {
		cfg.Audio.BlockSize = f.blockSize
	}
	if set.Changed("low-latency") {
		cfg.Audio.LowLatency = f.lowLatency
	}
	if set.Changed("record") {
		cfg.Recording.Enabled = f.record
	}
	if set.Changed("output") {
		cfg.Recording.OutputFile = f.output
	}
	if set.Changed("ws") {
		cfg.Transport.WebsocketEnabled = f.websocket
	}
	if set.Changed("udp") {
		cfg.Transport.UDPEnabled = f.udp
	}
	if set.Changed("udp-target") {
		cfg.Transport.UDPTargetAddress = f.udpTarget
	}
	if set.Changed("verbose") && f.verbose {
		cfg.Debug = true
	}

	if cfg.Recording.Enabled && cfg.Recording.OutputFile == "" {
		cfg.Recording.OutputFile = "recording-" +
			time.Now().UTC().Format("02-01-2006-150405") + ".wav"
	}
}

// runCalibrate loads both WAV files, cross-correlates them and prints the
// measured offset.
func runCalibrate(referencePath, capturedPath string, out io.Writer) error {
	reference, refRate, err := loadWAV(referencePath)
	if err != nil {
		return fmt.Errorf("failed to load reference: %w", err)
	}
	captured, capRate, err := loadWAV(capturedPath)
	if err != nil {
		return fmt.Errorf("failed to load captured: %w", err)
	}
	if refRate != capRate {
		return fmt.Errorf("sample rate mismatch: reference %d Hz, captured %d Hz", refRate, capRate)
	}

	result := latency.NewCalibrator(float64(refRate)).Calibrate(reference, captured)

	fmt.Fprintf(out, "Latency offset:  %.2f ms\n", result.OffsetMS)
	fmt.Fprintf(out, "Correlation:     %.3f\n", result.Correlation)
	fmt.Fprintf(out, "Reference peak:  sample %d\n", result.ReferencePeak)
	fmt.Fprintf(out, "Captured peak:   sample %d\n", result.CapturedPeak)
	if result.Correlation < 0.1 {
		fmt.Fprintln(out, "Warning: weak correlation; the captured file may not contain the reference signal.")
	}
	return nil
}

// loadWAV decodes a WAV file into normalized mono float samples in [-1, 1].
func loadWAV(path string) ([]float64, int, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, 0, err
	}
	defer file.Close()

	decoder := wav.NewDecoder(file)
	buf, err := decoder.FullPCMBuffer()
	if err != nil {
		return nil, 0, fmt.Errorf("failed to decode %s: %w", path, err)
	}
	if buf == nil || buf.Format == nil || len(buf.Data) == 0 {
		return nil, 0, fmt.Errorf("no samples in %s", path)
	}

	bitDepth := buf.SourceBitDepth
	if bitDepth == 0 {
		bitDepth = int(decoder.BitDepth)
	}
	scale := float64(int(1) << (bitDepth - 1))

	samples := make([]float64, len(buf.Data))
	for i, v := range buf.Data {
		samples[i] = float64(v) / scale
	}
	if buf.Format.NumChannels > 1 {
		samples = latency.Downmix(samples, buf.Format.NumChannels)
	}
	return samples, buf.Format.SampleRate, nil
}
