// SPDX-License-Identifier: MIT
package capture

import (
	"fmt"
	"strings"
	"time"

	"github.com/gordonklaus/portaudio"

	applog "spectra/internal/log"
)

// Device describes an audio device in the shape consumed by the CLI, TUI and
// external collaborators.
type Device struct {
	ID                int
	Name              string
	MaxInputChannels  int
	DefaultSampleRate float64
	HostAPI           string
}

// Initialize sets up the PortAudio subsystem. Must be called before any
// capture operation and paired with Terminate.
func Initialize() error {
	if err := portaudio.Initialize(); err != nil {
		return fmt.Errorf("failed to initialize PortAudio: %w", err)
	}
	return nil
}

// Terminate shuts down the PortAudio subsystem. Defer immediately after a
// successful Initialize.
func Terminate() error {
	if err := portaudio.Terminate(); err != nil {
		return fmt.Errorf("failed to terminate PortAudio: %w", err)
	}
	return nil
}

// Devices returns all available audio devices in a normalized structure.
func Devices() ([]Device, error) {
	infos, err := portaudio.Devices()
	if err != nil {
		return nil, fmt.Errorf("failed to query devices: %w", err)
	}

	devices := make([]Device, len(infos))
	for i, info := range infos {
		hostAPI := ""
		if info.HostApi != nil {
			hostAPI = info.HostApi.Name
		}
		devices[i] = Device{
			ID:                i,
			Name:              info.Name,
			MaxInputChannels:  info.MaxInputChannels,
			DefaultSampleRate: info.DefaultSampleRate,
			HostAPI:           hostAPI,
		}
	}
	return devices, nil
}

// InputDevice retrieves the input device for the given index, or the system
// default input device when the index is -1.
func InputDevice(deviceID int) (*portaudio.DeviceInfo, error) {
	if deviceID < 0 {
		device, err := portaudio.DefaultInputDevice()
		if err != nil {
			return nil, fmt.Errorf("%w: no default input device: %v", ErrDeviceUnavailable, err)
		}
		return device, nil
	}

	devices, err := portaudio.Devices()
	if err != nil {
		return nil, fmt.Errorf("failed to query devices: %w", err)
	}
	if deviceID >= len(devices) {
		return nil, fmt.Errorf("%w: invalid device ID %d", ErrDeviceUnavailable, deviceID)
	}
	return devices[deviceID], nil
}

// SuggestLoopbackDevice probes host APIs for a loopback-capable input device
// and returns it, or nil when none is available.
func SuggestLoopbackDevice() *portaudio.DeviceInfo {
	hostApis, err := portaudio.HostApis()
	if err != nil {
		applog.Debugf("capture: failed to query host APIs: %v", err)
		return nil
	}
	for _, host := range hostApis {
		for _, device := range host.Devices {
			if device.MaxInputChannels <= 0 {
				continue
			}
			if strings.Contains(strings.ToLower(host.Name), "loopback") ||
				strings.Contains(strings.ToLower(device.Name), "loopback") {
				return device
			}
		}
	}
	return nil
}

// WaitForDevice polls the device list until one satisfying predicate becomes
// available or the timeout elapses. Returns the device ID, or -1 on timeout.
func WaitForDevice(predicate func(Device) bool, timeout time.Duration) int {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		devices, err := Devices()
		if err == nil {
			for _, device := range devices {
				if predicate(device) {
					return device.ID
				}
			}
		}
		time.Sleep(200 * time.Millisecond)
	}
	return -1
}

// ListDevices prints information about all available audio devices.
func ListDevices() error {
	devices, err := Devices()
	if err != nil {
		return err
	}

	fmt.Printf("\nAvailable Audio Devices\n\n")
	for _, device := range devices {
		fmt.Printf("[%d] %s (%s)\n", device.ID, device.Name, device.HostAPI)
		fmt.Printf("    Input channels: %d\n", device.MaxInputChannels)
		fmt.Printf("    Default sample rate: %.0f Hz\n", device.DefaultSampleRate)
		fmt.Println()
	}
	return nil
}
