// Package tui provides an interactive terminal browser for audio capture
// devices.
package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"spectra/internal/capture"
)

var (
	titleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFFDF5")).
			Background(lipgloss.Color("#5A56E0")).
			Padding(0, 1).
			Bold(true)

	infoStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFFDF5"))

	highlightStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#5A56E0")).
			Bold(true)

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#6C6C6C"))
)

type keyMap struct {
	Up      key.Binding
	Down    key.Binding
	Refresh key.Binding
	Quit    key.Binding
}

var keys = keyMap{
	Up:      key.NewBinding(key.WithKeys("up", "k")),
	Down:    key.NewBinding(key.WithKeys("down", "j")),
	Refresh: key.NewBinding(key.WithKeys("r")),
	Quit:    key.NewBinding(key.WithKeys("q", "ctrl+c", "esc")),
}

type devicesMsg struct {
	devices []capture.Device
}

type errMsg struct {
	err error
}

// DeviceListModel is the Bubble Tea model for browsing capture devices.
type DeviceListModel struct {
	devices       []capture.Device
	selectedIndex int
	err           error
}

// NewDeviceListModel creates the model; devices are fetched on Init.
func NewDeviceListModel() DeviceListModel {
	return DeviceListModel{}
}

func (m DeviceListModel) Init() tea.Cmd {
	return fetchDevices
}

func fetchDevices() tea.Msg {
	devices, err := capture.Devices()
	if err != nil {
		return errMsg{err}
	}
	return devicesMsg{devices}
}

func (m DeviceListModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case devicesMsg:
		m.devices = msg.devices
		m.err = nil
		if m.selectedIndex >= len(m.devices) {
			m.selectedIndex = 0
		}
		return m, nil

	case errMsg:
		m.err = msg.err
		return m, nil

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, keys.Quit):
			return m, tea.Quit
		case key.Matches(msg, keys.Up):
			if m.selectedIndex > 0 {
				m.selectedIndex--
			}
		case key.Matches(msg, keys.Down):
			if m.selectedIndex < len(m.devices)-1 {
				m.selectedIndex++
			}
		case key.Matches(msg, keys.Refresh):
			return m, fetchDevices
		}
	}
	return m, nil
}

func (m DeviceListModel) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("Audio Capture Devices"))
	b.WriteString("\n\n")

	if m.err != nil {
		b.WriteString(infoStyle.Render(fmt.Sprintf("Error: %v", m.err)))
		b.WriteString("\n")
		return b.String()
	}
	if len(m.devices) == 0 {
		b.WriteString(dimStyle.Render("No devices found."))
		b.WriteString("\n")
		return b.String()
	}

	for i, device := range m.devices {
		line := fmt.Sprintf("[%d] %s", device.ID, device.Name)
		detail := fmt.Sprintf("    %s · %d in · %.0f Hz",
			device.HostAPI, device.MaxInputChannels, device.DefaultSampleRate)

		if i == m.selectedIndex {
			b.WriteString(highlightStyle.Render("> " + line))
		} else {
			b.WriteString(infoStyle.Render("  " + line))
		}
		b.WriteString("\n")
		b.WriteString(dimStyle.Render(detail))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(dimStyle.Render("↑/↓ select · r refresh · q quit"))
	b.WriteString("\n")
	return b.String()
}

// Run starts the device browser and blocks until it exits.
func Run() error {
	_, err := tea.NewProgram(NewDeviceListModel()).Run()
	return err
}
