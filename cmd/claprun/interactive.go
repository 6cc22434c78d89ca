package main

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/cadenza-audio/clap-runtime/abi"
	"github.com/cadenza-audio/clap-runtime/bundle"
	"github.com/cadenza-audio/clap-runtime/host"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	pluginStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#98FB98"))

	stateStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#87CEEB"))

	selectedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4"))

	okStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#90EE90"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF6B6B"))

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#666666"))
)

type uiState int

const (
	stateSelectPlugin uiState = iota
	stateConfigure
	stateLifecycle
)

type interactiveModel struct {
	bundlePath string
	pluginID   string
	sampleRate float64
	frames     uint32

	lib     bundle.Bundle
	descs   []*abi.PluginDescriptor
	err     error
	lastMsg string

	inst *cliInstance
	proc *host.AudioProcessor[cliShared, cliMain, cliProc]

	rateInput textinput.Model
	selected  int
	cycle     uint64
	state     uiState
}

type loadedMsg struct {
	err   error
	lib   bundle.Bundle
	descs []*abi.PluginDescriptor
}

func newInteractiveModel(bundlePath, pluginID string, sampleRate float64, frames uint32) *interactiveModel {
	ti := textinput.New()
	ti.Placeholder = fmt.Sprintf("%.0f", sampleRate)
	ti.Prompt = "sample rate: "
	ti.Width = 20

	return &interactiveModel{
		bundlePath: bundlePath,
		pluginID:   pluginID,
		sampleRate: sampleRate,
		frames:     frames,
		rateInput:  ti,
		state:      stateSelectPlugin,
	}
}

func (m *interactiveModel) Init() tea.Cmd {
	return m.loadBundle
}

func (m *interactiveModel) loadBundle() tea.Msg {
	lib, err := openBundle(context.Background(), m.bundlePath)
	if err != nil {
		return loadedMsg{err: err}
	}
	factory := lib.Factory()
	if factory == nil {
		lib.Close()
		return loadedMsg{err: fmt.Errorf("bundle exposes no plugin factory")}
	}

	var descs []*abi.PluginDescriptor
	for i := uint32(0); i < factory.PluginCount(); i++ {
		if d := factory.PluginDescriptor(i); d != nil {
			descs = append(descs, d)
		}
	}
	if len(descs) == 0 {
		lib.Close()
		return loadedMsg{err: fmt.Errorf("bundle has no plugins")}
	}
	return loadedMsg{lib: lib, descs: descs}
}

func (m *interactiveModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case loadedMsg:
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		m.lib = msg.lib
		m.descs = msg.descs
		for i, d := range m.descs {
			if d.ID == m.pluginID {
				m.selected = i
			}
		}
	}

	if m.state == stateConfigure {
		var cmd tea.Cmd
		m.rateInput, cmd = m.rateInput.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m *interactiveModel) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c", "q":
		m.teardown()
		return m, tea.Quit

	case "up", "k":
		if m.state == stateSelectPlugin && m.selected > 0 {
			m.selected--
		}

	case "down", "j":
		if m.state == stateSelectPlugin && m.selected < len(m.descs)-1 {
			m.selected++
		}

	case "enter":
		switch m.state {
		case stateSelectPlugin:
			if len(m.descs) == 0 {
				return m, nil
			}
			m.instantiate()
		case stateConfigure:
			if v, err := strconv.ParseFloat(m.rateInput.Value(), 64); err == nil && v > 0 {
				m.sampleRate = v
			}
			m.activate()
		}

	case "a":
		if m.state == stateLifecycle {
			if m.inst.IsActive() {
				m.deactivate()
			} else {
				m.rateInput.SetValue("")
				m.rateInput.Focus()
				m.state = stateConfigure
			}
		}

	case "s":
		if m.state == stateLifecycle && m.proc != nil {
			m.toggleProcessing()
		}

	case "p":
		if m.state == stateLifecycle && m.proc != nil {
			m.runCycle()
		}

	case "r":
		if m.state == stateLifecycle && m.proc != nil {
			m.proc.Reset()
			m.lastMsg = "reset"
		}

	case "esc":
		switch m.state {
		case stateConfigure:
			m.state = stateLifecycle
		case stateLifecycle:
			m.teardownInstance()
			m.state = stateSelectPlugin
		}
	}
	return m, nil
}

func (m *interactiveModel) instantiate() {
	inst, err := newInstance(m.lib, m.descs[m.selected].ID)
	if err != nil {
		m.lastMsg = errorStyle.Render(err.Error())
		return
	}
	m.inst = inst
	m.lastMsg = "instantiated"
	m.state = stateLifecycle
}

func (m *interactiveModel) activate() {
	cfg := host.AudioConfig{SampleRate: m.sampleRate, MinFrames: 1, MaxFrames: m.frames}
	stopped, err := m.inst.Activate(cfg,
		func(host.ProcessorHandle, *cliShared, *cliMain) (cliProc, error) {
			return cliProc{}, nil
		})
	m.state = stateLifecycle
	if err != nil {
		m.lastMsg = errorStyle.Render(err.Error())
		return
	}
	proc := host.FromStopped(stopped)
	m.proc = &proc
	m.lastMsg = fmt.Sprintf("activated at %.0f Hz", m.sampleRate)
}

func (m *interactiveModel) deactivate() {
	if m.proc != nil {
		m.proc.EnsureStopped()
		m.proc = nil
	}
	if err := m.inst.Deactivate(nil); err != nil {
		m.lastMsg = errorStyle.Render(err.Error())
		return
	}
	m.lastMsg = "deactivated"
}

func (m *interactiveModel) toggleProcessing() {
	if m.proc.IsStarted() {
		if err := m.proc.StopProcessing(); err != nil {
			m.lastMsg = errorStyle.Render(err.Error())
			return
		}
		m.lastMsg = "processing stopped"
		return
	}
	if err := m.proc.StartProcessing(); err != nil {
		m.lastMsg = errorStyle.Render(err.Error())
		return
	}
	m.lastMsg = "processing started"
}

func (m *interactiveModel) runCycle() {
	if err := m.proc.EnsureStarted(); err != nil {
		m.lastMsg = errorStyle.Render(err.Error())
		return
	}

	input := [][]float32{make([]float32, m.frames), make([]float32, m.frames)}
	output := [][]float32{make([]float32, m.frames), make([]float32, m.frames)}
	fillSine(input, 0, 440, m.sampleRate)

	status, err := m.proc.Process(
		host.PortFrom32(input),
		host.PortFrom32(output),
		abi.NewEventList(0), abi.NewEventList(16),
		abi.SteadyTimeAt(m.cycle*uint64(m.frames)), nil)
	if err != nil {
		m.lastMsg = errorStyle.Render(err.Error())
		return
	}
	m.cycle++
	m.lastMsg = okStyle.Render(
		fmt.Sprintf("cycle %d: status=%s peak=%.4f", m.cycle, status, peak(output)))
}

func (m *interactiveModel) teardownInstance() {
	if m.proc != nil {
		m.proc.EnsureStopped()
		m.proc = nil
	}
	if m.inst != nil {
		m.inst.Destroy()
		m.inst = nil
	}
	m.cycle = 0
	m.lastMsg = ""
}

func (m *interactiveModel) teardown() {
	m.teardownInstance()
	if m.lib != nil {
		m.lib.Close()
		m.lib = nil
	}
}

func (m *interactiveModel) View() string {
	if m.err != nil {
		return errorStyle.Render(fmt.Sprintf("Error: %v\n\nPress q to quit.", m.err))
	}
	if len(m.descs) == 0 {
		return "Loading bundle..."
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render("claprun"))
	b.WriteString(" ")
	b.WriteString(m.bundlePath)
	b.WriteString("\n\n")

	switch m.state {
	case stateSelectPlugin:
		b.WriteString("Select a plugin:\n\n")
		for i, d := range m.descs {
			line := fmt.Sprintf("%s  %s %s", d.ID, d.Name, d.Version)
			if i == m.selected {
				b.WriteString(selectedStyle.Render("> " + line))
			} else {
				b.WriteString("  " + pluginStyle.Render(line))
			}
			b.WriteString("\n")
		}
		b.WriteString("\n")
		b.WriteString(helpStyle.Render("↑/↓ select • enter instantiate • q quit"))

	case stateConfigure:
		b.WriteString(fmt.Sprintf("Activating %s\n\n", pluginStyle.Render(m.descs[m.selected].ID)))
		b.WriteString(m.rateInput.View())
		b.WriteString("\n\n")
		b.WriteString(helpStyle.Render("enter activate • esc back"))

	case stateLifecycle:
		b.WriteString(fmt.Sprintf("Plugin %s\n", pluginStyle.Render(m.descs[m.selected].ID)))
		b.WriteString("State: ")
		b.WriteString(stateStyle.Render(m.lifecycleState()))
		b.WriteString("\n\n")
		if m.lastMsg != "" {
			b.WriteString(m.lastMsg)
			b.WriteString("\n\n")
		}
		b.WriteString(helpStyle.Render("a activate/deactivate • s start/stop • p process • r reset • esc destroy • q quit"))
	}

	return b.String()
}

func (m *interactiveModel) lifecycleState() string {
	switch {
	case m.inst == nil:
		return "destroyed"
	case m.proc == nil:
		return "instantiated"
	case m.proc.IsStarted():
		return "processing"
	default:
		return "active"
	}
}

func runInteractive(bundlePath, pluginID string, sampleRate float64, frames uint32) error {
	p := tea.NewProgram(newInteractiveModel(bundlePath, pluginID, sampleRate, frames), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
