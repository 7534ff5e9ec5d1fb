// Package tui renders a live terminal readout of simulation diagnostics.
// It consumes only snapshot data published on the event bus; field
// rendering proper is an external concern.
package tui

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/guptarohit/asciigraph"

	"github.com/tomren/fieldloop/internal/events"
)

const energyWindow = 120

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("63"))
	labelStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	valueStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("252"))
	borderStyle = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
)

type tickMsg events.Event

type doneMsg struct{}

// Model is the bubbletea model for the live view.
type Model struct {
	ch     chan events.Event
	done   chan struct{}
	device string
	tick   int
	count  int
	energy []float64
}

// NewModel subscribes to tick events on bus. Signal done to end the view
// when the simulation finishes.
func NewModel(bus *events.Bus, done chan struct{}) *Model {
	m := &Model{
		ch:     make(chan events.Event, 64),
		done:   done,
		energy: make([]float64, 0, energyWindow),
	}
	bus.Subscribe(events.TickCompleted, func(e events.Event) {
		// Drop ticks the view cannot keep up with; the simulation
		// must never block on rendering.
		select {
		case m.ch <- e:
		default:
		}
	})
	bus.Subscribe(events.DeviceChanged, func(e events.Event) {
		select {
		case m.ch <- e:
		default:
		}
	})
	return m
}

func (m *Model) wait() tea.Cmd {
	return func() tea.Msg {
		select {
		case e := <-m.ch:
			return tickMsg(e)
		case <-m.done:
			return doneMsg{}
		}
	}
}

func (m *Model) Init() tea.Cmd {
	return m.wait()
}

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		}
	case doneMsg:
		return m, tea.Quit
	case tickMsg:
		e := events.Event(msg)
		m.device = e.Device
		if e.Kind == events.TickCompleted {
			m.tick = e.Tick
			m.count = e.Particles
			m.energy = append(m.energy, e.FieldEnergy)
			if len(m.energy) > energyWindow {
				m.energy = m.energy[len(m.energy)-energyWindow:]
			}
		}
		return m, m.wait()
	}
	return m, nil
}

func (m *Model) View() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("fieldloop live"))
	b.WriteString("\n")
	b.WriteString(labelStyle.Render("device "))
	b.WriteString(valueStyle.Render(m.device))
	b.WriteString(labelStyle.Render("  tick "))
	b.WriteString(valueStyle.Render(fmt.Sprintf("%d", m.tick)))
	b.WriteString(labelStyle.Render("  particles "))
	b.WriteString(valueStyle.Render(fmt.Sprintf("%d", m.count)))
	b.WriteString("\n")
	if len(m.energy) > 1 {
		b.WriteString(asciigraph.Plot(m.energy,
			asciigraph.Height(10),
			asciigraph.Caption("field energy"),
		))
	} else {
		b.WriteString(labelStyle.Render("waiting for ticks..."))
	}
	b.WriteString("\n")
	b.WriteString(labelStyle.Render("q to quit"))
	return borderStyle.Render(b.String())
}
