package main

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/guptarohit/asciigraph"

	"github.com/atlanticdynamic/simkernel/internal/fancy"
	"github.com/atlanticdynamic/simkernel/internal/sim/kernel"
	"github.com/atlanticdynamic/simkernel/internal/sim/lifecycle"
	"github.com/atlanticdynamic/simkernel/internal/sim/simulator"
)

const (
	watchHistory = 120
	watchNotes   = 6
)

var (
	watchHeader = fancy.HeaderStyle.MarginBottom(1)
	watchLabel  = lipgloss.NewStyle().Width(18).Foreground(fancy.ColorMuted)
	watchGraph  = lipgloss.NewStyle().Foreground(fancy.ColorAccent).MarginTop(1)
	watchHelp   = lipgloss.NewStyle().Foreground(fancy.ColorBranch).MarginTop(1)
)

type tickMsg time.Time

type noteMsg lifecycle.Notification

// actionMsg carries the result of a lifecycle request.
type actionMsg struct {
	action string
	err    error
}

// watchModel is a live view of one kernel. It polls the kernel on every tick
// and follows lifecycle notifications as they arrive.
type watchModel struct {
	ctx      context.Context
	k        *kernel.Context
	notes    <-chan lifecycle.Notification
	interval time.Duration

	status   simulator.Status
	values   map[string]float64
	history  []float64
	selected int
	events   []string
	lastErr  error
	width    int
}

func newWatchModel(ctx context.Context, k *kernel.Context, interval time.Duration) watchModel {
	return watchModel{
		ctx:      ctx,
		k:        k,
		notes:    k.Subscribe(ctx),
		interval: interval,
		values:   make(map[string]float64),
		width:    80,
	}
}

func (m watchModel) Init() tea.Cmd {
	return tea.Batch(m.tick(), m.waitNote())
}

func (m watchModel) tick() tea.Cmd {
	return tea.Tick(m.interval, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func (m watchModel) waitNote() tea.Cmd {
	return func() tea.Msg {
		n, ok := <-m.notes
		if !ok {
			return nil
		}
		return noteMsg(n)
	}
}

func (m watchModel) request(action string, fn func(context.Context) error) tea.Cmd {
	return func() tea.Msg {
		return actionMsg{action: action, err: fn(m.ctx)}
	}
}

func (m watchModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)
	case tea.WindowSizeMsg:
		m.width = msg.Width
		return m, nil
	case tickMsg:
		m.refresh()
		return m, m.tick()
	case noteMsg:
		m.events = append(m.events, fmt.Sprintf("%s %s", lifecycle.Notification(msg).Kind, msg.State))
		if len(m.events) > watchNotes {
			m.events = m.events[len(m.events)-watchNotes:]
		}
		return m, m.waitNote()
	case actionMsg:
		m.lastErr = nil
		if msg.err != nil {
			m.lastErr = fmt.Errorf("%s: %w", msg.action, msg.err)
		}
		m.refresh()
		return m, nil
	}
	return m, nil
}

func (m watchModel) handleKey(msg tea.KeyMsg) (watchModel, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c", "esc":
		return m, tea.Quit
	case "s", "enter":
		return m, m.request("start", m.k.Start)
	case "p", " ":
		return m, m.request("pause", m.k.Pause)
	case "x":
		return m, m.request("stop", m.k.Stop)
	case "tab", "right":
		if logs := m.k.Logs(); len(logs) > 0 {
			m.selected = (m.selected + 1) % len(logs)
		}
		m.refresh()
	case "shift+tab", "left":
		if logs := m.k.Logs(); len(logs) > 0 {
			m.selected = (m.selected + len(logs) - 1) % len(logs)
		}
		m.refresh()
	}
	return m, nil
}

// refresh reads the status, every variable value and the selected log.
func (m *watchModel) refresh() {
	m.status = m.k.Status()
	clear(m.values)
	for _, v := range m.k.Variables() {
		if got, err := m.k.Value(v.Name); err == nil {
			m.values[v.Name] = got
		}
	}

	m.history = nil
	logs := m.k.Logs()
	if len(logs) == 0 {
		return
	}
	m.selected %= len(logs)
	series, ok := m.k.Series(logs[m.selected])
	if !ok {
		return
	}
	samples := min(watchHistory, int(m.status.Steps)+1, series.Size())
	m.history = series.Tail(samples)
}

func (m watchModel) View() string {
	var s strings.Builder
	s.WriteString(watchHeader.Render("simkernel watch") + "\n")

	st := m.status
	state := fancy.StateText(st.State.String())
	if st.State == lifecycle.Pause {
		state = fancy.WarnText(st.State.String())
	}
	s.WriteString(watchLabel.Render("State") + state + "\n")
	s.WriteString(watchLabel.Render("Mode") + st.Mode.String() + "\n")
	s.WriteString(watchLabel.Render("Time") + fmt.Sprintf("%.3fs", st.Time) + "\n")
	steps := fmt.Sprint(st.Steps)
	if st.TotalSteps > 0 {
		steps = fmt.Sprintf("%d / %d (%.0f%%)", st.Steps, st.TotalSteps, st.Progress()*100)
	}
	s.WriteString(watchLabel.Render("Steps") + steps + "\n")
	s.WriteString(watchLabel.Render("Modules") + fmt.Sprint(st.Runners) + "\n\n")

	for _, v := range m.k.Variables() {
		value, ok := m.values[v.Name]
		text := fancy.InactiveText("n/a")
		if ok {
			text = fmt.Sprintf("%g %s", value, v.Unit)
		}
		s.WriteString(watchLabel.Render(fancy.VariableText(v.Name)) + text + "\n")
	}

	if logs := m.k.Logs(); len(m.history) > 1 && m.selected < len(logs) {
		width := max(20, min(m.width-12, 100))
		chart := asciigraph.Plot(m.history,
			asciigraph.Height(8),
			asciigraph.Width(width),
			asciigraph.Caption(logs[m.selected]),
		)
		s.WriteString(watchGraph.Render(chart) + "\n")
	}

	if len(m.events) > 0 {
		s.WriteString("\n" + fancy.InactiveText(strings.Join(m.events, "  >  ")) + "\n")
	}
	if m.lastErr != nil {
		msg := m.lastErr.Error()
		if errors.Is(m.lastErr, lifecycle.ErrEventNotAllowed) {
			msg = fmt.Sprintf("%s (state %s)", msg, st.State)
		}
		s.WriteString("\n" + fancy.ErrorText(msg) + "\n")
	}

	s.WriteString(watchHelp.Render("[s] start  [p] pause  [x] stop  [tab] next log  [q] quit"))
	return s.String()
}
