// Package tui is a terminal front-end for sending device commands: two text
// fields, a Send button and a modal alert showing each reply message.
package tui

import (
	"context"
	"fmt"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/JuweiLin/ARProject/internal/dispatch"
)

const (
	focusDevice = iota
	focusCommand
	focusSend
	focusCount
)

// replyMsg carries the message of a completed dispatch.
type replyMsg struct {
	text string
}

// failedMsg reports a dispatch that ended without a message.
type failedMsg struct {
	err error
}

// Model is the command form.
type Model struct {
	ctx     context.Context
	client  *dispatch.Client
	inputs  []textinput.Model
	focused int

	alerts   []string // shown one at a time, oldest first
	status   string
	inFlight int
}

// New creates the form for client.
func New(ctx context.Context, client *dispatch.Client) Model {
	fields := []struct{ name, placeholder string }{
		{dispatch.FieldDevice, "Rectangle"},
		{dispatch.FieldCommand, "Blue 80"},
	}
	m := Model{ctx: ctx, client: client}
	for i, f := range fields {
		ti := textinput.New()
		ti.Placeholder = f.placeholder
		ti.Prompt = f.name + ": "
		ti.CharLimit = 256
		if i == 0 {
			ti.Focus()
		}
		m.inputs = append(m.inputs, ti)
	}
	return m
}

// Run starts the form in the terminal and blocks until the user quits.
func Run(ctx context.Context, client *dispatch.Client) error {
	_, err := tea.NewProgram(New(ctx, client), tea.WithContext(ctx)).Run()
	return err
}

func (m Model) Init() tea.Cmd {
	return textinput.Blink
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case replyMsg:
		m.inFlight--
		m.alerts = append(m.alerts, msg.text)
		return m, nil
	case failedMsg:
		m.inFlight--
		m.status = "send failed: " + msg.err.Error()
		return m, nil
	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return m, tea.Quit
		}
		if len(m.alerts) > 0 {
			// The alert is modal.
			switch msg.String() {
			case "enter", "esc", " ":
				m.alerts = m.alerts[1:]
			}
			return m, nil
		}
		switch msg.String() {
		case "esc":
			return m, tea.Quit
		case "enter":
			if m.focused == focusSend {
				return m, m.send()
			}
			m.setFocus(m.focused + 1)
			return m, nil
		case "tab", "down":
			m.setFocus(m.focused + 1)
			return m, nil
		case "shift+tab", "up":
			m.setFocus(m.focused - 1)
			return m, nil
		}
	}

	if m.focused < len(m.inputs) {
		var cmd tea.Cmd
		m.inputs[m.focused], cmd = m.inputs[m.focused].Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m *Model) setFocus(i int) {
	m.focused = (i + focusCount) % focusCount
	for j := range m.inputs {
		if j == m.focused {
			m.inputs[j].Focus()
		} else {
			m.inputs[j].Blur()
		}
	}
}

// send snapshots the field values now and dispatches them in the background.
func (m *Model) send() tea.Cmd {
	fields := dispatch.Fields{
		dispatch.FieldDevice:  m.inputs[focusDevice].Value(),
		dispatch.FieldCommand: m.inputs[focusCommand].Value(),
	}
	m.inFlight++
	m.status = ""
	client, ctx := m.client, m.ctx
	return func() tea.Msg {
		var text string
		d := dispatch.New(client, fields, dispatch.NotifierFunc(func(s string) { text = s }))
		if err := d.Dispatch(ctx); err != nil {
			return failedMsg{err: err}
		}
		return replyMsg{text: text}
	}
}

func (m Model) View() string {
	s := titleStyle.Render("Send device command") + "\n"
	s += hintStyle.Render(m.client.Endpoint()) + "\n\n"

	for i, in := range m.inputs {
		style := labelStyle
		if i == m.focused {
			style = focusedLabelStyle
		}
		s += style.Render(in.View()) + "\n"
	}

	btn := buttonStyle
	if m.focused == focusSend {
		btn = focusedButtonStyle
	}
	s += "\n" + btn.Render("Send") + "\n\n"

	switch {
	case m.status != "":
		s += errorStyle.Render(m.status) + "\n"
	case m.inFlight > 0:
		s += hintStyle.Render(fmt.Sprintf("%d sending...", m.inFlight)) + "\n"
	}
	s += hintStyle.Render("tab: next field • enter: send • esc: quit")

	if len(m.alerts) > 0 {
		alert := m.alerts[0] + "\n\n" + hintStyle.Render("enter: OK")
		if more := len(m.alerts) - 1; more > 0 {
			alert += hintStyle.Render(fmt.Sprintf("  (%d more)", more))
		}
		s = lipgloss.JoinVertical(lipgloss.Left, s, "", alertStyle.Render(alert))
	}
	return docStyle.Render(s)
}
