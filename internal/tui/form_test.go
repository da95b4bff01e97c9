package tui

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/JuweiLin/ARProject/internal/dispatch"
)

type recorder struct {
	mu   sync.Mutex
	reqs []map[string]string
}

func (r *recorder) last() map[string]string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.reqs[len(r.reqs)-1]
}

func newTestModel(t *testing.T, reply string) (Model, *recorder) {
	t.Helper()
	rec := &recorder{}
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		json.NewDecoder(r.Body).Decode(&body)
		rec.mu.Lock()
		rec.reqs = append(rec.reqs, body)
		rec.mu.Unlock()
		w.Write([]byte(reply))
	}))
	t.Cleanup(ts.Close)
	client, err := dispatch.NewClient(ts.URL, ts.Client())
	if err != nil {
		t.Fatal(err)
	}
	return New(context.Background(), client), rec
}

func press(m Model, key tea.KeyType) (Model, tea.Cmd) {
	next, cmd := m.Update(tea.KeyMsg{Type: key})
	return next.(Model), cmd
}

func typeText(m Model, s string) Model {
	next, _ := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)})
	return next.(Model)
}

func deliver(m Model, cmd tea.Cmd) Model {
	next, _ := m.Update(cmd())
	return next.(Model)
}

func fill(m Model, device, command string) Model {
	m = typeText(m, device)
	m, _ = press(m, tea.KeyTab)
	m = typeText(m, command)
	m, _ = press(m, tea.KeyTab)
	return m
}

func TestSendShowsAlert(t *testing.T) {
	m, rec := newTestModel(t, `{"status":"success","message":"Success: Command 'Blue 80' sent to 'Rectangle'."}`)
	m = fill(m, "Rectangle", "Blue 80")
	if m.focused != focusSend {
		t.Fatalf("focused = %d, want send", m.focused)
	}

	m, cmd := press(m, tea.KeyEnter)
	if cmd == nil {
		t.Fatal("expected a dispatch command")
	}
	if m.inFlight != 1 {
		t.Errorf("in flight = %d, want 1", m.inFlight)
	}
	m = deliver(m, cmd)

	if got := rec.last(); got["device"] != "Rectangle" || got["command"] != "Blue 80" {
		t.Errorf("request = %v", got)
	}
	if len(m.alerts) != 1 || m.alerts[0] != "Success: Command 'Blue 80' sent to 'Rectangle'." {
		t.Fatalf("alerts = %v", m.alerts)
	}
	if !strings.Contains(m.View(), "sent to 'Rectangle'") {
		t.Error("view does not show the alert")
	}

	m, _ = press(m, tea.KeyEnter)
	if len(m.alerts) != 0 {
		t.Errorf("alert not dismissed: %v", m.alerts)
	}
}

func TestAlertBlocksInput(t *testing.T) {
	m, _ := newTestModel(t, `{"message":"hi"}`)
	m = fill(m, "A", "B")
	m, cmd := press(m, tea.KeyEnter)
	m = deliver(m, cmd)

	m, _ = press(m, tea.KeyTab)
	m = typeText(m, "x")
	if m.focused != focusSend {
		t.Errorf("focus moved while alert shown: %d", m.focused)
	}
	if m.inputs[focusDevice].Value() != "A" || m.inputs[focusCommand].Value() != "B" {
		t.Errorf("inputs changed while alert shown")
	}
}

func TestFieldsSnapshotAtSend(t *testing.T) {
	m, rec := newTestModel(t, `{"message":"ok"}`)
	m = fill(m, "Rectangle", "Red 10")
	m, first := press(m, tea.KeyEnter)

	// Edit the command and send again before the first reply arrives.
	m, _ = press(m, tea.KeyShiftTab)
	m.inputs[focusCommand].SetValue("Green 20")
	m, _ = press(m, tea.KeyTab)
	m, second := press(m, tea.KeyEnter)
	if m.inFlight != 2 {
		t.Fatalf("in flight = %d, want 2", m.inFlight)
	}

	// Second completes first; alerts queue in completion order.
	m = deliver(m, second)
	if rec.last()["command"] != "Green 20" {
		t.Errorf("second request = %v", rec.last())
	}
	m = deliver(m, first)
	if rec.last()["command"] != "Red 10" {
		t.Errorf("first request = %v", rec.last())
	}
	if len(m.alerts) != 2 || m.inFlight != 0 {
		t.Errorf("alerts = %v, in flight = %d", m.alerts, m.inFlight)
	}
}

func TestMissingMessageShowsPlaceholder(t *testing.T) {
	m, _ := newTestModel(t, `{}`)
	m = fill(m, "Rectangle", "Blue 80")
	m, cmd := press(m, tea.KeyEnter)
	m = deliver(m, cmd)
	if len(m.alerts) != 1 || m.alerts[0] != dispatch.Placeholder {
		t.Errorf("alerts = %v", m.alerts)
	}
}

func TestFailureGoesToStatusLine(t *testing.T) {
	m, _ := newTestModel(t, `not json`)
	m = fill(m, "Rectangle", "Blue 80")
	m, cmd := press(m, tea.KeyEnter)
	m = deliver(m, cmd)

	if len(m.alerts) != 0 {
		t.Errorf("alerts = %v, want none", m.alerts)
	}
	if !strings.HasPrefix(m.status, "send failed:") {
		t.Errorf("status = %q", m.status)
	}
	if !strings.Contains(m.View(), "send failed") {
		t.Error("view does not show the failure")
	}
}

func TestFocusWraps(t *testing.T) {
	m, _ := newTestModel(t, `{}`)
	m, _ = press(m, tea.KeyShiftTab)
	if m.focused != focusSend {
		t.Errorf("focused = %d, want send", m.focused)
	}
	m, _ = press(m, tea.KeyTab)
	if m.focused != focusDevice || !m.inputs[focusDevice].Focused() {
		t.Errorf("focused = %d, want device", m.focused)
	}
}
