package notifier

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/JuweiLin/ARProject/internal/natsserver"
	"github.com/JuweiLin/ARProject/internal/wsconn"
	"github.com/JuweiLin/ARProject/pkg/protocol"
)

type fakeSource struct {
	mu     sync.Mutex
	states []protocol.DeviceState
}

func (f *fakeSource) set(states ...protocol.DeviceState) {
	f.mu.Lock()
	f.states = states
	f.mu.Unlock()
}

func (f *fakeSource) Snapshot() []protocol.DeviceState {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]protocol.DeviceState(nil), f.states...)
}

func state(name, status string, brightness int, color string) protocol.DeviceState {
	return protocol.DeviceState{DeviceName: name, Status: status, Brightness: brightness, Color: color}
}

func names(states []protocol.DeviceState) string {
	var out []string
	for _, s := range states {
		out = append(out, s.DeviceName)
	}
	return strings.Join(out, ",")
}

func TestDiffNewDevices(t *testing.T) {
	data, next := diff([]protocol.DeviceState{state("A", "offline", 0, "off")}, map[string]protocol.DeviceState{}, false)
	if names(data) != "A" {
		t.Fatalf("data = %v", data)
	}
	if _, ok := next["A"]; !ok {
		t.Error("expected A to be remembered")
	}
}

func TestDiffNoChange(t *testing.T) {
	last := map[string]protocol.DeviceState{"A": state("A", "online", 10, "Blue")}
	data, _ := diff([]protocol.DeviceState{state("A", "online", 10, "blue")}, last, false)
	if data != nil {
		t.Fatalf("expected nothing to send for a color case change, got %v", data)
	}
}

func TestDiffChangedRemovedAndUnchanged(t *testing.T) {
	last := map[string]protocol.DeviceState{
		"A": state("A", "online", 10, "Blue"),
		"B": state("B", "offline", 0, "off"),
		"C": state("C", "offline", 0, "off"),
	}
	current := []protocol.DeviceState{
		state("A", "online", 80, "Blue"),
		state("B", "offline", 0, "off"),
	}
	data, next := diff(current, last, false)

	// Changed first, then removed, then unchanged.
	if names(data) != "A,C,B" {
		t.Fatalf("order = %s, want A,C,B", names(data))
	}
	if data[1] != protocol.OfflineState("C") {
		t.Errorf("removed entry = %+v", data[1])
	}
	if _, ok := next["C"]; ok {
		t.Error("removed device should be forgotten")
	}
	if next["A"].Brightness != 80 {
		t.Errorf("A not updated in last: %+v", next["A"])
	}
}

func TestDiffFull(t *testing.T) {
	last := map[string]protocol.DeviceState{"Gone": state("Gone", "online", 1, "Red")}
	current := []protocol.DeviceState{state("A", "offline", 0, "off")}
	data, next := diff(current, last, true)
	if names(data) != "A" {
		t.Fatalf("data = %v", data)
	}
	if len(next) != 1 {
		t.Errorf("full update should replace last wholesale, got %v", next)
	}

	data, _ = diff(nil, last, true)
	if data == nil || len(data) != 0 {
		t.Errorf("full update with no devices should send an empty list, got %#v", data)
	}
}

func dialBrowser(t *testing.T, n *Notifier) *wsconn.Conn {
	t.Helper()
	ts := httptest.NewServer(http.HandlerFunc(n.HandleWS))
	t.Cleanup(ts.Close)
	c, err := wsconn.Dial("ws" + strings.TrimPrefix(ts.URL, "http"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { c.Close() })
	return c
}

func readUpdate(t *testing.T, c *wsconn.Conn) protocol.DeviceUpdate {
	t.Helper()
	msg, err := c.ReadText(time.Now().Add(5 * time.Second))
	if err != nil {
		t.Fatalf("read update: %v", err)
	}
	var u protocol.DeviceUpdate
	if err := json.Unmarshal([]byte(msg), &u); err != nil {
		t.Fatalf("decode update: %v", err)
	}
	if u.Type != "device_update" {
		t.Fatalf("type = %s", u.Type)
	}
	return u
}

func TestBrowserReceivesFullThenIncremental(t *testing.T) {
	src := &fakeSource{}
	src.set(state("Rectangle", "offline", 0, "off"))
	n := New(src, nil, zerolog.Nop())
	defer n.Close()

	c := dialBrowser(t, n)
	u := readUpdate(t, c)
	if names(u.Data) != "Rectangle" {
		t.Fatalf("full update = %+v", u.Data)
	}

	src.set(state("Rectangle", "online", 0, "off"), state("Triangle", "offline", 0, "off"))
	if _, sent := n.Notify(src.Snapshot(), false); !sent {
		t.Fatal("expected update to be sent")
	}
	u = readUpdate(t, c)
	if names(u.Data) != "Rectangle,Triangle" || u.Data[0].Status != "online" {
		t.Errorf("incremental update = %+v", u.Data)
	}

	if _, sent := n.Notify(src.Snapshot(), false); sent {
		t.Error("expected no update when nothing changed")
	}
	if n.ClientCount() != 1 {
		t.Errorf("clients = %d, want 1", n.ClientCount())
	}
}

func TestDeviceEventsTriggerNotify(t *testing.T) {
	bus, err := natsserver.New(natsserver.Config{}, zerolog.Nop())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(bus.Shutdown)

	opened := make(chan protocol.Event, 1)
	sub, err := natsserver.SubscribeEvents(bus.Conn(), protocol.SubjectEvents(protocol.SourcePhone), zerolog.Nop(), func(ev protocol.Event) {
		opened <- ev
	})
	if err != nil {
		t.Fatal(err)
	}
	defer sub.Unsubscribe()

	src := &fakeSource{}
	n := New(src, bus.Conn(), zerolog.Nop())
	if err := n.Start(); err != nil {
		t.Fatal(err)
	}
	defer n.Close()

	c := dialBrowser(t, n)
	if u := readUpdate(t, c); len(u.Data) != 0 {
		t.Fatalf("expected empty full update, got %+v", u.Data)
	}
	select {
	case ev := <-opened:
		if ev.Type != protocol.EventAppOpened {
			t.Errorf("event type = %s", ev.Type)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timeout waiting for app opened event")
	}

	src.set(state("Rectangle", "offline", 0, "off"))
	ev := protocol.NewEvent(protocol.EventDeviceConnected, protocol.SourceDevices, map[string]any{"device": "Rectangle"})
	if err := natsserver.PublishEvent(bus.Conn(), ev); err != nil {
		t.Fatal(err)
	}
	if u := readUpdate(t, c); names(u.Data) != "Rectangle" {
		t.Errorf("update = %+v", u.Data)
	}
}
