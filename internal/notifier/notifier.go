// Package notifier pushes device state changes to browser websocket clients.
package notifier

import (
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"

	"github.com/JuweiLin/ARProject/internal/natsserver"
	"github.com/JuweiLin/ARProject/internal/wsconn"
	"github.com/JuweiLin/ARProject/pkg/protocol"
)

// StateSource provides the current device states.
type StateSource interface {
	Snapshot() []protocol.DeviceState
}

// Notifier tracks browser clients and what they were last told.
type Notifier struct {
	source  StateSource
	clients *wsconn.Set
	nc      *nats.Conn
	logger  zerolog.Logger

	mu   sync.Mutex // serializes Notify and guards last
	last map[string]protocol.DeviceState
	sub  *nats.Subscription
}

// New creates a Notifier. A nil nc disables the event subscription and the
// app-opened event.
func New(source StateSource, nc *nats.Conn, logger zerolog.Logger) *Notifier {
	return &Notifier{
		source:  source,
		clients: wsconn.NewSet(),
		nc:      nc,
		logger:  logger.With().Str("component", "notifier").Logger(),
		last:    make(map[string]protocol.DeviceState),
	}
}

// Start subscribes to device events. Each one triggers an incremental update.
func (n *Notifier) Start() error {
	if n.nc == nil {
		return nil
	}
	sub, err := natsserver.SubscribeEvents(n.nc, protocol.SubjectEvents(protocol.SourceDevices), n.logger, func(protocol.Event) {
		n.Notify(n.source.Snapshot(), false)
	})
	if err != nil {
		return err
	}
	n.sub = sub
	return nil
}

// Close unsubscribes and disconnects every client.
func (n *Notifier) Close() {
	if n.sub != nil {
		n.sub.Unsubscribe()
	}
	n.clients.CloseAll()
}

// ClientCount returns the number of connected browsers.
func (n *Notifier) ClientCount() int { return n.clients.Len() }

// Notify sends a device_update frame to every client. With full set every
// device is sent; otherwise only when something changed since the last
// notification. It reports the frame and whether it was sent.
func (n *Notifier) Notify(states []protocol.DeviceState, full bool) (protocol.DeviceUpdate, bool) {
	n.mu.Lock()
	data, next := diff(states, n.last, full)
	n.last = next
	n.mu.Unlock()

	if data == nil {
		n.logger.Debug().Msg("no state changes, skipping notification")
		return protocol.DeviceUpdate{}, false
	}

	update := protocol.DeviceUpdate{Type: protocol.TypeDeviceUpdate, Data: data}
	sent, dropped := n.clients.BroadcastJSON(update)
	for _, c := range dropped {
		n.logger.Warn().Str("client", c.ID).Msg("dropping unreachable browser client")
		c.Close()
	}
	n.logger.Debug().Int("devices", len(data)).Int("clients", sent).Bool("full", full).Msg("device update sent")
	return update, true
}

// diff computes the device list to push and the new last-notified map.
// A nil result means there is nothing to send.
func diff(states []protocol.DeviceState, last map[string]protocol.DeviceState, full bool) ([]protocol.DeviceState, map[string]protocol.DeviceState) {
	if full {
		next := make(map[string]protocol.DeviceState, len(states))
		data := make([]protocol.DeviceState, 0, len(states))
		for _, s := range states {
			next[s.DeviceName] = s
			data = append(data, s)
		}
		return data, next
	}

	next := make(map[string]protocol.DeviceState, len(last))
	for k, v := range last {
		next[k] = v
	}

	current := make(map[string]bool, len(states))
	var data []protocol.DeviceState
	for _, s := range states {
		current[s.DeviceName] = true
		prev, ok := last[s.DeviceName]
		if !ok || changed(prev, s) {
			data = append(data, s)
			next[s.DeviceName] = s
		}
	}

	var removed []string
	for name := range last {
		if !current[name] {
			removed = append(removed, name)
		}
	}
	sort.Strings(removed)
	for _, name := range removed {
		data = append(data, protocol.OfflineState(name))
		delete(next, name)
	}

	if len(data) == 0 {
		return nil, next
	}

	listed := make(map[string]bool, len(data))
	for _, s := range data {
		listed[s.DeviceName] = true
	}
	for _, s := range states {
		if !listed[s.DeviceName] {
			data = append(data, s)
		}
	}
	return data, next
}

func changed(a, b protocol.DeviceState) bool {
	return a.Status != b.Status ||
		a.Brightness != b.Brightness ||
		!strings.EqualFold(a.Color, b.Color)
}

// HandleWS serves GET /ws. A new client counts as the app being opened and
// receives the full device list.
func (n *Notifier) HandleWS(w http.ResponseWriter, r *http.Request) {
	c, err := wsconn.Upgrade(w, r)
	if err != nil {
		n.logger.Warn().Err(err).Msg("browser upgrade failed")
		return
	}
	n.clients.Add(c)
	n.logger.Info().Str("client", c.ID).Msg("browser client connected")

	if n.nc != nil {
		ev := protocol.NewEvent(protocol.EventAppOpened, protocol.SourcePhone, map[string]any{
			"client": c.ID,
			"value":  "WebSocket Connected",
		})
		if err := natsserver.PublishEvent(n.nc, ev); err != nil {
			n.logger.Error().Err(err).Msg("failed to publish app opened event")
		}
	}
	n.Notify(n.source.Snapshot(), true)

	defer func() {
		n.clients.Remove(c)
		c.Close()
		n.logger.Info().Str("client", c.ID).Msg("browser client disconnected")
	}()
	for {
		msg, err := c.ReadText(time.Time{})
		if err != nil {
			return
		}
		n.logger.Debug().Str("client", c.ID).Str("message", msg).Msg("received from browser")
	}
}
