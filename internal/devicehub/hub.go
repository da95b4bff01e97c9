// Package devicehub accepts websocket connections from lighting devices,
// keeps their last known state and forwards commands to them.
package devicehub

import (
	"context"
	"errors"
	"fmt"
	"net"
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

var (
	// ErrDeviceNotConnected is returned when commanding a device that is not registered.
	ErrDeviceNotConnected = errors.New("device not connected")
	// ErrDeviceDisconnected is returned when a command could not be written to the device.
	ErrDeviceDisconnected = errors.New("device disconnected")
	// ErrDeviceNotFound is returned by SetOnline for unknown devices.
	ErrDeviceNotFound = errors.New("device not found")
)

// Config holds device server settings.
type Config struct {
	Listen       string
	PingInterval time.Duration
	PongTimeout  time.Duration
}

type device struct {
	conn  *wsconn.Conn
	state protocol.DeviceState
}

// Hub tracks connected devices by name.
type Hub struct {
	cfg        Config
	mu         sync.RWMutex
	devices    map[string]*device
	nc         *nats.Conn
	logger     zerolog.Logger
	httpServer *http.Server
	done       chan struct{}
	doneOnce   sync.Once
}

// New creates a Hub. Events are published on nc; a nil nc disables publishing.
func New(cfg Config, nc *nats.Conn, logger zerolog.Logger) *Hub {
	if cfg.PingInterval <= 0 {
		cfg.PingInterval = 5 * time.Second
	}
	if cfg.PongTimeout <= 0 {
		cfg.PongTimeout = 5 * time.Second
	}
	h := &Hub{
		cfg:     cfg,
		devices: make(map[string]*device),
		nc:      nc,
		logger:  logger.With().Str("component", "devicehub").Logger(),
		done:    make(chan struct{}),
	}
	h.httpServer = &http.Server{Handler: h.Handler()}
	return h
}

// Handler upgrades every request to a device websocket.
func (h *Hub) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := wsconn.Upgrade(w, r)
		if err != nil {
			h.logger.Warn().Err(err).Msg("device upgrade failed")
			return
		}
		h.serveDevice(c)
	})
}

// Start begins listening on TCP. Blocks until Shutdown or error.
func (h *Hub) Start() error {
	ln, err := net.Listen("tcp", h.cfg.Listen)
	if err != nil {
		return err
	}
	h.logger.Info().Str("listen", h.cfg.Listen).Msg("device server listening")
	return h.httpServer.Serve(ln)
}

// Shutdown stops accepting devices and closes every device connection.
func (h *Hub) Shutdown(ctx context.Context) error {
	h.doneOnce.Do(func() { close(h.done) })
	h.mu.Lock()
	for _, d := range h.devices {
		d.conn.Close()
	}
	h.mu.Unlock()
	return h.httpServer.Shutdown(ctx)
}

func (h *Hub) serveDevice(c *wsconn.Conn) {
	defer c.Close()

	h.logger.Debug().Str("remote", c.RemoteAddr()).Msg("new device attempting to connect")
	first, err := c.ReadText(time.Time{})
	if err != nil {
		return
	}
	if !strings.HasPrefix(first, protocol.FrameDeviceName) {
		h.logger.Warn().Str("frame", first).Msg("invalid registration message")
		return
	}
	name := strings.TrimSpace(strings.TrimPrefix(first, protocol.FrameDeviceName))

	h.register(name, c)
	defer h.unregister(name, c)

	h.heartbeat(name, c)
}

func (h *Hub) register(name string, c *wsconn.Conn) {
	h.mu.Lock()
	if old, ok := h.devices[name]; ok {
		old.conn.Close()
	}
	h.devices[name] = &device{
		conn: c,
		state: protocol.DeviceState{
			DeviceName: name,
			Status:     protocol.DeviceOffline,
			Brightness: 0,
			Color:      protocol.ColorOff,
		},
	}
	h.mu.Unlock()

	h.logger.Info().Str("device", name).Str("remote", c.RemoteAddr()).Msg("device connected")
	h.publish(protocol.EventDeviceConnected, map[string]any{"device": name})
}

// unregister removes name only while c is still its registered connection.
func (h *Hub) unregister(name string, c *wsconn.Conn) {
	h.mu.Lock()
	d, ok := h.devices[name]
	if !ok || d.conn != c {
		h.mu.Unlock()
		return
	}
	delete(h.devices, name)
	h.mu.Unlock()

	h.logger.Info().Str("device", name).Msg("device disconnected")
	h.publish(protocol.EventDeviceDisconnected, map[string]any{"device": name})
}

// heartbeat pings the device every PingInterval and expects a frame back
// within PongTimeout. Frames arriving between pings are handled as they come.
// It returns when the device disconnects or stops answering.
func (h *Hub) heartbeat(name string, c *wsconn.Conn) {
	log := h.logger.With().Str("device", name).Logger()

	frames := make(chan string, 16)
	var readErr error
	go func() {
		defer close(frames)
		for {
			frame, err := c.ReadText(time.Time{})
			if err != nil {
				readErr = err
				return
			}
			frames <- frame
		}
	}()

	timer := time.NewTimer(h.cfg.PingInterval)
	defer timer.Stop()
	awaiting := false

	for {
		select {
		case frame, ok := <-frames:
			if !ok {
				if wsconn.IsNormalClose(readErr) {
					log.Info().Msg("device closed connection")
				} else {
					log.Warn().Err(readErr).Msg("device read failed")
				}
				return
			}
			h.handleFrame(name, frame)
			if awaiting {
				awaiting = false
				timer.Reset(h.cfg.PingInterval)
			}

		case <-timer.C:
			if awaiting {
				log.Warn().Msg("device unresponsive, disconnecting")
				return
			}
			log.Debug().Msg("sending PING")
			if err := c.WriteText(protocol.FramePing); err != nil {
				log.Warn().Err(err).Msg("ping failed")
				return
			}
			awaiting = true
			timer.Reset(h.cfg.PongTimeout)

		case <-h.done:
			return
		}
	}
}

func (h *Hub) handleFrame(name, frame string) {
	if strings.HasPrefix(frame, protocol.FrameStatus) {
		h.processStatus(name, frame)
		return
	}
	h.logger.Warn().Str("device", name).Str("frame", frame).Msg("unexpected frame")
}

func (h *Hub) processStatus(name, frame string) {
	brightness, color, err := ParseStatus(frame)
	if err != nil {
		h.logger.Warn().Err(err).Str("device", name).Str("frame", frame).Msg("ignoring status")
		return
	}

	h.mu.Lock()
	d, ok := h.devices[name]
	if ok {
		d.state.Brightness = brightness
		d.state.Color = color
	}
	h.mu.Unlock()
	if !ok {
		return
	}

	h.logger.Debug().Str("device", name).Int("brightness", brightness).Str("color", color).Msg("status updated")
	h.publish(protocol.EventDeviceStatus, map[string]any{
		"device":     name,
		"brightness": brightness,
		"color":      color,
	})
}

// SendCommand writes command to the device and updates its state from the
// command text. The returned message is what the phone client is shown.
func (h *Hub) SendCommand(name, command string) (string, error) {
	h.mu.RLock()
	d, ok := h.devices[name]
	var conn *wsconn.Conn
	if ok {
		conn = d.conn
	}
	h.mu.RUnlock()
	if !ok {
		return fmt.Sprintf("Error: Device '%s' not connected.", name), ErrDeviceNotConnected
	}

	if err := conn.WriteText(command); err != nil {
		h.logger.Warn().Err(err).Str("device", name).Msg("failed to send command")
		conn.Close()
		h.unregister(name, conn)
		return fmt.Sprintf("Error: Failed to send command. Device '%s' disconnected.", name), ErrDeviceDisconnected
	}

	brightness, color := ParseCommand(command)
	h.mu.Lock()
	if d, ok := h.devices[name]; ok && d.conn == conn {
		d.state.Brightness = brightness
		d.state.Color = color
	}
	h.mu.Unlock()

	h.logger.Info().Str("device", name).Str("command", command).Msg("command sent")
	h.publish(protocol.EventDeviceCommand, map[string]any{
		"device":     name,
		"command":    command,
		"brightness": brightness,
		"color":      color,
	})
	return fmt.Sprintf("Success: Command '%s' sent to '%s'.", command, name), nil
}

// SetOnline marks a registered device as online.
func (h *Hub) SetOnline(name string) error {
	h.mu.Lock()
	d, ok := h.devices[name]
	if ok {
		d.state.Status = protocol.DeviceOnline
	}
	h.mu.Unlock()
	if !ok {
		return ErrDeviceNotFound
	}

	h.logger.Info().Str("device", name).Msg("device is now online")
	h.publish(protocol.EventDeviceOnline, map[string]any{"device": name})
	return nil
}

// Snapshot returns the state of every device, sorted by name.
func (h *Hub) Snapshot() []protocol.DeviceState {
	h.mu.RLock()
	out := make([]protocol.DeviceState, 0, len(h.devices))
	for _, d := range h.devices {
		out = append(out, d.state)
	}
	h.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].DeviceName < out[j].DeviceName })
	return out
}

// Count returns the number of connected devices.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.devices)
}

func (h *Hub) publish(eventType string, payload map[string]any) {
	if h.nc == nil {
		return
	}
	ev := protocol.NewEvent(eventType, protocol.SourceDevices, payload)
	if err := natsserver.PublishEvent(h.nc, ev); err != nil {
		h.logger.Error().Err(err).Str("type", eventType).Msg("failed to publish event")
	}
}
