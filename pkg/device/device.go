// Package device is the device side of the hub protocol: it registers under
// a name, answers PING with its current status and applies commands.
package device

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/JuweiLin/ARProject/internal/wsconn"
	"github.com/JuweiLin/ARProject/pkg/protocol"
)

// Config holds connection options for a device.
type Config struct {
	URL        string
	Name       string
	Brightness int
	Color      string
}

// Device is a connected lighting device.
type Device struct {
	Name string

	conn   *wsconn.Conn
	logger zerolog.Logger

	mu         sync.Mutex
	brightness int
	color      string

	commands  atomic.Int64
	pings     atomic.Int64
	lastCmd   atomic.Value // stores string
	onCommand func(string)
}

// Connect dials the hub and registers the device.
func Connect(cfg Config, logger zerolog.Logger) (*Device, error) {
	if cfg.Name == "" {
		return nil, fmt.Errorf("device name is required")
	}
	conn, err := wsconn.Dial(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", cfg.URL, err)
	}
	if err := conn.WriteText(protocol.FrameDeviceName + cfg.Name); err != nil {
		conn.Close()
		return nil, fmt.Errorf("register: %w", err)
	}

	color := cfg.Color
	if color == "" {
		color = protocol.ColorOff
	}
	d := &Device{
		Name:       cfg.Name,
		conn:       conn,
		logger:     logger.With().Str("device", cfg.Name).Logger(),
		brightness: cfg.Brightness,
		color:      color,
	}
	d.lastCmd.Store("")
	d.logger.Info().Str("url", cfg.URL).Msg("registered with hub")
	return d, nil
}

// OnCommand registers a callback run after each command is applied.
// Must be called before Run.
func (d *Device) OnCommand(fn func(command string)) { d.onCommand = fn }

// Run reads frames until ctx is cancelled or the hub closes the connection.
// The connection is closed when Run returns.
func (d *Device) Run(ctx context.Context) error {
	defer d.conn.Close()
	go func() {
		select {
		case <-ctx.Done():
			d.conn.Close()
		case <-d.conn.Closed():
		}
	}()

	for {
		frame, err := d.conn.ReadText(time.Time{})
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		if frame == protocol.FramePing {
			d.pings.Add(1)
			if err := d.conn.WriteText(d.StatusFrame()); err != nil {
				return err
			}
			continue
		}
		d.apply(frame)
	}
}

func (d *Device) apply(command string) {
	parts := strings.Fields(command)
	brightness, color := 0, protocol.ColorOff
	if len(parts) == 2 {
		if b, err := strconv.Atoi(parts[1]); err == nil {
			brightness, color = b, parts[0]
		}
	}
	d.mu.Lock()
	d.brightness, d.color = brightness, color
	d.mu.Unlock()

	d.commands.Add(1)
	d.lastCmd.Store(command)
	d.logger.Info().Str("command", command).Msg("command applied")
	if d.onCommand != nil {
		d.onCommand(command)
	}
}

// StatusFrame renders the current state as a STATUS frame.
func (d *Device) StatusFrame() string {
	b, c := d.State()
	return fmt.Sprintf("%sbrightness=%d,color=%s", protocol.FrameStatus, b, c)
}

// State returns the current brightness and color.
func (d *Device) State() (brightness int, color string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.brightness, d.color
}

// Commands returns how many commands have been received.
func (d *Device) Commands() int64 { return d.commands.Load() }

// Pings returns how many PINGs have been answered.
func (d *Device) Pings() int64 { return d.pings.Load() }

// LastCommand returns the most recent raw command text.
func (d *Device) LastCommand() string { return d.lastCmd.Load().(string) }

// Done is closed once the connection has been closed.
func (d *Device) Done() <-chan struct{} { return d.conn.Closed() }

// Close disconnects from the hub.
func (d *Device) Close() error { return d.conn.Close() }
