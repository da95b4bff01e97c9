// Package tasks scores the guided experiment: seven steps a participant
// completes by opening the app, finding the target device and setting it to
// the target brightness and color.
package tasks

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"

	"github.com/JuweiLin/ARProject/internal/natsserver"
	"github.com/JuweiLin/ARProject/pkg/protocol"
)

// Task names in experiment order.
const (
	TaskOpenApp          = "open_app"
	TaskAddDevice        = "add_device"
	TaskSelectDevice     = "select_device"
	TaskEnterDevice      = "enter_device"
	TaskControlDevice    = "control_device"
	TaskAdjustBrightness = "adjust_brightness"
	TaskChangeColor      = "change_color"
)

var taskOrder = []string{
	TaskOpenApp,
	TaskAddDevice,
	TaskSelectDevice,
	TaskEnterDevice,
	TaskControlDevice,
	TaskAdjustBrightness,
	TaskChangeColor,
}

// Target is the device state the participant is asked to reach.
type Target struct {
	Device     string `mapstructure:"target_device"`
	Brightness int    `mapstructure:"target_brightness"`
	Color      string `mapstructure:"target_color"`
}

// DefaultTarget is the stock experiment target.
var DefaultTarget = Target{Device: "Rectangle", Brightness: 80, Color: "Blue"}

// Tracker holds task progress and the action log for one experiment run.
type Tracker struct {
	mu        sync.Mutex
	target    Target
	tasks     []protocol.Task
	actions   []protocol.UserAction
	run       string
	startedAt time.Time

	store  *Store
	nc     *nats.Conn
	logger zerolog.Logger
	sub    *nats.Subscription
}

// New creates a Tracker with every task pending. store and nc may be nil.
func New(target Target, store *Store, nc *nats.Conn, logger zerolog.Logger) *Tracker {
	t := &Tracker{
		target: target,
		store:  store,
		nc:     nc,
		logger: logger.With().Str("component", "tasks").Logger(),
	}
	t.reset()
	return t
}

func (t *Tracker) reset() {
	t.tasks = make([]protocol.Task, len(taskOrder))
	for i, name := range taskOrder {
		t.tasks[i] = protocol.Task{ID: i + 1, Name: name, Status: protocol.TaskPending}
	}
	t.actions = nil
	t.run = uuid.NewString()
}

// Start records the experiment start time and subscribes to hub events.
func (t *Tracker) Start() error {
	t.mu.Lock()
	t.startedAt = time.Now()
	run := t.run
	t.mu.Unlock()
	t.logger.Info().Str("run", run).Msg("experiment started")

	if t.nc == nil {
		return nil
	}
	sub, err := natsserver.SubscribeEvents(t.nc, protocol.SubjectAllEvents, t.logger, t.HandleEvent)
	if err != nil {
		return fmt.Errorf("subscribe events: %w", err)
	}
	t.sub = sub
	return nil
}

// Reset starts a new experiment run with every task pending and publishes
// the fresh list.
func (t *Tracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.reset()
	t.startedAt = time.Now()
	t.logger.Info().Str("run", t.run).Msg("experiment reset")
	t.publish()
}

// Close unsubscribes from hub events.
func (t *Tracker) Close() {
	if t.sub != nil {
		t.sub.Unsubscribe()
	}
}

// SetTarget replaces the experiment target. Progress already made is kept.
func (t *Tracker) SetTarget(target Target) {
	t.mu.Lock()
	t.target = target
	t.mu.Unlock()
	t.logger.Info().Str("device", target.Device).Int("brightness", target.Brightness).
		Str("color", target.Color).Msg("experiment target updated")
}

// Target returns the current experiment target.
func (t *Tracker) Target() Target {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.target
}

// HandleEvent applies a hub event to the task list.
func (t *Tracker) HandleEvent(ev protocol.Event) {
	switch ev.Type {
	case protocol.EventAppOpened:
		t.AppOpened()
	case protocol.EventDeviceDetector:
		t.DetectorOpened()
	case protocol.EventDeviceOnline:
		t.DeviceSelected(ev.String("device"))
	case protocol.EventDeviceEntered:
		t.DeviceEntered(ev.String("device"))
	case protocol.EventDeviceCommand:
		t.DeviceCommanded(ev.String("device"), ev.Int("brightness"), ev.String("color"))
	}
}

// AppOpened completes open_app.
func (t *Tracker) AppOpened() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.record(TaskOpenApp, "WebSocket Connected")
	t.setStatus(TaskOpenApp, protocol.TaskCompleted)
}

// DetectorOpened completes add_device.
func (t *Tracker) DetectorOpened() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.record(TaskAddDevice, "User clicked add device")
	t.setStatus(TaskAddDevice, protocol.TaskCompleted)
}

// DeviceSelected completes select_device when device is the target.
func (t *Tracker) DeviceSelected(device string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.record(TaskSelectDevice, device)
	if device == t.target.Device {
		t.setStatus(TaskSelectDevice, protocol.TaskCompleted)
		return
	}
	t.logger.Info().Str("device", device).Msg("wrong device selected")
}

// DeviceEntered completes enter_device when device is the target.
func (t *Tracker) DeviceEntered(device string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.record(TaskEnterDevice, device)
	if device == t.target.Device {
		t.setStatus(TaskEnterDevice, protocol.TaskCompleted)
		return
	}
	t.logger.Info().Str("device", device).Msg("wrong device entered")
}

// DeviceCommanded scores control_device, adjust_brightness and change_color
// against the target. Commands to other devices are ignored. Each of the
// three tasks falls back to pending when the new state no longer matches.
// Commands update statuses only and record no user action.
func (t *Tracker) DeviceCommanded(device string, brightness int, color string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if device != t.target.Device {
		t.logger.Info().Str("device", device).Msg("command sent to wrong device")
		return
	}
	t.setStatus(TaskControlDevice, statusIf(color != protocol.ColorOff))
	t.setStatus(TaskAdjustBrightness, statusIf(brightness == t.target.Brightness))
	t.setStatus(TaskChangeColor, statusIf(color == t.target.Color))
}

func statusIf(ok bool) string {
	if ok {
		return protocol.TaskCompleted
	}
	return protocol.TaskPending
}

// record appends a user action. Callers hold t.mu.
func (t *Tracker) record(task, value string) {
	a := protocol.UserAction{
		ID:    uuid.NewString(),
		Task:  task,
		Time:  time.Now(),
		Value: value,
	}
	t.actions = append(t.actions, a)
	t.logger.Info().Str("task", task).Str("value", value).Msg("user action recorded")

	if t.store != nil {
		if err := t.store.Save(t.run, a); err != nil {
			t.logger.Error().Err(err).Str("task", task).Msg("failed to persist user action")
		}
	}
}

// setStatus updates a task and publishes the full list. Callers hold t.mu.
func (t *Tracker) setStatus(task, status string) {
	for i := range t.tasks {
		if t.tasks[i].Name == task {
			t.tasks[i].Status = status
			t.logger.Debug().Str("task", task).Str("status", status).Msg("task status updated")
		}
	}
	t.publish()
}

func (t *Tracker) publish() {
	if t.nc == nil {
		return
	}
	data, err := json.Marshal(protocol.TaskUpdate{Type: protocol.TypeTaskUpdate, Data: t.copyTasks()})
	if err != nil {
		return
	}
	if err := t.nc.Publish(protocol.SubjectTasks, data); err != nil {
		t.logger.Error().Err(err).Msg("failed to publish task update")
	}
}

func (t *Tracker) copyTasks() []protocol.Task {
	return append([]protocol.Task(nil), t.tasks...)
}

// Tasks returns a copy of the task list.
func (t *Tracker) Tasks() []protocol.Task {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.copyTasks()
}

// Actions returns a copy of this run's action log.
func (t *Tracker) Actions() []protocol.UserAction {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]protocol.UserAction(nil), t.actions...)
}

// Run returns the identifier of the current experiment run.
func (t *Tracker) Run() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.run
}

// StartedAt returns when Start was called.
func (t *Tracker) StartedAt() time.Time {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.startedAt
}

// Summary renders task progress as "name=status" pairs.
func (t *Tracker) Summary() string {
	tasks := t.Tasks()
	parts := make([]string, len(tasks))
	for i, task := range tasks {
		parts[i] = task.Name + "=" + task.Status
	}
	return strings.Join(parts, " ")
}
