package protocol

import "time"

// StatusResponse is returned by GET /api/v1/status.
type StatusResponse struct {
	Status            string    `json:"status"`
	Uptime            string    `json:"uptime"`
	NATSRunning       bool      `json:"nats_running"`
	StartedAt         time.Time `json:"started_at"`
	ExperimentStarted time.Time `json:"experiment_started"`
	DeviceCount       int       `json:"device_count"`
	BrowserClients    int       `json:"browser_clients"`
	HeadsetClients    int       `json:"headset_clients"`
}

// DevicesResponse is returned by GET /devices on the phone server and
// GET /api/v1/devices on the control socket.
type DevicesResponse struct {
	Devices []DeviceState `json:"devices"`
}

// TasksResponse is returned by GET /api/v1/tasks.
type TasksResponse struct {
	Run               string       `json:"run"`
	ExperimentStarted time.Time    `json:"experiment_started"`
	Tasks             []Task       `json:"tasks"`
	Actions           []UserAction `json:"actions"`
}

// RunActionsResponse is returned by GET /api/v1/runs/{run}/actions.
type RunActionsResponse struct {
	Run     string       `json:"run"`
	Actions []UserAction `json:"actions"`
}
