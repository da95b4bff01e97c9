package api

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/rs/zerolog"

	"github.com/JuweiLin/ARProject/pkg/protocol"
)

// DeviceSource reports connected devices.
type DeviceSource interface {
	Snapshot() []protocol.DeviceState
	Count() int
}

// TaskSource reports and resets experiment progress.
type TaskSource interface {
	Tasks() []protocol.Task
	Actions() []protocol.UserAction
	Run() string
	StartedAt() time.Time
	Reset()
}

// ActionHistory reads persisted user actions of past and current runs.
type ActionHistory interface {
	ListRun(run string) ([]protocol.UserAction, error)
}

// ClientCounter reports how many websocket clients are connected.
type ClientCounter interface {
	ClientCount() int
}

// Sources are the daemon components the control API reports on.
// History, Browsers and Headsets may be nil.
type Sources struct {
	Devices  DeviceSource
	Tasks    TaskSource
	History  ActionHistory
	Browsers ClientCounter
	Headsets ClientCounter
}

// Server serves the arhubd control API over a Unix socket.
type Server struct {
	socketPath string
	src        Sources
	startedAt  time.Time
	httpServer *http.Server
	logger     zerolog.Logger
}

// New creates an API server.
func New(socketPath string, src Sources, startedAt time.Time, logger zerolog.Logger) *Server {
	s := &Server{
		socketPath: socketPath,
		src:        src,
		startedAt:  startedAt,
		logger:     logger.With().Str("component", "api").Logger(),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/status", s.handleStatus)
	mux.HandleFunc("GET /api/v1/devices", s.handleDevices)
	mux.HandleFunc("GET /api/v1/tasks", s.handleTasks)
	mux.HandleFunc("POST /api/v1/tasks/reset", s.handleTasksReset)
	mux.HandleFunc("GET /api/v1/runs/{run}/actions", s.handleRunActions)

	s.httpServer = &http.Server{Handler: mux}
	return s
}

// Handler returns the API routes.
func (s *Server) Handler() http.Handler { return s.httpServer.Handler }

// Start begins listening on the Unix socket. Blocks until Shutdown.
func (s *Server) Start() error {
	os.Remove(s.socketPath)

	ln, err := net.Listen("unix", s.socketPath)
	if err != nil {
		return err
	}
	os.Chmod(s.socketPath, 0600)

	s.logger.Info().Str("socket", s.socketPath).Msg("API server listening")
	return s.httpServer.Serve(ln)
}

// Shutdown gracefully stops the API server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	resp := protocol.StatusResponse{
		Status:            "ok",
		Uptime:            time.Since(s.startedAt).Truncate(time.Second).String(),
		NATSRunning:       true,
		StartedAt:         s.startedAt,
		ExperimentStarted: s.src.Tasks.StartedAt(),
		DeviceCount:       s.src.Devices.Count(),
	}
	if s.src.Browsers != nil {
		resp.BrowserClients = s.src.Browsers.ClientCount()
	}
	if s.src.Headsets != nil {
		resp.HeadsetClients = s.src.Headsets.ClientCount()
	}
	writeJSON(w, resp)
}

func (s *Server) handleDevices(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, protocol.DevicesResponse{Devices: s.src.Devices.Snapshot()})
}

func (s *Server) handleTasks(w http.ResponseWriter, r *http.Request) {
	actions := s.src.Tasks.Actions()
	if actions == nil {
		actions = []protocol.UserAction{}
	}
	writeJSON(w, protocol.TasksResponse{
		Run:               s.src.Tasks.Run(),
		ExperimentStarted: s.src.Tasks.StartedAt(),
		Tasks:             s.src.Tasks.Tasks(),
		Actions:           actions,
	})
}

func (s *Server) handleTasksReset(w http.ResponseWriter, r *http.Request) {
	s.src.Tasks.Reset()
	s.logger.Info().Msg("experiment reset via API")
	writeJSON(w, map[string]string{"status": "reset"})
}

func (s *Server) handleRunActions(w http.ResponseWriter, r *http.Request) {
	if s.src.History == nil {
		http.Error(w, "action persistence is disabled", http.StatusNotFound)
		return
	}
	run := r.PathValue("run")
	actions, err := s.src.History.ListRun(run)
	if err != nil {
		s.logger.Error().Err(err).Str("run", run).Msg("list run actions")
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, protocol.RunActionsResponse{Run: run, Actions: actions})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}
