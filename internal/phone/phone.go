// Package phone serves the HTTP API and page used by the phone app.
package phone

import (
	"context"
	"embed"
	"io/fs"
	"net"
	"net/http"

	"github.com/nats-io/nats.go"
	"github.com/rs/cors"
	"github.com/rs/zerolog"

	"github.com/JuweiLin/ARProject/pkg/protocol"
)

//go:embed static
var content embed.FS

// DeviceHub is the part of the device hub the phone API drives.
type DeviceHub interface {
	Snapshot() []protocol.DeviceState
	SendCommand(device, command string) (string, error)
	SetOnline(device string) error
}

// Server serves the phone HTTP API on a TCP port.
type Server struct {
	listen     string
	hub        DeviceHub
	nc         *nats.Conn
	eventBus   *EventBus
	httpServer *http.Server
	logger     zerolog.Logger
	sub        *nats.Subscription
}

// New creates a phone server. ws serves GET /ws and may be nil. A nil nc
// disables event publishing and the live event stream feed.
func New(listen string, hub DeviceHub, ws http.Handler, nc *nats.Conn, logger zerolog.Logger) *Server {
	s := &Server{
		listen:   listen,
		hub:      hub,
		nc:       nc,
		eventBus: NewEventBus(50),
		logger:   logger.With().Str("component", "phone").Logger(),
	}

	mux := http.NewServeMux()

	staticFS, _ := fs.Sub(content, "static")
	mux.Handle("GET /static/", http.StripPrefix("/static/", http.FileServer(http.FS(staticFS))))
	mux.HandleFunc("GET /{$}", s.handleIndex)

	mux.HandleFunc("GET /devices", s.handleDevices)
	mux.HandleFunc("POST /command", s.handleCommand)
	mux.HandleFunc("POST /set_device_online", s.handleSetOnline)
	mux.HandleFunc("POST /add_device_detector", s.handleAddDetector)
	mux.HandleFunc("POST /enter_device", s.handleEnterDevice)
	mux.HandleFunc("GET /events/stream", s.handleEventStream)
	if ws != nil {
		mux.Handle("GET /ws", ws)
	}

	c := cors.New(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
	})
	s.httpServer = &http.Server{Handler: c.Handler(mux)}
	return s
}

// Handler returns the full phone API handler including CORS.
func (s *Server) Handler() http.Handler { return s.httpServer.Handler }

// Subscribe feeds hub events into the event stream.
func (s *Server) Subscribe() error {
	if s.nc == nil || s.sub != nil {
		return nil
	}
	sub, err := s.nc.Subscribe(protocol.SubjectAllEvents, func(msg *nats.Msg) {
		s.eventBus.Publish(msg.Data)
	})
	if err != nil {
		return err
	}
	s.sub = sub
	return nil
}

// Start begins listening on TCP. Blocks until Shutdown or error.
func (s *Server) Start() error {
	if err := s.Subscribe(); err != nil {
		return err
	}
	ln, err := net.Listen("tcp", s.listen)
	if err != nil {
		return err
	}
	s.logger.Info().Str("listen", s.listen).Msg("phone server listening")
	return s.httpServer.Serve(ln)
}

// Shutdown gracefully stops the phone server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.sub != nil {
		s.sub.Unsubscribe()
	}
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	data, err := content.ReadFile("static/index.html")
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(data)
}
