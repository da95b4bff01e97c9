package natsserver

import (
	"fmt"
	"time"

	"github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"
)

// Config holds settings for the embedded NATS server.
type Config struct {
	Host  string // Empty keeps the bus in-process only.
	Port  int
	Token string // If non-empty, requires token auth for NATS connections.
}

// Server wraps the embedded NATS server that carries hub events.
type Server struct {
	ns     *server.Server
	nc     *nats.Conn
	logger zerolog.Logger
}

// New creates and starts the embedded NATS server.
func New(cfg Config, logger zerolog.Logger) (*Server, error) {
	opts := &server.Options{
		DontListen: cfg.Host == "",
		Host:       cfg.Host,
		Port:       cfg.Port,
		NoLog:      true,
		NoSigs:     true,
	}
	if cfg.Token != "" {
		opts.Authorization = cfg.Token
	}

	ns, err := server.NewServer(opts)
	if err != nil {
		return nil, fmt.Errorf("nats server create: %w", err)
	}

	ns.SetLoggerV2(newZerologAdapter(logger), false, false, false)

	go ns.Start()

	if !ns.ReadyForConnections(10 * time.Second) {
		return nil, fmt.Errorf("nats server failed to become ready")
	}

	nc, err := nats.Connect(ns.ClientURL(), ConnectOptions(ns, cfg.Token)...)
	if err != nil {
		ns.Shutdown()
		return nil, fmt.Errorf("nats connect: %w", err)
	}

	logger.Info().Str("client_url", ns.ClientURL()).Bool("in_process", opts.DontListen).Msg("event bus started")

	return &Server{ns: ns, nc: nc, logger: logger}, nil
}

// ConnectOptions returns the options a client in the same process needs.
func ConnectOptions(ns *server.Server, token string) []nats.Option {
	opts := []nats.Option{nats.InProcessServer(ns)}
	if token != "" {
		opts = append(opts, nats.Token(token))
	}
	return opts
}

// Conn returns the internal NATS client connection.
func (s *Server) Conn() *nats.Conn { return s.nc }

// NATSServer returns the raw server for InProcessServer connections.
func (s *Server) NATSServer() *server.Server { return s.ns }

// ClientURL returns the NATS client connection URL.
func (s *Server) ClientURL() string { return s.ns.ClientURL() }

// Shutdown drains the internal connection and stops the server.
func (s *Server) Shutdown() {
	s.logger.Info().Msg("shutting down event bus")
	s.nc.Drain()
	s.ns.Shutdown()
	s.ns.WaitForShutdown()
}
