// Package headset serves the AR headset websocket and keeps it in sync with
// experiment task progress.
package headset

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"

	"github.com/JuweiLin/ARProject/internal/wsconn"
	"github.com/JuweiLin/ARProject/pkg/protocol"
)

// TaskSource provides the current task list.
type TaskSource interface {
	Tasks() []protocol.Task
}

// Server pushes task_update frames to every connected headset.
type Server struct {
	listen     string
	source     TaskSource
	clients    *wsconn.Set
	nc         *nats.Conn
	logger     zerolog.Logger
	httpServer *http.Server
	sub        *nats.Subscription
}

// New creates a headset server listening on listen. A nil nc disables the
// task subscription; Push can still be called directly.
func New(listen string, source TaskSource, nc *nats.Conn, logger zerolog.Logger) *Server {
	s := &Server{
		listen:  listen,
		source:  source,
		clients: wsconn.NewSet(),
		nc:      nc,
		logger:  logger.With().Str("component", "headset").Logger(),
	}
	s.httpServer = &http.Server{Handler: s.Handler()}
	return s
}

// Handler routes /ws to the headset websocket.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /ws", s.handleWS)
	return mux
}

// Subscribe starts forwarding task updates published on the bus.
func (s *Server) Subscribe() error {
	if s.nc == nil || s.sub != nil {
		return nil
	}
	sub, err := s.nc.Subscribe(protocol.SubjectTasks, s.handleTasks)
	if err != nil {
		return err
	}
	s.sub = sub
	return nil
}

// Start subscribes to task updates and listens on TCP. Blocks until
// Shutdown or error.
func (s *Server) Start() error {
	if err := s.Subscribe(); err != nil {
		return err
	}
	ln, err := net.Listen("tcp", s.listen)
	if err != nil {
		return err
	}
	s.logger.Info().Str("listen", s.listen).Msg("headset server listening")
	return s.httpServer.Serve(ln)
}

// Shutdown stops the subscription and disconnects every headset.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.sub != nil {
		s.sub.Unsubscribe()
	}
	s.clients.CloseAll()
	return s.httpServer.Shutdown(ctx)
}

// ClientCount returns the number of connected headsets.
func (s *Server) ClientCount() int { return s.clients.Len() }

func (s *Server) handleTasks(msg *nats.Msg) {
	var u protocol.TaskUpdate
	if err := json.Unmarshal(msg.Data, &u); err != nil {
		s.logger.Error().Err(err).Msg("bad task update message")
		return
	}
	s.Push(u.Data)
}

// Push sends the task list to every headset. Headsets that fail are dropped.
func (s *Server) Push(tasks []protocol.Task) int {
	sent, dropped := s.clients.BroadcastJSON(protocol.TaskUpdate{Type: protocol.TypeTaskUpdate, Data: tasks})
	for _, c := range dropped {
		s.logger.Warn().Str("client", c.ID).Msg("dropping unreachable headset")
		c.Close()
	}
	s.logger.Debug().Int("headsets", sent).Msg("task update sent")
	return sent
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	c, err := wsconn.Upgrade(w, r)
	if err != nil {
		s.logger.Warn().Err(err).Msg("headset upgrade failed")
		return
	}
	s.logger.Info().Str("client", c.ID).Str("remote", c.RemoteAddr()).Msg("headset connected")

	if err := c.WriteJSON(protocol.TaskUpdate{Type: protocol.TypeTaskUpdate, Data: s.source.Tasks()}); err != nil {
		s.logger.Warn().Err(err).Str("client", c.ID).Msg("initial task push failed")
		c.Close()
		return
	}
	s.clients.Add(c)

	defer func() {
		s.clients.Remove(c)
		c.Close()
		s.logger.Info().Str("client", c.ID).Msg("headset disconnected")
	}()
	for {
		msg, err := c.ReadText(time.Time{})
		if err != nil {
			if !wsconn.IsNormalClose(err) {
				s.logger.Debug().Err(err).Str("client", c.ID).Msg("headset read ended")
			}
			return
		}
		s.logger.Info().Str("client", c.ID).Str("message", msg).Msg("received from headset")
	}
}
