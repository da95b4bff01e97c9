// Package wsconn wraps gorilla websocket connections with serialized writes
// and keeps sets of them for fan-out.
package wsconn

import (
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// ErrClosed is returned when writing to a closed connection.
var ErrClosed = errors.New("connection closed")

const writeWait = 10 * time.Second

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Conn is a websocket connection safe for concurrent writers.
type Conn struct {
	ID string

	ws        *websocket.Conn
	writeMu   sync.Mutex
	closed    chan struct{}
	closeOnce sync.Once
}

// New wraps ws and assigns it a random ID.
func New(ws *websocket.Conn) *Conn {
	return &Conn{
		ID:     uuid.NewString(),
		ws:     ws,
		closed: make(chan struct{}),
	}
}

// Upgrade upgrades an HTTP request to a websocket connection.
func Upgrade(w http.ResponseWriter, r *http.Request) (*Conn, error) {
	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return nil, err
	}
	return New(ws), nil
}

// Dial opens a client connection to url.
func Dial(url string) (*Conn, error) {
	ws, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		return nil, err
	}
	return New(ws), nil
}

// RemoteAddr returns the peer address.
func (c *Conn) RemoteAddr() string { return c.ws.RemoteAddr().String() }

// WriteText sends a text frame.
func (c *Conn) WriteText(s string) error {
	return c.write(websocket.TextMessage, []byte(s))
}

// WriteJSON sends v as a JSON text frame.
func (c *Conn) WriteJSON(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return c.write(websocket.TextMessage, data)
}

func (c *Conn) write(kind int, data []byte) error {
	select {
	case <-c.closed:
		return ErrClosed
	default:
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
	return c.ws.WriteMessage(kind, data)
}

// ReadText blocks for the next data frame. A zero deadline waits forever.
// After a deadline expires the connection is unusable.
func (c *Conn) ReadText(deadline time.Time) (string, error) {
	if err := c.ws.SetReadDeadline(deadline); err != nil {
		return "", err
	}
	_, data, err := c.ws.ReadMessage()
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// Closed is closed once Close has been called.
func (c *Conn) Closed() <-chan struct{} { return c.closed }

// Close sends a close frame and closes the connection. Safe to call more than once.
func (c *Conn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.closed)
		c.writeMu.Lock()
		_ = c.ws.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second),
		)
		c.writeMu.Unlock()
		err = c.ws.Close()
	})
	return err
}

// IsNormalClose reports whether err is a clean close by the peer.
func IsNormalClose(err error) bool {
	return websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway)
}

// Set is a concurrency-safe set of connections.
type Set struct {
	mu    sync.RWMutex
	conns map[string]*Conn
}

// NewSet creates an empty Set.
func NewSet() *Set {
	return &Set{conns: make(map[string]*Conn)}
}

// Add inserts c.
func (s *Set) Add(c *Conn) {
	s.mu.Lock()
	s.conns[c.ID] = c
	s.mu.Unlock()
}

// Remove deletes c if present.
func (s *Set) Remove(c *Conn) {
	s.mu.Lock()
	delete(s.conns, c.ID)
	s.mu.Unlock()
}

// Len returns the number of connections.
func (s *Set) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.conns)
}

// BroadcastJSON sends v to every connection. Connections that fail are
// removed from the set and returned.
func (s *Set) BroadcastJSON(v any) (sent int, dropped []*Conn) {
	data, err := json.Marshal(v)
	if err != nil {
		return 0, nil
	}

	s.mu.RLock()
	conns := make([]*Conn, 0, len(s.conns))
	for _, c := range s.conns {
		conns = append(conns, c)
	}
	s.mu.RUnlock()

	for _, c := range conns {
		if err := c.write(websocket.TextMessage, data); err != nil {
			dropped = append(dropped, c)
			continue
		}
		sent++
	}

	if len(dropped) > 0 {
		s.mu.Lock()
		for _, c := range dropped {
			delete(s.conns, c.ID)
		}
		s.mu.Unlock()
	}
	return sent, dropped
}

// CloseAll closes and removes every connection.
func (s *Set) CloseAll() {
	s.mu.Lock()
	conns := s.conns
	s.conns = make(map[string]*Conn)
	s.mu.Unlock()
	for _, c := range conns {
		c.Close()
	}
}
