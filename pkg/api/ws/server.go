// Package ws serves the broadcast endpoint. Clients send join messages and
// receive change envelopes for the rooms they joined.
package ws

import (
	"context"
	"net/http"
	"strings"
	"sync"

	"enceladus/pkg/rooms"
	"enceladus/pkg/state/logger"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

type Options struct {
	Registry       *rooms.Registry
	SendBuffer     int
	MaxMessageSize int64
	// AllowedOrigins empty accepts every origin; "*" does too.
	AllowedOrigins []string
}

type Server struct {
	reg      *rooms.Registry
	upgrader websocket.Upgrader
	buffer   int
	maxMsg   int64

	mu       sync.Mutex
	closing  bool
	clients  map[*client]struct{}
	handlers sync.WaitGroup
}

func NewServer(o Options) *Server {
	s := &Server{
		reg:     o.Registry,
		buffer:  o.SendBuffer,
		maxMsg:  o.MaxMessageSize,
		clients: make(map[*client]struct{}),
	}
	if s.buffer <= 0 {
		s.buffer = 64
	}
	if s.maxMsg <= 0 {
		s.maxMsg = 64 * 1024
	}
	origins := o.AllowedOrigins
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin: func(r *http.Request) bool {
			return originAllowed(r.Header.Get("Origin"), origins)
		},
	}
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	logger.LogRequest(r)
	if !s.enter() {
		http.Error(w, "shutting down", http.StatusServiceUnavailable)
		return
	}
	defer s.handlers.Done()

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Warn("ws_upgrade_failed", "remote", r.RemoteAddr, "error", err)
		return
	}

	c := newClient(uuid.NewString(), conn, s.buffer)
	if !s.track(c) {
		c.goAway()
		return
	}
	defer s.untrack(c)

	id := s.reg.Register(c)
	logger.Info("ws_connected", "conn", c.id, "remote", r.RemoteAddr)

	go c.writePump()
	c.readLoop(s.maxMsg, func(data []byte) {
		joined := s.reg.HandleJoin(id, data)
		logger.Debug("ws_join", "conn", c.id, "rooms", len(joined))
	})

	s.reg.LeaveAll(id)
	logger.Info("ws_disconnected", "conn", c.id)
}

// Close disconnects every client with a going-away frame and waits for
// their handlers to return or ctx to end. Later upgrades are refused.
func (s *Server) Close(ctx context.Context) error {
	s.mu.Lock()
	s.closing = true
	open := make([]*client, 0, len(s.clients))
	for c := range s.clients {
		open = append(open, c)
	}
	s.mu.Unlock()

	for _, c := range open {
		c.goAway()
	}
	logger.Info("ws_closing", "clients", len(open))

	done := make(chan struct{})
	go func() {
		s.handlers.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Server) enter() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closing {
		return false
	}
	s.handlers.Add(1)
	return true
}

func (s *Server) track(c *client) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closing {
		return false
	}
	s.clients[c] = struct{}{}
	return true
}

func (s *Server) untrack(c *client) {
	s.mu.Lock()
	delete(s.clients, c)
	s.mu.Unlock()
}

func originAllowed(origin string, allowed []string) bool {
	if origin == "" || len(allowed) == 0 {
		return true
	}
	for _, a := range allowed {
		if a == "*" || strings.EqualFold(a, origin) {
			return true
		}
	}
	return false
}
