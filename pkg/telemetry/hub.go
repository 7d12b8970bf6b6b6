package telemetry

import (
	"context"
	"net"
	"net/http"
	"sync"

	"github.com/golang/glog"
	"golang.org/x/net/websocket"
)

// DefaultClientBacklog is the number of events buffered per client.
const DefaultClientBacklog = 64

// Hub streams encoded events to WebSocket clients as binary frames.
// Slow clients lose events instead of stalling the others.
type Hub struct {
	Backlog int

	lock    sync.Mutex
	clients map[*websocket.Conn]chan []byte
}

// Handler gets the http.Handler serving WebSocket clients.
func (h *Hub) Handler() http.Handler {
	return websocket.Handler(h.serve)
}

// Clients gets the number of connected clients.
func (h *Hub) Clients() int {
	h.lock.Lock()
	defer h.lock.Unlock()
	return len(h.clients)
}

// Broadcast sends payload to all clients.
func (h *Hub) Broadcast(payload []byte) {
	h.lock.Lock()
	defer h.lock.Unlock()
	for conn, ch := range h.clients {
		select {
		case ch <- payload:
		default:
			glog.V(2).Infof("hub: client %s lagging", conn.RemoteAddr())
		}
	}
}

func (h *Hub) serve(conn *websocket.Conn) {
	backlog := h.Backlog
	if backlog <= 0 {
		backlog = DefaultClientBacklog
	}
	ch := make(chan []byte, backlog)
	h.lock.Lock()
	if h.clients == nil {
		h.clients = make(map[*websocket.Conn]chan []byte)
	}
	h.clients[conn] = ch
	h.lock.Unlock()
	defer func() {
		h.lock.Lock()
		delete(h.clients, conn)
		h.lock.Unlock()
	}()

	closed := make(chan struct{})
	go func() {
		var discard []byte
		for websocket.Message.Receive(conn, &discard) == nil {
		}
		close(closed)
	}()
	for {
		select {
		case payload := <-ch:
			if err := websocket.Message.Send(conn, payload); err != nil {
				return
			}
		case <-closed:
			return
		}
	}
}

// Server serves the Hub over HTTP.
type Server struct {
	Addr string
	Path string
	Hub  *Hub
}

// Name implements framework.Named.
func (s *Server) Name() string {
	return "telemetry-ws"
}

// Run implements Runnable.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.Addr)
	if err != nil {
		return err
	}
	path := s.Path
	if path == "" {
		path = "/events"
	}
	mux := http.NewServeMux()
	mux.Handle(path, s.Hub.Handler())
	srv := &http.Server{Handler: mux}
	glog.Infof("telemetry: serving ws://%s%s", ln.Addr(), path)
	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(ln) }()
	select {
	case <-ctx.Done():
		srv.Close()
		<-errCh
		return ctx.Err()
	case err := <-errCh:
		return err
	}
}
