// Package websocket exposes the relay to browsers over websocket connections.
package websocket

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"polyglot-chat/contract"
	"polyglot-chat/domain"
	"polyglot-chat/observability"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
)

const shutdownReason = "server shutting down"

// Server upgrades HTTP requests and keeps track of the live connections
// so that a shutdown can say goodbye to every one of them.
type Server struct {
	log          *slog.Logger
	orchestrator contract.IOrchestrator
	monitoring   *observability.MonitoringManager
	cfg          Config
	upgrader     websocket.Upgrader
	baseCtx      context.Context

	mu          sync.Mutex
	connections map[domain.Handle]*Connection
}

func NewServer(ctx context.Context, log *slog.Logger, orchestrator contract.IOrchestrator,
	monitoring *observability.MonitoringManager, cfg Config) *Server {
	return &Server{
		log:          log,
		orchestrator: orchestrator,
		monitoring:   monitoring,
		cfg:          cfg,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// The browser client may be served from any origin.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		baseCtx:     ctx,
		connections: make(map[domain.Handle]*Connection),
	}
}

// Router exposes the websocket endpoint, the health check and the stats snapshot.
func (s *Server) Router() *mux.Router {
	router := mux.NewRouter()
	router.HandleFunc("/ws", s.HandleWebsocket).Methods(http.MethodGet)
	router.HandleFunc("/health", s.HandleHealth).Methods(http.MethodGet)
	router.HandleFunc("/stats", s.HandleStats).Methods(http.MethodGet)
	return router
}

func (s *Server) HandleWebsocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error.
		s.log.Debug("Websocket upgrade failed", "remote", r.RemoteAddr, "error", err)
		return
	}

	handle := domain.Handle(uuid.NewString())
	c := NewConnection(handle, conn, s.orchestrator, s.log, s.cfg, s.remove)
	s.add(c)
	s.log.Debug("Connection accepted", "handle", handle, "remote", r.RemoteAddr)
	c.Serve(s.baseCtx)
}

func (s *Server) HandleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, map[string]string{"status": "ok"})
}

func (s *Server) HandleStats(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, s.monitoring.GetLatest())
}

// Len returns the number of live connections, joined or not.
func (s *Server) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.connections)
}

// Shutdown closes every live connection with a going-away status.
func (s *Server) Shutdown() {
	s.mu.Lock()
	connections := make([]*Connection, 0, len(s.connections))
	for _, c := range s.connections {
		connections = append(connections, c)
	}
	s.mu.Unlock()

	s.log.Info("Closing live connections", "count", len(connections))
	for _, c := range connections {
		c.Close(websocket.CloseGoingAway, shutdownReason)
	}
}

func (s *Server) add(c *Connection) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.connections[c.Handle()] = c
}

func (s *Server) remove(c *Connection) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.connections, c.Handle())
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		w.WriteHeader(http.StatusInternalServerError)
	}
}
