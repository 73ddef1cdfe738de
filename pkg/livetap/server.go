package livetap

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"realtime_strategies/internal/core"
)

// jsonRaw lets pre-encoded payloads pass through Message marshalling
type jsonRaw []byte

func (r jsonRaw) MarshalJSON() ([]byte, error) {
	if len(r) == 0 {
		return []byte("null"), nil
	}
	return r, nil
}

// Connection and write limits
const (
	maxConnections = 100
	writeWait      = 10 * time.Second
	pingPeriod     = 30 * time.Second
)

// Server upgrades WebSocket connections onto the hub
type Server struct {
	hub            *Hub
	port           int
	logger         core.ILogger
	allowedOrigins []string
	upgrader       websocket.Upgrader
	srv            *http.Server

	connSemaphore chan struct{}
	ipLimiters    sync.Map // remote IP -> *rate.Limiter
}

// NewServer creates a tap server. Connections are origin-checked against
// the allow list and rate limited per source IP.
func NewServer(hub *Hub, port int, allowedOrigins []string, logger core.ILogger) *Server {
	s := &Server{
		hub:            hub,
		port:           port,
		logger:         logger.WithField("component", "livetap_server"),
		allowedOrigins: allowedOrigins,
		connSemaphore:  make(chan struct{}, maxConnections),
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     s.checkOrigin,
	}
	return s
}

// checkOrigin validates the Origin header against the allow list
func (s *Server) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return false
	}
	parsed, err := url.Parse(origin)
	if err != nil {
		return false
	}
	originStr := parsed.Scheme + "://" + parsed.Host

	for _, allowed := range s.allowedOrigins {
		if allowed == "*" || originStr == allowed {
			return true
		}
	}
	s.logger.Warn("Rejected tap connection from unauthorized origin",
		"origin", origin, "remote", r.RemoteAddr)
	return false
}

// allowIP applies a per-IP connection rate limit
func (s *Server) allowIP(remoteAddr string) bool {
	host, _, err := net.SplitHostPort(remoteAddr)
	if err != nil {
		host = remoteAddr
	}
	limiter, _ := s.ipLimiters.LoadOrStore(host, rate.NewLimiter(rate.Limit(5), 10))
	return limiter.(*rate.Limiter).Allow()
}

// Start serves in the background until Stop is called
func (s *Server) Start() {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /ws", s.handleWS)

	s.srv = &http.Server{
		Addr:    fmt.Sprintf(":%d", s.port),
		Handler: mux,
	}

	go func() {
		s.logger.Info("Starting live tap server", "port", s.port)
		if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Error("Live tap server failed", "error", err)
		}
	}()
}

// Stop gracefully stops the server
func (s *Server) Stop(ctx context.Context) error {
	if s.srv == nil {
		return nil
	}
	s.logger.Info("Stopping live tap server")
	return s.srv.Shutdown(ctx)
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	if !s.allowIP(r.RemoteAddr) {
		http.Error(w, "rate limit exceeded", http.StatusTooManyRequests)
		return
	}

	select {
	case s.connSemaphore <- struct{}{}:
	default:
		http.Error(w, "too many connections", http.StatusServiceUnavailable)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		<-s.connSemaphore
		s.logger.Warn("WebSocket upgrade failed", "remote", r.RemoteAddr, "error", err)
		return
	}

	client := newClient(uuid.New().String())
	s.hub.Register(client)
	client.trySend(Message{Type: TypeWelcome, Data: map[string]string{"client_id": client.id}})

	go s.writePump(conn, client)
	go s.readPump(conn, client)
}

// writePump drains the client's queue onto the socket
func (s *Server) writePump(conn *websocket.Conn, client *Client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		conn.Close()
		<-s.connSemaphore
	}()

	for {
		select {
		case msg, ok := <-client.send:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			payload, err := json.Marshal(msg)
			if err != nil {
				continue
			}
			if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump discards client frames and detects disconnects. The tap is
// one-way; clients have nothing to say.
func (s *Server) readPump(conn *websocket.Conn, client *Client) {
	defer func() {
		select {
		case s.hub.unregister <- client:
		default:
			client.close()
		}
	}()
	conn.SetReadLimit(512)
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}
