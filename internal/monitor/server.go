// Package monitor publishes axis snapshots over HTTP and websocket.
package monitor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"virtualmotor/internal/axis"
	"virtualmotor/internal/logging"
	"virtualmotor/pkg/types"
)

// Source produces the snapshots to publish.
type Source interface {
	Snapshot() []axis.Snapshot
}

// Message is one websocket frame.
type Message struct {
	Time time.Time       `json:"time"`
	Axes []axis.Snapshot `json:"axes"`
}

type Server struct {
	config     types.MonitorConfig
	source     Source
	wsUpgrader websocket.Upgrader
	httpServer *http.Server
	listener   net.Listener
	ctx        context.Context
	cancel     context.CancelFunc
	wg         sync.WaitGroup
	logger     *logging.Logger
}

func New(config types.MonitorConfig, source Source) *Server {
	if config.Interval <= 0 {
		config.Interval = 200 * time.Millisecond
	}
	ctx, cancel := context.WithCancel(context.Background())
	s := &Server{
		config: config,
		source: source,
		ctx:    ctx,
		cancel: cancel,
		logger: logging.GetLogger("monitor"),
	}
	s.wsUpgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     func(r *http.Request) bool { return true },
	}
	return s
}

// Handler routes /status and /websocket.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/status", s.handleStatus)
	mux.HandleFunc("/websocket", s.handleWebSocket)
	return mux
}

func (s *Server) Start() error {
	listener, err := net.Listen("tcp", s.config.Address)
	if err != nil {
		return fmt.Errorf("failed to start monitor: %w", err)
	}
	s.listener = listener
	s.httpServer = &http.Server{Handler: s.Handler()}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := s.httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("Monitor server error", "error", err)
		}
	}()

	s.logger.Info("Monitor started", "address", listener.Addr().String(), "interval", s.config.Interval)
	return nil
}

// Addr is the address the monitor is listening on.
func (s *Server) Addr() net.Addr {
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

func (s *Server) Stop(ctx context.Context) error {
	s.cancel()
	var err error
	if s.httpServer != nil {
		err = s.httpServer.Shutdown(ctx)
	}
	s.wg.Wait()
	s.logger.Info("Monitor stopped")
	return err
}

func (s *Server) message() Message {
	return Message{Time: time.Now(), Axes: s.source.Snapshot()}
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(s.message()); err != nil {
		s.logger.Warn("Failed to write status", "error", err)
	}
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.wsUpgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("WebSocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	remote := conn.RemoteAddr().String()
	s.logger.Info("Monitor client connected", "remote", remote)

	// The read side only watches for the client going away.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					s.logger.Debug("Monitor client read error", "remote", remote, "error", err)
				}
				return
			}
		}
	}()

	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	for {
		if err := conn.WriteJSON(s.message()); err != nil {
			s.logger.Debug("Monitor client write failed", "remote", remote, "error", err)
			return
		}

		select {
		case <-ticker.C:
		case <-closed:
			s.logger.Info("Monitor client disconnected", "remote", remote)
			return
		case <-s.ctx.Done():
			conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"),
				time.Now().Add(time.Second))
			return
		}
	}
}
