package ipc

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	uuid "github.com/satori/go.uuid"

	"virtualmotor/internal/logging"
	"virtualmotor/pkg/types"
)

type Client struct {
	ID        string
	Conn      net.Conn
	closeOnce sync.Once
}

// deadlineConn bounds every reply write by the configured timeout.
type deadlineConn struct {
	net.Conn
	timeout time.Duration
}

func (c deadlineConn) Write(p []byte) (int, error) {
	if c.timeout > 0 {
		if err := c.Conn.SetWriteDeadline(time.Now().Add(c.timeout)); err != nil {
			return 0, err
		}
	}
	return c.Conn.Write(p)
}

type Server struct {
	config      types.IPCConfig
	exec        Executor
	clients     map[string]*Client
	clientsLock sync.RWMutex
	listener    net.Listener
	ctx         context.Context
	cancel      context.CancelFunc
	wg          sync.WaitGroup
	logger      *logging.Logger
}

func NewServer(config types.IPCConfig, exec Executor) *Server {
	ctx, cancel := context.WithCancel(context.Background())
	return &Server{
		config:  config,
		exec:    exec,
		clients: make(map[string]*Client),
		ctx:     ctx,
		cancel:  cancel,
		logger:  logging.GetLogger("ipc_server"),
	}
}

// network maps the configured transport type onto a net network name.
func network(transport string) (string, error) {
	switch transport {
	case "", "tcp":
		return "tcp", nil
	case "tcp4", "tcp6":
		return transport, nil
	default:
		return "", fmt.Errorf("unsupported IPC type: %s", transport)
	}
}

func (s *Server) Start() error {
	netw, err := network(s.config.Type)
	if err != nil {
		return err
	}
	address := net.JoinHostPort(s.config.Address, fmt.Sprintf("%d", s.config.Port))

	s.listener, err = net.Listen(netw, address)
	if err != nil {
		return fmt.Errorf("failed to start IPC server: %w", err)
	}

	s.logger.Info("IPC server started", "address", s.listener.Addr().String())

	s.wg.Add(1)
	go s.acceptConnections()

	return nil
}

// Addr is the address the server is listening on.
func (s *Server) Addr() net.Addr {
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

func (s *Server) Stop() error {
	s.cancel()

	if s.listener != nil {
		s.listener.Close()
	}

	s.clientsLock.Lock()
	for _, client := range s.clients {
		s.closeClient(client)
	}
	s.clients = make(map[string]*Client)
	s.clientsLock.Unlock()

	s.wg.Wait()
	s.logger.Info("IPC server stopped")
	return nil
}

func (s *Server) closeClient(client *Client) {
	client.closeOnce.Do(func() {
		client.Conn.Close()
		s.logger.Info("Client closed", "client_id", client.ID)
	})
}

func (s *Server) acceptConnections() {
	defer s.wg.Done()

	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if s.ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return
			}
			s.logger.Error("Accept error", "error", err)
			continue
		}

		client := &Client{
			ID:   uuid.NewV4().String(),
			Conn: conn,
		}

		s.clientsLock.Lock()
		if s.ctx.Err() != nil {
			s.clientsLock.Unlock()
			conn.Close()
			return
		}
		s.clients[client.ID] = client
		s.wg.Add(1)
		s.clientsLock.Unlock()

		go s.handleClient(client)

		s.logger.Info("Client connected", "client_id", client.ID, "remote", conn.RemoteAddr().String())
	}
}

func (s *Server) handleClient(client *Client) {
	defer s.wg.Done()
	defer func() {
		s.clientsLock.Lock()
		delete(s.clients, client.ID)
		s.clientsLock.Unlock()
		s.closeClient(client)
	}()

	conn := deadlineConn{Conn: client.Conn, timeout: s.config.Timeout}
	if err := ServeStreamBuffer(s.ctx, conn, s.exec, s.logger.With("client_id", client.ID), s.config.BufferSize); err != nil && s.ctx.Err() == nil {
		s.logger.Warn("Client session ended with error", "client_id", client.ID, "error", err)
		return
	}
	s.logger.Info("Client disconnected", "client_id", client.ID)
}

// ClientCount is the number of connected clients.
func (s *Server) ClientCount() int {
	s.clientsLock.RLock()
	defer s.clientsLock.RUnlock()
	return len(s.clients)
}
