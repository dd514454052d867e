package ipc

import (
	"bufio"
	"fmt"
	"io"
	"net"
	"strings"
	"sync"
	"time"

	"virtualmotor/internal/logging"
	"virtualmotor/pkg/types"
)

// IPCClient sends command lines to a controller and waits for each reply.
type IPCClient struct {
	config    types.IPCConfig
	conn      net.Conn
	reader    *bufio.Reader
	mu        sync.Mutex
	connected bool
	logger    *logging.Logger
}

func NewIPCClient(config types.IPCConfig) *IPCClient {
	return &IPCClient{
		config: config,
		logger: logging.GetLogger("ipc_client"),
	}
}

func (c *IPCClient) Connect() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	netw, err := network(c.config.Type)
	if err != nil {
		return err
	}
	address := net.JoinHostPort(c.config.Address, fmt.Sprintf("%d", c.config.Port))
	conn, err := net.DialTimeout(netw, address, c.config.Timeout)
	if err != nil {
		return fmt.Errorf("failed to connect to IPC server: %w", err)
	}

	c.conn = conn
	c.reader = bufio.NewReader(conn)
	c.connected = true

	c.logger.Info("Connected to IPC server", "address", address)
	return nil
}

func (c *IPCClient) Disconnect() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.connected {
		return
	}
	c.connected = false
	if c.conn != nil {
		c.conn.Close()
	}
	c.logger.Info("Disconnected from IPC server")
}

func (c *IPCClient) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

// dropLocked closes a connection that failed mid-command. A reply that
// arrives late would otherwise be read as the answer to the next command.
func (c *IPCClient) dropLocked() {
	c.connected = false
	c.conn.Close()
	c.logger.Warn("Connection to IPC server dropped")
}

// Command sends one line and returns the reply with its terminator removed.
func (c *IPCClient) Command(line string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.connected {
		return "", fmt.Errorf("not connected to IPC server")
	}

	if c.config.Timeout > 0 {
		if err := c.conn.SetDeadline(time.Now().Add(c.config.Timeout)); err != nil {
			return "", fmt.Errorf("failed to set deadline: %w", err)
		}
		defer c.conn.SetDeadline(time.Time{})
	}

	if _, err := io.WriteString(c.conn, line+"\r"); err != nil {
		c.dropLocked()
		return "", fmt.Errorf("failed to send command %q: %w", line, err)
	}

	reply, err := c.reader.ReadString('\n')
	if err != nil {
		c.dropLocked()
		return "", fmt.Errorf("failed to read reply to %q: %w", line, err)
	}
	return strings.TrimRight(reply, "\r\n"), nil
}
