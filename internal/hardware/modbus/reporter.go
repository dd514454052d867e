// Package modbus mirrors axis status words into holding registers of a
// Modbus device so a PLC or HMI can watch the simulated axes.
package modbus

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/goburrow/modbus"

	"virtualmotor/internal/logging"
	"virtualmotor/internal/status"
	"virtualmotor/pkg/types"
)

// Status word bits, matching the ST? reply.
const (
	wordDone  uint16 = 0x2
	wordError uint16 = 0x200
)

// Mirror owns the Modbus connection shared by every axis reporter.
type Mirror struct {
	client  modbus.Client
	closer  io.Closer
	base    uint16
	writeMu sync.Mutex
	logger  *logging.Logger
}

// Dial 按配置连接Modbus设备 (TCP 或 RTU)
func Dial(config types.ModbusConfig) (*Mirror, error) {
	var (
		handler modbus.ClientHandler
		closer  io.Closer
	)

	switch strings.ToLower(config.Type) {
	case "", "tcp":
		h := modbus.NewTCPClientHandler(config.Address)
		h.Timeout = config.Timeout
		h.SlaveId = config.SlaveID
		if err := h.Connect(); err != nil {
			return nil, fmt.Errorf("failed to connect to modbus device %s: %w", config.Address, err)
		}
		handler, closer = h, h
	case "rtu":
		h := modbus.NewRTUClientHandler(config.Address)
		h.BaudRate = config.BaudRate
		h.DataBits = config.DataBits
		h.StopBits = config.StopBits
		h.Parity = config.Parity
		h.SlaveId = config.SlaveID
		h.Timeout = config.Timeout
		if err := h.Connect(); err != nil {
			return nil, fmt.Errorf("failed to open modbus port %s: %w", config.Address, err)
		}
		handler, closer = h, h
	default:
		return nil, fmt.Errorf("unsupported modbus type: %s", config.Type)
	}

	m := NewMirror(modbus.NewClient(handler), config.StatusRegister)
	m.closer = closer
	m.logger.Info("Modbus status mirror connected", "type", config.Type, "address", config.Address,
		"status_register", config.StatusRegister)
	return m, nil
}

// NewMirror 包装已连接的Modbus客户端
func NewMirror(client modbus.Client, base uint16) *Mirror {
	return &Mirror{
		client: client,
		base:   base,
		logger: logging.GetLogger("modbus_mirror"),
	}
}

// Reporter 返回轴 index (从1开始) 的状态报告器，可用于 controller.WithReporterFactory
func (m *Mirror) Reporter(index int) status.Reporter {
	return &Reporter{
		mirror:   m,
		register: m.base + uint16(index-1),
		word:     wordDone,
	}
}

// write 写入单个保持寄存器，失败只记录日志
func (m *Mirror) write(register, word uint16) {
	m.writeMu.Lock()
	defer m.writeMu.Unlock()

	if _, err := m.client.WriteSingleRegister(register, word); err != nil {
		m.logger.Warn("Failed to write status register", "register", register, "word", word, "error", err)
	}
}

// Close 断开连接
func (m *Mirror) Close() error {
	if m.closer == nil {
		return nil
	}
	return m.closer.Close()
}

// Reporter keeps one axis's status word and writes it on every change.
// Write failures are logged and never reach the axis.
type Reporter struct {
	mirror   *Mirror
	register uint16
	mu       sync.Mutex
	word     uint16
}

// update 更新状态字，变化时写入寄存器
func (r *Reporter) update(set, clear uint16) {
	r.mu.Lock()
	word := (r.word | set) &^ clear
	changed := word != r.word
	r.word = word
	r.mu.Unlock()

	if changed {
		r.mirror.write(r.register, word)
	}
}

func (r *Reporter) SetError(flag bool, message string) {
	if flag {
		r.update(wordError, 0)
		return
	}
	r.update(0, wordError)
}

func (r *Reporter) SetMoving()     { r.update(0, wordDone) }
func (r *Reporter) SetDoneMoving() { r.update(wordDone, 0) }

func (r *Reporter) DoneMoving() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.word&wordDone != 0
}

// Word 返回该轴最后写入的状态字
func (r *Reporter) Word() uint16 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.word
}
