// Package serial serves the controller command set on a serial line, the way
// a motor record driver reaches a physical controller.
package serial

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/jacobsa/go-serial/serial"

	"virtualmotor/internal/ipc"
	"virtualmotor/internal/logging"
	"virtualmotor/pkg/types"
)

type openFunc func(serial.OpenOptions) (io.ReadWriteCloser, error)

// Port is a serial device answering controller commands.
type Port struct {
	config types.SerialConfig
	open   openFunc
	mu     sync.Mutex
	port   io.ReadWriteCloser
	logger *logging.Logger
}

// NewPort 创建串口命令服务
func NewPort(config types.SerialConfig) *Port {
	return &Port{
		config: config,
		open:   serial.Open,
		logger: logging.GetLogger("serial_port"),
	}
}

// options 将配置转换为串口打开参数
func (p *Port) options() serial.OpenOptions {
	opts := serial.OpenOptions{
		PortName:        p.config.PortName,
		BaudRate:        uint(p.config.BaudRate),
		DataBits:        uint(p.config.DataBits),
		StopBits:        uint(p.config.StopBits),
		MinimumReadSize: 1,
	}

	switch p.config.Parity {
	case "E", "e":
		opts.ParityMode = serial.PARITY_EVEN
	case "O", "o":
		opts.ParityMode = serial.PARITY_ODD
	default:
		opts.ParityMode = serial.PARITY_NONE
	}

	if p.config.FlowControl {
		opts.RTSCTSFlowControl = true
	}
	return opts
}

// Serve 打开串口并应答控制器命令，直到 ctx 取消或串口出错
func (p *Port) Serve(ctx context.Context, exec ipc.Executor) error {
	port, err := p.open(p.options())
	if err != nil {
		return fmt.Errorf("failed to open serial port %s: %w", p.config.PortName, err)
	}

	p.mu.Lock()
	p.port = port
	p.mu.Unlock()

	p.logger.Info("Serial port opened", "port", p.config.PortName, "baud_rate", p.config.BaudRate)

	stop := context.AfterFunc(ctx, func() { p.Close() })
	defer stop()

	err = ipc.ServeStream(ctx, port, exec, p.logger)
	p.Close()

	if ctx.Err() != nil {
		return nil
	}
	if err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// Close 关闭串口
func (p *Port) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.port == nil {
		return nil
	}
	err := p.port.Close()
	p.port = nil
	p.logger.Info("Serial port closed", "port", p.config.PortName)
	if err != nil {
		return fmt.Errorf("failed to close serial port: %w", err)
	}
	return nil
}
