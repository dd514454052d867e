// Package types defines the configuration structures shared by the virtual
// motor controller's binaries and packages.
package types

import (
	"time"

	"gopkg.in/yaml.v3"

	"virtualmotor/internal/logging"
	"virtualmotor/internal/motion"
)

type SystemConfig struct {
	Logging logging.Config `yaml:"logging"`
	Axes    []AxisConfig   `yaml:"axes"`
	IPC     IPCConfig      `yaml:"ipc"`
	Serial  SerialConfig   `yaml:"serial"`
	Modbus  ModbusConfig   `yaml:"modbus"`
	Monitor MonitorConfig  `yaml:"monitor"`
}

// AxisConfig configures one axis. Axes are numbered from 1 in list order.
type AxisConfig struct {
	Name              string `yaml:"name"`
	motion.Parameters `yaml:",inline"`
}

// UnmarshalYAML decodes an axis on top of motion.DefaultParameters, so omitted
// fields keep their defaults. Deceleration starts at zero so that an omitted
// value follows acceleration during validation.
func (c *AxisConfig) UnmarshalYAML(value *yaml.Node) error {
	type plain AxisConfig
	seed := plain{Parameters: motion.DefaultParameters()}
	seed.Deceleration = 0
	if err := value.Decode(&seed); err != nil {
		return err
	}
	*c = AxisConfig(seed)
	return nil
}

// IPCConfig is the TCP listener the controller command set is served on.
type IPCConfig struct {
	Type       string        `yaml:"type"`
	Address    string        `yaml:"address"`
	Port       int           `yaml:"port"`
	Timeout    time.Duration `yaml:"timeout"`
	BufferSize int           `yaml:"buffer_size"`
}

// SerialConfig serves the same command set on a serial line.
type SerialConfig struct {
	Enabled     bool   `yaml:"enabled"`
	PortName    string `yaml:"port_name"` // e.g. "/dev/ttyUSB0", "COM1"
	BaudRate    int    `yaml:"baud_rate"`
	DataBits    int    `yaml:"data_bits"`
	StopBits    int    `yaml:"stop_bits"`
	Parity      string `yaml:"parity"` // "N", "E" or "O"
	FlowControl bool   `yaml:"flow_control"`
}

// ModbusConfig mirrors every axis status word into holding registers of a
// remote Modbus device, one register per axis starting at StatusRegister.
type ModbusConfig struct {
	Enabled        bool          `yaml:"enabled"`
	Type           string        `yaml:"type"`    // "tcp" or "rtu"
	Address        string        `yaml:"address"` // host:port or serial device
	BaudRate       int           `yaml:"baud_rate"`
	DataBits       int           `yaml:"data_bits"`
	StopBits       int           `yaml:"stop_bits"`
	Parity         string        `yaml:"parity"`
	SlaveID        byte          `yaml:"slave_id"`
	Timeout        time.Duration `yaml:"timeout"`
	StatusRegister uint16        `yaml:"status_register"`
}

// MonitorConfig is the HTTP/websocket status endpoint.
type MonitorConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Address  string        `yaml:"address"`
	Interval time.Duration `yaml:"interval"`
}
