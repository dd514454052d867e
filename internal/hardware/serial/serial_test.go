package serial

import (
	"bufio"
	"context"
	"errors"
	"io"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/jacobsa/go-serial/serial"

	"virtualmotor/pkg/types"
)

type upperExecutor struct{}

func (upperExecutor) Execute(line string) (string, error) {
	return strings.ToUpper(line), nil
}

func TestOptions(t *testing.T) {
	p := NewPort(types.SerialConfig{
		PortName:    "/dev/ttyUSB1",
		BaudRate:    19200,
		DataBits:    7,
		StopBits:    2,
		Parity:      "e",
		FlowControl: true,
	})
	opts := p.options()
	if opts.PortName != "/dev/ttyUSB1" || opts.BaudRate != 19200 || opts.DataBits != 7 || opts.StopBits != 2 {
		t.Errorf("options = %+v", opts)
	}
	if opts.ParityMode != serial.PARITY_EVEN || !opts.RTSCTSFlowControl || opts.MinimumReadSize != 1 {
		t.Errorf("options = %+v", opts)
	}

	p.config.Parity = "X"
	if p.options().ParityMode != serial.PARITY_NONE {
		t.Error("unknown parity should fall back to none")
	}
}

func TestServe(t *testing.T) {
	device, host := net.Pipe()
	defer host.Close()

	p := NewPort(types.SerialConfig{PortName: "/dev/null", BaudRate: 9600})
	p.open = func(serial.OpenOptions) (io.ReadWriteCloser, error) { return device, nil }

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- p.Serve(ctx, upperExecutor{}) }()

	reader := bufio.NewReader(host)
	for _, cmd := range []string{"1 pos?", "2 st?"} {
		if _, err := io.WriteString(host, cmd+"\r"); err != nil {
			t.Fatalf("write: %v", err)
		}
		reply, err := reader.ReadString('\n')
		if err != nil {
			t.Fatalf("read: %v", err)
		}
		if want := strings.ToUpper(cmd) + "\r\n"; reply != want {
			t.Errorf("reply = %q, want %q", reply, want)
		}
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Serve returned %v after cancel", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Serve did not stop after cancel")
	}
}

func TestServeOpenFailure(t *testing.T) {
	p := NewPort(types.SerialConfig{PortName: "/dev/missing"})
	p.open = func(serial.OpenOptions) (io.ReadWriteCloser, error) { return nil, errors.New("no such device") }

	if err := p.Serve(context.Background(), upperExecutor{}); err == nil || !strings.Contains(err.Error(), "/dev/missing") {
		t.Errorf("Serve error = %v", err)
	}
}
