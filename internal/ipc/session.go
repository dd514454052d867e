// Package ipc serves the controller command set over byte streams: a TCP
// listener, and any io.ReadWriter such as a serial port.
package ipc

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"

	"virtualmotor/internal/logging"
)

// Terminator ends every reply.
const Terminator = "\r\n"

// Executor runs one command line and returns the reply line.
type Executor interface {
	Execute(line string) (string, error)
}

// scanCommands splits on CR, LF or CRLF.
func scanCommands(data []byte, atEOF bool) (advance int, token []byte, err error) {
	if atEOF && len(data) == 0 {
		return 0, nil, nil
	}
	if i := bytes.IndexAny(data, "\r\n"); i >= 0 {
		return i + 1, data[:i], nil
	}
	if atEOF {
		return len(data), data, nil
	}
	return 0, nil, nil
}

// ServeStream reads command lines from rw and writes one reply per line until
// rw is exhausted or ctx is cancelled. Cancellation only takes effect between
// lines unless the caller also closes rw.
func ServeStream(ctx context.Context, rw io.ReadWriter, exec Executor, logger *logging.Logger) error {
	return ServeStreamBuffer(ctx, rw, exec, logger, 0)
}

// ServeStreamBuffer is ServeStream with command lines capped at bufferSize
// bytes. A longer line ends the session with bufio.ErrTooLong. Zero or less
// keeps the bufio default.
func ServeStreamBuffer(ctx context.Context, rw io.ReadWriter, exec Executor, logger *logging.Logger, bufferSize int) error {
	scanner := bufio.NewScanner(rw)
	scanner.Split(scanCommands)
	if bufferSize > 0 {
		scanner.Buffer(make([]byte, 0, bufferSize), bufferSize)
	}

	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}

		line := string(bytes.TrimSpace(scanner.Bytes()))
		if line == "" {
			continue
		}

		reply, err := exec.Execute(line)
		if err != nil {
			logger.Debug("Command rejected", "command", line, "error", err)
		}
		if _, err := io.WriteString(rw, reply+Terminator); err != nil {
			return fmt.Errorf("failed to write reply: %w", err)
		}
	}

	if err := scanner.Err(); err != nil && !errors.Is(err, net.ErrClosed) {
		return fmt.Errorf("failed to read command: %w", err)
	}
	return nil
}
