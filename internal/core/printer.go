package core

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"syscall"
	"time"
)

// Sender transmits one rendered command to the printer.
type Sender interface {
	Send(ctx context.Context, endpoint Endpoint, command string) error
}

// TCPSender opens a fresh connection for every command. The printers this
// talks to accept a single short-lived session at a time, so connections are
// never pooled.
type TCPSender struct {
	dialer net.Dialer
}

func NewTCPSender() *TCPSender {
	return &TCPSender{}
}

func (s *TCPSender) Send(ctx context.Context, endpoint Endpoint, command string) error {
	timeout := endpoint.timeout()

	d := s.dialer
	d.Timeout = timeout
	conn, err := d.DialContext(ctx, "tcp", endpoint.Address())
	if err != nil {
		return classifyDialError(endpoint, err)
	}
	defer conn.Close()

	_ = conn.SetWriteDeadline(time.Now().Add(timeout))

	payload := []byte(command)
	for written := 0; written < len(payload); {
		n, err := conn.Write(payload[written:])
		if err != nil {
			if isTimeout(err) {
				return fmt.Errorf("%w: writing to %s after %v", ErrTransportTimeout, endpoint.Address(), timeout)
			}
			return fmt.Errorf("%w: %v", ErrTransportWriteFailed, err)
		}
		written += n
	}
	return nil
}

// Probe checks that the printer accepts connections without sending data.
func (s *TCPSender) Probe(ctx context.Context, endpoint Endpoint) error {
	d := s.dialer
	d.Timeout = endpoint.timeout()
	conn, err := d.DialContext(ctx, "tcp", endpoint.Address())
	if err != nil {
		return classifyDialError(endpoint, err)
	}
	return conn.Close()
}

func classifyDialError(endpoint Endpoint, err error) error {
	switch {
	case isTimeout(err):
		return fmt.Errorf("%w: connecting to %s after %v", ErrTransportTimeout, endpoint.Address(), endpoint.timeout())
	case errors.Is(err, syscall.ECONNREFUSED):
		return fmt.Errorf("%w: %s", ErrTransportConnectionRefused, endpoint.Address())
	default:
		return fmt.Errorf("%w: %v", ErrTransportConnectFailed, err)
	}
}

func isTimeout(err error) bool {
	if errors.Is(err, os.ErrDeadlineExceeded) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
