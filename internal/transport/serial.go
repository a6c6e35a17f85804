package transport

import (
	"context"
	"fmt"
	"time"

	"go.bug.st/serial"
)

// SerialPort is the real Port backing run_session on hardware: a single
// 8-N-1 serial channel opened at a fixed baud rate.
type SerialPort struct {
	port serial.Port
}

// OpenSerial opens devicePath at baudRate, 8 data bits, no parity, one
// stop bit — the standard 8-N-1 framing at an agreed baud rate.
func OpenSerial(devicePath string, baudRate int) (*SerialPort, error) {
	mode := &serial.Mode{
		BaudRate: baudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}

	port, err := serial.Open(devicePath, mode)
	if err != nil {
		return nil, fmt.Errorf("transport: failed to open serial port %s: %w", devicePath, err)
	}

	return &SerialPort{port: port}, nil
}

// ReadExact implements Port. A ctx deadline is translated into the
// underlying port's read timeout before each blocking read; an expired
// deadline surfaces as an error the same as any other link failure, which
// the frame codec turns into a FramingError.
func (p *SerialPort) ReadExact(ctx context.Context, n int) ([]byte, error) {
	if n == 0 {
		return nil, nil
	}

	if dl, ok := ctx.Deadline(); ok {
		if err := p.port.SetReadTimeout(time.Until(dl)); err != nil {
			return nil, fmt.Errorf("transport: set read timeout: %w", err)
		}
	} else {
		if err := p.port.SetReadTimeout(serial.NoTimeout); err != nil {
			return nil, fmt.Errorf("transport: clear read timeout: %w", err)
		}
	}

	buf := make([]byte, n)
	read := 0
	for read < n {
		m, err := p.port.Read(buf[read:])
		if err != nil {
			return nil, fmt.Errorf("transport: read %d bytes: %w", n, err)
		}
		if m == 0 {
			// SetReadTimeout expired without delivering a byte: go.bug.st/serial
			// reports this as (0, nil) rather than an error, so the timeout has
			// to be detected here instead of relying on io.ReadFull's retry loop.
			return nil, fmt.Errorf("transport: read %d bytes: timed out after %d", n, read)
		}
		read += m
	}
	return buf, nil
}

// WriteAll implements Port.
func (p *SerialPort) WriteAll(ctx context.Context, buf []byte) error {
	_, err := p.port.Write(buf)
	if err != nil {
		return fmt.Errorf("transport: write %d bytes: %w", len(buf), err)
	}
	return nil
}

// Close releases the underlying serial port.
func (p *SerialPort) Close() error {
	return p.port.Close()
}
