package transport

import (
	"bytes"
	"context"
	"fmt"
	"sync"
)

// PipePort is an in-memory Port backed by plain byte buffers, used by
// internal/frame and internal/session tests in place of a real UART.
// ReadExact drains the inbound queue fed by Feed; WriteAll appends to a
// buffer the test can inspect with Written.
type PipePort struct {
	mu      sync.Mutex
	inbound bytes.Buffer
	written bytes.Buffer
}

// NewPipePort returns an empty PipePort. Call Feed to queue bytes a test
// wants the session driver to "receive".
func NewPipePort() *PipePort {
	return &PipePort{}
}

// Feed appends bytes the next ReadExact calls will consume.
func (p *PipePort) Feed(b []byte) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.inbound.Write(b)
}

// ReadExact implements Port.
func (p *PipePort) ReadExact(ctx context.Context, n int) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("transport: read %d bytes: %w", n, err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.inbound.Len() < n {
		return nil, fmt.Errorf("transport: read %d bytes: only %d available", n, p.inbound.Len())
	}
	buf := make([]byte, n)
	if _, err := p.inbound.Read(buf); err != nil {
		return nil, fmt.Errorf("transport: read %d bytes: %w", n, err)
	}
	return buf, nil
}

// WriteAll implements Port.
func (p *PipePort) WriteAll(ctx context.Context, buf []byte) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("transport: write %d bytes: %w", len(buf), err)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.written.Write(buf)
	return nil
}

// Written returns a copy of everything WriteAll has accumulated so far.
func (p *PipePort) Written() []byte {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]byte, p.written.Len())
	copy(out, p.written.Bytes())
	return out
}

// Remaining reports how many unread bytes are still queued, so tests can
// assert the codec stopped draining after exactly one frame and never
// buffers ahead into the next one.
func (p *PipePort) Remaining() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.inbound.Len()
}
