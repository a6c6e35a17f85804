package flashctl

import "fmt"

// MemController is an in-memory Programmer used by tests and by the
// -simulate flag of cmd/ota-receiver in place of real flash hardware.
// librescoot-bluetooth-service has no such double (it drives a real nRF52
// over USOCK); the pattern of a software stand-in for a peripheral
// contract is grounded on the broader pack's embedded examples instead.
type MemController struct {
	region       []byte
	base         uint32
	locked       bool
	erased       bool
	failAtByte   int // -1 disables fault injection
	bytesWritten int
}

// NewMemController allocates a zeroed region of size bytes starting at
// base, with fault injection disabled.
func NewMemController(base uint32, size int) *MemController {
	return &MemController{
		region:     make([]byte, size),
		base:       base,
		locked:     true,
		failAtByte: -1,
	}
}

// FailAtByte makes the nth ProgramByte call (0-indexed, counted across the
// whole controller's lifetime) fail, simulating a flash program failure
// partway through a chunk.
func (m *MemController) FailAtByte(n int) { m.failAtByte = n }

// Contents returns a copy of the programmed region for test assertions.
func (m *MemController) Contents() []byte {
	out := make([]byte, len(m.region))
	copy(out, m.region)
	return out
}

// Erased reports whether EraseAppRegion has been called.
func (m *MemController) Erased() bool { return m.erased }

func (m *MemController) Unlock() error {
	m.locked = false
	return nil
}

func (m *MemController) Lock() error {
	m.locked = true
	return nil
}

func (m *MemController) EraseAppRegion() error {
	if m.locked {
		return fmt.Errorf("flashctl: erase while locked")
	}
	for i := range m.region {
		m.region[i] = 0xFF
	}
	m.erased = true
	return nil
}

func (m *MemController) ProgramByte(addr uint32, value byte) error {
	if m.locked {
		return fmt.Errorf("flashctl: program while locked")
	}
	if m.failAtByte == m.bytesWritten {
		m.bytesWritten++
		return fmt.Errorf("flashctl: simulated program failure at byte %d", m.failAtByte)
	}
	m.bytesWritten++

	off := addr - m.base
	if int(off) >= len(m.region) {
		return fmt.Errorf("flashctl: address 0x%08x out of region", addr)
	}
	m.region[off] = value
	return nil
}
