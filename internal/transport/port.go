// Package transport provides the blocking byte-oriented link the frame
// codec reads frames from and the response emitter writes ACK/NACK to.
// Everything above this package talks to a Port; nothing above it knows
// whether that Port is a real UART or a test double.
package transport

import "context"

// Port is the narrow transport contract the frame codec needs: blocking
// read-exactly-n and write-all, with no framing knowledge of its own. A
// context deadline is the advisory per-frame timeout; implementations
// are expected to translate it into their underlying peripheral's read
// timeout rather than only checking it after the fact.
type Port interface {
	// ReadExact blocks until exactly n bytes have arrived, ctx is done, or
	// the link reports an error. A non-nil error means zero bytes were
	// usably read from the caller's perspective, matching the frame
	// codec's "discard whatever partial bytes were read" contract.
	ReadExact(ctx context.Context, n int) ([]byte, error)

	// WriteAll blocks until buf has been written in full or the link
	// reports an error.
	WriteAll(ctx context.Context, buf []byte) error
}
