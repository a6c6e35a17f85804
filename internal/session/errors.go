package session

import "fmt"

// StateError is a structurally valid frame that is wrong for the current
// state. Handling is identical to FramingError: NACK, end.
type StateError struct {
	State State
	Kind  string
}

func (e *StateError) Error() string {
	return fmt.Sprintf("session: frame %s not accepted in state %s", e.Kind, e.State)
}

// AbortError reports Command{Abort}, accepted at any state. The sender
// already knows it aborted, so the only receiver-side action is a NACK
// and session termination.
type AbortError struct{}

func (e *AbortError) Error() string { return "session: abort requested" }

// CRCError is the image-wide, end-of-transfer CRC32 mismatch, distinct
// from frame.CRCError's per-frame check.
type CRCError struct {
	Declared   uint32
	Calculated uint32
}

func (e *CRCError) Error() string {
	return fmt.Sprintf("session: image CRC mismatch: declared=0x%08x calculated=0x%08x", e.Declared, e.Calculated)
}
