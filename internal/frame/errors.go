package frame

import "fmt"

// FramingError covers every malformed-wire condition: SOF/EOF mismatch,
// oversized length, or a transport read failure.
type FramingError struct {
	Reason string
	Err    error
}

func (e *FramingError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("frame: framing error: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("frame: framing error: %s", e.Reason)
}

func (e *FramingError) Unwrap() error { return e.Err }

func framingErr(reason string, err error) *FramingError {
	return &FramingError{Reason: reason, Err: err}
}

// CRCError reports a payload CRC-32 mismatch. It is distinct from
// FramingError so callers can tell a corrupted-but-well-formed frame
// apart from a structurally broken one.
type CRCError struct {
	Declared   uint32
	Calculated uint32
}

func (e *CRCError) Error() string {
	return fmt.Sprintf("frame: CRC mismatch: declared=0x%08x calculated=0x%08x", e.Declared, e.Calculated)
}
