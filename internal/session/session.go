// Package session implements the four-stage OTA session state machine and
// its driver loop.
package session

import (
	"fmt"
	"hash/crc32"

	"github.com/fw-updater/ota-receiver/internal/flashctl"
	"github.com/fw-updater/ota-receiver/internal/frame"
)

// State is one of the five session states.
type State int

const (
	StateIdle State = iota
	StateStart
	StateHeader
	StateData
	StateEnd
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "Idle"
	case StateStart:
		return "Start"
	case StateHeader:
		return "Header"
	case StateData:
		return "Data"
	case StateEnd:
		return "End"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Session bundles the process-wide-during-a-session variables into an
// explicit record instead of file-scope globals, so nested sessions,
// tests, and mocks are straightforward.
type Session struct {
	state        State
	totalSize    uint32
	expectedCRC  uint32
	receivedSize uint32

	flash   *flashctl.Controller
	crcHash uint32hash
}

// uint32hash is the minimal surface Session needs from hash/crc32's
// running checksum, named to keep the zero-value Session usable in tests
// that never call Write.
type uint32hash interface {
	Write(p []byte) (int, error)
	Sum32() uint32
	Reset()
}

// New returns a Session ready to begin a run, with state = Start.
func New(flash *flashctl.Controller) *Session {
	return &Session{
		state:   StateStart,
		flash:   flash,
		crcHash: crc32.NewIEEE(),
	}
}

// State reports the current state.
func (s *Session) State() State { return s.state }

// TotalSize reports the total_size declared by the Header frame (0 before
// one is accepted).
func (s *Session) TotalSize() uint32 { return s.totalSize }

// ReceivedSize reports bytes successfully programmed so far.
func (s *Session) ReceivedSize() uint32 { return s.receivedSize }

// Step dispatches one decoded frame against the current state, mutating
// Session. A nil error means the frame should be ACKed; a non-nil error
// means NACK: the caller must end the session.
func (s *Session) Step(f frame.Frame) error {
	// Abort pre-empts every state.
	if cmd, ok := f.Command(); f.Kind == frame.TypeCommand && ok && cmd == frame.CmdAbort {
		return &AbortError{}
	}

	switch s.state {
	case StateStart:
		return s.stepStart(f)
	case StateHeader:
		return s.stepHeader(f)
	case StateData:
		return s.stepData(f)
	case StateEnd:
		return s.stepEnd(f)
	case StateIdle:
		// Any frame here is benign: ACK and let the driver terminate.
		return nil
	default:
		return &StateError{State: s.state, Kind: f.Kind.String()}
	}
}

func (s *Session) stepStart(f frame.Frame) error {
	cmd, ok := f.Command()
	if f.Kind != frame.TypeCommand || !ok || cmd != frame.CmdStart {
		return &StateError{State: s.state, Kind: f.Kind.String()}
	}
	s.state = StateHeader
	return nil
}

func (s *Session) stepHeader(f frame.Frame) error {
	if f.Kind != frame.TypeHeader {
		return &StateError{State: s.state, Kind: f.Kind.String()}
	}
	h, err := frame.DecodeHeader(f)
	if err != nil {
		return &StateError{State: s.state, Kind: f.Kind.String()}
	}
	s.totalSize = h.TotalSize
	s.expectedCRC = h.ExpectedCRC
	s.receivedSize = 0
	s.crcHash.Reset()
	s.state = StateData
	return nil
}

func (s *Session) stepData(f frame.Frame) error {
	if f.Kind != frame.TypeData {
		return &StateError{State: s.state, Kind: f.Kind.String()}
	}

	length := uint32(len(f.Payload))
	if length == 0 && s.receivedSize != s.totalSize {
		return &StateError{State: s.state, Kind: "empty Data before transfer complete"}
	}

	toWrite := f.Payload
	remaining := s.totalSize - s.receivedSize
	if length > remaining {
		// Program up to the limit, never past it, rather than silently
		// exceeding total_size.
		toWrite = f.Payload[:remaining]
	}

	isFirst := s.receivedSize == 0
	written, err := s.flash.ProgramChunk(toWrite, isFirst)
	s.receivedSize += uint32(written)
	if written > 0 {
		s.crcHash.Write(toWrite[:written])
	}
	if err != nil {
		return err
	}

	if s.receivedSize >= s.totalSize {
		if calculated := s.crcHash.Sum32(); calculated != s.expectedCRC {
			return &CRCError{Declared: s.expectedCRC, Calculated: calculated}
		}
		s.state = StateEnd
	}
	return nil
}

func (s *Session) stepEnd(f frame.Frame) error {
	cmd, ok := f.Command()
	if f.Kind != frame.TypeCommand || !ok || cmd != frame.CmdEnd {
		return &StateError{State: s.state, Kind: f.Kind.String()}
	}
	s.state = StateIdle
	return nil
}
