// Package frame implements the OTA wire codec: one frame in, one frame out,
// no buffering beyond the frame being decoded. Decode keeps no receive
// buffer of its own; each field is read with a separate ReadExact call.
package frame

import (
	"encoding/binary"
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

// Wire markers.
const (
	SOF byte = 0xAA
	EOF byte = 0xBB
)

// PacketType classifies a decoded frame.
type PacketType byte

const (
	TypeCommand  PacketType = 0
	TypeData     PacketType = 1
	TypeHeader   PacketType = 2
	TypeResponse PacketType = 3
)

func (t PacketType) String() string {
	switch t {
	case TypeCommand:
		return "COMMAND"
	case TypeData:
		return "DATA"
	case TypeHeader:
		return "HEADER"
	case TypeResponse:
		return "RESPONSE"
	default:
		return fmt.Sprintf("UNKNOWN(0x%02x)", byte(t))
	}
}

// Command identifies the single byte carried by a Command frame's payload.
type Command byte

const (
	CmdAbort Command = 0
	CmdEnd   Command = 1
	CmdStart Command = 2
)

func (c Command) String() string {
	switch c {
	case CmdAbort:
		return "ABORT"
	case CmdEnd:
		return "END"
	case CmdStart:
		return "START"
	default:
		return fmt.Sprintf("UNKNOWN(0x%02x)", byte(c))
	}
}

// Status is the ACK/NACK byte carried by a Response frame.
type Status byte

const (
	StatusACK  Status = 0
	StatusNACK Status = 1
)

// MaxPayload bounds payload_length; a wire frame is at most framing
// overhead plus this many payload bytes.
const MaxPayload = 1024

// frameOverhead is SOF(1) + type(1) + len(2) + crc(4) + EOF(1), excluding payload.
const frameOverhead = 9

// MaxFrameSize is the largest wire frame Decode accepts.
const MaxFrameSize = MaxPayload + frameOverhead

// Frame is the decoded in-memory form of one wire frame.
type Frame struct {
	Kind        PacketType
	Payload     []byte
	DeclaredCRC uint32
}

// Command returns the single command byte of a Command frame. A frame whose
// Kind is not TypeCommand, or whose payload is empty or oversized, reports
// false.
func (f Frame) Command() (Command, bool) {
	if f.Kind != TypeCommand || len(f.Payload) != 1 {
		return 0, false
	}
	return Command(f.Payload[0]), true
}

// Header carries the fixed fields of a Header frame plus whatever metadata
// trailer the sender appended after them. Meta is decoded from CBOR so the
// sender can add fields over time without the receiver needing to know
// about them in advance; keys the receiver doesn't recognize are simply
// never read.
type Header struct {
	TotalSize   uint32
	ExpectedCRC uint32
	Meta        map[string]any
}

// headerFixedLen is the size of the fixed total_size+expected_crc prefix of
// a Header frame's payload; any bytes past it are a CBOR-encoded metadata
// trailer the receiver must not choke on.
const headerFixedLen = 8

// DecodeHeader extracts the fixed fields from a Header frame's payload. It
// never errors on a longer-than-fixed payload: trailing bytes are
// CBOR-decoded into Meta, and a trailer that is not valid CBOR is ignored,
// leaving Meta nil.
func DecodeHeader(f Frame) (Header, error) {
	if f.Kind != TypeHeader {
		return Header{}, fmt.Errorf("frame: not a header frame (kind=%s)", f.Kind)
	}
	if len(f.Payload) < headerFixedLen {
		return Header{}, fmt.Errorf("frame: header payload too short: %d bytes", len(f.Payload))
	}
	h := Header{
		TotalSize:   binary.LittleEndian.Uint32(f.Payload[0:4]),
		ExpectedCRC: binary.LittleEndian.Uint32(f.Payload[4:8]),
	}
	if len(f.Payload) > headerFixedLen {
		var meta map[string]any
		if err := cbor.Unmarshal(f.Payload[headerFixedLen:], &meta); err == nil {
			h.Meta = meta
		}
	}
	return h, nil
}

// EncodeHeader builds a Header frame payload: fixed fields followed by a
// CBOR-encoded metadata trailer (meta may be nil or empty, in which case
// the trailer is omitted entirely).
func EncodeHeader(totalSize, expectedCRC uint32, meta map[string]any) []byte {
	buf := make([]byte, headerFixedLen)
	binary.LittleEndian.PutUint32(buf[0:4], totalSize)
	binary.LittleEndian.PutUint32(buf[4:8], expectedCRC)
	if len(meta) == 0 {
		return buf
	}
	trailer, err := cbor.Marshal(meta)
	if err != nil {
		return buf
	}
	return append(buf, trailer...)
}
