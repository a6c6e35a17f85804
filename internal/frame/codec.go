package frame

import (
	"context"
	"encoding/binary"
	"fmt"
)

// Port is the minimal transport contract the codec needs: blocking
// read-exactly-n. Satisfied structurally by *transport.SerialPort and
// *transport.PipePort without this package importing internal/transport.
type Port interface {
	ReadExact(ctx context.Context, n int) ([]byte, error)
}

// Writer is the minimal transport contract Encode/EncodeResponse need.
type Writer interface {
	WriteAll(ctx context.Context, buf []byte) error
}

// Decode reads exactly one wire frame from port: SOF, type, length, L
// payload bytes, CRC, EOF, in that order. Each read blocks (modulo
// whatever timeout ctx carries) until its bytes arrive. On any framing
// violation it returns a *FramingError; the partial bytes already read
// from port are discarded, so the caller never sees a partially decoded
// frame.
func Decode(ctx context.Context, port Port) (Frame, error) {
	sof, err := port.ReadExact(ctx, 1)
	if err != nil {
		return Frame{}, framingErr("read SOF", err)
	}
	if sof[0] != SOF {
		return Frame{}, framingErr(fmt.Sprintf("bad SOF: got 0x%02x want 0x%02x", sof[0], SOF), nil)
	}

	typeByte, err := port.ReadExact(ctx, 1)
	if err != nil {
		return Frame{}, framingErr("read packet type", err)
	}
	kind := PacketType(typeByte[0])

	lenBytes, err := port.ReadExact(ctx, 2)
	if err != nil {
		return Frame{}, framingErr("read payload length", err)
	}
	length := binary.LittleEndian.Uint16(lenBytes)
	if length > MaxPayload {
		return Frame{}, framingErr(fmt.Sprintf("payload length %d exceeds MAX_PAYLOAD %d", length, MaxPayload), nil)
	}

	var payload []byte
	if length > 0 {
		payload, err = port.ReadExact(ctx, int(length))
		if err != nil {
			return Frame{}, framingErr("read payload", err)
		}
	}

	crcBytes, err := port.ReadExact(ctx, 4)
	if err != nil {
		return Frame{}, framingErr("read CRC", err)
	}
	declaredCRC := binary.LittleEndian.Uint32(crcBytes)

	eof, err := port.ReadExact(ctx, 1)
	if err != nil {
		return Frame{}, framingErr("read EOF", err)
	}
	if eof[0] != EOF {
		return Frame{}, framingErr(fmt.Sprintf("bad EOF: got 0x%02x want 0x%02x", eof[0], EOF), nil)
	}

	return Frame{Kind: kind, Payload: payload, DeclaredCRC: declaredCRC}, nil
}

// Encode serializes f into the wire layout: SOF, type, length, payload,
// CRC, EOF. Used for test fixtures and for any non-Response frame the
// receiver itself would ever need to emit (it normally only emits
// Response frames; see EncodeResponse).
func Encode(f Frame) []byte {
	length := len(f.Payload)
	buf := make([]byte, 0, frameOverhead+length)
	buf = append(buf, SOF, byte(f.Kind))

	lenBytes := make([]byte, 2)
	binary.LittleEndian.PutUint16(lenBytes, uint16(length))
	buf = append(buf, lenBytes...)

	buf = append(buf, f.Payload...)

	crcBytes := make([]byte, 4)
	binary.LittleEndian.PutUint32(crcBytes, f.DeclaredCRC)
	buf = append(buf, crcBytes...)

	buf = append(buf, EOF)
	return buf
}

// EncodeResponse builds the fixed-layout ACK/NACK frame. The CRC field is
// hard-coded to zero: the reference implementation never computed one,
// and that quirk is preserved here rather than fixed.
func EncodeResponse(status Status) []byte {
	return Encode(Frame{
		Kind:        TypeResponse,
		Payload:     []byte{byte(status)},
		DeclaredCRC: 0,
	})
}

// WriteResponse sends an ACK/NACK frame over w.
func WriteResponse(ctx context.Context, w Writer, status Status) error {
	return w.WriteAll(ctx, EncodeResponse(status))
}
