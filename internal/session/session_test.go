package session_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fw-updater/ota-receiver/internal/flashctl"
	"github.com/fw-updater/ota-receiver/internal/frame"
	"github.com/fw-updater/ota-receiver/internal/session"
	"github.com/fw-updater/ota-receiver/internal/transport"
)

const testBase = 0x1000

func commandFrame(cmd frame.Command) []byte {
	return frame.Encode(frame.Frame{Kind: frame.TypeCommand, Payload: []byte{byte(cmd)}})
}

func headerFrame(totalSize, expectedCRC uint32) []byte {
	payload := frame.EncodeHeader(totalSize, expectedCRC, nil)
	return frame.Encode(frame.Frame{Kind: frame.TypeHeader, Payload: payload, DeclaredCRC: frame.CRC32(payload)})
}

func dataFrame(payload []byte) []byte {
	return frame.Encode(frame.Frame{Kind: frame.TypeData, Payload: payload, DeclaredCRC: frame.CRC32(payload)})
}

// responses splits a run of back-to-back 10-byte Response frames out of
// raw written bytes and returns their status bytes in order.
func responses(t *testing.T, written []byte) []frame.Status {
	t.Helper()
	require.Zero(t, len(written)%10, "written bytes must be a whole number of 10-byte response frames")
	out := make([]frame.Status, 0, len(written)/10)
	for i := 0; i < len(written); i += 10 {
		out = append(out, frame.Status(written[i+4]))
	}
	return out
}

func runWith(t *testing.T, wire []byte, mem *flashctl.MemController) (session.Outcome, error, *transport.PipePort) {
	t.Helper()
	port := transport.NewPipePort()
	port.Feed(wire)
	outcome, err := session.Run(context.Background(), port, mem, testBase, time.Second, nil, nil)
	return outcome, err, port
}

func TestHappyPath3ByteImage(t *testing.T) {
	image := []byte{0xDE, 0xAD, 0xBE}
	var wire []byte
	wire = append(wire, commandFrame(frame.CmdStart)...)
	wire = append(wire, headerFrame(uint32(len(image)), frame.CRC32(image))...)
	wire = append(wire, dataFrame(image)...)
	wire = append(wire, commandFrame(frame.CmdEnd)...)

	mem := flashctl.NewMemController(testBase, 16)
	outcome, err, port := runWith(t, wire, mem)

	require.NoError(t, err)
	assert.Equal(t, session.Success, outcome)
	assert.Equal(t, []frame.Status{frame.StatusACK, frame.StatusACK, frame.StatusACK, frame.StatusACK}, responses(t, port.Written()))
	assert.Equal(t, image, mem.Contents()[:3])
	assert.Zero(t, port.Remaining())
}

func TestWrongFirstFrame(t *testing.T) {
	// Header sent while still in Start, before a Start command.
	wire := headerFrame(8, 0)

	mem := flashctl.NewMemController(testBase, 16)
	outcome, err, port := runWith(t, wire, mem)

	require.Error(t, err)
	var se *session.StateError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, session.Failure, outcome)
	assert.Equal(t, []frame.Status{frame.StatusNACK}, responses(t, port.Written()))
}

func TestOversizedLength(t *testing.T) {
	// Declared length of 0x1000 exceeds MaxPayload.
	wire := []byte{frame.SOF, byte(frame.TypeData), 0x00, 0x10}

	mem := flashctl.NewMemController(testBase, 16)
	outcome, err, port := runWith(t, wire, mem)

	require.Error(t, err)
	var fe *frame.FramingError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, session.Failure, outcome)
	assert.Equal(t, []frame.Status{frame.StatusNACK}, responses(t, port.Written()))
}

func TestAbortMidTransfer(t *testing.T) {
	var wire []byte
	wire = append(wire, commandFrame(frame.CmdStart)...)
	wire = append(wire, headerFrame(3, 0)...)
	wire = append(wire, commandFrame(frame.CmdAbort)...)

	mem := flashctl.NewMemController(testBase, 16)
	outcome, err, port := runWith(t, wire, mem)

	require.Error(t, err)
	var ae *session.AbortError
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, session.Failure, outcome)
	assert.Equal(t, []frame.Status{frame.StatusACK, frame.StatusACK, frame.StatusNACK}, responses(t, port.Written()))
	assert.Zero(t, port.Remaining())
}

func TestFlashProgramFailureOnThirdByte(t *testing.T) {
	// Fault-inject a failure on the third programmed byte.
	image := []byte{0x01, 0x02, 0x03, 0x04, 0x05}
	var wire []byte
	wire = append(wire, commandFrame(frame.CmdStart)...)
	wire = append(wire, headerFrame(uint32(len(image)), frame.CRC32(image))...)
	wire = append(wire, dataFrame(image)...)

	mem := flashctl.NewMemController(testBase, 16)
	mem.FailAtByte(2)
	outcome, err, port := runWith(t, wire, mem)

	require.Error(t, err)
	var fe *flashctl.FlashError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, session.Failure, outcome)
	assert.Equal(t, []frame.Status{frame.StatusACK, frame.StatusACK, frame.StatusNACK}, responses(t, port.Written()))
}

func TestEOFMarkerWrong(t *testing.T) {
	wire := commandFrame(frame.CmdStart)
	wire[len(wire)-1] = 0xCC

	mem := flashctl.NewMemController(testBase, 16)
	outcome, err, port := runWith(t, wire, mem)

	require.Error(t, err)
	var fe *frame.FramingError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, session.Failure, outcome)
	assert.Equal(t, []frame.Status{frame.StatusNACK}, responses(t, port.Written()))
}

func TestDeclaredPayloadCRCMismatch(t *testing.T) {
	var wire []byte
	wire = append(wire, commandFrame(frame.CmdStart)...)
	wire = append(wire, headerFrame(3, 0)...)
	bad := frame.Encode(frame.Frame{Kind: frame.TypeData, Payload: []byte{0xDE, 0xAD, 0xBE}, DeclaredCRC: 0xFFFFFFFF})
	wire = append(wire, bad...)

	mem := flashctl.NewMemController(testBase, 16)
	outcome, err, port := runWith(t, wire, mem)

	require.Error(t, err)
	var ce *frame.CRCError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, session.Failure, outcome)
	assert.Equal(t, []frame.Status{frame.StatusACK, frame.StatusACK, frame.StatusNACK}, responses(t, port.Written()))
	assert.Zero(t, mem.Contents()[0], "no bytes should be programmed for a rejected frame")
}

func TestOverrunDataFrameClampsAtTotalSize(t *testing.T) {
	// total_size = 3 but a single 5-byte Data frame arrives.
	overrun := []byte{0x01, 0x02, 0x03, 0x04, 0x05}
	var wire []byte
	wire = append(wire, commandFrame(frame.CmdStart)...)
	wire = append(wire, headerFrame(3, frame.CRC32(overrun[:3]))...)
	wire = append(wire, dataFrame(overrun)...)
	wire = append(wire, commandFrame(frame.CmdEnd)...)

	mem := flashctl.NewMemController(testBase, 16)
	outcome, err, port := runWith(t, wire, mem)

	require.NoError(t, err)
	assert.Equal(t, session.Success, outcome)
	assert.Equal(t, []frame.Status{frame.StatusACK, frame.StatusACK, frame.StatusACK, frame.StatusACK}, responses(t, port.Written()))
	assert.Equal(t, overrun[:3], mem.Contents()[:3])
	assert.Equal(t, byte(0xFF), mem.Contents()[3], "bytes past total_size must never be written (region stays erased, not overwritten)")
}

func TestSecondHeaderInDataStateDoesNotMutateTotals(t *testing.T) {
	var wire []byte
	wire = append(wire, commandFrame(frame.CmdStart)...)
	wire = append(wire, headerFrame(3, 0)...)
	wire = append(wire, headerFrame(99, 0xAAAAAAAA)...) // replay, must be rejected

	mem := flashctl.NewMemController(testBase, 16)
	outcome, err, port := runWith(t, wire, mem)

	require.Error(t, err)
	var se *session.StateError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, session.Failure, outcome)
	assert.Equal(t, []frame.Status{frame.StatusACK, frame.StatusNACK}, responses(t, port.Written()))

	// Drive the state machine directly so the totals are observable.
	sess := session.New(flashctl.New(flashctl.NewMemController(testBase, 16), testBase))
	require.NoError(t, sess.Step(frame.Frame{Kind: frame.TypeCommand, Payload: []byte{byte(frame.CmdStart)}}))
	require.NoError(t, sess.Step(frame.Frame{Kind: frame.TypeHeader, Payload: frame.EncodeHeader(3, 0, nil)}))
	require.ErrorAs(t, sess.Step(frame.Frame{Kind: frame.TypeHeader, Payload: frame.EncodeHeader(99, 0xAAAAAAAA, nil)}), &se)
	assert.EqualValues(t, 3, sess.TotalSize())
	assert.Equal(t, session.StateData, sess.State())
}
