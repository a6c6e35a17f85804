package session

import (
	"context"
	"log"
	"time"

	"github.com/fw-updater/ota-receiver/internal/flashctl"
	"github.com/fw-updater/ota-receiver/internal/frame"
	"github.com/fw-updater/ota-receiver/internal/transport"
)

// Outcome is the cumulative result of one run_session call.
type Outcome int

const (
	Failure Outcome = iota
	Success
)

func (o Outcome) String() string {
	if o == Success {
		return "success"
	}
	return "failure"
}

// Progress is published after every accepted frame, for the optional
// status side-channel (internal/status); it carries nothing the protocol
// itself needs.
type Progress struct {
	State        State
	TotalSize    uint32
	ReceivedSize uint32
}

// Publisher receives best-effort progress notifications. A nil Publisher
// is valid and simply receives nothing.
type Publisher interface {
	Publish(p Progress)
}

// Run drives one complete update attempt: read a frame, step the state
// machine, ACK or NACK, repeat until Idle or a fatal error. frameTimeout
// bounds each individual frame read; pass 0 to block without a deadline.
func Run(ctx context.Context, port transport.Port, flash flashctl.Programmer, appBase uint32, frameTimeout time.Duration, pub Publisher, logger *log.Logger) (Outcome, error) {
	if logger == nil {
		logger = log.Default()
	}

	ctl := flashctl.New(flash, appBase)
	sess := New(ctl)

	for {
		if err := ctx.Err(); err != nil {
			logger.Printf("session: context done before next frame: %v", err)
			return Failure, err
		}

		readCtx := ctx
		var cancel context.CancelFunc
		if frameTimeout > 0 {
			readCtx, cancel = context.WithTimeout(ctx, frameTimeout)
		}
		f, err := frame.Decode(readCtx, port)
		if cancel != nil {
			cancel()
		}
		if err != nil {
			logger.Printf("session: framing error: %v", err)
			sendNACK(ctx, port, logger)
			return Failure, err
		}

		if needsPayloadCRC(f.Kind) && !frame.VerifyPayloadCRC(f) {
			crcErr := &frame.CRCError{Declared: f.DeclaredCRC, Calculated: frame.CRC32(f.Payload)}
			logger.Printf("session: %v", crcErr)
			sendNACK(ctx, port, logger)
			return Failure, crcErr
		}

		if err := sess.Step(f); err != nil {
			logger.Printf("session: rejected %s frame in state %s: %v", f.Kind, sess.State(), err)
			sendNACK(ctx, port, logger)
			return Failure, err
		}

		if err := frame.WriteResponse(ctx, port, frame.StatusACK); err != nil {
			logger.Printf("session: failed to send ACK: %v", err)
			return Failure, err
		}

		if pub != nil {
			pub.Publish(Progress{State: sess.State(), TotalSize: sess.TotalSize(), ReceivedSize: sess.ReceivedSize()})
		}

		if sess.State() == StateIdle {
			logger.Printf("session: complete, %d/%d bytes", sess.ReceivedSize(), sess.TotalSize())
			return Success, nil
		}
	}
}

func sendNACK(ctx context.Context, port transport.Port, logger *log.Logger) {
	if err := frame.WriteResponse(ctx, port, frame.StatusNACK); err != nil {
		logger.Printf("session: failed to send NACK: %v", err)
	}
}

// needsPayloadCRC reports whether a frame kind gets the per-frame CRC
// check before it reaches the state machine. Header and Data frames
// carry payloads worth protecting; Command and Response
// frames are a single status/command byte where the marker framing
// already dominates the error budget.
func needsPayloadCRC(kind frame.PacketType) bool {
	return kind == frame.TypeHeader || kind == frame.TypeData
}
