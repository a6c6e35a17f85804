// Package flashctl programs the incoming image into the application
// region of flash, following an unlock/erase/program/lock discipline.
package flashctl

import "fmt"

// Programmer is the flash driver collaborator that wraps the MCU flash
// controller. Only flashctl touches it.
type Programmer interface {
	Unlock() error
	EraseAppRegion() error
	ProgramByte(addr uint32, value byte) error
	Lock() error
}

// FlashError wraps an unlock, erase, program, or lock failure.
type FlashError struct {
	Stage string
	Err   error
}

func (e *FlashError) Error() string {
	return fmt.Sprintf("flashctl: %s failed: %v", e.Stage, e.Err)
}

func (e *FlashError) Unwrap() error { return e.Err }

// Controller drives program_chunk against a Programmer and tracks how many
// bytes of the application region it has written.
type Controller struct {
	prog     Programmer
	baseAddr uint32
	received uint32
	erased   bool
}

// New returns a Controller that will program appBase-relative offsets of
// prog. appBase and the sector range prog erases are compile-time
// constants agreed with the linker script.
func New(prog Programmer, appBase uint32) *Controller {
	return &Controller{prog: prog, baseAddr: appBase}
}

// Received reports the number of bytes successfully programmed so far.
func (c *Controller) Received() uint32 { return c.received }

// Reset clears accumulated progress, for starting a fresh session.
func (c *Controller) Reset() { c.received = 0; c.erased = false }

// ProgramChunk writes bytes into the application region starting at
// baseAddr+Received(), advancing Received() by the number of bytes
// actually written. isFirst erases the application region before
// programming; unlock/lock are balanced on every return path, including
// the error paths, via defer.
func (c *Controller) ProgramChunk(data []byte, isFirst bool) (written int, err error) {
	if err := c.prog.Unlock(); err != nil {
		return 0, &FlashError{Stage: "unlock", Err: err}
	}
	defer func() {
		if lockErr := c.prog.Lock(); lockErr != nil && err == nil {
			// Lock failure is reported but does not roll back prior writes.
			err = &FlashError{Stage: "lock", Err: lockErr}
		}
	}()

	if isFirst && !c.erased {
		if eraseErr := c.prog.EraseAppRegion(); eraseErr != nil {
			return 0, &FlashError{Stage: "erase", Err: eraseErr}
		}
		c.erased = true
	}

	for _, b := range data {
		if progErr := c.prog.ProgramByte(c.baseAddr+c.received, b); progErr != nil {
			return written, &FlashError{Stage: "program", Err: progErr}
		}
		written++
		c.received++
	}

	return written, nil
}
