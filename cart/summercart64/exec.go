package summercart64

import (
	"fmt"

	"github.com/ardnew/cartbridge/cart/hal"
	"github.com/ardnew/cartbridge/pkg"
)

// Executor issues commands to the SummerCart64 control block.
type Executor struct {
	bus hal.Bus
}

// NewExecutor returns an executor bound to bus.
func NewExecutor(bus hal.Bus) *Executor {
	return &Executor{bus: bus}
}

// Execute runs cmd with optional args, spins until the cart clears the busy
// bit and then loads optional results. It returns true if the cart set the
// error bit.
//
// The spin is unbounded; a cart that never clears busy stalls the caller.
func (e *Executor) Execute(cmd Command, args, results *[2]uint32) bool {
	if args != nil {
		e.bus.Store32(RegData0, args[0])
		e.bus.Store32(RegData1, args[1])
	}
	e.bus.Store32(RegStatus, uint32(cmd))

	status := Status(e.bus.Load32(RegStatus))
	for status.Busy() {
		status = Status(e.bus.Load32(RegStatus))
	}

	if results != nil {
		results[0] = e.bus.Load32(RegData0)
		results[1] = e.bus.Load32(RegData1)
	}

	if status.Error() {
		pkg.LogDebug(pkg.ComponentExecutor, "command error",
			"cmd", cmd.String(),
			"status", fmt.Sprintf("0x%08X", uint32(status)))
		return true
	}
	return false
}

// Run is Execute reporting failure as an error wrapping [pkg.ErrCommand].
func (e *Executor) Run(cmd Command, args, results *[2]uint32) error {
	if e.Execute(cmd, args, results) {
		return fmt.Errorf("%s: %w", cmd, pkg.ErrCommand)
	}
	return nil
}

// SetWritable sets the ROM write enable flag and returns its previous value.
// A failed command reports the gate as previously disabled.
func (e *Executor) SetWritable(enable bool) bool {
	args := [2]uint32{ConfigROMWriteEnable, 0}
	if enable {
		args[1] = 1
	}
	var results [2]uint32
	if e.Execute(CmdConfigSet, &args, &results) {
		return false
	}
	return results[1] != 0
}

// WriteBusy queries the USB write status.
func (e *Executor) WriteBusy() bool {
	var results [2]uint32
	e.Execute(CmdUSBWriteStatus, nil, &results)
	return results[0]&USBWriteStatusBusy != 0
}

// ReadStatus queries the USB read status, returning the busy flag and the
// pending message's datatype and length.
func (e *Executor) ReadStatus() (busy bool, datatype pkg.Datatype, length int) {
	var results [2]uint32
	e.Execute(CmdUSBReadStatus, nil, &results)
	busy = results[0]&USBReadStatusBusy != 0
	datatype = pkg.Datatype(results[0] & 0xFF)
	length = int(results[1] & pkg.MaxLength)
	return busy, datatype, length
}
