package summercart64

import (
	"fmt"
	"time"

	"github.com/ardnew/cartbridge/cart/hal"
	"github.com/ardnew/cartbridge/pkg"
)

// SummerCart64 is a detected SummerCart64 backend.
type SummerCart64 struct {
	bus   hal.Bus
	clock hal.Clock
	exec  *Executor
}

// Probe unlocks the register block and checks the identifier. It returns nil
// if no SummerCart64 answers. There are no retries.
func Probe(bus hal.Bus, clock hal.Clock) *SummerCart64 {
	bus.Store32(RegKey, KeyReset)
	bus.Store32(RegKey, KeyUnlock1)
	bus.Store32(RegKey, KeyUnlock2)

	id := bus.Load32(RegIdentifier)
	if id != Identifier {
		pkg.LogDebug(pkg.ComponentDetect, "summercart64 not found",
			"identifier", fmt.Sprintf("0x%08X", id))
		return nil
	}
	return &SummerCart64{
		bus:   bus,
		clock: clock,
		exec:  NewExecutor(bus),
	}
}

// Write sends one message. The payload is staged through stage, which must
// be a [pkg.BlockSize] DMA-aligned buffer, into the cart's USB window and
// then handed to the USB controller. Write blocks until the controller
// reports completion or timeout elapses.
//
// A message larger than the USB window is refused with
// [pkg.ErrInvalidParameter] before any register access. A write still
// pending from an earlier call returns [pkg.ErrWriteBusy], a timeout an
// error wrapping [pkg.ErrBusyTimeout], and a rejected write command or a
// failed chunk DMA the underlying error.
func (c *SummerCart64) Write(stage []byte, datatype pkg.Datatype, data []byte, timeout time.Duration) error {
	if len(data) > int(BufferSize) {
		return fmt.Errorf("message of %d bytes exceeds %d byte window: %w", len(data), BufferSize, pkg.ErrInvalidParameter)
	}
	if c.exec.WriteBusy() {
		return pkg.ErrWriteBusy
	}

	writable := c.exec.SetWritable(true)
	if err := c.stage(stage, data); err != nil {
		c.exec.SetWritable(writable)
		return err
	}
	c.exec.SetWritable(writable)

	args := [2]uint32{BufferAddr, uint32(pkg.NewHeader(datatype, len(data)))}
	if err := c.exec.Run(CmdUSBWrite, &args, nil); err != nil {
		return err
	}

	deadline := hal.NewDeadline(c.clock, timeout)
	for c.exec.WriteBusy() {
		if deadline.Expired() {
			return fmt.Errorf("write not acknowledged after %v: %w", deadline.Elapsed(), pkg.ErrBusyTimeout)
		}
	}
	return nil
}

// stage copies data into the USB window one chunk at a time.
func (c *SummerCart64) stage(stage []byte, data []byte) error {
	offset := uint32(0)
	for left := data; len(left) > 0; {
		n := copy(stage, left)
		c.bus.Writeback(stage[:n])
		if err := c.bus.DMAStore(BufferAddr+offset, stage[:pkg.AlignUp(n, pkg.DMALengthAlignment)]); err != nil {
			pkg.LogError(pkg.ComponentHAL, "chunk dma failed",
				"offset", offset,
				"error", err)
			return fmt.Errorf("chunk at offset %d: %w", offset, err)
		}
		left = left[n:]
		offset += uint32(n)
	}
	return nil
}

// Poll checks for a message from the PC. If one is pending, the cart is
// told to copy it into the USB window and Poll waits for that to finish.
// A zero header means nothing is pending. If the read command is rejected
// the header is returned alongside an error wrapping [pkg.ErrCommand].
func (c *SummerCart64) Poll() (pkg.Header, error) {
	_, datatype, length := c.exec.ReadStatus()
	if length == 0 {
		return 0, nil
	}
	header := pkg.NewHeader(datatype, length)

	args := [2]uint32{BufferAddr, uint32(pkg.AlignUp(length, pkg.DMALengthAlignment))}
	if err := c.exec.Run(CmdUSBRead, &args, nil); err != nil {
		return header, err
	}

	for {
		busy, _, _ := c.exec.ReadStatus()
		if !busy {
			break
		}
	}
	return header, nil
}

// ReadBlock copies the block of the staged message starting at offset into
// stage.
func (c *SummerCart64) ReadBlock(stage []byte, offset int) error {
	c.bus.Invalidate(stage)
	return c.bus.DMALoad(BufferAddr+uint32(offset), stage)
}
