package hal

import "time"

// Bus is the register and DMA interface to the cartridge.
//
// Implementations are not required to be safe for concurrent use; the
// driver serialises all accesses.
type Bus interface {
	// Load32 reads one 32-bit word at addr.
	Load32(addr uint32) uint32

	// Store32 writes one 32-bit word at addr.
	Store32(addr uint32, value uint32)

	// DMAStore copies p to the bus starting at addr.
	DMAStore(addr uint32, p []byte) error

	// DMALoad fills p from the bus starting at addr.
	DMALoad(addr uint32, p []byte) error

	// Writeback flushes cached writes covering p to memory.
	Writeback(p []byte)

	// Invalidate discards cached contents covering p.
	Invalidate(p []byte)
}

// Clock is a monotonic time source used for transfer timeouts.
type Clock interface {
	// Now returns the time elapsed since an arbitrary fixed origin.
	Now() time.Duration
}

// SystemClock is a Clock backed by the runtime's monotonic clock.
type SystemClock struct {
	origin time.Time
}

// NewSystemClock returns a Clock whose origin is the moment of the call.
func NewSystemClock() *SystemClock {
	return &SystemClock{origin: time.Now()}
}

// Now returns the time elapsed since the clock was created.
func (c *SystemClock) Now() time.Duration {
	return time.Since(c.origin)
}

// Deadline tracks a timeout budget on a Clock.
type Deadline struct {
	clock  Clock
	start  time.Duration
	budget time.Duration
}

// NewDeadline starts a budget measured from the current clock reading.
func NewDeadline(clock Clock, budget time.Duration) Deadline {
	return Deadline{clock: clock, start: clock.Now(), budget: budget}
}

// Expired reports whether more than the budget has elapsed.
func (d Deadline) Expired() bool {
	return d.clock.Now()-d.start > d.budget
}

// Elapsed returns the time spent since the deadline started.
func (d Deadline) Elapsed() time.Duration {
	return d.clock.Now() - d.start
}
