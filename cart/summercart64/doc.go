// Package summercart64 implements the bridge backend for the SummerCart64
// flashcart.
//
// The cart exposes a five-register control block at [RegBase]. A command is
// issued by storing its arguments in DATA0/DATA1 and then the opcode in
// SR_CMD; the cart raises the busy bit until the command finishes and the
// error bit if it failed. [Executor] is the only code in the module that
// touches SR_CMD and the data registers.
//
// USB transfers go through a window of cart SDRAM at [BufferAddr]. Outgoing
// messages are DMA'd into the window in [pkg.BlockSize] chunks and handed to
// the cart's USB controller with a single write command; incoming messages
// are staged into the same window by a read command and then fetched one
// block at a time.
package summercart64
