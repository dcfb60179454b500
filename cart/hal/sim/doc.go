// Package sim implements a simulated SummerCart64 for testing and for
// running the bridge without hardware.
//
// [Cart] satisfies [hal.Bus]. It models the register block (unlock key,
// identifier, SR_CMD with busy and error bits, two data registers), the
// 8 MiB SDRAM window used for USB transfers, the ROM write enable flag and
// both USB directions. Latency and failures can be injected per command so
// tests can drive every busy, error and timeout path deterministically.
//
// # Host Side
//
// Messages for the console are queued with [Cart.HostSend] and messages the
// console wrote are collected with [Cart.HostReceive]. [Cart.ServeHost]
// speaks the PC link protocol over an io.ReadWriter instead, so a
// [github.com/ardnew/cartbridge/link.Link] can talk to a simulated cart
// exactly as it talks to a real one.
//
// # Checks
//
// DMA transfers are validated the way the hardware constrains them: the
// local buffer must be 8-byte aligned, the length a multiple of two, and
// the range inside the SDRAM window. Violations return [pkg.ErrAlignment]
// or [pkg.ErrOutOfRange] and are counted in [Stats].
//
// # SDRAM Backing
//
// [New] backs SDRAM with heap memory. [NewWithSDRAMFile] maps a file
// instead, which leaves the last staged messages inspectable after the
// process exits.
package sim
