// Package hal defines the Hardware Abstraction Layer consumed by the bridge
// driver.
//
// The driver never dereferences a cartridge address itself. Every register
// access, DMA transfer and cache maintenance operation goes through a [Bus],
// and every timeout is measured on a [Clock]. Console targets implement Bus
// on top of the peripheral interface; tests and the cartlink tool use the
// simulated cartridge in [github.com/ardnew/cartbridge/cart/hal/sim].
//
// # Implementing a Bus
//
//  1. Load32/Store32 perform a single 32-bit access at a physical address.
//  2. DMAStore copies local memory to the bus, DMALoad the reverse.
//  3. Writeback flushes dirty cache lines covering a buffer before a store
//     DMA; Invalidate discards them before a load DMA. Hosted
//     implementations without a data cache leave both empty.
//
// Addresses are physical bus addresses, not CPU virtual addresses.
//
// # Example
//
//	type piBus struct{}
//
//	func (piBus) Load32(addr uint32) uint32 {
//	    // wait for PI idle, then read
//	}
//
//	// ... implement remaining Bus methods
package hal
