// Package cart implements the console side of the cartridge USB bridge.
//
// A [Driver] detects which flashcart is present, then moves typed,
// length-delimited messages between console memory and a PC through that
// cart. Outgoing messages are sent whole with [Driver.Write]. Incoming
// messages are announced by [Driver.Poll] and consumed through a cursor:
// [Driver.Read] copies bytes, [Driver.Skip] and [Driver.Rewind] move the
// cursor without copying, and [Driver.Purge] discards the rest.
//
// # Detection
//
// [Driver.Init] probes each supported backend once. If none answers, the
// driver stays in [KindNone] and every operation is a no-op: Write returns
// [pkg.ErrNoBackend], Poll returns 0 and Read returns no bytes.
//
// # Staging
//
// The driver owns one [pkg.BlockSize] staging buffer. Incoming data is
// fetched one block at a time and only when the cursor moves into a block
// that is not already staged, so many small reads cost one DMA per block.
//
// # Errors
//
// Failures never panic. Operations return early with a neutral value and,
// where a return value exists, an error for diagnostics. The durable
// signal is [Driver.TimedOut], which reports whether the most recent write
// failed to complete.
//
// # Concurrency
//
// A Driver is not safe for concurrent use. All operations block for the
// full hardware latency; command completion is a busy-wait with no bound.
//
// # Example
//
//	d := cart.NewDriver(bus, hal.NewSystemClock())
//	if d.Init() == cart.KindNone {
//	    return
//	}
//	d.Write(pkg.DatatypeText, []byte("hello"))
//	if h := d.Poll(); !h.IsZero() {
//	    buf := make([]byte, h.Length())
//	    d.Read(buf)
//	}
package cart
