// Package link implements the PC side of the cartridge bridge.
//
// The SummerCart64 appears on the PC as a USB serial device. The PC sends
// framed commands and the cart answers each with a completion or error
// frame; data written by the console arrives as unsolicited packets on the
// same stream:
//
//	request   "CMD" id arg0:u32 arg1:u32 payload
//	response  "CMP" | "ERR" id length:u32 payload
//	packet    "PKT" id length:u32 payload
//
// All integers are big-endian. A message for the console is command 'U'
// with the datatype in arg0 and the length in arg1; a message from the
// console is packet 'U' whose payload begins with the message header.
//
// [Open] and [Discover] deal with real serial ports. [New] accepts any
// io.ReadWriter, which is how the simulated cart in
// [github.com/ardnew/cartbridge/cart/hal/sim] is attached in tests.
package link
