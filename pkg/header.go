package pkg

import (
	"fmt"
	"strconv"
)

// Datatype tags the payload of a message.
type Datatype uint8

// Datatypes understood by the PC-side tooling.
const (
	DatatypeText       Datatype = 0x01 // UTF-8 text
	DatatypeRawBinary  Datatype = 0x02 // Opaque bytes
	DatatypeHeader     Datatype = 0x03 // Header for a following message
	DatatypeScreenshot Datatype = 0x04 // Framebuffer dump
	DatatypeHeartbeat  Datatype = 0x05 // Protocol version announcement
)

// String returns a human-readable datatype name.
func (d Datatype) String() string {
	switch d {
	case DatatypeText:
		return "text"
	case DatatypeRawBinary:
		return "raw"
	case DatatypeHeader:
		return "header"
	case DatatypeScreenshot:
		return "screenshot"
	case DatatypeHeartbeat:
		return "heartbeat"
	default:
		return fmt.Sprintf("datatype(0x%02X)", uint8(d))
	}
}

// ParseDatatype accepts a datatype name as returned by String, or a number.
func ParseDatatype(s string) (Datatype, error) {
	for d := DatatypeText; d <= DatatypeHeartbeat; d++ {
		if s == d.String() {
			return d, nil
		}
	}
	v, err := strconv.ParseUint(s, 0, 8)
	if err != nil || v == 0 {
		return 0, fmt.Errorf("datatype %q: %w", s, ErrInvalidParameter)
	}
	return Datatype(v), nil
}

// MaxLength is the largest length a header can carry.
const MaxLength = 0x00FFFFFF

// Header packs a datatype and a 24-bit length into one word. The zero
// header means no data is pending.
type Header uint32

// NewHeader returns the header for a message of length bytes. Lengths above
// MaxLength are truncated to their low 24 bits.
func NewHeader(datatype Datatype, length int) Header {
	return Header(uint32(datatype)<<24 | uint32(length)&MaxLength)
}

// Datatype returns the message datatype.
func (h Header) Datatype() Datatype {
	return Datatype(h >> 24)
}

// Length returns the message length in bytes.
func (h Header) Length() int {
	return int(h & MaxLength)
}

// IsZero reports whether h signals that nothing is pending.
func (h Header) IsZero() bool {
	return h == 0
}

// String formats the header for logging.
func (h Header) String() string {
	return fmt.Sprintf("%s[%d]", h.Datatype(), h.Length())
}

// Heartbeat versions announced by SendHeartbeat.
const (
	ProtocolVersion  = 2
	HeartbeatVersion = 1
)

// HeartbeatPayload returns the four-byte heartbeat body.
func HeartbeatPayload() [4]byte {
	return [4]byte{
		byte(ProtocolVersion >> 8), byte(ProtocolVersion),
		byte(HeartbeatVersion >> 8), byte(HeartbeatVersion),
	}
}
