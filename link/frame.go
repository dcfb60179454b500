package link

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/ardnew/cartbridge/pkg"
)

// Frame tokens.
const (
	tokenCommand  = "CMD"
	tokenComplete = "CMP"
	tokenError    = "ERR"
	tokenPacket   = "PKT"
	tokenSize     = 3
)

// Command identifiers used by the link.
const (
	CmdIdentify  byte = 'v'
	CmdDebugData byte = 'U'
)

// Packet identifiers pushed by the cart without a request.
const (
	PacketDebugData byte = 'U'
)

// MaxPayload bounds the payload of a single frame.
const MaxPayload = pkg.MaxLength + 4

// Request is a command sent from the PC to the cart.
type Request struct {
	ID   byte
	Args [2]uint32
	Data []byte
}

// FrameKind distinguishes frames sent from the cart to the PC.
type FrameKind uint8

const (
	FrameComplete FrameKind = iota // Successful command response
	FrameError                     // Failed command response
	FramePacket                    // Unsolicited data
)

// String returns the frame token.
func (k FrameKind) String() string {
	switch k {
	case FrameComplete:
		return tokenComplete
	case FrameError:
		return tokenError
	case FramePacket:
		return tokenPacket
	default:
		return "???"
	}
}

// Frame is a response or packet sent from the cart to the PC.
type Frame struct {
	Kind FrameKind
	ID   byte
	Data []byte
}

// requestPayloadLen returns the number of payload bytes that follow a
// request header.
func requestPayloadLen(id byte, args [2]uint32) int {
	if id == CmdDebugData {
		return int(args[1] & pkg.MaxLength)
	}
	return 0
}

// WriteRequest encodes req to w. The payload length must agree with the
// command's arguments.
func WriteRequest(w io.Writer, req Request) error {
	if n := requestPayloadLen(req.ID, req.Args); n != len(req.Data) {
		return fmt.Errorf("command '%c' carries %d bytes, args say %d: %w", req.ID, len(req.Data), n, pkg.ErrInvalidParameter)
	}
	var hdr [tokenSize + 1 + 8]byte
	copy(hdr[:], tokenCommand)
	hdr[3] = req.ID
	binary.BigEndian.PutUint32(hdr[4:], req.Args[0])
	binary.BigEndian.PutUint32(hdr[8:], req.Args[1])
	if _, err := w.Write(hdr[:]); err != nil {
		return err
	}
	if len(req.Data) > 0 {
		if _, err := w.Write(req.Data); err != nil {
			return err
		}
	}
	return nil
}

// ReadRequest decodes one request from r.
func ReadRequest(r *bufio.Reader) (Request, error) {
	var hdr [tokenSize + 1 + 8]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return Request{}, err
	}
	if string(hdr[:tokenSize]) != tokenCommand {
		return Request{}, fmt.Errorf("request token %q: %w", hdr[:tokenSize], pkg.ErrProtocol)
	}
	req := Request{
		ID: hdr[3],
		Args: [2]uint32{
			binary.BigEndian.Uint32(hdr[4:]),
			binary.BigEndian.Uint32(hdr[8:]),
		},
	}
	if n := requestPayloadLen(req.ID, req.Args); n > 0 {
		req.Data = make([]byte, n)
		if _, err := io.ReadFull(r, req.Data); err != nil {
			return Request{}, err
		}
	}
	return req, nil
}

// WriteFrame encodes f to w.
func WriteFrame(w io.Writer, f Frame) error {
	if len(f.Data) > MaxPayload {
		return fmt.Errorf("frame payload of %d bytes: %w", len(f.Data), pkg.ErrInvalidParameter)
	}
	var hdr [tokenSize + 1 + 4]byte
	copy(hdr[:], f.Kind.String())
	hdr[3] = f.ID
	binary.BigEndian.PutUint32(hdr[4:], uint32(len(f.Data)))
	if _, err := w.Write(hdr[:]); err != nil {
		return err
	}
	if len(f.Data) > 0 {
		if _, err := w.Write(f.Data); err != nil {
			return err
		}
	}
	return nil
}

// ReadFrame decodes one frame from r.
func ReadFrame(r *bufio.Reader) (Frame, error) {
	var hdr [tokenSize + 1 + 4]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return Frame{}, err
	}
	var f Frame
	switch string(hdr[:tokenSize]) {
	case tokenComplete:
		f.Kind = FrameComplete
	case tokenError:
		f.Kind = FrameError
	case tokenPacket:
		f.Kind = FramePacket
	default:
		return Frame{}, fmt.Errorf("frame token %q: %w", hdr[:tokenSize], pkg.ErrProtocol)
	}
	f.ID = hdr[3]
	n := binary.BigEndian.Uint32(hdr[4:])
	if n > MaxPayload {
		return Frame{}, fmt.Errorf("frame payload of %d bytes: %w", n, pkg.ErrProtocol)
	}
	if n > 0 {
		f.Data = make([]byte, n)
		if _, err := io.ReadFull(r, f.Data); err != nil {
			return Frame{}, err
		}
	}
	return f, nil
}

// EncodeDebugData builds the payload of a debug data packet.
func EncodeDebugData(datatype pkg.Datatype, data []byte) []byte {
	out := make([]byte, 4+len(data))
	binary.BigEndian.PutUint32(out, uint32(pkg.NewHeader(datatype, len(data))))
	copy(out[4:], data)
	return out
}

// DecodeDebugData splits a debug data packet payload into its datatype and
// message bytes.
func DecodeDebugData(payload []byte) (pkg.Datatype, []byte, error) {
	if len(payload) < 4 {
		return 0, nil, fmt.Errorf("debug packet of %d bytes: %w", len(payload), pkg.ErrProtocol)
	}
	h := pkg.Header(binary.BigEndian.Uint32(payload))
	body := payload[4:]
	if h.Length() > len(body) {
		return 0, nil, fmt.Errorf("debug packet header %s with %d bytes: %w", h, len(body), pkg.ErrProtocol)
	}
	return h.Datatype(), body[:h.Length()], nil
}
