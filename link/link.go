package link

import (
	"bufio"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/ardnew/cartbridge/pkg"
)

// ReceiveQueue is the number of unreceived console messages a Link buffers.
const ReceiveQueue = 64

// Message is one framed message received from the console.
type Message struct {
	Datatype pkg.Datatype
	Data     []byte
}

// Link is the PC side of the cartridge bridge. It multiplexes command
// responses and unsolicited packets arriving on one stream.
//
// Commands are serialised; Receive may run concurrently with Command. Up to
// ReceiveQueue messages are buffered for Receive; beyond that the oldest
// are dropped.
type Link struct {
	rw io.ReadWriter

	cmdMutex   sync.Mutex
	writeMutex sync.Mutex

	responses chan Frame
	messages  chan Message

	done     chan struct{}
	errMutex sync.Mutex
	err      error

	closeOnce sync.Once
}

// New starts a link over rw. The link reads rw until Close is called or a
// read fails.
func New(rw io.ReadWriter) *Link {
	l := &Link{
		rw:        rw,
		responses: make(chan Frame, 1),
		messages:  make(chan Message, ReceiveQueue),
		done:      make(chan struct{}),
	}
	go l.readLoop()
	return l
}

func (l *Link) readLoop() {
	r := bufio.NewReader(l.rw)
	for {
		f, err := ReadFrame(r)
		if err != nil {
			l.fail(err)
			return
		}

		switch f.Kind {
		case FramePacket:
			if f.ID != PacketDebugData {
				pkg.LogDebug(pkg.ComponentLink, "ignoring packet", "id", string(rune(f.ID)))
				continue
			}
			datatype, data, err := DecodeDebugData(f.Data)
			if err != nil {
				pkg.LogWarn(pkg.ComponentLink, "malformed debug packet", "error", err)
				continue
			}
			l.deliver(Message{Datatype: datatype, Data: data})

		default:
			select {
			case l.responses <- f:
			case <-l.done:
				return
			}
		}
	}
}

// deliver queues m for Receive. When nobody is receiving and the queue is
// full the oldest message is dropped, so the reader never stalls and command
// responses keep flowing.
func (l *Link) deliver(m Message) {
	for {
		select {
		case l.messages <- m:
			return
		default:
		}
		select {
		case old := <-l.messages:
			pkg.LogWarn(pkg.ComponentLink, "receive queue full, dropping message",
				"datatype", old.Datatype.String(),
				"size", len(old.Data))
		default:
		}
	}
}

func (l *Link) fail(err error) {
	l.errMutex.Lock()
	if l.err == nil {
		l.err = err
	}
	l.errMutex.Unlock()
	l.closeOnce.Do(func() { close(l.done) })
}

// Err returns the error that stopped the link, if any.
func (l *Link) Err() error {
	l.errMutex.Lock()
	defer l.errMutex.Unlock()
	return l.err
}

// Close stops the link and closes the underlying stream if it is an
// io.Closer.
func (l *Link) Close() error {
	l.fail(io.ErrClosedPipe)
	if c, ok := l.rw.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

// Command sends a request and waits for its response.
func (l *Link) Command(ctx context.Context, req Request) ([]byte, error) {
	l.cmdMutex.Lock()
	defer l.cmdMutex.Unlock()

	// A response to an abandoned command may still be queued.
	l.drainResponses()

	l.writeMutex.Lock()
	err := WriteRequest(l.rw, req)
	l.writeMutex.Unlock()
	if err != nil {
		return nil, fmt.Errorf("command '%c': %w", req.ID, err)
	}

	select {
	case f := <-l.responses:
		if f.ID != req.ID {
			return nil, fmt.Errorf("response '%c' to command '%c': %w", f.ID, req.ID, pkg.ErrProtocol)
		}
		if f.Kind == FrameError {
			return f.Data, fmt.Errorf("command '%c': %w", req.ID, pkg.ErrCommand)
		}
		return f.Data, nil
	case <-l.done:
		return nil, l.stopped()
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (l *Link) drainResponses() {
	for {
		select {
		case f := <-l.responses:
			pkg.LogDebug(pkg.ComponentLink, "discarding stale response",
				"kind", f.Kind.String(),
				"id", string(rune(f.ID)))
		default:
			return
		}
	}
}

func (l *Link) stopped() error {
	if err := l.Err(); err != nil && !errors.Is(err, io.ErrClosedPipe) {
		return fmt.Errorf("link stopped: %w", err)
	}
	return pkg.ErrNotRunning
}

// Identify returns the cart identifier word.
func (l *Link) Identify(ctx context.Context) (uint32, error) {
	data, err := l.Command(ctx, Request{ID: CmdIdentify})
	if err != nil {
		return 0, err
	}
	if len(data) < 4 {
		return 0, fmt.Errorf("identifier of %d bytes: %w", len(data), pkg.ErrProtocol)
	}
	return binary.BigEndian.Uint32(data), nil
}

// Send delivers one message to the console.
func (l *Link) Send(ctx context.Context, datatype pkg.Datatype, data []byte) error {
	if len(data) > pkg.MaxLength {
		return fmt.Errorf("message of %d bytes: %w", len(data), pkg.ErrInvalidParameter)
	}
	_, err := l.Command(ctx, Request{
		ID:   CmdDebugData,
		Args: [2]uint32{uint32(datatype), uint32(len(data))},
		Data: data,
	})
	return err
}

// Receive waits for the next message from the console.
func (l *Link) Receive(ctx context.Context) (Message, error) {
	select {
	case m := <-l.messages:
		return m, nil
	case <-l.done:
		// Drain anything that arrived before the link stopped.
		select {
		case m := <-l.messages:
			return m, nil
		default:
		}
		return Message{}, l.stopped()
	case <-ctx.Done():
		return Message{}, ctx.Err()
	}
}
