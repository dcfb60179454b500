package sim

import (
	"bufio"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/ardnew/cartbridge/cart/summercart64"
	"github.com/ardnew/cartbridge/link"
	"github.com/ardnew/cartbridge/pkg"
)

// HostSend queues a message from the PC to the console. Messages larger
// than the SDRAM window are refused, since the cart could never stage them.
func (c *Cart) HostSend(datatype pkg.Datatype, data []byte) error {
	if len(data) > int(summercart64.BufferSize) {
		return fmt.Errorf("message of %d bytes: %w", len(data), pkg.ErrInvalidParameter)
	}
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.inbox = append(c.inbox, Message{Datatype: datatype, Data: append([]byte(nil), data...)})
	return nil
}

// HostReceive removes the oldest message the console wrote, if any.
func (c *Cart) HostReceive() (Message, bool) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	if len(c.outbox) == 0 {
		return Message{}, false
	}
	m := c.outbox[0]
	c.outbox = c.outbox[1:]
	return m, true
}

// HostPending returns the number of queued messages in each direction.
func (c *Cart) HostPending() (toConsole, toHost int) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return len(c.inbox), len(c.outbox)
}

// ServeHost answers link commands read from rw and forwards messages the
// console writes as debug packets. It returns when rw fails or ctx is done;
// on ctx cancellation rw is closed if it implements io.Closer.
func (c *Cart) ServeHost(ctx context.Context, rw io.ReadWriter) error {
	g, ctx := errgroup.WithContext(ctx)

	var writeMutex sync.Mutex
	write := func(f link.Frame) error {
		writeMutex.Lock()
		defer writeMutex.Unlock()
		return link.WriteFrame(rw, f)
	}

	g.Go(func() error {
		r := bufio.NewReader(rw)
		for {
			req, err := link.ReadRequest(r)
			if err != nil {
				return err
			}
			if err := write(c.handleRequest(req)); err != nil {
				return err
			}
		}
	})

	g.Go(func() error {
		for {
			for {
				m, ok := c.HostReceive()
				if !ok {
					break
				}
				err := write(link.Frame{
					Kind: link.FramePacket,
					ID:   link.PacketDebugData,
					Data: link.EncodeDebugData(m.Datatype, m.Data),
				})
				if err != nil {
					return err
				}
			}
			select {
			case <-ctx.Done():
				if closer, ok := rw.(io.Closer); ok {
					closer.Close()
				}
				return ctx.Err()
			case <-c.notify:
			}
		}
	})

	err := g.Wait()
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrClosedPipe) || errors.Is(err, net.ErrClosed) {
		return nil
	}
	return err
}

func (c *Cart) handleRequest(req link.Request) link.Frame {
	switch req.ID {
	case link.CmdIdentify:
		data := make([]byte, 4)
		binary.BigEndian.PutUint32(data, summercart64.Identifier)
		return link.Frame{Kind: link.FrameComplete, ID: req.ID, Data: data}

	case link.CmdDebugData:
		if err := c.HostSend(pkg.Datatype(req.Args[0]), req.Data); err != nil {
			return link.Frame{Kind: link.FrameError, ID: req.ID}
		}
		return link.Frame{Kind: link.FrameComplete, ID: req.ID}

	default:
		pkg.LogDebug(pkg.ComponentSim, "unsupported link command", "id", string(rune(req.ID)))
		return link.Frame{Kind: link.FrameError, ID: req.ID}
	}
}
