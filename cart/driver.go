package cart

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/ardnew/cartbridge/cart/hal"
	"github.com/ardnew/cartbridge/pkg"
)

// DefaultWriteTimeout bounds how long Write waits for the cart to accept a
// message.
const DefaultWriteTimeout = 1000 * time.Millisecond

// noBlock marks the staging buffer as holding no part of the message.
const noBlock = -1

// cursor tracks consumption of the current incoming message.
type cursor struct {
	datatype pkg.Datatype
	total    int // message size
	left     int // bytes not yet consumed, never above total
	block    int // message offset of the staged block, or noBlock
}

func (c *cursor) reset() {
	*c = cursor{block: noBlock}
}

// Driver is the bridge driver context. The zero value is not usable; create
// one with NewDriver.
type Driver struct {
	bus   hal.Bus
	clock hal.Clock

	kind    Kind
	backend Backend
	probed  bool

	stage        []byte
	cur          cursor
	timedOut     bool
	writeTimeout time.Duration
}

// NewDriver creates an undetected driver over bus. Timeouts are measured on
// clock; a nil clock selects the system monotonic clock.
func NewDriver(bus hal.Bus, clock hal.Clock) *Driver {
	if clock == nil {
		clock = hal.NewSystemClock()
	}
	return &Driver{
		bus:          bus,
		clock:        clock,
		stage:        pkg.NewStagingBuffer(),
		cur:          cursor{block: noBlock},
		writeTimeout: DefaultWriteTimeout,
	}
}

// SetWriteTimeout sets the budget Write waits for the cart to acknowledge a
// message. Non-positive values restore DefaultWriteTimeout.
func (d *Driver) SetWriteTimeout(timeout time.Duration) {
	if timeout <= 0 {
		timeout = DefaultWriteTimeout
	}
	d.writeTimeout = timeout
	pkg.LogDebug(pkg.ComponentBridge, "write timeout set", "timeout", timeout)
}

// Init probes for a supported cart and binds the first one found. It runs
// the probe only once; later calls return the kind found the first time.
func (d *Driver) Init() Kind {
	if d.probed {
		return d.kind
	}
	d.probed = true

	for _, p := range probers {
		if b := p.probe(d.bus, d.clock); b != nil {
			d.kind, d.backend = p.kind, b
			pkg.LogInfo(pkg.ComponentDetect, "cart detected", "kind", p.kind.String())
			return d.kind
		}
	}

	pkg.LogInfo(pkg.ComponentDetect, "no cart detected")
	return KindNone
}

// Kind returns the detected backend.
func (d *Driver) Kind() Kind {
	return d.kind
}

// TimedOut reports whether the most recent write failed to complete. It
// does not clear the flag.
func (d *Driver) TimedOut() bool {
	return d.timedOut
}

// Write sends data as one message of the given datatype.
//
// Write does nothing while an incoming message is still being read, nothing
// if no cart was detected, and nothing if the message is larger than the
// cart can stage. These refusals leave the TimedOut flag alone. A write that times out, or finds the
// previous write still pending, or is rejected by the cart, sets the
// TimedOut flag; a completed write clears it.
func (d *Driver) Write(datatype pkg.Datatype, data []byte) error {
	if d.backend == nil {
		return pkg.ErrNoBackend
	}
	if d.cur.left != 0 {
		return pkg.ErrReadInProgress
	}
	if len(data) > pkg.MaxLength {
		return fmt.Errorf("message of %d bytes: %w", len(data), pkg.ErrInvalidParameter)
	}

	err := d.backend.Write(d.stage, datatype, data, d.writeTimeout)
	if errors.Is(err, pkg.ErrInvalidParameter) {
		// Refused before any hardware access.
		return err
	}
	d.timedOut = err != nil
	if err != nil {
		pkg.LogWarn(pkg.ComponentWrite, "write failed",
			"datatype", datatype.String(),
			"size", len(data),
			"status", pkg.StatusOf(err).String(),
			"error", err)
		return err
	}

	pkg.LogDebug(pkg.ComponentWrite, "message sent",
		"datatype", datatype.String(),
		"size", len(data))
	return nil
}

// Writer returns an io.Writer that sends each Write call as one message of
// the given datatype.
func (d *Driver) Writer(datatype pkg.Datatype) io.Writer {
	return &messageWriter{driver: d, datatype: datatype}
}

type messageWriter struct {
	driver   *Driver
	datatype pkg.Datatype
}

func (w *messageWriter) Write(p []byte) (int, error) {
	if err := w.driver.Write(w.datatype, p); err != nil {
		return 0, err
	}
	return len(p), nil
}

// SendHeartbeat announces the protocol and heartbeat versions to the PC.
func (d *Driver) SendHeartbeat() error {
	payload := pkg.HeartbeatPayload()
	return d.Write(pkg.DatatypeHeartbeat, payload[:])
}
