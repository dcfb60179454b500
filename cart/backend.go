package cart

import (
	"time"

	"github.com/ardnew/cartbridge/cart/hal"
	"github.com/ardnew/cartbridge/cart/summercart64"
	"github.com/ardnew/cartbridge/pkg"
)

// Kind identifies the detected backend.
type Kind uint8

const (
	KindNone Kind = iota
	KindSummerCart64
)

// String returns a short backend name.
func (k Kind) String() string {
	switch k {
	case KindNone:
		return "none"
	case KindSummerCart64:
		return "summercart64"
	default:
		return "unknown"
	}
}

// Backend is the operation table bound at detection.
type Backend interface {
	// Write sends one message through stage, waiting up to timeout for the
	// cart to acknowledge it.
	Write(stage []byte, datatype pkg.Datatype, data []byte, timeout time.Duration) error

	// Poll returns the header of a newly arrived message after the cart has
	// staged it, or 0 if nothing is pending.
	Poll() (pkg.Header, error)

	// ReadBlock fills stage with the block of the message at offset.
	ReadBlock(stage []byte, offset int) error
}

// prober tries to detect one backend.
type prober struct {
	kind  Kind
	probe func(bus hal.Bus, clock hal.Clock) Backend
}

// probers lists supported backends in detection order.
var probers = []prober{
	{
		kind: KindSummerCart64,
		probe: func(bus hal.Bus, clock hal.Clock) Backend {
			// Avoid returning a typed nil inside the interface.
			if sc := summercart64.Probe(bus, clock); sc != nil {
				return sc
			}
			return nil
		},
	},
}
