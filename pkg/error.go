package pkg

import (
	"errors"
	"fmt"
)

// Bridge and link errors.
var (
	// ErrNoBackend indicates no cartridge backend was detected.
	ErrNoBackend = errors.New("no cart backend")

	// ErrCommand indicates the cart reported an error after a command.
	ErrCommand = errors.New("cart command failed")

	// ErrBusyTimeout indicates a write did not complete in time, or the
	// previous write was still in flight.
	ErrBusyTimeout = errors.New("transfer busy timeout")

	// ErrWriteBusy indicates the previous write was still in flight when a
	// new one was attempted. It wraps ErrBusyTimeout.
	ErrWriteBusy = fmt.Errorf("previous write pending: %w", ErrBusyTimeout)

	// ErrReadInProgress indicates an incoming message has not been drained.
	ErrReadInProgress = errors.New("read in progress")

	// ErrInvalidParameter indicates an invalid parameter was provided.
	ErrInvalidParameter = errors.New("invalid parameter")

	// ErrAlignment indicates a DMA address or length violates alignment.
	ErrAlignment = errors.New("misaligned transfer")

	// ErrOutOfRange indicates an access outside a mapped region.
	ErrOutOfRange = errors.New("address out of range")

	// ErrProtocol indicates malformed link framing.
	ErrProtocol = errors.New("protocol error")

	// ErrNoDevice indicates no cart was found on the host side.
	ErrNoDevice = errors.New("device not present")

	// ErrNotRunning indicates the component has not been started.
	ErrNotRunning = errors.New("not running")
)

// TransferStatus represents the completion status of a bridge transfer.
type TransferStatus int

// Transfer status values.
const (
	TransferStatusSuccess   TransferStatus = iota // Transfer completed
	TransferStatusNoBackend                       // No cart detected
	TransferStatusBusy                            // Previous transfer still in flight
	TransferStatusTimeout                         // Transfer exceeded its budget
	TransferStatusError                           // Cart reported a command error
	TransferStatusReading                         // Incoming message pending
)

// String returns a string representation of the transfer status.
func (s TransferStatus) String() string {
	switch s {
	case TransferStatusSuccess:
		return "success"
	case TransferStatusNoBackend:
		return "no-backend"
	case TransferStatusBusy:
		return "busy"
	case TransferStatusTimeout:
		return "timeout"
	case TransferStatusError:
		return "error"
	case TransferStatusReading:
		return "reading"
	default:
		return "unknown"
	}
}

// Error returns the corresponding error for the transfer status.
func (s TransferStatus) Error() error {
	switch s {
	case TransferStatusSuccess:
		return nil
	case TransferStatusNoBackend:
		return ErrNoBackend
	case TransferStatusBusy:
		return ErrWriteBusy
	case TransferStatusTimeout:
		return ErrBusyTimeout
	case TransferStatusError:
		return ErrCommand
	case TransferStatusReading:
		return ErrReadInProgress
	default:
		return ErrProtocol
	}
}

// StatusOf maps an error returned by a bridge operation back to a status.
func StatusOf(err error) TransferStatus {
	switch {
	case err == nil:
		return TransferStatusSuccess
	case errors.Is(err, ErrNoBackend):
		return TransferStatusNoBackend
	case errors.Is(err, ErrWriteBusy):
		return TransferStatusBusy
	case errors.Is(err, ErrBusyTimeout):
		return TransferStatusTimeout
	case errors.Is(err, ErrCommand):
		return TransferStatusError
	case errors.Is(err, ErrReadInProgress):
		return TransferStatusReading
	default:
		return TransferStatus(-1)
	}
}
