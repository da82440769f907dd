package modem

import (
	"github.com/datatone/tonewire/internal/errors"
	"github.com/datatone/tonewire/internal/logging"
)

var log = logging.ForService("modem")

// TxState tracks the transmitter lifecycle.
type TxState int32

const (
	TxIdle TxState = iota
	TxTransmitting
	TxError
)

func (s TxState) String() string {
	switch s {
	case TxIdle:
		return "idle"
	case TxTransmitting:
		return "transmitting"
	case TxError:
		return "error"
	default:
		return "unknown"
	}
}

// RxState tracks the receiver lifecycle.
type RxState int32

const (
	RxIdle RxState = iota
	RxListening
	RxReceiving
	RxDecoding
	RxError
)

func (s RxState) String() string {
	switch s {
	case RxIdle:
		return "idle"
	case RxListening:
		return "listening"
	case RxReceiving:
		return "receiving"
	case RxDecoding:
		return "decoding"
	case RxError:
		return "error"
	default:
		return "unknown"
	}
}

var (
	// ErrTransmitBusy rejects a transmit while another is in flight.
	ErrTransmitBusy = errors.NewStd("transmission already in progress")

	// ErrReceiveBusy rejects a listen while another is in flight.
	ErrReceiveBusy = errors.NewStd("listen already in progress")

	// ErrTransmitStopped reports a transmission cancelled by Stop.
	ErrTransmitStopped = errors.NewStd("transmission stopped")

	// ErrListenStopped reports a listen cancelled by Stop.
	ErrListenStopped = errors.NewStd("listen stopped")

	// ErrListenTimeout reports that nothing crossed the noise threshold
	// before the listen timeout elapsed. A normal outcome on a quiet
	// channel, not a fault.
	ErrListenTimeout = errors.NewStd("listen timed out with no signal")
)
