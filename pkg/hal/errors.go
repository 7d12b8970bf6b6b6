package hal

import (
	"errors"
	"fmt"
)

var (
	// ErrWouldBlock indicates no received data is available.
	ErrWouldBlock = errors.New("WouldBlock")
	// ErrTxBufferFull indicates the transmitter can't accept data.
	ErrTxBufferFull = errors.New("transmit buffer full")
	// ErrNotConfigured indicates the peripheral is used before configured.
	ErrNotConfigured = errors.New("not configured")
	// ErrClosed indicates the peripheral is closed.
	ErrClosed = errors.New("closed")
)

// RxFault is a receive line error.
type RxFault int

// Receive faults
const (
	Framing RxFault = iota + 1
	Noise
	Overrun
	Parity
)

var rxFaultNames = map[RxFault]string{
	Framing: "Framing",
	Noise:   "Noise",
	Overrun: "Overrun",
	Parity:  "Parity",
}

// ParseRxFault parses the name of a fault.
func ParseRxFault(name string) (RxFault, error) {
	for f, n := range rxFaultNames {
		if n == name {
			return f, nil
		}
	}
	return 0, fmt.Errorf("unknown receive fault %q", name)
}

// String implements fmt.Stringer.
func (f RxFault) String() string {
	if name, ok := rxFaultNames[f]; ok {
		return name
	}
	return fmt.Sprintf("RxFault(%d)", int(f))
}

// Error implements error.
func (f RxFault) Error() string {
	return f.String()
}

// TxFault is a transmit error.
type TxFault struct {
	Port string
	Err  error
}

// Error implements error.
func (e *TxFault) Error() string {
	return fmt.Sprintf("%s: transmit: %v", e.Port, e.Err)
}

// Unwrap supports errors.Is/As.
func (e *TxFault) Unwrap() error {
	return e.Err
}

// PinFault is an output line error.
type PinFault struct {
	Pin string
	Err error
}

// Error implements error.
func (e *PinFault) Error() string {
	return fmt.Sprintf("%s: %v", e.Pin, e.Err)
}

// Unwrap supports errors.Is/As.
func (e *PinFault) Unwrap() error {
	return e.Err
}
