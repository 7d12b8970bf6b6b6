// Package hal defines the peripheral capabilities consumed by firmware.
package hal

// Drivers behind these interfaces are opaque, their correctness is
// assumed. Operational methods (Set, WriteByte, ReadByte, ClearPending)
// are called from task context inside critical sections and must never
// block. Configuration methods are only called during init.

// Level is the logic level of a digital line.
type Level bool

// Levels
const (
	Low  Level = false
	High Level = true
)

// String implements fmt.Stringer.
func (l Level) String() string {
	if l {
		return "HIGH"
	}
	return "LOW"
}

// Hz is a frequency.
type Hz uint32

// DigitalOutput drives an output line.
type DigitalOutput interface {
	Set(Level) error
}

// SerialTx transmits on a serial line.
type SerialTx interface {
	WriteByte(byte) error
	WriteString(string) error
}

// SerialRx receives from a serial line.
// ReadByte returns RxFault on line errors, ErrWouldBlock if no data.
type SerialRx interface {
	ReadByte() (byte, error)
}

// PeriodicTimer fires its event at a fixed frequency.
type PeriodicTimer interface {
	// ClearPending acknowledges the update event, it fires again
	// immediately if not cleared.
	ClearPending()
}

// OutputPin is a DigitalOutput which must be configured before use.
type OutputPin interface {
	DigitalOutput
	ConfigureOutput() error
}

// SerialConfig is the line configuration of a serial port.
type SerialConfig struct {
	BaudRate int
}

// UART is a serial port with both directions.
type UART interface {
	SerialTx
	SerialRx
	// Configure sets up the line.
	Configure(SerialConfig) error
	// Listen enables receive events, raise is called for each of them.
	Listen(raise func()) error
	// Asserted reports the receive event line, it is asserted while
	// received data or a fault is not consumed.
	Asserted() bool
}

// CountDown is a PeriodicTimer which must be started.
type CountDown interface {
	PeriodicTimer
	// Start starts counting at the frequency.
	Start(Hz) error
	// Listen enables update events, raise is called for each of them.
	Listen(raise func()) error
	// Asserted reports the update flag.
	Asserted() bool
}
