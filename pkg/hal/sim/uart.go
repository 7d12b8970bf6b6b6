package sim

import (
	"bytes"
	"io"
	"strings"
	"sync"

	"github.com/ijager/rtfm-serial-loopback-example/pkg/hal"
)

// UART is a simulated serial port. Received data is injected by the host,
// transmitted data is recorded and optionally mirrored to Output.
type UART struct {
	Name string
	// TxCapacity limits the transmitted bytes kept, writes beyond it
	// fail with hal.ErrTxBufferFull. Zero means unlimited.
	TxCapacity int
	// Output mirrors transmitted data.
	Output io.Writer

	rx hal.RxQueue

	lock   sync.Mutex
	config *hal.SerialConfig
	tx     bytes.Buffer
}

// NewUART creates a UART.
func NewUART(name string) *UART {
	return &UART{Name: name}
}

// WithRxDepth sets the depth of the receive FIFO.
func (u *UART) WithRxDepth(depth int) *UART {
	u.rx.Depth = depth
	return u
}

// Configure implements hal.UART.
func (u *UART) Configure(conf hal.SerialConfig) error {
	u.lock.Lock()
	u.config = &conf
	u.lock.Unlock()
	return nil
}

// Config gets the line configuration, nil if not configured.
func (u *UART) Config() *hal.SerialConfig {
	u.lock.Lock()
	defer u.lock.Unlock()
	return u.config
}

// Listen implements hal.UART.
func (u *UART) Listen(raise func()) error {
	u.rx.Listen(raise)
	return nil
}

// Asserted implements hal.UART.
func (u *UART) Asserted() bool {
	return u.rx.Asserted()
}

// Inject delivers bytes to the receiver as if arriving on the line.
func (u *UART) Inject(data ...byte) {
	u.rx.Push(data...)
}

// InjectFault delivers a line error to the receiver.
func (u *UART) InjectFault(f hal.RxFault) {
	u.rx.PushFault(f)
}

// ReadByte implements hal.SerialRx.
func (u *UART) ReadByte() (byte, error) {
	return u.rx.Pop()
}

// WriteByte implements hal.SerialTx.
func (u *UART) WriteByte(b byte) error {
	return u.write([]byte{b})
}

// WriteString implements hal.SerialTx.
func (u *UART) WriteString(s string) error {
	return u.write([]byte(s))
}

func (u *UART) write(data []byte) error {
	u.lock.Lock()
	if u.config == nil {
		u.lock.Unlock()
		return &hal.TxFault{Port: u.Name, Err: hal.ErrNotConfigured}
	}
	if u.TxCapacity > 0 && u.tx.Len()+len(data) > u.TxCapacity {
		u.lock.Unlock()
		return &hal.TxFault{Port: u.Name, Err: hal.ErrTxBufferFull}
	}
	u.tx.Write(data)
	out := u.Output
	u.lock.Unlock()
	if out != nil {
		out.Write(data)
	}
	return nil
}

// Transmitted gets all transmitted bytes.
func (u *UART) Transmitted() []byte {
	u.lock.Lock()
	defer u.lock.Unlock()
	return append([]byte(nil), u.tx.Bytes()...)
}

// Lines gets transmitted data split into complete lines.
func (u *UART) Lines() []string {
	data := string(u.Transmitted())
	if i := strings.LastIndexByte(data, '\n'); i >= 0 {
		return strings.Split(data[:i], "\n")
	}
	return nil
}

// Reset clears the transmitted data.
func (u *UART) Reset() {
	u.lock.Lock()
	u.tx.Reset()
	u.lock.Unlock()
}
