// Package serialport provides hal.UART backed by host serial devices.
package serialport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/gofrs/flock"
	"github.com/golang/glog"
	"go.bug.st/serial"

	fx "github.com/ijager/rtfm-serial-loopback-example/pkg/framework"
	"github.com/ijager/rtfm-serial-loopback-example/pkg/hal"
)

// ErrPortBusy indicates the device is opened by another process.
var ErrPortBusy = errors.New("port busy")

// Port is a serial device. Received bytes are queued by Run and
// handed to the receive task through ReadByte.
type Port struct {
	Name string

	rwc   io.ReadWriteCloser
	flock *flock.Flock
	rx    hal.RxQueue

	lock       sync.Mutex
	configured bool
	closed     bool
}

// List gets the names of serial devices on the host.
func List() ([]string, error) {
	return serial.GetPortsList()
}

// LockPath gets the lock file guarding the device.
func LockPath(device string) string {
	name := strings.Replace(strings.TrimPrefix(device, "/"), "/", "_", -1)
	return filepath.Join(os.TempDir(), "rtfm-"+name+".lock")
}

// Open opens the device with 8N1 framing at baud. The device is locked
// for the lifetime of the Port.
func Open(device string, baud int) (*Port, error) {
	fl := flock.New(LockPath(device))
	locked, err := fl.TryLock()
	if err != nil {
		return nil, fmt.Errorf("lock %s: %w", device, err)
	}
	if !locked {
		return nil, fmt.Errorf("%s: %w", device, ErrPortBusy)
	}
	port, err := serial.Open(device, modeOf(hal.SerialConfig{BaudRate: baud}))
	if err != nil {
		fl.Unlock()
		var perr *serial.PortError
		if errors.As(err, &perr) && perr.Code() == serial.PortBusy {
			return nil, fmt.Errorf("%s: %w", device, ErrPortBusy)
		}
		return nil, fmt.Errorf("open %s: %w", device, err)
	}
	p := New(device, port)
	p.flock = fl
	glog.V(2).Infof("serial %s opened at %d", device, baud)
	return p, nil
}

// New creates a Port over an opened stream.
func New(name string, rwc io.ReadWriteCloser) *Port {
	return &Port{Name: name, rwc: rwc}
}

// WithRxDepth sets the depth of the receive FIFO.
func (p *Port) WithRxDepth(depth int) *Port {
	p.rx.Depth = depth
	return p
}

func modeOf(conf hal.SerialConfig) *serial.Mode {
	return &serial.Mode{
		BaudRate: conf.BaudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
}

type modeSetter interface {
	SetMode(*serial.Mode) error
}

// Configure implements hal.UART.
func (p *Port) Configure(conf hal.SerialConfig) error {
	if ms, ok := p.rwc.(modeSetter); ok {
		if err := ms.SetMode(modeOf(conf)); err != nil {
			return fmt.Errorf("%s: set mode: %w", p.Name, err)
		}
	}
	p.lock.Lock()
	p.configured = true
	p.lock.Unlock()
	return nil
}

// Listen implements hal.UART.
func (p *Port) Listen(raise func()) error {
	p.rx.Listen(raise)
	return nil
}

// Asserted implements hal.UART.
func (p *Port) Asserted() bool {
	return p.rx.Asserted()
}

// ReadByte implements hal.SerialRx.
func (p *Port) ReadByte() (byte, error) {
	return p.rx.Pop()
}

// WriteByte implements hal.SerialTx.
func (p *Port) WriteByte(b byte) error {
	return p.write([]byte{b})
}

// WriteString implements hal.SerialTx.
func (p *Port) WriteString(s string) error {
	return p.write([]byte(s))
}

// write blocks in the OS until the device accepts data.
func (p *Port) write(data []byte) error {
	p.lock.Lock()
	defer p.lock.Unlock()
	switch {
	case p.closed:
		return &hal.TxFault{Port: p.Name, Err: hal.ErrClosed}
	case !p.configured:
		return &hal.TxFault{Port: p.Name, Err: hal.ErrNotConfigured}
	}
	if _, err := p.rwc.Write(data); err != nil {
		return &hal.TxFault{Port: p.Name, Err: err}
	}
	return nil
}

// Run implements Runnable. It receives from the device until the
// context is done, the Port is closed when Run returns.
func (p *Port) Run(ctx context.Context) error {
	return fx.RunWithContextCloser(ctx, p, p.receive)
}

func (p *Port) receive() error {
	buf := make([]byte, 64)
	for {
		n, err := p.rwc.Read(buf)
		if n > 0 {
			p.rx.Push(buf[:n]...)
		}
		if err != nil {
			if p.isClosed() {
				return nil
			}
			return fmt.Errorf("%s: receive: %w", p.Name, err)
		}
		if n == 0 && p.isClosed() {
			return nil
		}
	}
}

func (p *Port) isClosed() bool {
	p.lock.Lock()
	defer p.lock.Unlock()
	return p.closed
}

// Close implements io.Closer.
func (p *Port) Close() error {
	p.lock.Lock()
	if p.closed {
		p.lock.Unlock()
		return nil
	}
	p.closed = true
	p.lock.Unlock()
	err := p.rwc.Close()
	if p.flock != nil {
		if uerr := p.flock.Unlock(); err == nil {
			err = uerr
		}
	}
	return err
}
