// Package console provides hal.UART on the controlling terminal: keys
// typed are received, transmitted data is printed.
package console

import (
	"context"
	"io"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/golang/glog"
	"github.com/mattn/go-colorable"
	"github.com/mattn/go-tty"

	fx "github.com/ijager/rtfm-serial-loopback-example/pkg/framework"
	"github.com/ijager/rtfm-serial-loopback-example/pkg/hal"
)

// ANSI colors for Writer.
const (
	NoColor = ""
	Red     = "\x1b[31m"
	Green   = "\x1b[32m"
	Yellow  = "\x1b[33m"
	Cyan    = "\x1b[36m"

	reset = "\x1b[0m"
)

// DiagnosticPrefix marks transmitted lines highlighted by the console.
const DiagnosticPrefix = "Serial Error:"

// RuneReader reads keys.
type RuneReader interface {
	ReadRune() (rune, error)
}

// Console is the terminal as a serial port.
type Console struct {
	// Interrupt is the key stopping Run, Ctrl-D as default.
	Interrupt rune

	in     RuneReader
	closer io.Closer
	rx     hal.RxQueue

	lock       sync.Mutex
	out        io.Writer
	configured bool
}

// Open opens the controlling terminal.
func Open() (*Console, error) {
	t, err := tty.Open()
	if err != nil {
		return nil, err
	}
	return New(t, colorable.NewColorable(t.Output()), t), nil
}

// New creates a Console from a key reader and an ANSI capable writer.
func New(in RuneReader, out io.Writer, closer io.Closer) *Console {
	return &Console{Interrupt: 4, in: in, out: out, closer: closer}
}

// Configure implements hal.UART. The terminal has no line settings.
func (c *Console) Configure(hal.SerialConfig) error {
	c.lock.Lock()
	c.configured = true
	c.lock.Unlock()
	return nil
}

// Listen implements hal.UART.
func (c *Console) Listen(raise func()) error {
	c.rx.Listen(raise)
	return nil
}

// Asserted implements hal.UART.
func (c *Console) Asserted() bool {
	return c.rx.Asserted()
}

// ReadByte implements hal.SerialRx.
func (c *Console) ReadByte() (byte, error) {
	return c.rx.Pop()
}

// WriteByte implements hal.SerialTx.
func (c *Console) WriteByte(b byte) error {
	return c.write(NoColor, []byte{b})
}

// WriteString implements hal.SerialTx. Diagnostic lines are printed
// in red.
func (c *Console) WriteString(s string) error {
	color := NoColor
	if strings.HasPrefix(s, DiagnosticPrefix) {
		color = Red
	}
	return c.write(color, []byte(s))
}

func (c *Console) write(color string, data []byte) error {
	c.lock.Lock()
	defer c.lock.Unlock()
	if !c.configured {
		return &hal.TxFault{Port: "console", Err: hal.ErrNotConfigured}
	}
	return c.emitLocked(color, data)
}

func (c *Console) emitLocked(color string, data []byte) error {
	if color != NoColor {
		data = append(append([]byte(color), data...), reset...)
	}
	if _, err := c.out.Write(data); err != nil {
		return &hal.TxFault{Port: "console", Err: err}
	}
	return nil
}

// Writer gets a writer printing to the terminal in color, suitable for
// mirroring another port.
func (c *Console) Writer(color string) io.Writer {
	return &colorWriter{c: c, color: color}
}

type colorWriter struct {
	c     *Console
	color string
}

func (w *colorWriter) Write(p []byte) (int, error) {
	w.c.lock.Lock()
	defer w.c.lock.Unlock()
	if err := w.c.emitLocked(w.color, p); err != nil {
		return 0, err
	}
	return len(p), nil
}

// Run implements Runnable. It receives keys until the context is done
// or the Interrupt key is typed.
func (c *Console) Run(ctx context.Context) error {
	return fx.RunWithContextCancel(ctx, c.Close, c.receive)
}

func (c *Console) receive() error {
	var buf [utf8.UTFMax]byte
	for {
		r, err := c.in.ReadRune()
		if err != nil {
			return err
		}
		if r == c.Interrupt {
			glog.V(2).Info("console: interrupt key")
			return nil
		}
		if r == '\r' {
			r = '\n'
		}
		n := utf8.EncodeRune(buf[:], r)
		c.rx.Push(buf[:n]...)
	}
}

// Close releases the terminal.
func (c *Console) Close() {
	if c.closer != nil {
		c.closer.Close()
	}
}
