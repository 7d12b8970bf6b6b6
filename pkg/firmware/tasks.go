package firmware

import (
	"fmt"
	"strconv"

	"github.com/ijager/rtfm-serial-loopback-example/pkg/hal"
	"github.com/ijager/rtfm-serial-loopback-example/pkg/rtfm"
)

// Echo writes each received byte back to the paired transmitter.
// A receive fault is reported with a diagnostic line instead.
type Echo struct {
	Rx rtfm.Res[hal.SerialRx]
	Tx rtfm.Res[hal.SerialTx]
}

// Handle implements rtfm.Handler.
func (e *Echo) Handle(cx *rtfm.Context) error {
	return cx.Lock(func(s *rtfm.Section) error {
		tx := e.Tx.Get(s)
		b, err := e.Rx.Get(s).ReadByte()
		if err != nil {
			return tx.WriteString(fmt.Sprintf("Serial Error: %v\n", err))
		}
		return tx.WriteByte(b)
	}, e.Rx.ID, e.Tx.ID)
}

// Heartbeat toggles the LED and reports a running counter on each
// timer update.
type Heartbeat struct {
	LED   rtfm.Res[hal.DigitalOutput]
	Timer rtfm.Res[hal.PeriodicTimer]
	Tx    rtfm.Res[hal.SerialTx]

	state bool
	count uint32
}

// Handle implements rtfm.Handler.
func (h *Heartbeat) Handle(cx *rtfm.Context) error {
	return cx.Lock(func(s *rtfm.Section) error {
		h.Timer.Get(s).ClearPending()

		led := h.LED.Get(s)
		if h.state {
			if err := led.Set(hal.Low); err != nil {
				return err
			}
			h.state = false
		} else {
			if err := led.Set(hal.High); err != nil {
				return err
			}
			h.state = true
		}

		if err := h.Tx.Get(s).WriteString(strconv.FormatUint(uint64(h.count), 10) + "\n"); err != nil {
			return err
		}
		h.count++
		return nil
	}, h.LED.ID, h.Timer.ID, h.Tx.ID)
}
