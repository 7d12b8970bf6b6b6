// Package firmware is the serial loopback controller: an echo task on
// USART2 and a heartbeat task on TIM1 sharing one LED and two
// transmitters.
package firmware

import (
	"context"
	"fmt"

	"github.com/golang/glog"

	"github.com/ijager/rtfm-serial-loopback-example/pkg/hal"
	"github.com/ijager/rtfm-serial-loopback-example/pkg/hal/sim"
	"github.com/ijager/rtfm-serial-loopback-example/pkg/rtfm"
)

// Interrupt lines, numbered as on STM32F103.
const (
	IRQTim1Up rtfm.IRQ = 25
	IRQUSART2 rtfm.IRQ = 38
)

// Shared resources.
const (
	ResLED rtfm.ResourceID = iota
	ResTimer
	ResRx2
	ResTx2
	ResTx3
)

// Board provides the peripherals used by the firmware.
type Board struct {
	LED     hal.OutputPin
	Timer   hal.CountDown
	Serial2 hal.UART
	Serial3 hal.UART

	// LEDOut, Tx2 and Tx3 optionally replace the operational side of the
	// peripherals above, e.g. to tap telemetry.
	LEDOut hal.DigitalOutput
	Tx2    hal.SerialTx
	Tx3    hal.SerialTx
}

func (b *Board) led() hal.DigitalOutput {
	if b.LEDOut != nil {
		return b.LEDOut
	}
	return b.LED
}

func (b *Board) tx2() hal.SerialTx {
	if b.Tx2 != nil {
		return b.Tx2
	}
	return b.Serial2
}

func (b *Board) tx3() hal.SerialTx {
	if b.Tx3 != nil {
		return b.Tx3
	}
	return b.Serial3
}

func (b *Board) validate() error {
	switch {
	case b.LED == nil:
		return fmt.Errorf("board: missing LED")
	case b.Timer == nil:
		return fmt.Errorf("board: missing timer")
	case b.Serial2 == nil:
		return fmt.Errorf("board: missing serial2")
	case b.Serial3 == nil:
		return fmt.Errorf("board: missing serial3")
	}
	return nil
}

// Firmware is the app with its tasks bound to a board.
type Firmware struct {
	App    *rtfm.App
	Config *Config
	Board  *Board

	echo      Echo
	heartbeat Heartbeat
}

// New creates the Firmware and registers its tasks.
func New(conf *Config, board *Board) (*Firmware, error) {
	if err := conf.Validate(); err != nil {
		return nil, err
	}
	if err := board.validate(); err != nil {
		return nil, err
	}
	f := &Firmware{
		App:    rtfm.New("rtfm-loopback"),
		Config: conf,
		Board:  board,
	}
	err := f.App.AddTask(
		rtfm.Task{
			Name:      "usart2",
			Binds:     IRQUSART2,
			Priority:  rtfm.Priority(conf.EchoPriority),
			Resources: []rtfm.ResourceID{ResRx2, ResTx2},
			Handler:   &f.echo,
		},
		rtfm.Task{
			Name:      "tim1_up",
			Binds:     IRQTim1Up,
			Priority:  rtfm.Priority(conf.HeartbeatPriority),
			Resources: []rtfm.ResourceID{ResLED, ResTimer, ResTx3},
			Handler:   &f.heartbeat,
		},
	)
	if err != nil {
		return nil, err
	}
	return f, nil
}

// NewFirmware creates the Firmware using the config.
func (c *Config) NewFirmware(board *Board) (*Firmware, error) {
	return New(c, board)
}

// Name implements framework.Named.
func (f *Firmware) Name() string {
	return f.App.Name()
}

// Init configures the peripherals and arms the tasks.
func (f *Firmware) Init() error {
	return f.App.Init(f.init)
}

// Run implements Runnable. Init is performed first if not done yet.
func (f *Firmware) Run(ctx context.Context) error {
	if !f.App.Initialized() {
		if err := f.Init(); err != nil && err != rtfm.ErrAlreadyInitialized {
			return err
		}
	}
	return f.App.Run(ctx)
}

func (f *Firmware) init(ic *rtfm.InitContext) error {
	b, conf := f.Board, f.Config

	if err := b.LED.ConfigureOutput(); err != nil {
		return fmt.Errorf("configure LED: %w", err)
	}
	led := b.led()
	if err := led.Set(hal.Low); err != nil {
		return fmt.Errorf("reset LED: %w", err)
	}

	line := hal.SerialConfig{BaudRate: conf.BaudRate}
	if err := b.Serial2.Configure(line); err != nil {
		return fmt.Errorf("configure serial2: %w", err)
	}
	if err := b.Serial2.Listen(ic.Pender(IRQUSART2)); err != nil {
		return fmt.Errorf("listen serial2: %w", err)
	}
	if err := ic.Connect(IRQUSART2, b.Serial2); err != nil {
		return err
	}
	tx2 := b.tx2()
	if conf.Banner != "" {
		if err := tx2.WriteString(conf.Banner + "\n"); err != nil {
			return fmt.Errorf("write banner: %w", err)
		}
	}

	if err := b.Serial3.Configure(line); err != nil {
		return fmt.Errorf("configure serial3: %w", err)
	}

	if err := b.Timer.Start(conf.heartbeatHz()); err != nil {
		return fmt.Errorf("start timer: %w", err)
	}
	if err := b.Timer.Listen(ic.Pender(IRQTim1Up)); err != nil {
		return fmt.Errorf("listen timer: %w", err)
	}
	if err := ic.Connect(IRQTim1Up, b.Timer); err != nil {
		return err
	}

	tbl := ic.Resources()
	var err error
	if f.heartbeat.LED, err = rtfm.Declare[hal.DigitalOutput](tbl, ResLED, "led", led, rtfm.Idle); err != nil {
		return err
	}
	if f.heartbeat.Timer, err = rtfm.Declare[hal.PeriodicTimer](tbl, ResTimer, "timer", b.Timer, rtfm.Idle); err != nil {
		return err
	}
	if f.echo.Rx, err = rtfm.Declare[hal.SerialRx](tbl, ResRx2, "rx2", b.Serial2, rtfm.Idle); err != nil {
		return err
	}
	if f.echo.Tx, err = rtfm.Declare[hal.SerialTx](tbl, ResTx2, "tx2", tx2, rtfm.Idle); err != nil {
		return err
	}
	if f.heartbeat.Tx, err = rtfm.Declare[hal.SerialTx](tbl, ResTx3, "tx3", b.tx3(), rtfm.Idle); err != nil {
		return err
	}
	glog.Infof("firmware initialized: baud=%d heartbeat=%dHz", conf.BaudRate, conf.HeartbeatHz)
	return nil
}

// SimBoard creates the Board on simulated peripherals.
func SimBoard(b *sim.Board) *Board {
	return &Board{LED: b.LED, Timer: b.Timer, Serial2: b.Serial2, Serial3: b.Serial3}
}
