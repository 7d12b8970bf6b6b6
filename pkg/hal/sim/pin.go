// Package sim provides simulated peripherals for host runs and tests.
package sim

import (
	"sync"

	"github.com/ijager/rtfm-serial-loopback-example/pkg/hal"
)

// Pin is a simulated output line recording all driven levels.
type Pin struct {
	Name string
	// Fault is returned by Set when not nil.
	Fault error
	// OnChange is called with each driven level.
	OnChange func(hal.Level)

	lock       sync.Mutex
	configured bool
	level      hal.Level
	history    []hal.Level
}

// NewPin creates a Pin.
func NewPin(name string) *Pin {
	return &Pin{Name: name}
}

// ConfigureOutput implements hal.OutputPin.
func (p *Pin) ConfigureOutput() error {
	p.lock.Lock()
	p.configured = true
	p.lock.Unlock()
	return nil
}

// Set implements hal.DigitalOutput.
func (p *Pin) Set(level hal.Level) error {
	p.lock.Lock()
	if !p.configured {
		p.lock.Unlock()
		return &hal.PinFault{Pin: p.Name, Err: hal.ErrNotConfigured}
	}
	if p.Fault != nil {
		p.lock.Unlock()
		return &hal.PinFault{Pin: p.Name, Err: p.Fault}
	}
	p.level = level
	p.history = append(p.history, level)
	fn := p.OnChange
	p.lock.Unlock()
	if fn != nil {
		fn(level)
	}
	return nil
}

// Level gets the current level.
func (p *Pin) Level() hal.Level {
	p.lock.Lock()
	defer p.lock.Unlock()
	return p.level
}

// History gets all driven levels in order.
func (p *Pin) History() []hal.Level {
	p.lock.Lock()
	defer p.lock.Unlock()
	return append([]hal.Level(nil), p.history...)
}
