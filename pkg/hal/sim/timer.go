package sim

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ijager/rtfm-serial-loopback-example/pkg/hal"
)

// Timer is a simulated count down timer. It fires from Run at the started
// frequency, or manually from Fire.
type Timer struct {
	Name string

	lock      sync.Mutex
	freq      hal.Hz
	pending   bool
	raise     func()
	cleared   uint64
	startedCh chan struct{}
}

// NewTimer creates a Timer.
func NewTimer(name string) *Timer {
	return &Timer{Name: name, startedCh: make(chan struct{})}
}

// Start implements hal.CountDown.
func (t *Timer) Start(freq hal.Hz) error {
	if freq == 0 {
		return errors.New(t.Name + ": zero frequency")
	}
	t.lock.Lock()
	defer t.lock.Unlock()
	if t.freq == 0 {
		close(t.startedCh)
	}
	t.freq = freq
	return nil
}

// Frequency gets the started frequency.
func (t *Timer) Frequency() hal.Hz {
	t.lock.Lock()
	defer t.lock.Unlock()
	return t.freq
}

// Listen implements hal.CountDown.
func (t *Timer) Listen(raise func()) error {
	t.lock.Lock()
	t.raise = raise
	t.lock.Unlock()
	return nil
}

// ClearPending implements hal.PeriodicTimer.
func (t *Timer) ClearPending() {
	t.lock.Lock()
	if t.pending {
		t.pending = false
		t.cleared++
	}
	t.lock.Unlock()
}

// Asserted implements hal.CountDown.
func (t *Timer) Asserted() bool {
	t.lock.Lock()
	defer t.lock.Unlock()
	return t.pending
}

// Cleared gets the number of acknowledged updates.
func (t *Timer) Cleared() uint64 {
	t.lock.Lock()
	defer t.lock.Unlock()
	return t.cleared
}

// Fire raises an update event. It returns false if the previous update
// is not acknowledged yet, and the event is merged into it.
func (t *Timer) Fire() bool {
	t.lock.Lock()
	merged := t.pending
	t.pending = true
	raise := t.raise
	t.lock.Unlock()
	if raise != nil {
		raise()
	}
	return !merged
}

// FireAndWait fires and waits until the update is acknowledged.
func (t *Timer) FireAndWait(timeout time.Duration) bool {
	t.Fire()
	deadline := time.Now().Add(timeout)
	for t.Asserted() {
		if time.Now().After(deadline) {
			return false
		}
		time.Sleep(time.Millisecond)
	}
	return true
}

// Run implements Runnable, firing at the started frequency.
func (t *Timer) Run(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.startedCh:
	}
	period := time.Second / time.Duration(t.Frequency())
	if period <= 0 {
		return fmt.Errorf("%s: frequency %d Hz too high", t.Name, t.Frequency())
	}
	ticker := time.NewTicker(period)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			t.Fire()
		}
	}
}
