package rtfm

import "sync"

// Line is a level sensitive interrupt source. After the bound task
// returns, the line is sampled and the IRQ pended again while asserted.
type Line interface {
	Asserted() bool
}

// LineFunc is the func form of Line.
type LineFunc func() bool

// Asserted implements Line.
func (f LineFunc) Asserted() bool {
	return f()
}

// nvic emulates the interrupt controller registers. It is the only state
// shared with other goroutines.
type nvic struct {
	lock     sync.Mutex
	pending  uint64
	enabled  uint64
	priority [MaxIRQs]Priority

	wakeUpCh chan struct{}
}

func newNVIC() *nvic {
	return &nvic{wakeUpCh: make(chan struct{}, 1)}
}

func (n *nvic) pend(irq IRQ) {
	n.lock.Lock()
	n.pending |= irq.bit()
	n.lock.Unlock()
	select {
	case n.wakeUpCh <- struct{}{}:
	default:
	}
}

func (n *nvic) isPending(irq IRQ) bool {
	n.lock.Lock()
	defer n.lock.Unlock()
	return n.pending&irq.bit() != 0
}

func (n *nvic) enable(mask uint64) {
	n.lock.Lock()
	n.enabled |= mask
	n.lock.Unlock()
}

func (n *nvic) setPriority(irq IRQ, p Priority) {
	n.lock.Lock()
	n.priority[irq] = p
	n.lock.Unlock()
}

// take clears and returns the enabled pending IRQ with the highest
// priority above threshold. Lower IRQ number wins a tie.
func (n *nvic) take(threshold Priority) (IRQ, bool) {
	n.lock.Lock()
	defer n.lock.Unlock()
	ready := n.pending & n.enabled
	if ready == 0 {
		return 0, false
	}
	var (
		best  IRQ
		found bool
	)
	for irq := 0; irq < MaxIRQs; irq++ {
		if ready&(uint64(1)<<uint(irq)) == 0 {
			continue
		}
		p := n.priority[irq]
		if p <= threshold {
			continue
		}
		if !found || p > n.priority[best] {
			best, found = IRQ(irq), true
		}
	}
	if found {
		n.pending &^= best.bit()
	}
	return best, found
}
