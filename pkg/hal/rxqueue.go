package hal

import (
	"sync"

	"github.com/gammazero/deque"
)

// DefaultRxDepth is the default depth of RxQueue.
const DefaultRxDepth = 64

type rxEntry struct {
	data  byte
	fault RxFault
}

// RxQueue is the receive FIFO of a serial port. Producers push from any
// goroutine, the receive task pops in order. When the FIFO is full the
// incoming byte is lost and an Overrun fault is queued in its place.
type RxQueue struct {
	// Depth is the capacity of received bytes, DefaultRxDepth if zero.
	Depth int

	lock  sync.Mutex
	fifo  *deque.Deque[rxEntry]
	raise func()
}

// Listen enables the receive event.
func (q *RxQueue) Listen(raise func()) {
	q.lock.Lock()
	q.raise = raise
	q.lock.Unlock()
}

// Push queues received bytes.
func (q *RxQueue) Push(data ...byte) {
	q.lock.Lock()
	for _, b := range data {
		q.pushLocked(rxEntry{data: b})
	}
	raise := q.raise
	q.lock.Unlock()
	if raise != nil && len(data) > 0 {
		raise()
	}
}

// PushFault queues a receive fault.
func (q *RxQueue) PushFault(f RxFault) {
	q.lock.Lock()
	q.pushLocked(rxEntry{fault: f})
	raise := q.raise
	q.lock.Unlock()
	if raise != nil {
		raise()
	}
}

func (q *RxQueue) pushLocked(e rxEntry) {
	if q.fifo == nil {
		q.fifo = deque.New[rxEntry]()
	}
	depth := q.Depth
	if depth <= 0 {
		depth = DefaultRxDepth
	}
	if e.fault == 0 && q.fifo.Len() >= depth {
		if q.fifo.Back().fault == Overrun {
			return
		}
		e = rxEntry{fault: Overrun}
	}
	q.fifo.PushBack(e)
}

// Pop takes the next received byte or fault.
func (q *RxQueue) Pop() (byte, error) {
	q.lock.Lock()
	defer q.lock.Unlock()
	if q.fifo == nil || q.fifo.Len() == 0 {
		return 0, ErrWouldBlock
	}
	e := q.fifo.PopFront()
	if e.fault != 0 {
		return 0, e.fault
	}
	return e.data, nil
}

// Len gets the number of queued entries.
func (q *RxQueue) Len() int {
	q.lock.Lock()
	defer q.lock.Unlock()
	if q.fifo == nil {
		return 0
	}
	return q.fifo.Len()
}

// Asserted reports if anything is pending to be read.
func (q *RxQueue) Asserted() bool {
	return q.Len() > 0
}
