package telemetry

import (
	"sync"
	"sync/atomic"
	"time"
)

// DefaultSinkDepth is the default capacity of Sink.
const DefaultSinkDepth = 256

// Sink collects events without blocking the producer. Events are
// dropped and counted when the consumer falls behind.
type Sink struct {
	Device string

	ch      chan *Event
	seq     uint64
	dropped uint64
	lock    sync.Mutex
	now     func() time.Time
}

// NewSink creates a Sink, depth defaults to DefaultSinkDepth.
func NewSink(device string, depth int) *Sink {
	if depth <= 0 {
		depth = DefaultSinkDepth
	}
	return &Sink{Device: device, ch: make(chan *Event, depth), now: time.Now}
}

// Events gets the event stream.
func (s *Sink) Events() <-chan *Event {
	return s.ch
}

// Dropped gets the number of events dropped so far.
func (s *Sink) Dropped() uint64 {
	return atomic.LoadUint64(&s.dropped)
}

// Emit queues an event from source.
func (s *Sink) Emit(source string, kind Kind, data []byte, level bool) bool {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.seq++
	ev := &Event{
		Device:  s.Device,
		Source:  source,
		Seq:     s.seq,
		Time:    s.now().UnixNano(),
		Kind:    kind,
		Data:    data,
		Level:   level,
		Dropped: atomic.LoadUint64(&s.dropped),
	}
	select {
	case s.ch <- ev:
		return true
	default:
		atomic.AddUint64(&s.dropped, 1)
		return false
	}
}

// Halt reports the fault stopping the controller.
func (s *Sink) Halt(source string, err error) bool {
	return s.Emit(source, KindHalt, []byte(err.Error()), false)
}
