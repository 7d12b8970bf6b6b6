// Package rtfm provides a static, priority based preemptive dispatcher
// for interrupt driven controllers.
package rtfm

// Tasks are bound to interrupt lines (IRQs) with a fixed priority and a
// fixed set of shared resources. Mutual exclusion follows the stack
// resource policy (priority ceiling protocol): a task locking a set of
// resources raises the interrupt mask to the highest ceiling among them,
// so any task that may touch those resources is deferred by the
// interrupt controller instead of blocking.
//
// The dispatcher emulates a single core. Task code only ever runs on the
// goroutine owning the core (App.Run or App.Step). Interrupt requests
// from other goroutines are latched and taken at the next preemption
// point: task exit, lock entry and exit, or Context.Pend.
