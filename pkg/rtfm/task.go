package rtfm

import "sync/atomic"

// Handler is the body of a task, invoked once per trigger event.
// Task local state lives in the implementation, it is only touched by
// this task so no lock is needed.
type Handler interface {
	Handle(*Context) error
}

// HandlerFunc is the func form of Handler.
type HandlerFunc func(*Context) error

// Handle implements Handler.
func (f HandlerFunc) Handle(cx *Context) error {
	return f(cx)
}

// Task declares an interrupt bound task.
type Task struct {
	// Name identifies the task in logs and faults.
	Name string
	// Binds is the interrupt line triggering the task.
	Binds IRQ
	// Priority is the static priority.
	Priority Priority
	// Resources lists all resources the task may lock.
	Resources []ResourceID
	// Handler is the task body.
	Handler Handler
}

// TaskStats provides counters of a task.
type TaskStats struct {
	Name       string
	IRQ        IRQ
	Priority   Priority
	Dispatched uint64
}

type task struct {
	name      string
	irq       IRQ
	priority  Priority
	resources []ResourceID
	allowed   uint32
	handler   Handler
	line      Line

	dispatched uint64
}

func newTask(t Task) *task {
	tk := &task{
		name:      t.Name,
		irq:       t.Binds,
		priority:  t.Priority,
		resources: append([]ResourceID(nil), t.Resources...),
		handler:   t.Handler,
	}
	for _, id := range tk.resources {
		if id.valid() {
			tk.allowed |= id.bit()
		}
	}
	return tk
}

func (t *task) stats() TaskStats {
	return TaskStats{
		Name:       t.name,
		IRQ:        t.irq,
		Priority:   t.priority,
		Dispatched: atomic.LoadUint64(&t.dispatched),
	}
}

// Context is passed to a running task.
type Context struct {
	app  *App
	task *task
}

// Name gets the task name.
func (c *Context) Name() string {
	return c.task.name
}

// Priority gets the static priority of the task.
func (c *Context) Priority() Priority {
	return c.task.priority
}

// Lock runs fn with exclusive access to the resources.
func (c *Context) Lock(fn func(*Section) error, ids ...ResourceID) error {
	return c.app.WithResources(c.task.priority, ids, fn)
}

// Pend requests an interrupt from software. If the pended task may
// preempt the current execution priority, it runs before Pend returns.
func (c *Context) Pend(irq IRQ) {
	c.app.Pend(irq)
	c.app.preempt()
}
