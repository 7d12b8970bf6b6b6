package rtfm

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/golang/glog"
)

const (
	stateNew uint32 = iota
	stateInitializing
	stateArmed
	stateHalted
)

// App is a static set of tasks and resources dispatched on a single
// emulated core.
type App struct {
	name   string
	table  Table
	tasks  []*task
	vector [MaxIRQs]*task
	nvic   *nvic

	state    uint32
	core     int32
	initLock sync.Mutex

	faultLock sync.Mutex
	fault     *FaultError

	// core registers, only accessed by the goroutine owning the core.
	current  *task
	basepri  Priority
	sections []*Section
}

// New creates an App.
func New(name string) *App {
	return &App{name: name, nvic: newNVIC()}
}

// Name implements framework.Named.
func (a *App) Name() string {
	return a.name
}

// AddTask registers tasks. It must be called before Init.
func (a *App) AddTask(tasks ...Task) error {
	a.initLock.Lock()
	defer a.initLock.Unlock()
	if atomic.LoadUint32(&a.state) != stateNew {
		return configErr(ErrAlreadyInitialized, "add tasks")
	}
	for _, t := range tasks {
		if err := a.addTask(t); err != nil {
			return err
		}
	}
	return nil
}

func (a *App) addTask(t Task) error {
	switch {
	case t.Handler == nil:
		return configErr(ErrNoHandler, "task %q", t.Name)
	case !t.Priority.IsTaskLevel():
		return configErr(ErrInvalidPriority, "task %q: priority %d", t.Name, t.Priority)
	case !t.Binds.valid():
		return configErr(ErrInvalidIRQ, "task %q: IRQ %d", t.Name, t.Binds)
	case a.vector[t.Binds] != nil:
		return configErr(ErrDuplicateTrigger, "task %q: IRQ %d bound to %q", t.Name, t.Binds, a.vector[t.Binds].name)
	}
	for _, tk := range a.tasks {
		if tk.name == t.Name {
			return configErr(ErrDuplicateTask, "task %q", t.Name)
		}
	}
	for _, id := range t.Resources {
		if !id.valid() {
			return configErr(ErrUnknownResource, "task %q: resource %d", t.Name, id)
		}
	}
	tk := newTask(t)
	a.tasks = append(a.tasks, tk)
	a.vector[tk.irq] = tk
	return nil
}

// InitContext provides exclusive access to the app during Init.
type InitContext struct {
	app *App
}

// Resources gets the resource table to declare resources.
func (c *InitContext) Resources() *Table {
	return &c.app.table
}

// Tasks gets the registered tasks.
func (c *InitContext) Tasks() []TaskStats {
	return c.app.Stats()
}

// Pender gets the func raising the interrupt line.
func (c *InitContext) Pender(irq IRQ) func() {
	return c.app.Pender(irq)
}

// Connect attaches a level sensitive source to the task bound to irq.
func (c *InitContext) Connect(irq IRQ, line Line) error {
	if !irq.valid() || c.app.vector[irq] == nil {
		return configErr(ErrInvalidIRQ, "connect IRQ %d", irq)
	}
	c.app.vector[irq].line = line
	return nil
}

// Init runs the one time startup: fn populates the resource table and
// configures peripherals, then ceilings are resolved, the table is
// sealed and all bound interrupt lines are enabled.
// Interrupt requests before Init completes stay pending.
func (a *App) Init(fn func(*InitContext) error) (err error) {
	a.initLock.Lock()
	defer a.initLock.Unlock()
	if !atomic.CompareAndSwapUint32(&a.state, stateNew, stateInitializing) {
		return ErrAlreadyInitialized
	}
	defer func() {
		if r := recover(); r != nil {
			err = a.halt(&FaultError{Task: "init", Panic: r})
		}
	}()
	if fn != nil {
		if err := fn(&InitContext{app: a}); err != nil {
			return a.halt(&FaultError{Task: "init", Err: err})
		}
	}
	if err := a.table.seal(a.tasks); err != nil {
		return a.halt(&FaultError{Task: "init", Err: err})
	}
	var mask uint64
	for _, t := range a.tasks {
		a.nvic.setPriority(t.irq, t.priority)
		mask |= t.irq.bit()
	}
	a.nvic.enable(mask)
	atomic.StoreUint32(&a.state, stateArmed)
	for _, t := range a.tasks {
		if t.line != nil && t.line.Asserted() {
			a.nvic.pend(t.irq)
		}
	}
	glog.V(2).Infof("%s: %d tasks armed", a.name, len(a.tasks))
	return nil
}

// Initialized indicates Init completed and tasks are armed.
func (a *App) Initialized() bool {
	return atomic.LoadUint32(&a.state) == stateArmed
}

// Pend requests the interrupt line. It is safe to call from any goroutine.
func (a *App) Pend(irq IRQ) {
	if !irq.valid() {
		glog.Warningf("%s: pend invalid IRQ %d", a.name, irq)
		return
	}
	if atomic.LoadUint32(&a.state) == stateHalted {
		return
	}
	a.nvic.pend(irq)
}

// Pender gets the func pending irq.
func (a *App) Pender(irq IRQ) func() {
	return func() { a.Pend(irq) }
}

// IsPending checks if irq is pending.
func (a *App) IsPending(irq IRQ) bool {
	return irq.valid() && a.nvic.isPending(irq)
}

// Stats gets counters of all tasks.
func (a *App) Stats() []TaskStats {
	stats := make([]TaskStats, len(a.tasks))
	for n, t := range a.tasks {
		stats[n] = t.stats()
	}
	return stats
}

// Fault gets the fault halting the app, nil if not halted.
func (a *App) Fault() error {
	a.faultLock.Lock()
	defer a.faultLock.Unlock()
	if a.fault == nil {
		return nil
	}
	return a.fault
}

// Run implements Runnable. It owns the core and dispatches tasks until
// the context is done or a task faults.
func (a *App) Run(ctx context.Context) error {
	if err := a.acquireCore(); err != nil {
		return err
	}
	defer a.releaseCore()
	for {
		if err := a.idle(); err != nil {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-a.nvic.wakeUpCh:
		}
	}
}

// Step dispatches all pending tasks and returns when the core is idle.
func (a *App) Step() error {
	if err := a.acquireCore(); err != nil {
		return err
	}
	defer a.releaseCore()
	return a.idle()
}

func (a *App) acquireCore() error {
	if !atomic.CompareAndSwapInt32(&a.core, 0, 1) {
		return ErrCoreBusy
	}
	return nil
}

func (a *App) releaseCore() {
	atomic.StoreInt32(&a.core, 0)
}

func (a *App) idle() (err error) {
	if err := a.Fault(); err != nil {
		return err
	}
	if !a.Initialized() {
		return ErrNotInitialized
	}
	defer func() {
		if r := recover(); r != nil {
			fault, ok := r.(*FaultError)
			if !ok {
				fault = &FaultError{Task: a.name, Panic: r}
			}
			a.current, a.basepri, a.sections = nil, Idle, nil
			err = a.halt(fault)
		}
	}()
	a.preempt()
	return nil
}

func (a *App) runningPriority() Priority {
	if a.current == nil {
		return Idle
	}
	return a.current.priority
}

// preempt runs pending tasks above the current execution priority.
func (a *App) preempt() {
	if !a.Initialized() {
		return
	}
	for {
		irq, ok := a.nvic.take(maxPriority(a.basepri, a.runningPriority()))
		if !ok {
			return
		}
		a.dispatch(a.vector[irq])
	}
}

func (a *App) dispatch(t *task) {
	prev := a.current
	a.current = t
	atomic.AddUint64(&t.dispatched, 1)
	if glog.V(4) {
		glog.Infof("%s: dispatch %s at %v", a.name, t.name, t.priority)
	}
	if fault := a.invoke(t); fault != nil {
		panic(fault)
	}
	a.current = prev
	if t.line != nil && t.line.Asserted() {
		a.nvic.pend(t.irq)
	}
}

func (a *App) invoke(t *task) (fault *FaultError) {
	defer func() {
		if r := recover(); r != nil {
			if f, ok := r.(*FaultError); ok {
				fault = f
				return
			}
			fault = &FaultError{Task: t.name, Panic: r}
		}
	}()
	if err := t.handler.Handle(&Context{app: a, task: t}); err != nil {
		return &FaultError{Task: t.name, Err: err}
	}
	return nil
}

func (a *App) halt(f *FaultError) error {
	atomic.StoreUint32(&a.state, stateHalted)
	a.faultLock.Lock()
	defer a.faultLock.Unlock()
	if a.fault == nil {
		a.fault = f
		glog.Errorf("%s halted: %v", a.name, f)
	}
	return a.fault
}
