package rtfm

import (
	"errors"
	"fmt"
)

var (
	// ErrAccessWithoutLock indicates a resource is touched outside of a
	// critical section owning it. It is raised as a panic.
	ErrAccessWithoutLock = errors.New("resource accessed without lock")
	// ErrReentrantLock indicates a resource is requested while owned.
	ErrReentrantLock = errors.New("resource already locked")
	// ErrLockOrder indicates critical sections unwinding out of LIFO order.
	ErrLockOrder = errors.New("critical sections released out of order")
	// ErrUndeclaredAccess indicates a task locks a resource it doesn't list.
	ErrUndeclaredAccess = errors.New("resource not declared by task")
	// ErrUnknownResource indicates the resource id is not in the table.
	ErrUnknownResource = errors.New("unknown resource")
	// ErrDuplicateResource indicates the resource id is declared twice.
	ErrDuplicateResource = errors.New("resource already declared")
	// ErrTableSealed indicates the table can't be changed after init.
	ErrTableSealed = errors.New("resource table sealed")
	// ErrCeilingTooLow indicates an explicit ceiling below a task priority.
	ErrCeilingTooLow = errors.New("ceiling lower than task priority")
	// ErrInvalidPriority indicates a task priority outside task levels.
	ErrInvalidPriority = errors.New("invalid priority")
	// ErrInvalidIRQ indicates an interrupt line out of range.
	ErrInvalidIRQ = errors.New("invalid IRQ")
	// ErrDuplicateTrigger indicates two tasks bound to the same IRQ.
	ErrDuplicateTrigger = errors.New("IRQ already bound")
	// ErrDuplicateTask indicates two tasks with the same name.
	ErrDuplicateTask = errors.New("task already registered")
	// ErrNoHandler indicates a task without handler.
	ErrNoHandler = errors.New("task has no handler")
	// ErrNotInTask indicates a lock requested outside of task context
	// or on behalf of a task which isn't running.
	ErrNotInTask = errors.New("not in task context")
	// ErrAlreadyInitialized indicates Init is called more than once.
	ErrAlreadyInitialized = errors.New("already initialized")
	// ErrNotInitialized indicates the app is run before Init.
	ErrNotInitialized = errors.New("not initialized")
	// ErrCoreBusy indicates the core is already owned by Run or Step.
	ErrCoreBusy = errors.New("core busy")
)

// ConfigError reports an invalid static configuration.
type ConfigError struct {
	Subject string
	Err     error
}

// Error implements error.
func (e *ConfigError) Error() string {
	return fmt.Sprintf("%s: %v", e.Subject, e.Err)
}

// Unwrap supports errors.Is/As.
func (e *ConfigError) Unwrap() error {
	return e.Err
}

func configErr(err error, format string, args ...interface{}) error {
	return &ConfigError{Subject: fmt.Sprintf(format, args...), Err: err}
}

// FaultError is the unrecoverable fault halting the app.
type FaultError struct {
	// Task is the name of the faulting task, "init" for init faults.
	Task string
	// Err is the error returned by the task, nil if it panicked.
	Err error
	// Panic is the recovered value if the task panicked.
	Panic interface{}
}

// Error implements error.
func (e *FaultError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("fault in %s: %v", e.Task, e.Err)
	}
	return fmt.Sprintf("fault in %s: panic: %v", e.Task, e.Panic)
}

// Unwrap supports errors.Is/As.
func (e *FaultError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	if err, ok := e.Panic.(error); ok {
		return err
	}
	return nil
}
