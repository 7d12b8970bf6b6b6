package rtfm

import "fmt"

// Priority is the static priority of a task, higher preempts lower.
type Priority uint8

// PriorityLevels is the total levels of priorities.
const PriorityLevels int = 16

// Predefined priority levels.
const (
	// Idle is the execution priority when no task is running.
	// No task can be bound at this level.
	Idle Priority = 0
	// PrLvLow is the lowest task priority.
	PrLvLow Priority = 1
	// PrLvTop is the highest task priority.
	PrLvTop Priority = Priority(PriorityLevels - 1)
)

// IsTaskLevel checks if a task can be bound at this priority.
func (p Priority) IsTaskLevel() bool {
	return p >= PrLvLow && p <= PrLvTop
}

// String implements fmt.Stringer.
func (p Priority) String() string {
	if p == Idle {
		return "idle"
	}
	return fmt.Sprintf("P%d", uint8(p))
}

// IRQ identifies an interrupt line, which is the trigger event of a task.
type IRQ uint8

// MaxIRQs is the number of interrupt lines of the controller.
const MaxIRQs int = 64

func (irq IRQ) bit() uint64 {
	return uint64(1) << irq
}

func (irq IRQ) valid() bool {
	return int(irq) < MaxIRQs
}

func maxPriority(a, b Priority) Priority {
	if a > b {
		return a
	}
	return b
}
