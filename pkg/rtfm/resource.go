package rtfm

import "fmt"

// ResourceID identifies a slot in the resource table.
type ResourceID uint8

// MaxResources is the capacity of a resource table.
const MaxResources int = 32

func (id ResourceID) bit() uint32 {
	return uint32(1) << id
}

func (id ResourceID) valid() bool {
	return int(id) < MaxResources
}

type slot struct {
	name     string
	declared bool
	ceiling  Priority
	owner    *task
	value    interface{}
}

// Table is a fixed size registry of shared resources.
// The structure is frozen by Seal, afterwards only slot values change,
// and only inside critical sections.
type Table struct {
	slots  [MaxResources]slot
	sealed bool
}

// Declare adds a resource with its initial value. A zero ceiling is
// computed from the tasks accessing the resource when the table is sealed.
func (t *Table) Declare(id ResourceID, name string, value interface{}, ceiling Priority) error {
	if t.sealed {
		return configErr(ErrTableSealed, "declare %q", name)
	}
	if !id.valid() {
		return configErr(ErrUnknownResource, "declare %q: id %d", name, id)
	}
	s := &t.slots[id]
	if s.declared {
		return configErr(ErrDuplicateResource, "declare %q: id %d held by %q", name, id, s.name)
	}
	if name == "" {
		name = fmt.Sprintf("res%d", id)
	}
	*s = slot{name: name, declared: true, ceiling: ceiling, value: value}
	return nil
}

// Sealed indicates the table structure is frozen.
func (t *Table) Sealed() bool {
	return t.sealed
}

// Name gets the declared name of a resource.
func (t *Table) Name(id ResourceID) string {
	if !id.valid() || !t.slots[id].declared {
		return fmt.Sprintf("res%d", id)
	}
	return t.slots[id].name
}

// Ceiling gets the ceiling priority of a resource.
func (t *Table) Ceiling(id ResourceID) Priority {
	if !id.valid() {
		return Idle
	}
	return t.slots[id].ceiling
}

func (t *Table) lookup(id ResourceID) (*slot, error) {
	if !id.valid() || !t.slots[id].declared {
		return nil, ErrUnknownResource
	}
	return &t.slots[id], nil
}

// seal computes ceilings from the task set and freezes the table.
func (t *Table) seal(tasks []*task) error {
	required := make([]Priority, MaxResources)
	for _, tk := range tasks {
		for _, id := range tk.resources {
			if !id.valid() || !t.slots[id].declared {
				return configErr(ErrUnknownResource, "task %q: resource %d", tk.name, id)
			}
			required[id] = maxPriority(required[id], tk.priority)
		}
	}
	for id := range t.slots {
		s := &t.slots[id]
		if !s.declared {
			continue
		}
		switch {
		case s.ceiling == Idle:
			s.ceiling = required[id]
		case s.ceiling < required[id]:
			return configErr(ErrCeilingTooLow, "resource %q: ceiling %v, required %v", s.name, s.ceiling, required[id])
		}
	}
	t.sealed = true
	return nil
}

// Res is a typed handle of a declared resource.
type Res[T any] struct {
	ID ResourceID
}

// Declare adds a typed resource to the table and returns its handle.
func Declare[T any](t *Table, id ResourceID, name string, value T, ceiling Priority) (Res[T], error) {
	if err := t.Declare(id, name, value, ceiling); err != nil {
		return Res[T]{}, err
	}
	return Res[T]{ID: id}, nil
}

// Get reads the resource value, the section must own the resource.
func (r Res[T]) Get(s *Section) T {
	return s.slot(r.ID).value.(T)
}

// Set replaces the resource value, the section must own the resource.
func (r Res[T]) Set(s *Section, value T) {
	s.slot(r.ID).value = value
}
