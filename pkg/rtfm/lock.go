package rtfm

import "fmt"

// Section is a critical section holding a set of resources.
// It is only valid inside the func passed to Lock.
type Section struct {
	app     *App
	task    *task
	owned   uint32
	ceiling Priority
	prev    Priority
	active  bool
}

// Ceiling gets the highest ceiling of the held resources.
func (s *Section) Ceiling() Priority {
	return s.ceiling
}

// Mask gets the current interrupt mask level.
func (s *Section) Mask() Priority {
	return s.app.basepri
}

// Owns checks if the section holds the resource for the running task.
// A section reaching a preempting task owns nothing there.
func (s *Section) Owns(id ResourceID) bool {
	return s != nil && s.active && s.app.current == s.task &&
		id.valid() && s.owned&id.bit() != 0
}

// Lock nests another critical section inside this one.
func (s *Section) Lock(fn func(*Section) error, ids ...ResourceID) error {
	if !s.active {
		panic(fmt.Errorf("%w: nested lock on released section", ErrAccessWithoutLock))
	}
	return s.app.WithResources(s.task.priority, ids, fn)
}

func (s *Section) slot(id ResourceID) *slot {
	if !s.Owns(id) {
		var name string
		if s != nil {
			name = s.app.table.Name(id)
		} else {
			name = fmt.Sprintf("res%d", id)
		}
		panic(fmt.Errorf("%w: %s", ErrAccessWithoutLock, name))
	}
	return &s.app.table.slots[id]
}

// WithResources executes fn with exclusive access to the resources on
// behalf of the running task at priority p.
// The interrupt mask is raised to the highest ceiling of the resources,
// and restored on every exit path of fn.
func (a *App) WithResources(p Priority, ids []ResourceID, fn func(*Section) error) (err error) {
	t := a.current
	if t == nil || t.priority != p {
		return configErr(ErrNotInTask, "lock at %v", p)
	}
	sec := &Section{app: a, task: t, prev: a.basepri}
	for _, id := range ids {
		s, err := a.table.lookup(id)
		if err != nil {
			return configErr(err, "task %q: lock resource %d", t.name, id)
		}
		if t.allowed&id.bit() == 0 {
			return configErr(ErrUndeclaredAccess, "task %q: lock %q", t.name, s.name)
		}
		if s.owner != nil || sec.owned&id.bit() != 0 {
			return configErr(ErrReentrantLock, "task %q: lock %q", t.name, s.name)
		}
		sec.owned |= id.bit()
		sec.ceiling = maxPriority(sec.ceiling, s.ceiling)
	}

	a.preempt()

	for _, id := range ids {
		a.table.slots[id].owner = t
	}
	a.basepri = maxPriority(a.basepri, sec.ceiling)
	sec.active = true
	a.sections = append(a.sections, sec)

	completed := false
	defer func() {
		a.release(sec)
		if completed {
			a.preempt()
		}
	}()
	err = fn(sec)
	completed = true
	return err
}

func (a *App) release(sec *Section) {
	n := len(a.sections)
	if n == 0 || a.sections[n-1] != sec {
		panic(fmt.Errorf("%w: task %q", ErrLockOrder, sec.task.name))
	}
	a.sections[n-1] = nil
	a.sections = a.sections[:n-1]
	for id := 0; id < MaxResources; id++ {
		if sec.owned&(uint32(1)<<uint(id)) != 0 {
			a.table.slots[id].owner = nil
		}
	}
	sec.active = false
	a.basepri = sec.prev
}
