package lifecycle

import "sync"

// Locks serializes all lifecycle operations per work item. Operations on
// different work items proceed in parallel; there is no global lock.
type Locks struct {
	mu    sync.Mutex
	items map[int]*sync.Mutex
}

// NewLocks creates an empty lock registry.
func NewLocks() *Locks {
	return &Locks{items: make(map[int]*sync.Mutex)}
}

// Acquire locks the given work item and returns the release function.
func (l *Locks) Acquire(workItemID int) (release func()) {
	l.mu.Lock()
	m, ok := l.items[workItemID]
	if !ok {
		m = &sync.Mutex{}
		l.items[workItemID] = m
	}
	l.mu.Unlock()

	m.Lock()
	return m.Unlock
}
