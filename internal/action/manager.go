package action

import (
	"sync"
	"time"
)

// Recorder receives scheduler metrics. observability.EngineCollector
// implements it.
type Recorder interface {
	SetActionsQueued(n int)
	IncActionsDropped()
	AddActionsExecuted(n int)
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithCapacity bounds the underlying queue.
func WithCapacity(n int) ManagerOption {
	return func(m *Manager) {
		m.queue = NewQueue(n)
	}
}

// WithRecorder attaches a metrics recorder.
func WithRecorder(r Recorder) ManagerOption {
	return func(m *Manager) {
		m.metrics = r
	}
}

// Manager schedules actions: a FIFO queue drained once per tick plus an
// index of (type, id) pairs that enforces singleton semantics.
type Manager struct {
	mu      sync.Mutex
	ships   ShipResolver
	queue   *Queue
	index   map[actionKey]*Action
	metrics Recorder
}

// NewManager builds a manager resolving targets through ships.
func NewManager(ships ShipResolver, opts ...ManagerOption) *Manager {
	m := &Manager{
		ships: ships,
		index: make(map[actionKey]*Action),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.queue == nil {
		m.queue = NewQueue(DefaultQueueCapacity)
	}
	return m
}

// Add schedules a. A singleton first aborts any pending action with the
// same (type, id). Add returns false when the queue is full; the action is
// then dropped and not indexed.
func (m *Manager) Add(a *Action) bool {
	if a == nil {
		return false
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	k := a.key()
	if a.Singleton {
		m.abortLocked(k)
	}
	m.index[k] = a
	if !m.queue.Push(a) {
		// do not keep an index entry for an action that never got scheduled
		if m.index[k] == a {
			delete(m.index, k)
		}
		if m.metrics != nil {
			m.metrics.IncActionsDropped()
		}
		return false
	}
	m.recordDepthLocked()
	return true
}

// Abort cancels the indexed action for (typ, id). No-op if absent.
func (m *Manager) Abort(typ, id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.abortLocked(actionKey{typ: typ, id: id})
}

func (m *Manager) abortLocked(k actionKey) {
	a, ok := m.index[k]
	if !ok {
		return
	}
	a.aborted = true
	delete(m.index, k)
}

// AbortAll cancels every indexed action whose id is id, across types.
func (m *Manager) AbortAll(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for k, a := range m.index {
		if k.id == id {
			a.aborted = true
			delete(m.index, k)
		}
	}
}

// Update runs one scheduling pass. It pops exactly as many actions as were
// queued on entry, so re-queued actions wait for the next pass.
func (m *Manager) Update(elapsed time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()

	executed := 0
	n := m.queue.Len()
	for range n {
		a := m.queue.Pop()
		if a == nil {
			break
		}
		if a.aborted {
			continue
		}
		a.Update(m.ships, elapsed)
		executed++
		if a.finished {
			if k := a.key(); m.index[k] == a {
				delete(m.index, k)
			}
			continue
		}
		// capacity cannot be exceeded: the slot was freed by the pop above
		m.queue.Push(a)
	}

	if m.metrics != nil {
		m.metrics.AddActionsExecuted(executed)
	}
	m.recordDepthLocked()
}

// Active returns the pending action indexed under (typ, id), or nil.
func (m *Manager) Active(typ, id string) *Action {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.index[actionKey{typ: typ, id: id}]
}

// Len returns the number of queued actions, aborted ones included until
// they are dequeued.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.queue.Len()
}

// Cap returns the queue capacity.
func (m *Manager) Cap() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.queue.Cap()
}

func (m *Manager) recordDepthLocked() {
	if m.metrics != nil {
		m.metrics.SetActionsQueued(m.queue.Len())
	}
}
