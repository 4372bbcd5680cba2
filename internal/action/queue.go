package action

// DefaultQueueCapacity bounds the action queue when no capacity is given.
const DefaultQueueCapacity = 10000

// Queue is a bounded FIFO of actions backed by a ring buffer.
// It is not safe for concurrent use; Manager serializes access.
type Queue struct {
	buf  []*Action
	head int
	n    int
}

// NewQueue returns a queue holding at most capacity actions.
// A non-positive capacity selects DefaultQueueCapacity.
func NewQueue(capacity int) *Queue {
	if capacity <= 0 {
		capacity = DefaultQueueCapacity
	}
	return &Queue{buf: make([]*Action, capacity)}
}

// Push appends a and reports false, dropping a, when the queue is full.
func (q *Queue) Push(a *Action) bool {
	if q.n == len(q.buf) {
		return false
	}
	q.buf[(q.head+q.n)%len(q.buf)] = a
	q.n++
	return true
}

// Pop removes and returns the oldest action, or nil when empty.
func (q *Queue) Pop() *Action {
	if q.n == 0 {
		return nil
	}
	a := q.buf[q.head]
	q.buf[q.head] = nil
	q.head = (q.head + 1) % len(q.buf)
	q.n--
	return a
}

// Len returns the number of queued actions.
func (q *Queue) Len() int { return q.n }

// Cap returns the queue capacity.
func (q *Queue) Cap() int { return len(q.buf) }
