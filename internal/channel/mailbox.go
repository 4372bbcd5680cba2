package channel

import "sync"

// DefaultMailboxSize is the buffer depth of a Mailbox when none is given.
const DefaultMailboxSize = 256

// Mailbox is a Subscriber backed by a buffered Go channel. Messages are
// dropped, not blocked on, once the buffer is full.
type Mailbox struct {
	id string

	mu     sync.Mutex
	ch     chan Message
	closed bool
}

// NewMailbox creates a mailbox with the given buffer size.
func NewMailbox(id string, size int) *Mailbox {
	if size <= 0 {
		size = DefaultMailboxSize
	}
	return &Mailbox{id: id, ch: make(chan Message, size)}
}

// ID implements Subscriber.
func (m *Mailbox) ID() string { return m.id }

// Send implements Subscriber.
func (m *Mailbox) Send(msg Message) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return false
	}
	select {
	case m.ch <- msg:
		return true
	default:
		return false
	}
}

// Receive returns the receive-only channel.
func (m *Mailbox) Receive() <-chan Message {
	return m.ch
}

// Len returns the number of buffered messages.
func (m *Mailbox) Len() int {
	return len(m.ch)
}

// Close closes the channel. Later sends report false.
func (m *Mailbox) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return
	}
	m.closed = true
	close(m.ch)
}
