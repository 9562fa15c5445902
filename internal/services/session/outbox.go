package session

import (
	"errors"
	"sync"

	"github.com/Merdeus/dndinventory/internal/model"
)

// ErrConnectionClosed is returned when pushing to a closed outbox
var ErrConnectionClosed = errors.New("connection closed")

// Message is one event queued for a connection. Data is the encoded payload.
type Message struct {
	Event model.EventType
	Data  []byte
}

// Outbox is an unbounded FIFO with many producers and one consumer. The
// consumer waits on Ready and then calls Drain.
type Outbox struct {
	mu     sync.Mutex
	queue  []Message
	ready  chan struct{}
	closed bool
}

func newOutbox() *Outbox {
	return &Outbox{ready: make(chan struct{}, 1)}
}

// Push appends msg. It never blocks.
func (o *Outbox) Push(msg Message) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.closed {
		return ErrConnectionClosed
	}
	o.queue = append(o.queue, msg)
	select {
	case o.ready <- struct{}{}:
	default:
	}
	return nil
}

// Ready is signalled after a push. It is closed when the outbox closes.
func (o *Outbox) Ready() <-chan struct{} {
	return o.ready
}

// Drain removes and returns everything queued, oldest first
func (o *Outbox) Drain() []Message {
	o.mu.Lock()
	defer o.mu.Unlock()
	msgs := o.queue
	o.queue = nil
	return msgs
}

// Len returns the number of queued messages
func (o *Outbox) Len() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.queue)
}

// Close rejects further pushes and wakes the consumer. Queued messages can
// still be drained.
func (o *Outbox) Close() {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.closed {
		return
	}
	o.closed = true
	close(o.ready)
}

// Closed reports whether Close has been called
func (o *Outbox) Closed() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.closed
}
