// Package emitter provides the ordered progress queue between the scheduler
// and the transport layer. Producers never block: items accumulate in an
// unbounded in-memory queue and a pump goroutine delivers them to the
// consumer channel in emission order.
package emitter

import (
	"sync"

	"github.com/flowgraph/flowgraph/pkg/models"
)

type Emitter struct {
	mu     sync.Mutex
	queue  []models.ProcessingItem
	closed bool

	signal chan struct{}
	out    chan models.ProcessingItem
}

func New() *Emitter {
	e := &Emitter{
		signal: make(chan struct{}, 1),
		out:    make(chan models.ProcessingItem),
	}

	go e.pump()

	return e
}

// Emit enqueues one progress item. Safe for concurrent use; items from a
// single producer are delivered in emission order. Emitting after Close is a
// no-op.
func (e *Emitter) Emit(item models.ProcessingItem) {
	e.mu.Lock()

	if e.closed {
		e.mu.Unlock()

		return
	}

	e.queue = append(e.queue, item)
	e.mu.Unlock()

	e.wake()
}

// Items is the consumer side. The channel closes after Close once every
// queued item has been delivered.
func (e *Emitter) Items() <-chan models.ProcessingItem {
	return e.out
}

// Close stops accepting new items. Already queued items are still delivered
// before the consumer channel closes.
func (e *Emitter) Close() {
	e.mu.Lock()
	e.closed = true
	e.mu.Unlock()

	e.wake()
}

func (e *Emitter) wake() {
	select {
	case e.signal <- struct{}{}:
	default:
	}
}

func (e *Emitter) pump() {
	for {
		e.mu.Lock()

		if len(e.queue) == 0 {
			closed := e.closed
			e.mu.Unlock()

			if closed {
				close(e.out)

				return
			}

			<-e.signal

			continue
		}

		item := e.queue[0]
		e.queue = e.queue[1:]
		e.mu.Unlock()

		e.out <- item
	}
}
