package amqp

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/Veraticus/fintracker/internal/service"
)

// ErrQueueFull is returned when an event is dropped because the buffer is full.
var ErrQueueFull = errors.New("event queue full")

// ErrNotifierClosed is returned for events handed over after Close.
var ErrNotifierClosed = errors.New("notifier closed")

// AsyncNotifier queues events and publishes them from one goroutine, so
// callers never wait on the broker. Events are published in order.
type AsyncNotifier struct {
	next    service.Notifier
	queue   chan service.Event
	done    chan struct{}
	timeout time.Duration
	mu      sync.RWMutex
	closed  bool
}

// NewAsyncNotifier starts a worker that forwards events to next. Each
// publish gets at most timeout, retries included.
func NewAsyncNotifier(next service.Notifier, buffer int, timeout time.Duration) *AsyncNotifier {
	if buffer <= 0 {
		buffer = 1
	}
	n := &AsyncNotifier{
		next:    next,
		queue:   make(chan service.Event, buffer),
		done:    make(chan struct{}),
		timeout: timeout,
	}
	go n.run()
	return n
}

// Notify enqueues an event. It never blocks; a full buffer drops the event.
func (n *AsyncNotifier) Notify(_ context.Context, event service.Event) error {
	n.mu.RLock()
	defer n.mu.RUnlock()

	if n.closed {
		return ErrNotifierClosed
	}
	select {
	case n.queue <- event:
		return nil
	default:
		return ErrQueueFull
	}
}

func (n *AsyncNotifier) run() {
	defer close(n.done)
	for event := range n.queue {
		ctx, cancel := context.WithTimeout(context.Background(), n.timeout)
		if err := n.next.Notify(ctx, event); err != nil {
			slog.Warn("failed to publish event",
				"id", event.ID,
				"type", event.Type,
				"group", event.GroupID,
				"error", err)
		}
		cancel()
	}
}

// Close stops accepting events and waits for queued ones to be published,
// up to ctx's deadline.
func (n *AsyncNotifier) Close(ctx context.Context) error {
	n.mu.Lock()
	if !n.closed {
		n.closed = true
		close(n.queue)
	}
	n.mu.Unlock()

	select {
	case <-n.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
