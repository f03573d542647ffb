package notify

import (
	"audio-upload/internal/core/domain"
	"audio-upload/internal/core/port"
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// ErrQueueFull is returned when an event is dropped because the queue is saturated
var ErrQueueFull = errors.New("notification queue full")

// ErrClosed is returned once the notifier stopped accepting events
var ErrClosed = errors.New("notifier closed")

const deliverTimeout = 5 * time.Second

// AsyncNotifier decouples callers from a slow sink with a bounded queue.
// Notify never blocks: events are dropped when the queue is full.
type AsyncNotifier struct {
	sink   port.ProgressNotifier
	queue  chan domain.ProgressEvent
	logger *slog.Logger

	mu      sync.RWMutex
	closed  bool
	done    chan struct{}
	dropped atomic.Uint64
}

// NewAsyncNotifier starts the delivery goroutine for sink
func NewAsyncNotifier(sink port.ProgressNotifier, queueSize int, logger *slog.Logger) *AsyncNotifier {
	if queueSize <= 0 {
		queueSize = 1
	}
	n := &AsyncNotifier{
		sink:   sink,
		queue:  make(chan domain.ProgressEvent, queueSize),
		logger: logger.With("component", "notifier"),
		done:   make(chan struct{}),
	}
	go n.run()
	return n
}

func (n *AsyncNotifier) Notify(_ context.Context, event domain.ProgressEvent) error {
	n.mu.RLock()
	defer n.mu.RUnlock()
	if n.closed {
		return ErrClosed
	}

	select {
	case n.queue <- event:
		return nil
	default:
		n.dropped.Add(1)
		return ErrQueueFull
	}
}

func (n *AsyncNotifier) run() {
	defer close(n.done)
	for event := range n.queue {
		ctx, cancel := context.WithTimeout(context.Background(), deliverTimeout)
		if err := n.sink.Notify(ctx, event); err != nil {
			n.logger.Warn("failed to deliver progress event", "session_id", event.SessionID, "type", event.Type, "error", err)
		}
		cancel()
	}
}

// Dropped reports how many events were discarded on a full queue
func (n *AsyncNotifier) Dropped() uint64 {
	return n.dropped.Load()
}

// Close stops accepting events, drains the queue and closes the sink
func (n *AsyncNotifier) Close() error {
	n.mu.Lock()
	if n.closed {
		n.mu.Unlock()
		return nil
	}
	n.closed = true
	close(n.queue)
	n.mu.Unlock()

	<-n.done
	if dropped := n.dropped.Load(); dropped > 0 {
		n.logger.Warn("progress events dropped", "count", dropped)
	}
	return n.sink.Close()
}
