package notify

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
)

// Queue hands notifications to a pool of workers so that callers never wait
// on a slow sink. When the buffer is full the notification is dropped.
type Queue struct {
	next    Notifier
	logger  *slog.Logger
	ch      chan Notification
	workers int

	mu      sync.Mutex
	started bool
	closed  bool
	wg      sync.WaitGroup
}

// QueueOpts holds parameters for creating a Queue.
type QueueOpts struct {
	Next    Notifier // required
	Size    int      // buffer size, defaults to 256
	Workers int      // defaults to 2
	Logger  *slog.Logger
}

// NewQueue creates a Queue. Call Start before Notify.
func NewQueue(opts QueueOpts) (*Queue, error) {
	if opts.Next == nil {
		return nil, fmt.Errorf("notify: queue: next notifier is required")
	}
	if opts.Size <= 0 {
		opts.Size = 256
	}
	if opts.Workers <= 0 {
		opts.Workers = 2
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Queue{
		next:    opts.Next,
		logger:  opts.Logger,
		ch:      make(chan Notification, opts.Size),
		workers: opts.Workers,
	}, nil
}

// Start launches the workers. Workers exit once Close drains the buffer.
// Deliveries use ctx, which should outlive individual requests.
func (q *Queue) Start(ctx context.Context) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.started || q.closed {
		return
	}
	q.started = true
	for i := 0; i < q.workers; i++ {
		q.wg.Add(1)
		go q.work(ctx)
	}
}

func (q *Queue) work(ctx context.Context) {
	defer q.wg.Done()
	for n := range q.ch {
		Dispatch(ctx, q.logger, q.next, n)
	}
}

// Notify enqueues n without blocking.
func (q *Queue) Notify(ctx context.Context, n Notification) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return fmt.Errorf("notify: queue closed")
	}
	select {
	case q.ch <- n:
		return nil
	default:
		return fmt.Errorf("notify: queue full, dropped %s for %s", n.Kind, n.AccountID)
	}
}

// Close stops accepting notifications and waits for queued ones to drain.
func (q *Queue) Close() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	close(q.ch)
	started := q.started
	q.mu.Unlock()
	if started {
		q.wg.Wait()
	}
}
