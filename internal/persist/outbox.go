package persist

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/verte-zerg/redline/internal/model"
)

// DefaultOutboxCapacity bounds the number of queued autosaves.
const DefaultOutboxCapacity = 32

const outboxCallTimeout = 10 * time.Second

type job struct {
	id       string
	patch    model.SessionPatch
	finalize *model.FinalizeRequest
}

// Outbox delivers patches and finalizations to a Gateway in order on a
// background worker, so callers never wait for I/O.
type Outbox struct {
	gw       Gateway
	capacity int
	onError  func(error)

	mu     sync.Mutex
	queue  []job
	closed bool
	wake   chan struct{}
	done   chan struct{}
}

// NewOutbox starts a worker delivering to gw. onError receives every failed
// delivery and may be nil. A capacity below one uses DefaultOutboxCapacity.
func NewOutbox(gw Gateway, capacity int, onError func(error)) *Outbox {
	if capacity < 1 {
		capacity = DefaultOutboxCapacity
	}
	o := &Outbox{
		gw:       gw,
		capacity: capacity,
		onError:  onError,
		wake:     make(chan struct{}, 1),
		done:     make(chan struct{}),
	}
	go o.run()
	return o
}

// Patch queues an autosave. When the queue is full the patch is dropped; the
// next autosave carries the same fields.
func (o *Outbox) Patch(id string, patch model.SessionPatch) {
	o.enqueue(job{id: id, patch: patch}, false)
}

// Finalize queues the final write. It is never dropped.
func (o *Outbox) Finalize(id string, req model.FinalizeRequest) {
	o.enqueue(job{id: id, finalize: &req}, true)
}

func (o *Outbox) enqueue(j job, mustKeep bool) {
	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		o.report(fmt.Errorf("outbox closed, dropped write for %s", j.id))
		return
	}
	if !mustKeep && len(o.queue) >= o.capacity {
		o.mu.Unlock()
		o.report(fmt.Errorf("outbox full, dropped autosave for %s", j.id))
		return
	}
	o.queue = append(o.queue, j)
	o.mu.Unlock()
	o.signal()
}

func (o *Outbox) signal() {
	select {
	case o.wake <- struct{}{}:
	default:
	}
}

// Pending returns the number of queued writes.
func (o *Outbox) Pending() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.queue)
}

func (o *Outbox) run() {
	defer close(o.done)
	for {
		o.mu.Lock()
		if len(o.queue) == 0 {
			closed := o.closed
			o.mu.Unlock()
			if closed {
				return
			}
			<-o.wake
			continue
		}
		next := o.queue[0]
		o.queue = o.queue[1:]
		o.mu.Unlock()
		o.deliver(next)
	}
}

func (o *Outbox) deliver(j job) {
	ctx, cancel := context.WithTimeout(context.Background(), outboxCallTimeout)
	defer cancel()
	if j.finalize != nil {
		if _, err := o.gw.Finalize(ctx, j.id, *j.finalize); err != nil {
			o.report(fmt.Errorf("failed to finalize session %s: %w", j.id, err))
		}
		return
	}
	if _, err := o.gw.Patch(ctx, j.id, j.patch); err != nil {
		o.report(fmt.Errorf("failed to autosave session %s: %w", j.id, err))
	}
}

func (o *Outbox) report(err error) {
	if o.onError != nil {
		o.onError(err)
	}
}

// Close stops accepting writes and waits for queued ones to be delivered or
// for ctx to end.
func (o *Outbox) Close(ctx context.Context) error {
	o.mu.Lock()
	o.closed = true
	o.mu.Unlock()
	o.signal()
	select {
	case <-o.done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("failed to drain outbox: %w", ctx.Err())
	}
}
