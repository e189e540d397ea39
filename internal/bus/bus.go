// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package bus is the session message bus: one bounded FIFO queue of
// stream messages per session, created on first use and torn down when the
// consumer sees the final message or goes away.
package bus

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/pdiddy/proposal-engine/pkg/types"
)

const (
	// DefaultBacklog is the queue bound used when none is configured.
	DefaultBacklog = 100

	// DefaultLinger is how long a queue holding its final message waits
	// for a consumer before it is dropped.
	DefaultLinger = 10 * time.Minute
)

// ErrClosed is returned by Next when the session's queue was closed while waiting.
var ErrClosed = errors.New("bus: queue closed")

// Registry maps session ids to queues. It is safe for concurrent use.
// The registry lock only guards the map; each queue has its own lock, and
// neither is held while a consumer blocks.
//
// A session whose consumer disconnected is remembered until its producer
// pushes the final message; pushes in between are discarded instead of
// recreating the queue.
type Registry struct {
	mu      sync.Mutex
	queues  map[string]*queue
	gone    map[string]struct{}
	backlog int
	linger  time.Duration
}

type queue struct {
	mu      sync.Mutex
	items   []types.StreamMessage
	dropped int
	notify  chan struct{}
	done    chan struct{}
	final   bool
	expiry  *time.Timer
}

// Option configures a Registry.
type Option func(*Registry)

// WithLinger sets how long a queue that holds its final message survives
// without a consumer.
func WithLinger(d time.Duration) Option {
	return func(r *Registry) {
		if d > 0 {
			r.linger = d
		}
	}
}

func newQueue(backlog int) *queue {
	return &queue{
		items:  make([]types.StreamMessage, 0, min(backlog, 16)),
		notify: make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
}

// New returns an empty registry whose queues hold at most backlog messages.
func New(backlog int, opts ...Option) *Registry {
	if backlog <= 0 {
		backlog = DefaultBacklog
	}
	r := &Registry{
		queues:  make(map[string]*queue),
		gone:    make(map[string]struct{}),
		backlog: backlog,
		linger:  DefaultLinger,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// queue returns the queue for id, creating it. A consumer arriving for a
// session whose previous consumer left starts receiving again.
func (r *Registry) queue(id string) *queue {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.gone, id)
	q, ok := r.queues[id]
	if !ok {
		q = newQueue(r.backlog)
		r.queues[id] = q
	}
	return q
}

// producerQueue is queue for Push. It returns nil when the session's
// consumer has left, forgetting the session once the final message arrives.
func (r *Registry) producerQueue(msg types.StreamMessage) *queue {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, left := r.gone[msg.SessionID]; left {
		if msg.IsFinal {
			delete(r.gone, msg.SessionID)
		}
		return nil
	}
	q, ok := r.queues[msg.SessionID]
	if !ok {
		q = newQueue(r.backlog)
		r.queues[msg.SessionID] = q
	}
	return q
}

// remove deletes q if it is still the queue registered for id and wakes
// any waiting consumer.
func (r *Registry) remove(id string, q *queue) {
	r.mu.Lock()
	if r.queues[id] == q {
		delete(r.queues, id)
	}
	r.mu.Unlock()

	q.mu.Lock()
	if q.expiry != nil {
		q.expiry.Stop()
	}
	select {
	case <-q.done:
	default:
		close(q.done)
	}
	q.mu.Unlock()
}

// Push appends msg to its session's queue. When the queue is full the
// oldest message is dropped; Push reports whether that happened. Messages
// for a session whose consumer has left are discarded. A final message
// left unread for the linger period takes its queue with it.
func (r *Registry) Push(msg types.StreamMessage) (dropped bool) {
	q := r.producerQueue(msg)
	if q == nil {
		return false
	}

	q.mu.Lock()
	if len(q.items) >= r.backlog {
		copy(q.items, q.items[1:])
		q.items = q.items[:len(q.items)-1]
		q.dropped++
		dropped = true
	}
	q.items = append(q.items, msg)
	if msg.IsFinal && !q.final {
		q.final = true
		id := msg.SessionID
		q.expiry = time.AfterFunc(r.linger, func() { r.remove(id, q) })
	}
	q.mu.Unlock()

	select {
	case q.notify <- struct{}{}:
	default:
	}
	return dropped
}

// take pops the head of q. The caller must not hold q.mu.
func (q *queue) take() (types.StreamMessage, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		return types.StreamMessage{}, false
	}
	msg := q.items[0]
	q.items[0] = types.StreamMessage{}
	q.items = q.items[1:]
	return msg, true
}

// Pop removes and returns the oldest message for the session without
// blocking. Popping the final message tears the queue down.
func (r *Registry) Pop(id string) (types.StreamMessage, bool) {
	q := r.queue(id)
	msg, ok := q.take()
	if ok && msg.IsFinal {
		r.remove(id, q)
	}
	return msg, ok
}

// Next blocks until a message is available for the session, the context is
// done, or the queue is closed. Receiving the final message tears the
// queue down.
func (r *Registry) Next(ctx context.Context, id string) (types.StreamMessage, error) {
	q := r.queue(id)
	for {
		if msg, ok := q.take(); ok {
			if msg.IsFinal {
				r.remove(id, q)
			}
			return msg, nil
		}
		select {
		case <-ctx.Done():
			return types.StreamMessage{}, ctx.Err()
		case <-q.done:
			return types.StreamMessage{}, ErrClosed
		case <-q.notify:
		}
	}
}

// Close tears down the session's queue, discarding pending messages. It is
// called when the consumer disconnects; later pushes for the session are
// discarded until its final message.
func (r *Registry) Close(id string) {
	r.mu.Lock()
	q, ok := r.queues[id]
	finished := false
	if ok {
		q.mu.Lock()
		finished = q.final
		q.mu.Unlock()
	}
	if !finished {
		r.gone[id] = struct{}{}
	}
	r.mu.Unlock()
	if ok {
		r.remove(id, q)
	}
}

// Len returns the number of pending messages for the session without
// creating a queue.
func (r *Registry) Len(id string) int {
	r.mu.Lock()
	q, ok := r.queues[id]
	r.mu.Unlock()
	if !ok {
		return 0
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Dropped returns how many messages were dropped from the session's queue.
func (r *Registry) Dropped(id string) int {
	r.mu.Lock()
	q, ok := r.queues[id]
	r.mu.Unlock()
	if !ok {
		return 0
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.dropped
}

// Sessions returns the number of live queues.
func (r *Registry) Sessions() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.queues)
}
