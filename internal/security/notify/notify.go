// Copyright (c) 2026 LifeLink. All rights reserved.
// Author: thanh.phandinh.vn@gmail.com

/*
Package notify implements the realtime notification fan-out: per-identity
sets of bounded delivery queues feeding connected clients.

One identity may hold several queues at once — one per open tab or device.
Delivery is best-effort: a full queue drops its oldest message to admit the
newest (bounded staleness over completeness), and sending to an identity
with no connections reports false rather than erroring. Durable fallback
for offline recipients is a caller concern.

# Locking Discipline

The manager's mutex guards only the identity->queues map; it is held for
connect/disconnect/iteration and never across a channel operation that could
block. Each queue carries its own mutex making enqueue (and its drop-oldest
fallback) atomic, so a burst of concurrent senders can never block or
observe a torn queue.
*/
package notify

import "sync"

// # Queue

// DefaultQueueCapacity bounds each delivery queue.
const DefaultQueueCapacity = 100

// Queue is one bounded delivery channel toward a single connected client.
type Queue struct {
	mu       sync.Mutex
	messages chan any
}

func newQueue(capacity int) *Queue {
	return &Queue{messages: make(chan any, capacity)}
}

// Receive exposes the consuming side for the transport bridge (SSE loop,
// websocket writer). The channel is never closed by the manager; consumers
// stop by disconnecting and abandoning it.
func (queue *Queue) Receive() <-chan any {
	return queue.messages
}

// Len reports the number of queued messages.
func (queue *Queue) Len() int {
	return len(queue.messages)
}

// enqueue adds a message, dropping the oldest one first when full. The
// queue mutex serializes senders, so after the drop there is always room
// and the send below can never block.
func (queue *Queue) enqueue(message any) {
	queue.mu.Lock()
	defer queue.mu.Unlock()

	select {
	case queue.messages <- message:
	default:
		select {
		case <-queue.messages:
		default:
		}
		queue.messages <- message
	}
}

// # Manager

// Manager tracks which queues belong to which identity and fans messages
// out to them.
type Manager struct {
	mu       sync.Mutex
	queues   map[string][]*Queue
	capacity int
}

// Option customizes a [Manager] at construction time.
type Option func(*Manager)

// WithQueueCapacity overrides the per-queue bound.
func WithQueueCapacity(capacity int) Option {
	return func(m *Manager) { m.capacity = capacity }
}

// NewManager creates an empty fan-out manager.
func NewManager(options ...Option) *Manager {
	manager := &Manager{
		queues:   make(map[string][]*Queue),
		capacity: DefaultQueueCapacity,
	}
	for _, option := range options {
		option(manager)
	}
	return manager
}

// Connect registers a new delivery queue for an identity and returns its
// handle. Every open tab/device calls Connect once.
func (manager *Manager) Connect(identityID string) *Queue {
	queue := newQueue(manager.capacity)

	manager.mu.Lock()
	defer manager.mu.Unlock()
	manager.queues[identityID] = append(manager.queues[identityID], queue)

	return queue
}

// Disconnect removes a queue from an identity, dropping the identity's map
// entry entirely once no queues remain. Unknown handles are a no-op.
func (manager *Manager) Disconnect(identityID string, queue *Queue) {
	manager.mu.Lock()
	defer manager.mu.Unlock()

	remaining := manager.queues[identityID][:0:0]
	for _, candidate := range manager.queues[identityID] {
		if candidate != queue {
			remaining = append(remaining, candidate)
		}
	}

	if len(remaining) == 0 {
		delete(manager.queues, identityID)
		return
	}
	manager.queues[identityID] = remaining
}

/*
Send enqueues a message on every queue of one identity.

Returns:
  - bool: true if at least one queue received it; false for offline
    identities — an expected outcome, not an error.
*/
func (manager *Manager) Send(identityID string, message any) bool {
	manager.mu.Lock()
	targets := append([]*Queue(nil), manager.queues[identityID]...)
	manager.mu.Unlock()

	for _, queue := range targets {
		queue.enqueue(message)
	}
	return len(targets) > 0
}

/*
Broadcast enqueues a message on every connected queue of every identity.

Returns:
  - int: Number of queues reached; 0 when nobody is connected.
*/
func (manager *Manager) Broadcast(message any) int {
	manager.mu.Lock()
	targets := make([]*Queue, 0)
	for _, identityQueues := range manager.queues {
		targets = append(targets, identityQueues...)
	}
	manager.mu.Unlock()

	for _, queue := range targets {
		queue.enqueue(message)
	}
	return len(targets)
}

// ConnectionCount reports how many queues an identity currently holds.
func (manager *Manager) ConnectionCount(identityID string) int {
	manager.mu.Lock()
	defer manager.mu.Unlock()
	return len(manager.queues[identityID])
}
