package replication

import (
	"context"
	"errors"
	"sync"

	"github.com/yukikurage/task-planner/internal/models"
)

var ErrClosed = errors.New("broadcaster closed")

const subscriberBuffer = 16

// LocalHub is an in-process Broadcaster. It serves single-node deployments
// and tests.
type LocalHub struct {
	mu     sync.Mutex
	subs   map[int]chan Message
	nextID int
	closed bool
	done   chan struct{}
}

func NewLocalHub() *LocalHub {
	return &LocalHub{
		subs: make(map[int]chan Message),
		done: make(chan struct{}),
	}
}

// Publish delivers msg to every subscriber, waiting for buffer space.
func (h *LocalHub) Publish(ctx context.Context, msg Message) error {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return ErrClosed
	}
	targets := make([]chan Message, 0, len(h.subs))
	for _, ch := range h.subs {
		targets = append(targets, ch)
	}
	h.mu.Unlock()

	for _, ch := range targets {
		select {
		case ch <- copyMessage(msg):
		case <-h.done:
			return ErrClosed
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

func (h *LocalHub) Subscribe(ctx context.Context, handle func(Message)) error {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return ErrClosed
	}
	id := h.nextID
	h.nextID++
	ch := make(chan Message, subscriberBuffer)
	h.subs[id] = ch
	h.mu.Unlock()

	defer func() {
		h.mu.Lock()
		delete(h.subs, id)
		h.mu.Unlock()
	}()

	for {
		select {
		case msg := <-ch:
			handle(msg)
		case <-h.done:
			return ErrClosed
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Subscribers returns how many subscriptions are active.
func (h *LocalHub) Subscribers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

func (h *LocalHub) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.closed {
		h.closed = true
		close(h.done)
	}
	return nil
}

// copyMessage gives each subscriber its own tasks so no two instances share
// mutable state.
func copyMessage(msg Message) Message {
	tasks := make([]models.Task, len(msg.Tasks))
	for i := range msg.Tasks {
		tasks[i] = msg.Tasks[i].Clone()
	}
	msg.Tasks = tasks
	return msg
}
