package events

import (
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
)

const listenerBuffer = 64

// Hub fans out published values to subscribed listeners.
// Each listener receives values in publish order on its own goroutine.
type Hub[T any] struct {
	name      string
	listeners map[*listener[T]]bool
	mu        sync.RWMutex
	logger    *slog.Logger
	nextID    atomic.Uint64

	register   chan *listener[T]
	unregister chan *listener[T]
	broadcast  chan T
	done       chan struct{}
	closeOnce  sync.Once
}

type listener[T any] struct {
	id   uint64
	send chan T
	fn   func(T)
}

// NewHub creates a hub. Run must be started before Subscribe or Publish are used.
func NewHub[T any](name string, logger *slog.Logger) *Hub[T] {
	return &Hub[T]{
		name:       name,
		listeners:  make(map[*listener[T]]bool),
		logger:     logger.With(slog.String("hub", name)),
		register:   make(chan *listener[T]),
		unregister: make(chan *listener[T]),
		broadcast:  make(chan T, 256),
		done:       make(chan struct{}),
	}
}

// Run starts the hub's event loop
func (h *Hub[T]) Run() {
	h.logger.Debug("event hub started")
	for {
		select {
		case l := <-h.register:
			h.mu.Lock()
			h.listeners[l] = true
			count := len(h.listeners)
			h.mu.Unlock()
			h.logger.Debug("listener registered",
				slog.Uint64("listener_id", l.id),
				slog.Int("total_listeners", count))

		case l := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.listeners[l]; ok {
				delete(h.listeners, l)
				close(l.send)
				count := len(h.listeners)
				h.mu.Unlock()
				h.logger.Debug("listener unregistered",
					slog.Uint64("listener_id", l.id),
					slog.Int("total_listeners", count))
			} else {
				h.mu.Unlock()
			}

		case value := <-h.broadcast:
			h.mu.RLock()
			dropped := 0
			for l := range h.listeners {
				select {
				case l.send <- value:
				default:
					dropped++
					h.logger.Warn("event dropped - listener buffer full",
						slog.Uint64("listener_id", l.id))
				}
			}
			h.mu.RUnlock()
			if dropped > 0 {
				h.logger.Warn("event broadcast partial failure", slog.Int("dropped", dropped))
			}

		case <-h.done:
			h.mu.Lock()
			count := len(h.listeners)
			for l := range h.listeners {
				close(l.send)
				delete(h.listeners, l)
			}
			h.mu.Unlock()
			h.logger.Debug("event hub stopped", slog.Int("disconnected_listeners", count))
			return
		}
	}
}

// Subscribe registers fn to receive every value published from now on.
// Subscribing to a closed hub returns an inert subscription.
func (h *Hub[T]) Subscribe(fn func(T)) *Subscription {
	l := &listener[T]{
		id:   h.nextID.Add(1),
		send: make(chan T, listenerBuffer),
		fn:   fn,
	}

	select {
	case h.register <- l:
	case <-h.done:
		return &Subscription{}
	}

	go h.drain(l)

	return &Subscription{cancel: func() {
		select {
		case h.unregister <- l:
		case <-h.done:
		}
	}}
}

func (h *Hub[T]) drain(l *listener[T]) {
	for value := range l.send {
		h.deliver(l, value)
	}
}

func (h *Hub[T]) deliver(l *listener[T], value T) {
	defer func() {
		if r := recover(); r != nil {
			h.logger.Error("listener panicked",
				slog.Uint64("listener_id", l.id),
				slog.String("panic", fmt.Sprint(r)))
		}
	}()
	l.fn(value)
}

// Publish sends a value to all listeners without blocking
func (h *Hub[T]) Publish(value T) {
	select {
	case <-h.done:
		return
	default:
	}

	select {
	case h.broadcast <- value:
	default:
		h.logger.Warn("event publish dropped - hub buffer full")
	}
}

// Close stops the hub and releases every listener
func (h *Hub[T]) Close() {
	h.closeOnce.Do(func() {
		close(h.done)
	})
}

// ListenerCount returns the number of registered listeners
func (h *Hub[T]) ListenerCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.listeners)
}

// Subscription is a handle on a registered listener
type Subscription struct {
	once   sync.Once
	cancel func()
}

// Unsubscribe stops delivery to the listener. Safe to call more than once,
// including from inside the listener itself.
func (s *Subscription) Unsubscribe() {
	s.once.Do(func() {
		if s.cancel != nil {
			s.cancel()
		}
	})
}
