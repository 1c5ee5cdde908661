// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package snapshot

import (
	"log/slog"
	"sync"

	"github.com/sigil-dev/sieve/internal/graph"
	sieveerr "github.com/sigil-dev/sieve/pkg/errors"
)

// Observer receives notifications synchronously, in publish order.
type Observer interface {
	Notify(Notification)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(Notification)

func (f ObserverFunc) Notify(n Notification) { f(n) }

// Holder serializes publishes and hands out the current snapshot. Queries
// that already hold a snapshot keep using it after a newer one is published.
type Holder struct {
	mu        sync.RWMutex
	state     State
	observers []Observer
	subs      map[int]chan Notification
	nextSub   int
	closed    bool
	logger    *slog.Logger
}

type HolderOption func(*Holder)

func WithLogger(l *slog.Logger) HolderOption {
	return func(h *Holder) {
		if l != nil {
			h.logger = l
		}
	}
}

func NewHolder(opts ...HolderOption) *Holder {
	h := &Holder{subs: map[int]chan Notification{}, logger: slog.Default()}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Current returns the current snapshot of branch.
func (h *Holder) Current(branch string) (*graph.Snapshot, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	snap, ok := h.state.Current(branch)
	if !ok {
		return nil, sieveerr.New(sieveerr.CodeSnapshotCurrentNotFound, "no snapshot published for branch",
			sieveerr.FieldBranch(branch))
	}
	return snap, nil
}

func (h *Holder) State() State {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.state
}

// Publish applies the transition and delivers its notifications before
// returning. Observers run under the publish lock and must not publish.
func (h *Holder) Publish(next *graph.Snapshot) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	state, notes, err := Publish(h.state, next)
	if err != nil {
		return err
	}
	h.state = state

	for _, n := range notes {
		h.logger.Info("snapshot notification",
			slog.String("kind", string(n.Kind)),
			slog.String("branch", n.Ref.Branch),
			slog.Int64("version", n.Ref.Version))
		for _, o := range h.observers {
			o.Notify(n)
		}
		for id, ch := range h.subs {
			select {
			case ch <- n:
			default:
				h.logger.Warn("dropping snapshot notification for slow subscriber", slog.Int("subscriber", id))
			}
		}
	}
	return nil
}

func (h *Holder) AddObserver(o Observer) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.observers = append(h.observers, o)
}

// Subscribe returns a buffered channel of notifications and a cancel func
// that closes it. A full channel drops notifications rather than blocking
// publishers.
func (h *Holder) Subscribe(buffer int) (<-chan Notification, func()) {
	if buffer < 1 {
		buffer = 1
	}
	ch := make(chan Notification, buffer)

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		close(ch)
		return ch, func() {}
	}
	id := h.nextSub
	h.nextSub++
	h.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			defer h.mu.Unlock()
			if c, ok := h.subs[id]; ok {
				delete(h.subs, id)
				close(c)
			}
		})
	}
}

// Close ends every subscription.
func (h *Holder) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for id, ch := range h.subs {
		delete(h.subs, id)
		close(ch)
	}
}
