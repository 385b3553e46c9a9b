package services

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
)

const subscriptionBuffer = 64

// StreamEvent is a NotificationEvent stamped with the hub's sequence number,
// which dashboards see as the SSE event id.
type StreamEvent struct {
	Seq uint64 `json:"seq"`
	NotificationEvent
}

// Subscription is one connected dashboard.
type Subscription struct {
	ID       string
	TenantID uint
	Events   <-chan StreamEvent

	ch      chan StreamEvent
	dropped atomic.Int64
}

// Dropped counts events this subscriber missed because it fell behind.
func (s *Subscription) Dropped() int64 { return s.dropped.Load() }

// SSEHub fans notification events out to dashboards connected to this
// instance. A subscriber only ever sees its own tenant's events.
type SSEHub struct {
	mu       sync.RWMutex
	byTenant map[uint]map[string]*Subscription
	seq      atomic.Uint64
	closed   bool
}

func NewSSEHub() *SSEHub {
	return &SSEHub{byTenant: make(map[uint]map[string]*Subscription)}
}

func (h *SSEHub) Subscribe(tenantID uint) *Subscription {
	ch := make(chan StreamEvent, subscriptionBuffer)
	sub := &Subscription{ID: uuid.NewString(), TenantID: tenantID, Events: ch, ch: ch}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		close(ch)
		return sub
	}
	if h.byTenant[tenantID] == nil {
		h.byTenant[tenantID] = make(map[string]*Subscription)
	}
	h.byTenant[tenantID][sub.ID] = sub
	return sub
}

// Unsubscribe closes the subscription's channel. It is safe to call twice.
func (h *SSEHub) Unsubscribe(sub *Subscription) {
	h.mu.Lock()
	defer h.mu.Unlock()

	subs := h.byTenant[sub.TenantID]
	if _, ok := subs[sub.ID]; !ok {
		return
	}
	delete(subs, sub.ID)
	close(sub.ch)
	if len(subs) == 0 {
		delete(h.byTenant, sub.TenantID)
	}
}

// Publish never blocks: a subscriber with a full buffer misses the event and
// its drop counter goes up.
func (h *SSEHub) Publish(event NotificationEvent) uint64 {
	seq := h.seq.Add(1)
	out := StreamEvent{Seq: seq, NotificationEvent: event}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, sub := range h.byTenant[event.TenantID] {
		select {
		case sub.ch <- out:
		default:
			sub.dropped.Add(1)
		}
	}
	return seq
}

// Notify lets the hub sit next to the chat bots in a MultiNotifier.
func (h *SSEHub) Notify(_ context.Context, event *NotificationEvent) error {
	if event != nil {
		h.Publish(*event)
	}
	return nil
}

func (h *SSEHub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	n := 0
	for _, subs := range h.byTenant {
		n += len(subs)
	}
	return n
}

// Close disconnects every dashboard; streams see their channel close and end.
func (h *SSEHub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	for tenantID, subs := range h.byTenant {
		for _, sub := range subs {
			close(sub.ch)
		}
		delete(h.byTenant, tenantID)
	}
}

// MultiNotifier delivers to every notifier and joins their errors.
type MultiNotifier []Notifier

func (m MultiNotifier) Notify(ctx context.Context, event *NotificationEvent) error {
	var errs []error
	for _, n := range m {
		if err := n.Notify(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
