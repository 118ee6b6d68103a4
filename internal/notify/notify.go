// Package notify fan-outs domain events to in-process subscribers. Handlers
// publish after a state change; listeners (SSE clients, the audit trail, a
// future mail sender) subscribe per organization.
package notify

import (
	"context"
	"sync"
	"time"
)

// Event names.
const (
	EventLeaveSubmitted  = "leave.submitted"
	EventLeaveDecided    = "leave.decided"
	EventExpenseDecided  = "expense.decided"
	EventTaskAssigned    = "task.assigned"
	EventUserInvited     = "user.invited"
	EventUserActivated   = "user.activated"
	EventRequestAdvanced = "request.advanced"
)

// Notification is one domain event.
type Notification struct {
	Event          string    `json:"event"`
	OrganizationID string    `json:"organization_id"`
	SubjectID      string    `json:"subject_id,omitempty"`
	ActorID        string    `json:"actor_id,omitempty"`
	Message        string    `json:"message,omitempty"`
	Timestamp      time.Time `json:"timestamp"`
}

type subscriber struct {
	orgID string
	ch    chan Notification
}

// Dispatcher fan-outs notifications to all active subscribers.
type Dispatcher struct {
	mu   sync.RWMutex
	subs map[int]subscriber
	next int
	now  func() time.Time
}

// NewDispatcher initialises an empty dispatcher.
func NewDispatcher() *Dispatcher {
	return &Dispatcher{
		subs: make(map[int]subscriber),
		now:  time.Now,
	}
}

// Subscribe registers a subscriber for one organization's events and returns
// a channel which will receive them. The channel is closed when the provided
// context ends.
func (d *Dispatcher) Subscribe(ctx context.Context, orgID string) <-chan Notification {
	ch := make(chan Notification, 16)

	d.mu.Lock()
	id := d.next
	d.next++
	d.subs[id] = subscriber{orgID: orgID, ch: ch}
	d.mu.Unlock()

	go func() {
		<-ctx.Done()
		d.mu.Lock()
		delete(d.subs, id)
		close(ch)
		d.mu.Unlock()
	}()

	return ch
}

// Publish delivers the notification to every subscriber of its organization.
// Delivery is best-effort: the caller's state change already happened, so a
// slow subscriber is skipped rather than blocked on.
func (d *Dispatcher) Publish(n Notification) {
	if n.Timestamp.IsZero() {
		n.Timestamp = d.now().UTC()
	}
	d.mu.RLock()
	defer d.mu.RUnlock()
	for _, sub := range d.subs {
		if sub.orgID != n.OrganizationID {
			continue
		}
		select {
		case sub.ch <- n:
		default:
			// Drop when subscriber is slow to avoid blocking.
		}
	}
}
