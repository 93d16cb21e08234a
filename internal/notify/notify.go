// Package notify turns reservation lifecycle transitions into emails.
// Notifiers never report failure to the caller: a transition that has
// committed stays committed whatever happens to its email.
package notify

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/iliyamo/fablab-reservation/internal/queue"
)

// Event is the notification payload shared with the queue consumer.
type Event = queue.NotificationEvent

// Notifier accepts events for delivery.
type Notifier interface {
	Notify(ctx context.Context, ev Event)
}

// NewEvent stamps a fresh id and time on ev.
func NewEvent(ev Event) Event {
	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}
	if ev.OccurredAt.IsZero() {
		ev.OccurredAt = time.Now().UTC()
	}
	return ev
}

// Nop discards every event.
type Nop struct{}

func (Nop) Notify(context.Context, Event) {}
