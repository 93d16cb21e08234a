package notify

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/iliyamo/fablab-reservation/internal/metrics"
	"github.com/iliyamo/fablab-reservation/internal/queue"
)

// Direct delivers events in-process on a background goroutine.  It is
// used when no broker is configured.
type Direct struct {
	h   queue.Handler
	log zerolog.Logger
	wg  sync.WaitGroup
}

func NewDirect(h queue.Handler, logger zerolog.Logger) *Direct {
	return &Direct{h: h, log: logger}
}

// Notify starts delivery and returns immediately.
func (d *Direct) Notify(ctx context.Context, ev Event) {
	ev = NewEvent(ev)
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 30*time.Second)
		defer cancel()
		if err := d.h.Deliver(ctx, ev); err != nil {
			metrics.IncNotificationFailure(string(ev.Kind))
			d.log.Error().Err(err).
				Str("event_id", ev.ID).
				Str("kind", string(ev.Kind)).
				Uint64("reservation_id", ev.ReservationID).
				Msg("notification delivery failed")
		}
	}()
}

// Wait blocks until every started delivery has finished.
func (d *Direct) Wait() { d.wg.Wait() }
