// Package service implements the reservation workflows on top of the
// repositories.  Every exported operation returns a *Error (or nil) so
// handlers can map failures onto HTTP status codes.  Notifications are
// emitted after the owning transaction commits and never fail the
// operation.
package service

import (
	"context"
	"database/sql"
	"errors"
	"slices"
	"time"

	"github.com/rs/zerolog"

	"github.com/iliyamo/fablab-reservation/internal/metrics"
	"github.com/iliyamo/fablab-reservation/internal/model"
	"github.com/iliyamo/fablab-reservation/internal/notify"
	"github.com/iliyamo/fablab-reservation/internal/repository"
)

// Actor is the authenticated caller of an operation.
type Actor struct {
	AccountID uint64
	Role      model.Role
	Name      string
}

// Is reports whether the actor holds one of roles.
func (a Actor) Is(roles ...model.Role) bool { return slices.Contains(roles, a.Role) }

func requireRole(a Actor, roles ...model.Role) error {
	if a.AccountID == 0 {
		return newErr(KindUnauthorized, "authentication required")
	}
	if !a.Is(roles...) {
		return Forbidden("role " + string(a.Role) + " may not perform this action")
	}
	return nil
}

// requireOwnerOr allows the owner of a reservation and any of roles.
func requireOwnerOr(a Actor, ownerID uint64, roles ...model.Role) error {
	if a.AccountID == 0 {
		return newErr(KindUnauthorized, "authentication required")
	}
	if a.AccountID == ownerID || a.Is(roles...) {
		return nil
	}
	return Forbidden("not the owner of this reservation")
}

// dispatcher wraps the notifier shared by the reservation services.
type dispatcher struct {
	notifier notify.Notifier
	log      zerolog.Logger
}

func (d dispatcher) send(ctx context.Context, ev notify.Event) {
	if d.notifier == nil {
		return
	}
	if ev.RecipientEmail == "" {
		d.log.Warn().Str("kind", string(ev.Kind)).Uint64("reservation_id", ev.ReservationID).
			Msg("notification skipped: no recipient")
		return
	}
	d.notifier.Notify(ctx, ev)
}

func transitioned(family model.Family, to string) {
	metrics.IncTransition(string(family), to)
}

func strp(s string) *string { return &s }

func timep(t time.Time) *time.Time { return &t }

func utcNow() time.Time { return time.Now().UTC().Truncate(time.Second) }

// missing reports whether err means the row does not exist.
func missing(err error) bool {
	return errors.Is(err, sql.ErrNoRows) || errors.Is(err, repository.ErrNotFound)
}
