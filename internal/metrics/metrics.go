package metrics

import (
    "sync"

    "github.com/prometheus/client_golang/prometheus"
)

var (
    once sync.Once

    reservationCreated = prometheus.NewCounterVec(
        prometheus.CounterOpts{
            Namespace: "fablab",
            Name:      "reservation_created_total",
            Help:      "Count of reservations created by family.",
        },
        []string{"family"},
    )

    reservationTransition = prometheus.NewCounterVec(
        prometheus.CounterOpts{
            Namespace: "fablab",
            Name:      "reservation_transition_total",
            Help:      "Count of reservation status transitions by family and target status.",
        },
        []string{"family", "to"},
    )

    notificationFailures = prometheus.NewCounterVec(
        prometheus.CounterOpts{
            Namespace: "fablab",
            Name:      "notification_failures_total",
            Help:      "Count of notifications that could not be published or delivered.",
        },
        []string{"kind"},
    )

    identityDeleteFailures = prometheus.NewCounter(
        prometheus.CounterOpts{
            Namespace: "fablab",
            Name:      "identity_delete_failures_total",
            Help:      "Count of identity provider deletions that failed after a local account delete.",
        },
    )
)

// Register registers metrics (idempotent).
func Register() {
    once.Do(func() {
        prometheus.MustRegister(reservationCreated, reservationTransition, notificationFailures, identityDeleteFailures)
    })
}

func IncReservationCreated(family string) {
    reservationCreated.WithLabelValues(family).Inc()
}

func IncTransition(family, to string) {
    reservationTransition.WithLabelValues(family, to).Inc()
}

func IncNotificationFailure(kind string) {
    notificationFailures.WithLabelValues(kind).Inc()
}

func IncIdentityDeleteFailure() {
    identityDeleteFailures.Inc()
}

// NotificationFailureCounter exposes the per-kind counter for assertions.
func NotificationFailureCounter(kind string) prometheus.Counter {
    return notificationFailures.WithLabelValues(kind)
}

// IdentityDeleteFailureCounter exposes the identity deletion counter.
func IdentityDeleteFailureCounter() prometheus.Counter {
    return identityDeleteFailures
}
