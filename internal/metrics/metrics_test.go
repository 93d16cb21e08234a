package metrics

import (
    "testing"

    "github.com/prometheus/client_golang/prometheus/testutil"
    "github.com/stretchr/testify/assert"
)

func TestCounters(t *testing.T) {
    Register()
    Register()

    before := testutil.ToFloat64(reservationTransition.WithLabelValues("utilization", "Approved"))
    IncTransition("utilization", "Approved")
    assert.Equal(t, before+1, testutil.ToFloat64(reservationTransition.WithLabelValues("utilization", "Approved")))

    before = testutil.ToFloat64(identityDeleteFailures)
    IncIdentityDeleteFailure()
    assert.Equal(t, before+1, testutil.ToFloat64(identityDeleteFailures))

    IncNotificationFailure("approved")
    IncReservationCreated("evc")
    assert.GreaterOrEqual(t, testutil.ToFloat64(notificationFailures.WithLabelValues("approved")), 1.0)
    assert.GreaterOrEqual(t, testutil.ToFloat64(reservationCreated.WithLabelValues("evc")), 1.0)
}
