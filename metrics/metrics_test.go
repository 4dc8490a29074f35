package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestCounters(t *testing.T) {
	Register()
	Register()

	before := testutil.ToFloat64(reservationsCreated.WithLabelValues("room"))
	IncReservationCreated("room")
	assert.Equal(t, before+1, testutil.ToFloat64(reservationsCreated.WithLabelValues("room")))

	IncReservationCancelled(true)
	assert.GreaterOrEqual(t, testutil.ToFloat64(reservationsCancelled.WithLabelValues("true")), 1.0)

	p := testutil.ToFloat64(pointsPosted.WithLabelValues("booking"))
	AddPointsPosted("booking", 15)
	AddPointsPosted("booking", -20)
	assert.Equal(t, p+15, testutil.ToFloat64(pointsPosted.WithLabelValues("booking")))

	e := testutil.ToFloat64(entriesExpired)
	ObserveSweep(3, 10*time.Millisecond)
	assert.Equal(t, e+3, testutil.ToFloat64(entriesExpired))
}
