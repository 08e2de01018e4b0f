package monitoring

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMonitor_TrackSignupOperation(t *testing.T) {
	m := NewMonitor()
	c := signupOperations.WithLabelValues("signup", "metrics-e1", "success")
	before := testutil.ToFloat64(c)

	m.TrackSignupOperation("signup", "metrics-e1", "success")
	m.TrackSignupOperation("signup", "metrics-e1", "success")

	assert.Equal(t, before+2, testutil.ToFloat64(c))
}

func TestMonitor_CounterDrift(t *testing.T) {
	m := NewMonitor()

	m.TrackCounterDrift("metrics-e2")
	assert.Equal(t, float64(1), testutil.ToFloat64(counterDriftEvents.WithLabelValues("metrics-e2")))

	m.SetCounterDrift("metrics-e2", "t1", -1)
	assert.Equal(t, float64(-1), testutil.ToFloat64(counterDrift.WithLabelValues("metrics-e2", "t1")))

	m.ForgetEvent("metrics-e2")
	m.SetCounterDrift("metrics-e2", "t1", 0)
	assert.Equal(t, float64(0), testutil.ToFloat64(counterDrift.WithLabelValues("metrics-e2", "t1")))
}

func TestMonitor_Subscriptions(t *testing.T) {
	m := NewMonitor()
	g := activeSubscriptions.WithLabelValues("metrics_child")
	before := testutil.ToFloat64(g)

	m.SubscriptionOpened("metrics_child")
	m.SubscriptionOpened("metrics_child")
	m.SubscriptionClosed("metrics_child")

	assert.Equal(t, before+1, testutil.ToFloat64(g))
}

func TestMonitor_NilIsNoop(t *testing.T) {
	var m *Monitor
	assert.NotPanics(t, func() {
		m.TrackSignupOperation("signup", "e", "success")
		m.ObserveSignupDuration("signup", time.Millisecond)
		m.TrackCounterDrift("e")
		m.SetCounterDrift("e", "t", 1)
		m.ForgetEvent("e")
		m.TrackTxRetry()
		m.SubscriptionOpened("k")
		m.SubscriptionClosed("k")
		m.SetActiveBoards(1)
		m.TrackNotification("sent")
	})
}
