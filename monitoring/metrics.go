package monitoring

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"volunteer-hub/internal/lib/logger/sl"
)

var (
	signupOperations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "signup_operations_total",
			Help: "Total signup ledger operations",
		},
		[]string{"operation", "event_id", "status"},
	)

	signupDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "signup_transaction_duration_seconds",
			Help:    "Duration of signup ledger transactions including retries",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12),
		},
		[]string{"operation"},
	)

	counterDriftEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "signup_counter_drift_total",
			Help: "Cancellations that found filledCount already at zero",
		},
		[]string{"event_id"},
	)

	counterDrift = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "signup_counter_drift",
			Help: "filledCount minus the number of signup documents, as last audited",
		},
		[]string{"event_id", "task_id"},
	)

	txRetries = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "docstore_transaction_retries_total",
			Help: "Transaction attempts re-run after a conflicting write",
		},
	)

	activeSubscriptions = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "live_subscriptions_active",
			Help: "Open live store subscriptions",
		},
		[]string{"kind"},
	)

	activeBoards = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "task_boards_active",
			Help: "Task boards currently holding live subscriptions",
		},
	)

	notificationsSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "task_notifications_total",
			Help: "Task update notifications by outcome",
		},
		[]string{"status"},
	)
)

// Monitor records service metrics. A nil *Monitor is valid and records
// nothing, which keeps wiring optional in tests.
type Monitor struct{}

func NewMonitor() *Monitor {
	return &Monitor{}
}

// Track signup ledger operations
func (m *Monitor) TrackSignupOperation(operation, eventID, status string) {
	if m == nil {
		return
	}
	signupOperations.WithLabelValues(operation, eventID, status).Inc()
}

func (m *Monitor) ObserveSignupDuration(operation string, d time.Duration) {
	if m == nil {
		return
	}
	signupDuration.WithLabelValues(operation).Observe(d.Seconds())
}

func (m *Monitor) TrackCounterDrift(eventID string) {
	if m == nil {
		return
	}
	counterDriftEvents.WithLabelValues(eventID).Inc()
}

func (m *Monitor) SetCounterDrift(eventID, taskID string, drift int) {
	if m == nil {
		return
	}
	counterDrift.WithLabelValues(eventID, taskID).Set(float64(drift))
}

// ForgetEvent drops per-task drift series of a deleted event.
func (m *Monitor) ForgetEvent(eventID string) {
	if m == nil {
		return
	}
	counterDrift.DeletePartialMatch(prometheus.Labels{"event_id": eventID})
}

func (m *Monitor) TrackTxRetry() {
	if m == nil {
		return
	}
	txRetries.Inc()
}

func (m *Monitor) SubscriptionOpened(kind string) {
	if m == nil {
		return
	}
	activeSubscriptions.WithLabelValues(kind).Inc()
}

func (m *Monitor) SubscriptionClosed(kind string) {
	if m == nil {
		return
	}
	activeSubscriptions.WithLabelValues(kind).Dec()
}

func (m *Monitor) SetActiveBoards(n int) {
	if m == nil {
		return
	}
	activeBoards.Set(float64(n))
}

func (m *Monitor) TrackNotification(status string) {
	if m == nil {
		return
	}
	notificationsSent.WithLabelValues(status).Inc()
}

// Serve exposes /metrics on port until ctx is cancelled.
func Serve(ctx context.Context, port string, log *slog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.Info("metrics server listening", slog.String("port", port))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Error("metrics server stopped", sl.Err(err))
	}
}
