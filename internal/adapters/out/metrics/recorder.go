// Package metrics exposes dispatch counters to Prometheus.
package metrics

import (
	"errors"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "courierhub"

// Recorder implements ports.DispatchMetrics.
type Recorder struct {
	acceptOutcomes      *prometheus.CounterVec
	broadcasts          *prometheus.CounterVec
	broadcastRecipients *prometheus.HistogramVec
	escalations         *prometheus.CounterVec
	timeouts            prometheus.Counter
	storageRetries      *prometheus.CounterVec
	notificationErrors  *prometheus.CounterVec
	pendingOrders       prometheus.Gauge
	aggregateWrites     *prometheus.CounterVec
}

// NewRecorder registers the collectors on reg, or on the default registerer
// when reg is nil. Collectors that are already registered are reused.
func NewRecorder(reg prometheus.Registerer) (*Recorder, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	r := &Recorder{
		acceptOutcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "accept_outcomes_total",
			Help:      "Accept requests by arbiter outcome.",
		}, []string{"outcome"}),
		broadcasts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "broadcasts_total",
			Help:      "Dispatch attempts broadcast, by tier.",
		}, []string{"tier"}),
		broadcastRecipients: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "broadcast_recipients",
			Help:      "Couriers offered an order per attempt.",
			Buckets:   []float64{0, 1, 2, 5, 10, 20, 50},
		}, []string{"tier"}),
		escalations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "escalations_total",
			Help:      "Attempts escalated to a wider tier, by target tier.",
		}, []string{"tier"}),
		timeouts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "orders_timed_out_total",
			Help:      "Orders cancelled because no courier accepted.",
		}),
		storageRetries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "storage_retries_total",
			Help:      "Retries caused by storage contention, by operation.",
		}, []string{"operation"}),
		notificationErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notification_failures_total",
			Help:      "Notifications that could not be delivered, by event type.",
		}, []string{"type"}),
		pendingOrders: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pending_orders",
			Help:      "Orders waiting for a courier.",
		}),
		aggregateWrites: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "aggregate_writes_total",
			Help:      "Aggregates written by committed transactions, by kind.",
		}, []string{"aggregate"}),
	}

	var err error
	if r.acceptOutcomes, err = register(reg, r.acceptOutcomes); err != nil {
		return nil, err
	}
	if r.broadcasts, err = register(reg, r.broadcasts); err != nil {
		return nil, err
	}
	if r.broadcastRecipients, err = register(reg, r.broadcastRecipients); err != nil {
		return nil, err
	}
	if r.escalations, err = register(reg, r.escalations); err != nil {
		return nil, err
	}
	if r.timeouts, err = register(reg, r.timeouts); err != nil {
		return nil, err
	}
	if r.storageRetries, err = register(reg, r.storageRetries); err != nil {
		return nil, err
	}
	if r.notificationErrors, err = register(reg, r.notificationErrors); err != nil {
		return nil, err
	}
	if r.pendingOrders, err = register(reg, r.pendingOrders); err != nil {
		return nil, err
	}
	if r.aggregateWrites, err = register(reg, r.aggregateWrites); err != nil {
		return nil, err
	}
	return r, nil
}

func register[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing, nil
			}
		}
		return c, err
	}
	return c, nil
}

func (r *Recorder) AcceptOutcome(outcome string) {
	r.acceptOutcomes.WithLabelValues(outcome).Inc()
}

func (r *Recorder) Broadcast(tier int, recipients int) {
	label := strconv.Itoa(tier)
	r.broadcasts.WithLabelValues(label).Inc()
	r.broadcastRecipients.WithLabelValues(label).Observe(float64(recipients))
}

func (r *Recorder) Escalated(tier int) {
	r.escalations.WithLabelValues(strconv.Itoa(tier)).Inc()
}

func (r *Recorder) TimedOut() {
	r.timeouts.Inc()
}

func (r *Recorder) StorageRetry(operation string) {
	r.storageRetries.WithLabelValues(operation).Inc()
}

func (r *Recorder) NotificationFailed(eventType string) {
	r.notificationErrors.WithLabelValues(eventType).Inc()
}

func (r *Recorder) PendingOrders(n int64) {
	r.pendingOrders.Set(float64(n))
}

func (r *Recorder) AggregateWritten(kind string) {
	r.aggregateWrites.WithLabelValues(kind).Inc()
}
