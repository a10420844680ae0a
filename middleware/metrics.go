package middleware

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/roach88/thunk/store"
)

// Metrics holds the Prometheus collectors used by Instrument.
//
// Collectors:
//   - thunk_dispatch_total (counter): dispatches by kind, action_type and
//     status ("ok" or "error"); action_type is empty unless kind is "record"
//   - thunk_dispatch_duration_seconds (histogram): dispatch latency by kind
type Metrics struct {
	Dispatches *prometheus.CounterVec
	Duration   *prometheus.HistogramVec
}

// NewMetrics creates the collectors and registers them with reg. A nil reg
// leaves them unregistered.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		Dispatches: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "thunk_dispatch_total",
				Help: "Total number of dispatched values by kind, action type and status.",
			},
			[]string{"kind", "action_type", "status"},
		),
		Duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "thunk_dispatch_duration_seconds",
				Help:    "Duration of dispatch calls in seconds.",
				Buckets: prometheus.ExponentialBuckets(0.00001, 4, 10),
			},
			[]string{"kind"},
		),
	}

	if reg == nil {
		return m, nil
	}
	for _, c := range []prometheus.Collector{m.Dispatches, m.Duration} {
		if err := reg.Register(c); err != nil {
			return nil, fmt.Errorf("register dispatch metrics: %w", err)
		}
	}
	return m, nil
}

// Instrument returns middleware that records m for every dispatch.
func Instrument[S any](m *Metrics) store.Middleware[S] {
	return func(api store.API[S]) func(next store.Dispatch) store.Dispatch {
		return func(next store.Dispatch) store.Dispatch {
			return func(action any) (any, error) {
				kind, actionType := kindOf(action)

				start := time.Now()
				result, err := next(action)
				elapsed := time.Since(start).Seconds()

				status := "ok"
				if err != nil {
					status = "error"
				}
				m.Dispatches.WithLabelValues(kind, actionType, status).Inc()
				m.Duration.WithLabelValues(kind).Observe(elapsed)

				return result, err
			}
		}
	}
}
