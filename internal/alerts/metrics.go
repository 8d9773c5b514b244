package alerts

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds Prometheus metrics for the alert lifecycle.
type Metrics struct {
	ObservationsTotal *prometheus.CounterVec
	TriggeredTotal    *prometheus.CounterVec
	NotifyTotal       *prometheus.CounterVec
	NotifyDuration    prometheus.Histogram
	PersistTotal      *prometheus.CounterVec
	PersistDuration   prometheus.Histogram
	ActiveAlerts      prometheus.Gauge
	UnreadTriggered   prometheus.Gauge
}

// NewMetrics registers and returns alert metrics on the given registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		ObservationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "coinwatch_price_observations_total",
			Help: "Price snapshots handed to the alert service, by result.",
		}, []string{"result"}),
		TriggeredTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "coinwatch_alerts_triggered_total",
			Help: "Alerts that fired, by coin and direction.",
		}, []string{"coin", "direction"}),
		NotifyTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "coinwatch_notifications_total",
			Help: "Notification dispatch attempts by status.",
		}, []string{"status"}),
		NotifyDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "coinwatch_notification_duration_seconds",
			Help:    "Duration of notification dispatches in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.005, 2, 10), // 5ms .. ~2.5s
		}),
		PersistTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "coinwatch_state_persist_total",
			Help: "Alert state writes to the kv backend, by status.",
		}, []string{"status"}),
		PersistDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "coinwatch_state_persist_duration_seconds",
			Help:    "Duration of alert state writes in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 10), // 1ms .. ~512ms
		}),
		ActiveAlerts: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "coinwatch_active_alerts",
			Help: "Number of active price alerts.",
		}),
		UnreadTriggered: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "coinwatch_triggered_unread",
			Help: "Number of unread triggered alerts.",
		}),
	}

	reg.MustRegister(
		m.ObservationsTotal,
		m.TriggeredTotal,
		m.NotifyTotal,
		m.NotifyDuration,
		m.PersistTotal,
		m.PersistDuration,
		m.ActiveAlerts,
		m.UnreadTriggered,
	)

	return m
}

// Hooks returns ServiceHooks that update the corresponding metrics.
func (m *Metrics) Hooks() ServiceHooks {
	return ServiceHooks{
		OnObserve: func(result string) {
			m.ObservationsTotal.WithLabelValues(result).Inc()
		},
		OnTriggered: func(t TriggeredAlert) {
			m.TriggeredTotal.WithLabelValues(t.CoinID, string(t.Direction)).Inc()
		},
		OnNotify: func(err error, duration time.Duration) {
			m.NotifyTotal.WithLabelValues(status(err)).Inc()
			m.NotifyDuration.Observe(duration.Seconds())
		},
	}
}

// StoreHooks returns StoreHooks that update the state gauges and persistence
// metrics.
func (m *Metrics) StoreHooks() StoreHooks {
	return StoreHooks{
		OnChange: func(s *State) {
			n := 0
			for _, list := range s.ActiveAlerts {
				n += len(list)
			}
			m.ActiveAlerts.Set(float64(n))
			m.UnreadTriggered.Set(float64(s.UnreadCount()))
		},
		OnPersist: func(err error, duration time.Duration) {
			m.PersistTotal.WithLabelValues(status(err)).Inc()
			m.PersistDuration.Observe(duration.Seconds())
		},
	}
}

func status(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}
