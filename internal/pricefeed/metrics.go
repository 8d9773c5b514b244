package pricefeed

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics tracks price fetches.
type Metrics struct {
	FetchTotal    *prometheus.CounterVec
	FetchDuration prometheus.Histogram
	LastSuccess   prometheus.Gauge
}

// NewMetrics registers price feed metrics on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		FetchTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "coinwatch_price_fetch_total",
			Help: "Price fetches by status, including retries.",
		}, []string{"status"}),
		FetchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "coinwatch_price_fetch_duration_seconds",
			Help:    "Wall time of a price fetch including retries.",
			Buckets: prometheus.DefBuckets,
		}),
		LastSuccess: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "coinwatch_price_last_success_timestamp_seconds",
			Help: "Unix time of the last successful price fetch.",
		}),
	}
	reg.MustRegister(m.FetchTotal, m.FetchDuration, m.LastSuccess)
	return m
}

// Hooks returns poller hooks that record into m. onPrices, if non-nil, is
// chained after the metric update.
func (m *Metrics) Hooks(onPrices func(Snapshot)) Hooks {
	return Hooks{
		OnFetch: func(err error, dur time.Duration) {
			status := "success"
			if err != nil {
				status = "error"
			}
			m.FetchTotal.WithLabelValues(status).Inc()
			m.FetchDuration.Observe(dur.Seconds())
		},
		OnPrices: func(s Snapshot) {
			m.LastSuccess.Set(float64(s.UpdatedAt.Unix()))
			if onPrices != nil {
				onPrices(s)
			}
		},
	}
}
