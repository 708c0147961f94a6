package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	ticksTotal  *prometheus.CounterVec
	errorsTotal *prometheus.CounterVec
	lastPrice   prometheus.Gauge
	latency     *prometheus.HistogramVec
	matchSize   *prometheus.GaugeVec
}

// New creates a new Prometheus metrics recorder.
func New() *Recorder {
	return &Recorder{
		ticksTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "levelcast_ticks_processed_total",
				Help: "Total number of processed bar ticks",
			},
			[]string{"tf"},
		),
		errorsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "levelcast_errors_total",
				Help: "Total number of errors encountered",
			},
			[]string{"type"},
		),
		lastPrice: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "levelcast_last_price",
				Help: "Last observed close price",
			},
		),
		latency: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "levelcast_operation_duration_seconds",
				Help:    "Duration of operations in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		matchSize: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "levelcast_match_distinct_colors",
				Help: "Distinct outcome colors in the latest corpus match",
			},
			[]string{"tf"},
		),
	}
}

// RecordTick records one processed bar tick.
func (r *Recorder) RecordTick(tf string) {
	r.ticksTotal.WithLabelValues(tf).Inc()
}

// RecordError records an error occurrence.
func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}

// RecordLastPrice records the last observed close.
func (r *Recorder) RecordLastPrice(price float64) {
	r.lastPrice.Set(price)
}

// RecordLatency records operation latency in seconds.
func (r *Recorder) RecordLatency(op string, seconds float64) {
	r.latency.WithLabelValues(op).Observe(seconds)
}

// RecordMatchSize records the distinct-color count of a corpus match.
func (r *Recorder) RecordMatchSize(tf string, n int) {
	r.matchSize.WithLabelValues(tf).Set(float64(n))
}
