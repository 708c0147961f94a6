package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	StreamLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "levelcast",
			Subsystem: "stream",
			Name:      "latency_seconds",
			Help:      "Latency of stream API endpoints",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"endpoint"},
	)

	StreamErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "levelcast",
			Subsystem: "stream",
			Name:      "errors_total",
			Help:      "Errors by stream API endpoint",
		},
		[]string{"endpoint"},
	)
)

func Register() {
	once.Do(func() {
		prometheus.MustRegister(StreamLatency, StreamErrors)
	})
}
