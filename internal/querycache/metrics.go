package querycache

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	readsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "admindash_querycache_reads_total",
		Help: "Cache reads by key and the state they were served from",
	}, []string{"key", "state"})

	fetchesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "admindash_querycache_fetches_total",
		Help: "Remote fetches by key and outcome",
	}, []string{"key", "outcome"})

	fetchDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "admindash_querycache_fetch_duration_seconds",
		Help:    "Duration of remote fetches",
		Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
	}, []string{"key"})
)

func observeRead(key Key, served State) {
	readsTotal.WithLabelValues(string(key), string(served)).Inc()
}

func observeFetch(key Key, start time.Time, err error) {
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	fetchesTotal.WithLabelValues(string(key), outcome).Inc()
	fetchDuration.WithLabelValues(string(key)).Observe(time.Since(start).Seconds())
}
