package metrics

import (
    "sync"

    "github.com/prometheus/client_golang/prometheus"
)

var (
    once sync.Once

    UpstreamLatency = prometheus.NewHistogramVec(
        prometheus.HistogramOpts{
            Namespace: "urbanpull",
            Subsystem: "uda",
            Name:      "request_latency_seconds",
            Help:      "Latency of uDA indicator requests, retries included",
            Buckets:   prometheus.DefBuckets,
        },
        []string{"indicator"},
    )

    UpstreamErrors = prometheus.NewCounterVec(
        prometheus.CounterOpts{
            Namespace: "urbanpull",
            Subsystem: "uda",
            Name:      "errors_total",
            Help:      "Failed uDA requests by reason",
        },
        []string{"indicator", "reason"},
    )

    CacheLookups = prometheus.NewCounterVec(
        prometheus.CounterOpts{
            Namespace: "urbanpull",
            Subsystem: "uda",
            Name:      "cache_lookups_total",
            Help:      "Indicator cache lookups by result",
        },
        []string{"result"},
    )
)

func Register() {
    once.Do(func() {
        prometheus.MustRegister(UpstreamLatency, UpstreamErrors, CacheLookups)
    })
}
