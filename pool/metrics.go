// File: pool/metrics.go
// Author: momentics <momentics@gmail.com>
//
// Prometheus instrumentation for pages and pools.

package pool

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	labelKindSlab     = "slab"
	labelKindCache    = "cache"
	labelKindFallback = "fallback"

	labelReleaseMerged   = "merged"
	labelReleaseDeferred = "deferred"
	labelReleaseCached   = "cached"
	labelReleaseDisposed = "disposed"
)

var (
	allocationCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "hioload",
			Subsystem: "mem",
			Name:      "allocations_total",
			Help:      "Total number of buffers handed out, by page kind.",
		}, []string{"kind"})

	allocatedBytesCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "hioload",
			Subsystem: "mem",
			Name:      "allocated_bytes_total",
			Help:      "Total number of bytes handed out, by page kind.",
		}, []string{"kind"})

	releaseCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "hioload",
			Subsystem: "mem",
			Name:      "releases_total",
			Help:      "Total number of buffers returned, by outcome.",
		}, []string{"outcome"})

	reclaimedCounter = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "hioload",
			Subsystem: "mem",
			Name:      "reclaimed_blocks_total",
			Help:      "Total number of cached blocks aged out by the scavenger.",
		})

	pagesGauge = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "hioload",
			Subsystem: "mem",
			Name:      "pages",
			Help:      "Number of live pages across all pools.",
		})

	offHeapGauge = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "hioload",
			Subsystem: "mem",
			Name:      "offheap_bytes",
			Help:      "Off-heap bytes currently mapped, sampled on every scavenger tick.",
		})
)

var metricsOnce sync.Once

func initMetrics() {
	metricsOnce.Do(func() {
		prometheus.MustRegister(allocationCounter)
		prometheus.MustRegister(allocatedBytesCounter)
		prometheus.MustRegister(releaseCounter)
		prometheus.MustRegister(reclaimedCounter)
		prometheus.MustRegister(pagesGauge)
		prometheus.MustRegister(offHeapGauge)
	})
}

func observeAllocation(kind string, size int) {
	allocationCounter.WithLabelValues(kind).Inc()
	allocatedBytesCounter.WithLabelValues(kind).Add(float64(size))
}

func observeRelease(outcome string) {
	releaseCounter.WithLabelValues(outcome).Inc()
}
