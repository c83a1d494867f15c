package crossfilter

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// ====== METRICS ======

var (
	// activeDimensions tracks dimensions attached to any crossfilter.
	activeDimensions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "crossfacet_dimensions_active",
		Help: "Dimensions currently attached to a crossfilter",
	})

	// filterChanges counts filter operations by kind (apply, clear).
	filterChanges = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "crossfacet_filter_changes_total",
		Help: "Filter applications and clears on dimensions",
	}, []string{"op"})

	// groupReadDuration tracks the cost of recomputing a group.
	groupReadDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "crossfacet_group_read_duration_seconds",
		Help:    "Group recomputation time in seconds",
		Buckets: prometheus.ExponentialBuckets(0.00001, 4, 10), // 10µs to ~2.6s
	})
)

func observeGroupRead(start time.Time) {
	groupReadDuration.Observe(time.Since(start).Seconds())
}
