package export

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	exportsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "panelcore_exports_total",
		Help: "Completed export jobs by final status.",
	}, []string{"status"})

	artifactBytes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "panelcore_export_artifact_bytes_total",
		Help: "Bytes rendered into blob storage by artifact format.",
	}, []string{"format"})

	queueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "panelcore_export_queue_depth",
		Help: "Export jobs accepted but not yet processed.",
	})

	exportDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "panelcore_export_duration_seconds",
		Help:    "Wall time spent materializing an export job.",
		Buckets: prometheus.DefBuckets,
	})
)
