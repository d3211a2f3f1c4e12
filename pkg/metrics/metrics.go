package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all application metrics
type Metrics struct {
	// Upload pipeline metrics
	UploadsTotal       *prometheus.CounterVec
	UploadBytes        prometheus.Histogram
	UploadLatency      prometheus.Histogram
	OrphanFilesTotal   prometheus.Counter
	FulfillmentsTotal  *prometheus.CounterVec
	OpenTestQueries    prometheus.Counter
	RejectedUploads    *prometheus.CounterVec
	ActivePatientSwaps prometheus.Counter
}

// NewMetrics creates and registers all application metrics
func NewMetrics(namespace, subsystem string) *Metrics {
	return &Metrics{
		UploadsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "uploads_total",
			Help:      "Total number of deliverable uploads by kind and status",
		}, []string{"kind", "status"}),
		UploadBytes: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "upload_size_bytes",
			Help:      "Size of uploaded deliverable files",
			Buckets:   prometheus.ExponentialBuckets(1024, 4, 8),
		}),
		UploadLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "upload_duration_seconds",
			Help:      "Time spent storing a deliverable file and its metadata",
			Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		}),
		OrphanFilesTotal: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "orphan_files_total",
			Help:      "Files written to disk whose metadata append failed",
		}),
		FulfillmentsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "fulfillments_total",
			Help:      "Requested tests closed by a deliverable, by kind",
		}, []string{"kind"}),
		OpenTestQueries: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "open_test_queries_total",
			Help:      "Total number of open-test list computations",
		}),
		RejectedUploads: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "rejected_uploads_total",
			Help:      "Uploads rejected before any write, by reason",
		}, []string{"reason"}),
		ActivePatientSwaps: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "active_patient_swaps_total",
			Help:      "Times a session's active patient was set or replaced",
		}),
	}
}
