package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Sync results used as the "result" label of tagsync_sync_total.
const (
	SyncResultChanged   = "changed"
	SyncResultUnchanged = "unchanged"
	SyncResultFailed    = "failed"
)

var (
	syncTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tagsync_sync_total",
		Help: "Total number of tag synchronizations by result.",
	}, []string{"result"})

	syncDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "tagsync_sync_duration_seconds",
		Help:    "Duration of tag synchronizations, including retries.",
		Buckets: prometheus.DefBuckets,
	})

	tagsCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tagsync_tags_created_total",
		Help: "Total number of tags created on first use.",
	})

	tagsSwept = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tagsync_tags_swept_total",
		Help: "Total number of zero-count tags removed by the sweep.",
	})

	indexFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tagsync_index_failures_total",
		Help: "Total number of failed search index notifications.",
	})

	httpDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "Duration of HTTP requests.",
		Buckets: prometheus.DefBuckets,
	}, []string{"path", "method", "status"})

	httpRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests.",
	}, []string{"path", "method", "status"})
)

// RecordSync records one finished synchronization.
func RecordSync(result string, duration time.Duration) {
	syncTotal.WithLabelValues(result).Inc()
	syncDuration.Observe(duration.Seconds())
}

// RecordTagsCreated records tags created on first use.
func RecordTagsCreated(n int) {
	if n > 0 {
		tagsCreated.Add(float64(n))
	}
}

// RecordTagsSwept records tags removed by the zero-count sweep.
func RecordTagsSwept(n int64) {
	if n > 0 {
		tagsSwept.Add(float64(n))
	}
}

// RecordIndexFailure records a failed search index notification.
func RecordIndexFailure() {
	indexFailures.Inc()
}

// RecordHTTPRequest records RED metrics for one HTTP request.
func RecordHTTPRequest(path, method, status string, duration time.Duration) {
	httpDuration.WithLabelValues(path, method, status).Observe(duration.Seconds())
	httpRequests.WithLabelValues(path, method, status).Inc()
}
