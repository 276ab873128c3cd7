package observability

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRecordSync(t *testing.T) {
	before := testutil.ToFloat64(syncTotal.WithLabelValues(SyncResultChanged))
	RecordSync(SyncResultChanged, 10*time.Millisecond)
	assert.Equal(t, before+1, testutil.ToFloat64(syncTotal.WithLabelValues(SyncResultChanged)))
}

func TestRecordTagsCreatedIgnoresZero(t *testing.T) {
	before := testutil.ToFloat64(tagsCreated)
	RecordTagsCreated(0)
	RecordTagsCreated(2)
	assert.Equal(t, before+2, testutil.ToFloat64(tagsCreated))
}

func TestRecordTagsSwept(t *testing.T) {
	before := testutil.ToFloat64(tagsSwept)
	RecordTagsSwept(-1)
	RecordTagsSwept(3)
	assert.Equal(t, before+3, testutil.ToFloat64(tagsSwept))
}

func TestRecordHTTPRequest(t *testing.T) {
	before := testutil.ToFloat64(httpRequests.WithLabelValues("/api/v1/tags", "GET", "200"))
	RecordHTTPRequest("/api/v1/tags", "GET", "200", time.Millisecond)
	assert.Equal(t, before+1, testutil.ToFloat64(httpRequests.WithLabelValues("/api/v1/tags", "GET", "200")))
}
