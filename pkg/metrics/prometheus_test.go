package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRecorderCounts(t *testing.T) {
	reg := prometheus.NewRegistry()
	r := New(reg)

	r.RecordSnapshotSent("storage", "s_p")
	r.RecordSnapshotSent("storage", "s_p")
	r.RecordError("fetch")
	r.RecordFetch("s_p", 0.2)

	assert.Equal(t, 2.0, testutil.ToFloat64(r.snapshotsSent.WithLabelValues("storage", "s_p")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.errorsTotal.WithLabelValues("fetch")))
	assert.Greater(t, testutil.ToFloat64(r.lastFetch.WithLabelValues("s_p")), 0.0)
}
