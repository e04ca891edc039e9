package observability

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetricsCounters(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	m.RecordRequest("/companies/:companyId/agencies", "POST", 201, 20*time.Millisecond)
	m.RecordRequest("/companies/:companyId/agencies", "POST", 201, 10*time.Millisecond)
	m.RecordError("/companies/:companyId/agencies", "POST", "already-exists")
	m.RecordOperation("create_agency", "ok")
	m.RecordCascadeMember("transfer", "failed-precondition")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.requests.WithLabelValues("/companies/:companyId/agencies", "POST", "201")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.errors.WithLabelValues("/companies/:companyId/agencies", "POST", "already-exists")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.operations.WithLabelValues("create_agency", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.cascadeMembers.WithLabelValues("transfer", "failed-precondition")))
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.RecordRequest("/", "GET", 200, time.Millisecond)
		m.RecordError("/", "GET", "internal")
		m.RecordOperation("delete_agency", "ok")
		m.RecordCascadeMember("detach", "ok")
	})
}
