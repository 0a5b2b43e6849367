package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	m.ExpenseCreated()
	m.RuleDenied("x")
	m.ProviderRequest("create", "ok")
	m.MilestoneRelease("released")
	m.RefundsMatured(3)
	m.ObserveHTTP("GET", "/x", 200, time.Millisecond)
}

func TestCounters(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.ExpenseCreated()
	m.ExpenseCreated()
	m.RuleDenied("only admin can spend")
	m.MilestoneRelease("released")
	m.RefundsMatured(2)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.expensesCreated))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ruleDenials.WithLabelValues("only admin can spend")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.milestoneReleases.WithLabelValues("released")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.refundsMatured))
}

func TestHandlerExposesMetrics(t *testing.T) {
	m := New(prometheus.NewRegistry())
	m.ProviderRequest("release", "retryable")

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), `cooper_provider_requests_total{op="release",outcome="retryable"} 1`))
}
