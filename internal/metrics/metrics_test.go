package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRecordResolution(t *testing.T) {
	before := testutil.ToFloat64(resolutionsTotal.WithLabelValues("ticker", "fallback"))
	RecordResolution("ticker", "fallback", 0.2)
	after := testutil.ToFloat64(resolutionsTotal.WithLabelValues("ticker", "fallback"))
	assert.Equal(t, before+1, after)
}

func TestSubscriptionGauge(t *testing.T) {
	before := testutil.ToFloat64(activeSubscriptions)
	SubscriptionStarted()
	SubscriptionStarted()
	SubscriptionStopped()
	assert.Equal(t, before+1, testutil.ToFloat64(activeSubscriptions))
	SubscriptionStopped()
}

func TestHandlerExposesMetrics(t *testing.T) {
	RecordRetry("status")

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "dashboard_sync_retries_total"))
}
