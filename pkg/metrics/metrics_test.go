package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordCheckpoint(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.RecordCheckpoint(decimal.NewFromInt(5000))
	m.RecordCheckpoint(decimal.RequireFromString("250.50"))

	assert.Equal(t, float64(2), testutil.ToFloat64(m.CheckpointsCreated))
	assert.InDelta(t, 5250.5, testutil.ToFloat64(m.CheckpointAmount), 0.001)
}

func TestRecordLoginAttempt(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.RecordLoginAttempt("partner", "failed")
	m.RecordLoginAttempt("partner", "failed")
	m.RecordLoginAttempt("admin", "success")

	assert.Equal(t, float64(2), testutil.ToFloat64(m.LoginAttempts.WithLabelValues("partner", "failed")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.LoginAttempts.WithLabelValues("admin", "success")))
}

func TestNilMetrics_IsNoop(t *testing.T) {
	var m *Metrics

	assert.NotPanics(t, func() {
		m.RecordStudentRegistered()
		m.RecordPaymentTransition("completed")
		m.RecordNotification("student_welcome", false)
	})
}

func TestMiddleware(t *testing.T) {
	m := New(prometheus.NewRegistry())
	e := echo.New()
	e.Use(m.Middleware())
	e.GET("/api/v1/partners/:code/dashboard", func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/partners/LIB4F6/dashboard", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	count := testutil.ToFloat64(m.HTTPRequestsTotal.WithLabelValues(http.MethodGet, "/api/v1/partners/:code/dashboard", "200"))
	assert.Equal(t, float64(1), count)
}
