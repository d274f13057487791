package errors

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/jordanlanch/partnerdb/pkg/domain"
	"github.com/jordanlanch/partnerdb/pkg/logger"
	"github.com/jordanlanch/partnerdb/pkg/models"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRespond(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"validation", domain.NewValidationError("amount", "Amount must be positive"), http.StatusBadRequest, "validation_error"},
		{"not found", fmt.Errorf("wrapped: %w", domain.NewNotFoundError("partner")), http.StatusNotFound, "not_found"},
		{"forbidden", domain.NewForbiddenError("Admin access required"), http.StatusForbidden, "forbidden"},
		{"unauthorized", domain.NewUnauthorizedError(""), http.StatusUnauthorized, "unauthorized"},
		{"conflict", domain.NewConflictError("Payment is cancelled"), http.StatusConflict, "conflict"},
		{"lockout", domain.NewTooManyAttemptsError(15 * time.Minute), http.StatusTooManyRequests, "too_many_attempts"},
		{"plain error", fmt.Errorf("pq: connection refused"), http.StatusInternalServerError, "internal_error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := echo.New()
			req := httptest.NewRequest(http.MethodGet, "/api/v1/test", nil)
			rec := httptest.NewRecorder()
			c := e.NewContext(req, rec)

			require.NoError(t, Respond(c, logger.Discard(), tt.err))
			assert.Equal(t, tt.wantStatus, rec.Code)

			var resp models.ErrorResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			assert.Equal(t, tt.wantCode, resp.Error)
		})
	}
}

func TestRespond_HidesInternalDetails(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	require.NoError(t, Respond(c, logger.Discard(), fmt.Errorf("pq: password authentication failed")))

	assert.NotContains(t, rec.Body.String(), "pq:")
}

func TestRespond_ValidationField(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	require.NoError(t, Respond(c, logger.Discard(), domain.NewValidationError("referral_code", "Referral code is required")))

	var resp models.ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "referral_code", resp.Field)
	assert.Equal(t, "Referral code is required", resp.Message)
}

func TestRespond_RetryAfterHeader(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	require.NoError(t, Respond(c, logger.Discard(), domain.NewTooManyAttemptsError(90*time.Second)))

	assert.Equal(t, "90", rec.Header().Get("Retry-After"))
}
