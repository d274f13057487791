package handlers

import (
	"net/http"
	"testing"

	"github.com/jordanlanch/partnerdb/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuditLogs(t *testing.T) {
	env := setupTestEnv(t)
	amel := env.createPartner(t, "Librairie El Amel", "amel@example.dz")
	env.createPartner(t, "Boutique Nour", "nour@example.dz")
	program := env.createProgram(t)
	env.registerStudent(t, amel.Code.Code, "s1@example.dz", program.ID)

	h := NewAuditHandler(env.audit, logger.Discard())

	t.Run("Success - recent logs", func(t *testing.T) {
		c, rec := newContext(http.MethodGet, "/api/v1/admin/audit-logs", nil)
		asAdmin(c)
		require.NoError(t, h.GetRecentLogs(c))
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, float64(3), decodeBody(t, rec)["count"])
	})

	t.Run("Success - filtered by action and limited", func(t *testing.T) {
		c, rec := newContext(http.MethodGet, "/api/v1/admin/audit-logs?action=partner_created&limit=1", nil)
		asAdmin(c)
		require.NoError(t, h.GetRecentLogs(c))
		assert.Equal(t, float64(1), decodeBody(t, rec)["count"])
	})

	t.Run("Success - partner trail", func(t *testing.T) {
		c, rec := newContext(http.MethodGet, "/api/v1/admin/partners/:id/audit-logs", nil)
		asAdmin(c)
		withParam(c, "id", amel.Partner.ID.String())
		require.NoError(t, h.GetPartnerLogs(c))
		require.Equal(t, http.StatusOK, rec.Code)

		logs := decodeBody(t, rec)["logs"].([]interface{})
		require.Len(t, logs, 2)
		for _, l := range logs {
			assert.Equal(t, amel.Partner.ID.String(), l.(map[string]interface{})["partner_id"])
		}
	})

	t.Run("Error - malformed partner id", func(t *testing.T) {
		c, rec := newContext(http.MethodGet, "/api/v1/admin/partners/:id/audit-logs", nil)
		withParam(c, "id", "42")
		require.NoError(t, h.GetPartnerLogs(c))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}
