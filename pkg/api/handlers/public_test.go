package handlers

import (
	"context"
	"net/http"
	"strings"
	"testing"

	"github.com/jordanlanch/partnerdb/pkg/logger"
	"github.com/jordanlanch/partnerdb/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegister(t *testing.T) {
	env := setupTestEnv(t)
	created := env.createPartner(t, "Librairie El Amel", "amel@example.dz")
	program := env.createProgram(t)
	h := NewPublicHandler(env.students, env.partners, env.ledger, logger.Discard())

	register := func(req models.StudentRegistrationRequest) (int, map[string]interface{}) {
		c, rec := newContext(http.MethodPost, "/api/v1/register", req)
		require.NoError(t, h.Register(c))
		return rec.Code, decodeBody(t, rec)
	}

	t.Run("Success - student is attributed to the code owner", func(t *testing.T) {
		code, body := register(models.StudentRegistrationRequest{
			FullName:     "Yasmine B.",
			Email:        "yasmine@example.dz",
			Phone:        "0555 12 34 56",
			ReferralCode: strings.ToLower(created.Code.Code),
			ProgramID:    &program.ID,
		})
		require.Equal(t, http.StatusCreated, code)
		assert.Equal(t, created.Partner.ID.String(), body["partner_id"])
		assert.Equal(t, created.Code.Code, body["referral_code"])
		assert.Equal(t, false, body["is_confirmed"])
		assert.Equal(t, "+213555123456", body["phone"])

		var logs []models.AuditLog
		require.NoError(t, env.db.Where("action = ?", models.AuditStudentRegistered).Find(&logs).Error)
		require.Len(t, logs, 1)
		assert.Equal(t, "public", logs[0].Actor)
	})

	t.Run("Error - unknown code", func(t *testing.T) {
		code, body := register(models.StudentRegistrationRequest{
			FullName:     "Karim",
			Email:        "karim@example.dz",
			ReferralCode: "NOPE00",
			ProgramID:    &program.ID,
		})
		assert.Equal(t, http.StatusBadRequest, code)
		assert.Equal(t, "referral_code", body["field"])
	})

	t.Run("Error - duplicate email", func(t *testing.T) {
		code, _ := register(models.StudentRegistrationRequest{
			FullName:     "Yasmine again",
			Email:        "yasmine@example.dz",
			ReferralCode: created.Code.Code,
			ProgramID:    &program.ID,
		})
		assert.Equal(t, http.StatusConflict, code)
	})

	t.Run("Error - program is required", func(t *testing.T) {
		code, body := register(models.StudentRegistrationRequest{
			FullName:     "Nadia",
			Email:        "nadia@example.dz",
			ReferralCode: created.Code.Code,
		})
		assert.Equal(t, http.StatusBadRequest, code)
		assert.Equal(t, "validation_error", body["error"])
	})

	t.Run("Error - inactive partner", func(t *testing.T) {
		_, err := env.partners.SetStatus(context.Background(), created.Partner.ID, models.StatusInactive)
		require.NoError(t, err)

		code, body := register(models.StudentRegistrationRequest{
			FullName:     "Amine",
			Email:        "amine@example.dz",
			ReferralCode: created.Code.Code,
			ProgramID:    &program.ID,
		})
		assert.Equal(t, http.StatusBadRequest, code)
		assert.Equal(t, "referral_code", body["field"])
	})
}

func TestListPrograms(t *testing.T) {
	env := setupTestEnv(t)
	env.createProgram(t)
	require.NoError(t, env.db.Create(&models.Program{Name: "Closed", IsActive: false}).Error)
	h := NewPublicHandler(env.students, env.partners, env.ledger, logger.Discard())

	c, rec := newContext(http.MethodGet, "/api/v1/programs", nil)
	require.NoError(t, h.ListPrograms(c))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(1), decodeBody(t, rec)["count"])
}

func TestPublicPartnerDashboard(t *testing.T) {
	env := setupTestEnv(t)
	created := env.createPartner(t, "Superette Nour", "nour@example.dz")
	program := env.createProgram(t)
	s := env.registerStudent(t, created.Code.Code, "s1@example.dz", program.ID)
	env.registerStudent(t, created.Code.Code, "s2@example.dz", program.ID)
	_, err := env.students.Confirm(context.Background(), s.ID)
	require.NoError(t, err)

	h := NewPublicHandler(env.students, env.partners, env.ledger, logger.Discard())

	t.Run("Success - snapshot by code", func(t *testing.T) {
		c, rec := newContext(http.MethodGet, "/api/v1/partners/:code/dashboard", nil)
		withParam(c, "code", created.Code.Code)
		require.NoError(t, h.PartnerDashboard(c))
		require.Equal(t, http.StatusOK, rec.Code)

		snap := decodeBody(t, rec)["snapshot"].(map[string]interface{})
		assert.Equal(t, float64(1), snap["pending_count"])
		assert.Equal(t, float64(1), snap["confirmed_since_checkpoint"])
		assert.Equal(t, "1000", snap["earned_since_checkpoint"])
		assert.Equal(t, "pending", snap["payment_status"])
	})

	t.Run("Error - unknown code", func(t *testing.T) {
		c, rec := newContext(http.MethodGet, "/api/v1/partners/:code/dashboard", nil)
		withParam(c, "code", "ZZZ999")
		require.NoError(t, h.PartnerDashboard(c))
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestSubmitPartnershipRequest(t *testing.T) {
	env := setupTestEnv(t)
	h := NewPublicHandler(env.students, env.partners, env.ledger, logger.Discard())

	t.Run("Success - request is stored", func(t *testing.T) {
		c, rec := newContext(http.MethodPost, "/api/v1/partnership-requests", models.PartnershipRequestForm{
			BusinessName: "Cyber Espace",
			BusinessType: "CAF",
			Email:        "cyber@example.dz",
			Phone:        "0661234567",
			Address:      "Rue Didouche Mourad, Alger",
			Message:      "We would like to join.",
		})
		require.NoError(t, h.SubmitPartnershipRequest(c))
		require.Equal(t, http.StatusCreated, rec.Code)

		requests, err := env.partners.ListRequests(context.Background(), nil)
		require.NoError(t, err)
		require.Len(t, requests, 1)
		assert.Equal(t, models.PartnerTypeCafe, requests[0].BusinessType)
	})

	t.Run("Error - unknown business type", func(t *testing.T) {
		c, rec := newContext(http.MethodPost, "/api/v1/partnership-requests", models.PartnershipRequestForm{
			BusinessName: "Cyber Espace",
			BusinessType: "XXX",
			Email:        "cyber@example.dz",
			Phone:        "0661234567",
			Address:      "Alger",
			Message:      "Hello",
		})
		require.NoError(t, h.SubmitPartnershipRequest(c))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}
