package handlers

import (
	"bytes"
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/jordanlanch/partnerdb/pkg/checkpoint"
	"github.com/jordanlanch/partnerdb/pkg/logger"
	"github.com/jordanlanch/partnerdb/pkg/payment"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPartnerDashboard(t *testing.T) {
	env := setupTestEnv(t)
	ctx := context.Background()
	created := env.createPartner(t, "Librairie El Amel", "amel@example.dz")
	other := env.createPartner(t, "Boutique Nour", "nour@example.dz")
	program := env.createProgram(t)

	s1 := env.registerStudent(t, created.Code.Code, "s1@example.dz", program.ID)
	env.registerStudent(t, created.Code.Code, "s2@example.dz", program.ID)
	env.registerStudent(t, other.Code.Code, "s3@example.dz", program.ID)
	_, err := env.students.Confirm(ctx, s1.ID)
	require.NoError(t, err)

	_, err = env.checkpoints.Create(ctx, checkpoint.CreateInput{PartnerID: created.Partner.ID, AmountPaid: decimal.NewFromInt(1000)})
	require.NoError(t, err)

	h := NewPartnerHandler(env.partners, env.students, env.checkpoints, env.payments, env.ledger, logger.Discard())

	t.Run("Success - own figures only", func(t *testing.T) {
		c, rec := newContext(http.MethodGet, "/api/v1/partner/dashboard", nil)
		asPartner(c, created)
		require.NoError(t, h.Dashboard(c))
		require.Equal(t, http.StatusOK, rec.Code)

		body := decodeBody(t, rec)
		assert.Len(t, body["confirmed_students"], 1)
		assert.Len(t, body["pending_students"], 1)
		assert.Len(t, body["checkpoints"], 1)
		assert.Len(t, body["codes"], 1)

		snap := body["snapshot"].(map[string]interface{})
		assert.Equal(t, float64(1), snap["confirmed_all_time"])
		assert.Equal(t, float64(0), snap["confirmed_since_checkpoint"])
		assert.Equal(t, "no earnings", snap["payment_status"])
	})

	t.Run("Error - no token", func(t *testing.T) {
		c, rec := newContext(http.MethodGet, "/api/v1/partner/dashboard", nil)
		require.NoError(t, h.Dashboard(c))
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}

func TestPartnerPayments(t *testing.T) {
	env := setupTestEnv(t)
	ctx := context.Background()
	created := env.createPartner(t, "Librairie El Amel", "amel@example.dz")
	program := env.createProgram(t)

	for _, email := range []string{"s1@example.dz", "s2@example.dz"} {
		s := env.registerStudent(t, created.Code.Code, email, program.ID)
		_, err := env.students.Confirm(ctx, s.ID)
		require.NoError(t, err)
	}

	env.clock.Advance(time.Hour)
	_, err := env.checkpoints.Create(ctx, checkpoint.CreateInput{PartnerID: created.Partner.ID, AmountPaid: decimal.NewFromInt(2000)})
	require.NoError(t, err)

	env.clock.Advance(time.Hour)
	s3 := env.registerStudent(t, created.Code.Code, "s3@example.dz", program.ID)
	_, err = env.students.Confirm(ctx, s3.ID)
	require.NoError(t, err)

	_, err = env.payments.UploadReceipt(ctx, payment.UploadInput{
		PartnerID:  created.Partner.ID,
		AmountPaid: decimal.NewFromInt(500),
		File:       bytes.NewReader([]byte("\x89PNG receipt")),
		Filename:   "receipt.png",
	})
	require.NoError(t, err)

	h := NewPartnerHandler(env.partners, env.students, env.checkpoints, env.payments, env.ledger, logger.Discard())

	c, rec := newContext(http.MethodGet, "/api/v1/partner/payments", nil)
	asPartner(c, created)
	require.NoError(t, h.Payments(c))
	require.Equal(t, http.StatusOK, rec.Code)

	body := decodeBody(t, rec)
	assert.Len(t, body["receipts"], 1)
	assert.NotNil(t, body["last_receipt"])
	assert.Equal(t, "2000", body["paid_amount"])
	assert.Equal(t, "1000", body["confirmed_amount"])
	assert.Equal(t, "-1000", body["balance"])
	assert.Equal(t, "500", body["receipts_total"])
}
