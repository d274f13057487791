package export

import (
	"bytes"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jordanlanch/partnerdb/pkg/ledger"
	"github.com/jordanlanch/partnerdb/pkg/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func TestWritePaymentsReport(t *testing.T) {
	now := time.Date(2026, 4, 15, 12, 0, 0, 0, time.UTC)
	partner := &models.Partner{ID: uuid.New(), Name: "Librairie El Amel"}

	payouts := []ledger.PayoutSummary{
		{
			Snapshot: ledger.Snapshot{
				PartnerName:              "Librairie El Amel",
				PartnerCode:              "LIB4F6",
				CommissionPerStudent:     decimal.NewFromInt(1000),
				PendingCount:             2,
				ConfirmedSinceCheckpoint: 5,
				EarnedSinceCheckpoint:    decimal.NewFromInt(5000),
				TotalPaid:                decimal.NewFromInt(2000),
				LastCheckpoint:           &models.PaymentCheckpoint{CheckpointDate: now},
			},
			Due: decimal.NewFromInt(3000),
		},
	}
	payments := []models.Payment{
		{
			ID:              uuid.New(),
			PartnerID:       partner.ID,
			Partner:         partner,
			Amount:          decimal.NewFromInt(2000),
			RemainingAmount: decimal.Zero,
			Status:          models.PaymentCompleted,
			CreatedAt:       now,
			CompletedAt:     &now,
		},
	}

	var buf bytes.Buffer
	require.NoError(t, WritePaymentsReport(&buf, payouts, payments))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	t.Run("Success - payout sheet", func(t *testing.T) {
		rows, err := f.GetRows(PayoutsSheet)
		require.NoError(t, err)
		require.Len(t, rows, 2)
		assert.Equal(t, "Partner", rows[0][0])
		assert.Equal(t, "LIB4F6", rows[1][1])
		assert.Equal(t, "3000", rows[1][7])
		assert.Equal(t, "2026-04-15 12:00", rows[1][8])
	})

	t.Run("Success - payment sheet", func(t *testing.T) {
		rows, err := f.GetRows(PaymentsSheet)
		require.NoError(t, err)
		require.Len(t, rows, 2)
		assert.Equal(t, "Librairie El Amel", rows[1][1])
		assert.Equal(t, "completed", rows[1][4])
	})
}

func TestWritePaymentsReport_Empty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WritePaymentsReport(&buf, nil, nil))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows(PaymentsSheet)
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}

func TestFilename(t *testing.T) {
	assert.Equal(t, "payments-20260415-120000.xlsx", Filename(time.Date(2026, 4, 15, 12, 0, 0, 0, time.UTC)))
}
