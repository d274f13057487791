package models

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dec(v int64) decimal.Decimal {
	return decimal.NewFromInt(v)
}

func TestNewPayment(t *testing.T) {
	p := NewPayment(uuid.New(), dec(1000))

	assert.True(t, p.RemainingAmount.Equal(dec(1000)), "remaining defaults to amount")
	assert.Equal(t, PaymentPending, p.Status)
	assert.Nil(t, p.CompletedAt)
}

func TestPayment_ApplyPaid(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	tests := []struct {
		name          string
		amount        int64
		paid          int64
		wantRemaining int64
		wantStatus    PaymentStatus
		wantCompleted bool
	}{
		{"nothing paid", 1000, 0, 1000, PaymentPending, false},
		{"partially paid", 1000, 400, 600, PaymentPartial, false},
		{"fully paid", 1000, 1000, 0, PaymentCompleted, true},
		{"overpaid clamps to zero", 1000, 1500, 0, PaymentCompleted, true},
		{"negative paid stays pending", 1000, -200, 1200, PaymentPending, false},
		{"zero amount is completed", 0, 0, 0, PaymentCompleted, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewPayment(uuid.New(), dec(tt.amount))
			p.ApplyPaid(dec(tt.paid), now)

			assert.True(t, p.RemainingAmount.Equal(dec(tt.wantRemaining)), "remaining = %s", p.RemainingAmount)
			assert.Equal(t, tt.wantStatus, p.Status)
			if tt.wantCompleted {
				require.NotNil(t, p.CompletedAt)
				assert.Equal(t, now, *p.CompletedAt)
			} else {
				assert.Nil(t, p.CompletedAt)
			}
		})
	}
}

func TestPayment_Recompute(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	t.Run("Status follows remaining amount", func(t *testing.T) {
		p := NewPayment(uuid.New(), dec(1000))

		p.RemainingAmount = dec(250)
		p.Recompute(now)
		assert.Equal(t, PaymentPartial, p.Status)

		p.RemainingAmount = decimal.Zero
		p.Recompute(now)
		assert.Equal(t, PaymentCompleted, p.Status)
		require.NotNil(t, p.CompletedAt)

		p.RemainingAmount = dec(1000)
		p.Recompute(now)
		assert.Equal(t, PaymentPending, p.Status)
		assert.Nil(t, p.CompletedAt)
	})

	t.Run("Explicitly zeroed remaining completes on first save", func(t *testing.T) {
		p := &Payment{Amount: dec(1000), RemainingAmount: decimal.Zero}
		p.Recompute(now)

		assert.Equal(t, PaymentCompleted, p.Status)
		assert.True(t, p.RemainingAmount.IsZero())
	})

	t.Run("Cancelled payments are not recomputed", func(t *testing.T) {
		p := NewPayment(uuid.New(), dec(1000))
		p.Cancel()
		p.RemainingAmount = decimal.Zero
		p.Recompute(now)

		assert.Equal(t, PaymentCancelled, p.Status)
		assert.Nil(t, p.CompletedAt)
	})

	t.Run("Existing completion time is kept", func(t *testing.T) {
		earlier := now.Add(-time.Hour)
		p := &Payment{Amount: dec(500), RemainingAmount: decimal.Zero, CompletedAt: &earlier}
		p.Recompute(now)

		require.NotNil(t, p.CompletedAt)
		assert.Equal(t, earlier, *p.CompletedAt)
	})
}

func TestPayment_ExplicitTransitions(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	t.Run("MarkCompleted", func(t *testing.T) {
		p := NewPayment(uuid.New(), dec(1000))
		p.MarkCompleted(now)

		assert.Equal(t, PaymentCompleted, p.Status)
		assert.True(t, p.RemainingAmount.IsZero())
		require.NotNil(t, p.CompletedAt)
		assert.True(t, p.PaidAmount().Equal(dec(1000)))
	})

	t.Run("MarkPending", func(t *testing.T) {
		p := NewPayment(uuid.New(), dec(1000))
		p.MarkCompleted(now)
		p.MarkPending()

		assert.Equal(t, PaymentPending, p.Status)
		assert.True(t, p.RemainingAmount.Equal(dec(1000)))
		assert.Nil(t, p.CompletedAt)
	})
}

func TestPartner_PartnerCode(t *testing.T) {
	id := uuid.MustParse("4f6a2c1e-0000-4000-8000-000000000000")
	p := &Partner{ID: id, PartnerType: PartnerTypeLibrary}

	assert.Equal(t, "LIB4F6", p.PartnerCode())
}
