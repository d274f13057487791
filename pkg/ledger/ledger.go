// Package ledger computes partner commission balances from confirmed
// student referrals and payment checkpoints.
package ledger

import (
	"time"

	"github.com/google/uuid"
	"github.com/jordanlanch/partnerdb/pkg/models"
	"github.com/shopspring/decimal"
)

// PaymentStatus summarizes whether a partner is owed anything
type PaymentStatus string

const (
	StatusNoEarnings PaymentStatus = "no earnings"
	StatusPaid       PaymentStatus = "paid"
	StatusPending    PaymentStatus = "pending"
)

// Snapshot is the commission state of one partner at read time.
// Nothing in it is stored; it is derived from students and checkpoints.
type Snapshot struct {
	PartnerID                uuid.UUID                 `json:"partner_id"`
	PartnerName              string                    `json:"partner_name"`
	PartnerCode              string                    `json:"partner_code"`
	CommissionPerStudent     decimal.Decimal           `json:"commission_per_student"`
	PendingCount             int64                     `json:"pending_count"`
	ConfirmedSinceCheckpoint int64                     `json:"confirmed_since_checkpoint"`
	ConfirmedAllTime         int64                     `json:"confirmed_all_time"`
	EarnedSinceCheckpoint    decimal.Decimal           `json:"earned_since_checkpoint"`
	EarnedAllTime            decimal.Decimal           `json:"earned_all_time"`
	TotalPaid                decimal.Decimal           `json:"total_paid"`
	RemainingBalance         decimal.Decimal           `json:"remaining_balance"`
	OutstandingAllTime       decimal.Decimal           `json:"outstanding_all_time"`
	PaymentStatus            PaymentStatus             `json:"payment_status"`
	LastCheckpoint           *models.PaymentCheckpoint `json:"last_checkpoint,omitempty"`
}

// PayoutDue is what the payments dashboard shows as still owed:
// earnings since the checkpoint minus everything paid, floored at zero.
func (s Snapshot) PayoutDue() decimal.Decimal {
	due := s.EarnedSinceCheckpoint.Sub(s.TotalPaid)
	if due.IsNegative() {
		return decimal.Zero
	}
	return due
}

// counts are the raw figures a snapshot is derived from
type counts struct {
	pending          int64
	confirmedSince   int64
	confirmedAllTime int64
	totalPaid        decimal.Decimal
	latest           *models.PaymentCheckpoint
}

// Compute derives a snapshot from a partner and its related rows.
// Students or checkpoints attributed to another partner are ignored.
func Compute(partner *models.Partner, students []models.Student, checkpoints []models.PaymentCheckpoint) Snapshot {
	c := counts{totalPaid: decimal.Zero}

	for i := range checkpoints {
		cp := &checkpoints[i]
		if cp.PartnerID != partner.ID {
			continue
		}
		c.totalPaid = c.totalPaid.Add(cp.AmountPaid)
		if c.latest == nil || newerCheckpoint(cp, c.latest) {
			c.latest = cp
		}
	}

	for i := range students {
		st := &students[i]
		if !st.BelongsTo(partner.ID) {
			continue
		}
		if !st.IsConfirmed {
			c.pending++
			continue
		}
		c.confirmedAllTime++
		if c.latest == nil || st.UpdatedAt.After(c.latest.CheckpointDate) {
			c.confirmedSince++
		}
	}

	return build(partner, c)
}

// newerCheckpoint orders by business date, then by insertion time
func newerCheckpoint(a, b *models.PaymentCheckpoint) bool {
	if !a.CheckpointDate.Equal(b.CheckpointDate) {
		return a.CheckpointDate.After(b.CheckpointDate)
	}
	return a.CreatedAt.After(b.CreatedAt)
}

func build(partner *models.Partner, c counts) Snapshot {
	commission := partner.CommissionPerStudent
	earnedSince := commission.Mul(decimal.NewFromInt(c.confirmedSince))
	earnedAll := commission.Mul(decimal.NewFromInt(c.confirmedAllTime))

	s := Snapshot{
		PartnerID:                partner.ID,
		PartnerName:              partner.Name,
		PartnerCode:              partner.PartnerCode(),
		CommissionPerStudent:     commission,
		PendingCount:             c.pending,
		ConfirmedSinceCheckpoint: c.confirmedSince,
		ConfirmedAllTime:         c.confirmedAllTime,
		EarnedSinceCheckpoint:    earnedSince,
		EarnedAllTime:            earnedAll,
		TotalPaid:                c.totalPaid,
		RemainingBalance:         earnedSince,
		OutstandingAllTime:       earnedAll.Sub(c.totalPaid),
		LastCheckpoint:           c.latest,
	}
	s.PaymentStatus = statusFor(s)
	return s
}

func statusFor(s Snapshot) PaymentStatus {
	switch {
	case s.EarnedSinceCheckpoint.IsZero():
		return StatusNoEarnings
	case s.RemainingBalance.IsZero():
		return StatusPaid
	default:
		return StatusPending
	}
}

// Since returns the start of the current commission window, or the zero
// time when the partner has never been paid.
func (s Snapshot) Since() time.Time {
	if s.LastCheckpoint == nil {
		return time.Time{}
	}
	return s.LastCheckpoint.CheckpointDate
}
