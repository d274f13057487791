package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// PaymentStatus is the lifecycle state of a payment to a partner
type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "pending"
	PaymentPartial   PaymentStatus = "partial"
	PaymentCompleted PaymentStatus = "completed"
	PaymentCancelled PaymentStatus = "cancelled"
)

// Payment tracks one payout to a partner. RemainingAmount and Status are
// derived on every save from Amount and RemainingAmount, except once the
// payment has been cancelled.
type Payment struct {
	ID              uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	PartnerID       uuid.UUID       `gorm:"type:uuid;not null;index" json:"partner_id"`
	Amount          decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"amount"`
	RemainingAmount decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"remaining_amount"`
	Status          PaymentStatus   `gorm:"size:20;not null;index" json:"status"`
	Reference       string          `gorm:"size:100" json:"reference,omitempty"`
	Notes           string          `gorm:"type:text" json:"notes,omitempty"`
	CreatedAt       time.Time       `gorm:"index" json:"created_at"`
	CompletedAt     *time.Time      `json:"completed_at,omitempty"`

	Partner *Partner        `gorm:"foreignKey:PartnerID" json:"partner,omitempty"`
	Receipt *PaymentReceipt `gorm:"foreignKey:PaymentID;constraint:OnDelete:CASCADE" json:"receipt,omitempty"`
}

// NewPayment builds a pending payment whose remaining amount equals its amount
func NewPayment(partnerID uuid.UUID, amount decimal.Decimal) *Payment {
	return &Payment{
		PartnerID:       partnerID,
		Amount:          amount,
		RemainingAmount: amount,
		Status:          PaymentPending,
	}
}

// PaidAmount is the part of Amount already settled
func (p *Payment) PaidAmount() decimal.Decimal {
	return p.Amount.Sub(p.RemainingAmount)
}

// ApplyPaid sets the remaining amount from what has been paid and derives the status
func (p *Payment) ApplyPaid(paid decimal.Decimal, now time.Time) {
	remaining := p.Amount.Sub(paid)
	if remaining.IsNegative() {
		remaining = decimal.Zero
	}
	p.RemainingAmount = remaining

	switch {
	case remaining.IsZero():
		p.Status = PaymentCompleted
		if p.CompletedAt == nil {
			p.CompletedAt = &now
		}
	case remaining.LessThan(p.Amount):
		p.Status = PaymentPartial
		p.CompletedAt = nil
	default:
		p.Status = PaymentPending
		p.CompletedAt = nil
	}
}

// Recompute re-derives the status from the current remaining amount.
// Cancelled payments are left untouched.
func (p *Payment) Recompute(now time.Time) {
	if p.Status == PaymentCancelled {
		return
	}
	p.ApplyPaid(p.PaidAmount(), now)
}

// MarkCompleted settles the payment in full
func (p *Payment) MarkCompleted(now time.Time) {
	p.Status = PaymentCompleted
	p.RemainingAmount = decimal.Zero
	p.CompletedAt = &now
}

// MarkPending resets the payment to fully unpaid
func (p *Payment) MarkPending() {
	p.Status = PaymentPending
	p.RemainingAmount = p.Amount
	p.CompletedAt = nil
}

// Cancel moves the payment to the terminal cancelled state
func (p *Payment) Cancel() {
	p.Status = PaymentCancelled
	p.CompletedAt = nil
}

// IsCancelled reports whether the payment reached the terminal state
func (p *Payment) IsCancelled() bool {
	return p.Status == PaymentCancelled
}

// BeforeCreate assigns an id
func (p *Payment) BeforeCreate(tx *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}

// BeforeSave runs the automatic status transition on every save
func (p *Payment) BeforeSave(tx *gorm.DB) error {
	p.Recompute(tx.NowFunc())
	return nil
}

// PaymentReceipt is the uploaded proof attached to a payment
type PaymentReceipt struct {
	ID           uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	PaymentID    uuid.UUID       `gorm:"type:uuid;not null;uniqueIndex" json:"payment_id"`
	ReceiptImage string          `gorm:"size:500" json:"receipt_image"`
	AmountPaid   decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"amount_paid"`
	Notes        string          `gorm:"type:text" json:"notes,omitempty"`
	CreatedAt    time.Time       `gorm:"index" json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`

	Payment *Payment `gorm:"foreignKey:PaymentID" json:"payment,omitempty"`
}

// BeforeCreate assigns an id
func (r *PaymentReceipt) BeforeCreate(tx *gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return nil
}

// PaymentCheckpoint records the cumulative amount paid to a partner as of a
// business date. The most recent checkpoint_date is the active baseline.
type PaymentCheckpoint struct {
	ID             uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	PartnerID      uuid.UUID       `gorm:"type:uuid;not null;index" json:"partner_id"`
	AmountPaid     decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"amount_paid"`
	CheckpointDate time.Time       `gorm:"not null;index" json:"checkpoint_date"`
	Notes          string          `gorm:"type:text" json:"notes,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`

	Partner *Partner `gorm:"foreignKey:PartnerID" json:"-"`
}

// BeforeCreate assigns an id and defaults the checkpoint date to now
func (c *PaymentCheckpoint) BeforeCreate(tx *gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	if c.CheckpointDate.IsZero() {
		c.CheckpointDate = tx.NowFunc()
	}
	return nil
}
