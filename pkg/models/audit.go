package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// AuditAction names an auditable event
type AuditAction string

const (
	AuditStudentRegistered AuditAction = "student_registered"
	AuditStudentConfirmed  AuditAction = "student_confirmed"
	AuditPaymentCreated    AuditAction = "payment_created"
	AuditPaymentUpdated    AuditAction = "payment_updated"
	AuditPaymentCompleted  AuditAction = "payment_completed"
	AuditPaymentCancelled  AuditAction = "payment_cancelled"
	AuditReceiptUploaded   AuditAction = "receipt_uploaded"
	AuditCheckpointCreated AuditAction = "checkpoint_created"
	AuditPartnerCreated    AuditAction = "partner_created"
	AuditPartnerUpdated    AuditAction = "partner_updated"
	AuditCodeGenerated     AuditAction = "code_generated"
)

// AuditLog is an append-only trace of who did what and when
type AuditLog struct {
	ID            uuid.UUID           `gorm:"type:uuid;primaryKey" json:"id"`
	Action        AuditAction         `gorm:"size:50;not null;index:idx_audit_action_created" json:"action"`
	Description   string              `gorm:"type:text" json:"description"`
	Actor         string              `gorm:"size:255" json:"actor,omitempty"`
	StudentID     *uuid.UUID          `gorm:"type:uuid;index" json:"student_id,omitempty"`
	PartnerID     *uuid.UUID          `gorm:"type:uuid;index" json:"partner_id,omitempty"`
	PaymentID     *uuid.UUID          `gorm:"type:uuid;index" json:"payment_id,omitempty"`
	PaymentAmount decimal.NullDecimal `gorm:"type:decimal(12,2)" json:"payment_amount,omitempty"`
	OldValues     datatypes.JSONMap   `json:"old_values,omitempty"`
	NewValues     datatypes.JSONMap   `json:"new_values,omitempty"`
	IPAddress     string              `gorm:"size:45" json:"ip_address,omitempty"`
	UserAgent     string              `gorm:"type:text" json:"user_agent,omitempty"`
	CreatedAt     time.Time           `gorm:"index;index:idx_audit_action_created" json:"created_at"`
}

// BeforeCreate assigns an id
func (l *AuditLog) BeforeCreate(tx *gorm.DB) error {
	if l.ID == uuid.Nil {
		l.ID = uuid.New()
	}
	return nil
}
