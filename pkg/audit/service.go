package audit

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jordanlanch/partnerdb/pkg/models"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Service handles audit logging
type Service struct {
	db *gorm.DB
}

// NewService creates a new audit service
func NewService(db *gorm.DB) *Service {
	return &Service{db: db}
}

// WithTx returns a service writing through tx, so an entry commits or
// rolls back with the change it describes
func (s *Service) WithTx(tx *gorm.DB) *Service {
	return &Service{db: tx}
}

// LogEntry represents an audit log entry
type LogEntry struct {
	Action        models.AuditAction
	Description   string
	StudentID     *uuid.UUID
	PartnerID     *uuid.UUID
	PaymentID     *uuid.UUID
	PaymentAmount *decimal.Decimal
	OldValues     map[string]interface{}
	NewValues     map[string]interface{}
}

// Log creates a new audit log entry. Actor, IP address and user agent are
// taken from the request info stored in ctx, if any.
func (s *Service) Log(ctx context.Context, entry LogEntry) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	info := RequestInfoFrom(ctx)
	log := &models.AuditLog{
		Action:      entry.Action,
		Description: entry.Description,
		Actor:       info.Actor,
		StudentID:   entry.StudentID,
		PartnerID:   entry.PartnerID,
		PaymentID:   entry.PaymentID,
		IPAddress:   info.IPAddress,
		UserAgent:   info.UserAgent,
	}
	if entry.PaymentAmount != nil {
		log.PaymentAmount = decimal.NewNullDecimal(*entry.PaymentAmount)
	}
	if entry.OldValues != nil {
		log.OldValues = datatypes.JSONMap(entry.OldValues)
	}
	if entry.NewValues != nil {
		log.NewValues = datatypes.JSONMap(entry.NewValues)
	}

	if err := s.db.WithContext(ctx).Create(log).Error; err != nil {
		return fmt.Errorf("failed to write audit log: %w", err)
	}
	return nil
}

// GetRecentLogs returns the most recent entries
func (s *Service) GetRecentLogs(ctx context.Context, limit int) ([]models.AuditLog, error) {
	var logs []models.AuditLog
	err := s.db.WithContext(ctx).
		Order("created_at DESC").
		Limit(limit).
		Find(&logs).Error
	return logs, err
}

// GetPartnerLogs returns the most recent entries touching a partner
func (s *Service) GetPartnerLogs(ctx context.Context, partnerID uuid.UUID, limit int) ([]models.AuditLog, error) {
	var logs []models.AuditLog
	err := s.db.WithContext(ctx).
		Where("partner_id = ?", partnerID).
		Order("created_at DESC").
		Limit(limit).
		Find(&logs).Error
	return logs, err
}

// GetLogsByAction returns the most recent entries of one action
func (s *Service) GetLogsByAction(ctx context.Context, action models.AuditAction, limit int) ([]models.AuditLog, error) {
	var logs []models.AuditLog
	err := s.db.WithContext(ctx).
		Where("action = ?", action).
		Order("created_at DESC").
		Limit(limit).
		Find(&logs).Error
	return logs, err
}
