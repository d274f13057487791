// Package checkpoint records manual payouts that reset a partner's
// commission window. Checkpoints are append-only.
package checkpoint

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jordanlanch/partnerdb/pkg/audit"
	"github.com/jordanlanch/partnerdb/pkg/clock"
	"github.com/jordanlanch/partnerdb/pkg/domain"
	"github.com/jordanlanch/partnerdb/pkg/logger"
	"github.com/jordanlanch/partnerdb/pkg/metrics"
	"github.com/jordanlanch/partnerdb/pkg/models"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Service handles payment checkpoints
type Service struct {
	db      *gorm.DB
	audit   *audit.Service
	metrics *metrics.Metrics
	clock   clock.Clock
	log     logger.Logger
}

// NewService creates a new checkpoint service
func NewService(db *gorm.DB, auditSvc *audit.Service, m *metrics.Metrics, clk clock.Clock, log logger.Logger) *Service {
	return &Service{
		db:      db,
		audit:   auditSvc,
		metrics: m,
		clock:   clk,
		log:     log,
	}
}

// CreateInput describes a new checkpoint. A nil CheckpointDate means now.
type CreateInput struct {
	PartnerID      uuid.UUID
	AmountPaid     decimal.Decimal
	Notes          string
	CheckpointDate *time.Time
}

// Create records a checkpoint for a partner
func (s *Service) Create(ctx context.Context, in CreateInput) (*models.PaymentCheckpoint, error) {
	if in.AmountPaid.IsNegative() {
		return nil, domain.NewValidationError("amount_paid", "Amount paid cannot be negative")
	}

	date := s.clock.Now()
	if in.CheckpointDate != nil && !in.CheckpointDate.IsZero() {
		date = in.CheckpointDate.UTC()
	}

	cp := &models.PaymentCheckpoint{
		PartnerID:      in.PartnerID,
		AmountPaid:     in.AmountPaid,
		CheckpointDate: date,
		Notes:          in.Notes,
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var partner models.Partner
		if err := tx.Select("id", "name").First(&partner, "id = ?", in.PartnerID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return domain.NewNotFoundError("partner")
			}
			return fmt.Errorf("failed to load partner: %w", err)
		}

		if err := tx.Create(cp).Error; err != nil {
			return fmt.Errorf("failed to create checkpoint: %w", err)
		}

		amount := cp.AmountPaid
		return s.audit.WithTx(tx).Log(ctx, audit.LogEntry{
			Action:        models.AuditCheckpointCreated,
			Description:   fmt.Sprintf("Checkpoint for %s dated %s", partner.Name, date.Format(time.DateOnly)),
			PartnerID:     &partner.ID,
			PaymentAmount: &amount,
			NewValues: map[string]interface{}{
				"amount_paid":     amount.StringFixed(2),
				"checkpoint_date": date.Format(time.RFC3339),
				"notes":           cp.Notes,
			},
		})
	})
	if err != nil {
		return nil, err
	}

	s.metrics.RecordCheckpoint(cp.AmountPaid)
	s.log.Info("checkpoint created",
		"partner_id", cp.PartnerID,
		"amount_paid", cp.AmountPaid.StringFixed(2),
		"checkpoint_date", cp.CheckpointDate,
	)

	return cp, nil
}

// List returns a partner's checkpoints, most recent business date first
func (s *Service) List(ctx context.Context, partnerID uuid.UUID) ([]models.PaymentCheckpoint, error) {
	var checkpoints []models.PaymentCheckpoint
	err := s.db.WithContext(ctx).
		Where("partner_id = ?", partnerID).
		Order("checkpoint_date DESC").
		Order("created_at DESC").
		Find(&checkpoints).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list checkpoints: %w", err)
	}
	return checkpoints, nil
}

// Latest returns the active baseline checkpoint, or nil when the partner
// has never been paid
func (s *Service) Latest(ctx context.Context, partnerID uuid.UUID) (*models.PaymentCheckpoint, error) {
	var checkpoints []models.PaymentCheckpoint
	err := s.db.WithContext(ctx).
		Where("partner_id = ?", partnerID).
		Order("checkpoint_date DESC").
		Order("created_at DESC").
		Limit(1).
		Find(&checkpoints).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load latest checkpoint: %w", err)
	}
	if len(checkpoints) == 0 {
		return nil, nil
	}
	return &checkpoints[0], nil
}
