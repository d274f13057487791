package ledger

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/google/uuid"
	"github.com/jordanlanch/partnerdb/pkg/domain"
	"github.com/jordanlanch/partnerdb/pkg/models"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Service computes snapshots straight from the database with count and
// sum queries, so no student or checkpoint rows are loaded.
type Service struct {
	db *gorm.DB
}

// NewService creates a new ledger service
func NewService(db *gorm.DB) *Service {
	return &Service{db: db}
}

// Snapshot computes the current commission state of a partner
func (s *Service) Snapshot(ctx context.Context, partnerID uuid.UUID) (*Snapshot, error) {
	var partner models.Partner
	if err := s.db.WithContext(ctx).First(&partner, "id = ?", partnerID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.NewNotFoundError("partner")
		}
		return nil, fmt.Errorf("failed to load partner: %w", err)
	}

	return s.SnapshotFor(ctx, &partner)
}

// SnapshotFor computes the snapshot of an already loaded partner
func (s *Service) SnapshotFor(ctx context.Context, partner *models.Partner) (*Snapshot, error) {
	db := s.db.WithContext(ctx)
	c := counts{}

	var latest []models.PaymentCheckpoint
	err := db.Where("partner_id = ?", partner.ID).
		Order("checkpoint_date DESC").
		Order("created_at DESC").
		Limit(1).
		Find(&latest).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load latest checkpoint: %w", err)
	}
	if len(latest) > 0 {
		c.latest = &latest[0]
	}

	students := func() *gorm.DB {
		return db.Model(&models.Student{}).Where("partner_id = ?", partner.ID)
	}

	if err := students().Where("is_confirmed = ?", false).Count(&c.pending).Error; err != nil {
		return nil, fmt.Errorf("failed to count pending students: %w", err)
	}
	if err := students().Where("is_confirmed = ?", true).Count(&c.confirmedAllTime).Error; err != nil {
		return nil, fmt.Errorf("failed to count confirmed students: %w", err)
	}

	if c.latest == nil {
		c.confirmedSince = c.confirmedAllTime
	} else {
		err := students().
			Where("is_confirmed = ? AND updated_at > ?", true, c.latest.CheckpointDate).
			Count(&c.confirmedSince).Error
		if err != nil {
			return nil, fmt.Errorf("failed to count confirmed students since checkpoint: %w", err)
		}
	}

	var paid decimal.NullDecimal
	err = db.Model(&models.PaymentCheckpoint{}).
		Select("SUM(amount_paid)").
		Where("partner_id = ?", partner.ID).
		Row().Scan(&paid)
	if err != nil {
		return nil, fmt.Errorf("failed to sum checkpoints: %w", err)
	}
	c.totalPaid = decimal.Zero
	if paid.Valid {
		c.totalPaid = paid.Decimal
	}

	snap := build(partner, c)
	return &snap, nil
}

// SnapshotAll computes snapshots for every active partner, most confirmed
// students since their last checkpoint first
func (s *Service) SnapshotAll(ctx context.Context) ([]Snapshot, error) {
	var partners []models.Partner
	err := s.db.WithContext(ctx).
		Where("status = ?", models.StatusActive).
		Order("name ASC").
		Find(&partners).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list partners: %w", err)
	}

	snapshots := make([]Snapshot, 0, len(partners))
	for i := range partners {
		snap, err := s.SnapshotFor(ctx, &partners[i])
		if err != nil {
			return nil, err
		}
		snapshots = append(snapshots, *snap)
	}

	sort.SliceStable(snapshots, func(i, j int) bool {
		return snapshots[i].ConfirmedSinceCheckpoint > snapshots[j].ConfirmedSinceCheckpoint
	})

	return snapshots, nil
}

// PayoutSummary is one row of the payments dashboard
type PayoutSummary struct {
	Snapshot
	Due decimal.Decimal `json:"due"`
}

// Payouts lists active partners by amount still due, largest first
func (s *Service) Payouts(ctx context.Context) ([]PayoutSummary, error) {
	snapshots, err := s.SnapshotAll(ctx)
	if err != nil {
		return nil, err
	}

	rows := make([]PayoutSummary, 0, len(snapshots))
	for _, snap := range snapshots {
		rows = append(rows, PayoutSummary{Snapshot: snap, Due: snap.PayoutDue()})
	}

	sort.SliceStable(rows, func(i, j int) bool {
		return rows[i].Due.GreaterThan(rows[j].Due)
	})

	return rows, nil
}
