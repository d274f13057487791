// Package payment manages payouts to partners and their receipts.
package payment

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jordanlanch/partnerdb/pkg/audit"
	"github.com/jordanlanch/partnerdb/pkg/clock"
	"github.com/jordanlanch/partnerdb/pkg/domain"
	"github.com/jordanlanch/partnerdb/pkg/logger"
	"github.com/jordanlanch/partnerdb/pkg/metrics"
	"github.com/jordanlanch/partnerdb/pkg/models"
	"github.com/jordanlanch/partnerdb/pkg/storage"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// MaxReceiptSize is the largest accepted receipt image (5 MB)
const MaxReceiptSize = 5 << 20

var receiptContentTypes = map[string]string{
	"jpg":  "image/jpeg",
	"jpeg": "image/jpeg",
	"png":  "image/png",
}

// Service handles payments and receipts
type Service struct {
	db      *gorm.DB
	store   storage.FileStore
	audit   *audit.Service
	metrics *metrics.Metrics
	clock   clock.Clock
	log     logger.Logger
}

// NewService creates a new payment service
func NewService(db *gorm.DB, store storage.FileStore, auditSvc *audit.Service, m *metrics.Metrics, clk clock.Clock, log logger.Logger) *Service {
	return &Service{
		db:      db,
		store:   store,
		audit:   auditSvc,
		metrics: m,
		clock:   clk,
		log:     log,
	}
}

// CreateInput describes a new payment. A nil RemainingAmount means nothing
// has been paid yet.
type CreateInput struct {
	PartnerID       uuid.UUID
	Amount          decimal.Decimal
	RemainingAmount *decimal.Decimal
	Reference       string
	Notes           string
}

// Create records a payment owed to a partner
func (s *Service) Create(ctx context.Context, in CreateInput) (*models.Payment, error) {
	if !in.Amount.IsPositive() {
		return nil, domain.NewValidationError("amount", "Amount must be greater than zero")
	}
	if in.RemainingAmount != nil && in.RemainingAmount.IsNegative() {
		return nil, domain.NewValidationError("remaining_amount", "Remaining amount cannot be negative")
	}
	if in.RemainingAmount != nil && in.RemainingAmount.GreaterThan(in.Amount) {
		return nil, domain.NewValidationError("remaining_amount", "Remaining amount cannot exceed the amount")
	}

	p := models.NewPayment(in.PartnerID, in.Amount)
	if in.RemainingAmount != nil {
		p.RemainingAmount = *in.RemainingAmount
	}
	p.Reference = strings.TrimSpace(in.Reference)
	p.Notes = in.Notes

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := partnerExists(tx, in.PartnerID); err != nil {
			return err
		}
		if err := tx.Create(p).Error; err != nil {
			return fmt.Errorf("failed to create payment: %w", err)
		}
		return s.audit.WithTx(tx).Log(ctx, audit.LogEntry{
			Action:        models.AuditPaymentCreated,
			Description:   fmt.Sprintf("Payment of %s created", p.Amount.StringFixed(2)),
			PartnerID:     &p.PartnerID,
			PaymentID:     &p.ID,
			PaymentAmount: &p.Amount,
			NewValues:     paymentValues(p),
		})
	})
	if err != nil {
		return nil, err
	}

	s.metrics.RecordPaymentCreated()
	s.metrics.RecordPaymentTransition(string(p.Status))
	s.log.Info("payment created", "payment_id", p.ID, "partner_id", p.PartnerID, "status", p.Status)

	return p, nil
}

// RecordPaid sets how much of a payment has been settled; the status follows
func (s *Service) RecordPaid(ctx context.Context, id uuid.UUID, paid decimal.Decimal) (*models.Payment, error) {
	if paid.IsNegative() {
		return nil, domain.NewValidationError("paid_amount", "Paid amount cannot be negative")
	}

	return s.transition(ctx, id, models.AuditPaymentUpdated, false, func(p *models.Payment) {
		p.ApplyPaid(paid, s.clock.Now())
	})
}

// MarkCompleted settles a payment in full
func (s *Service) MarkCompleted(ctx context.Context, id uuid.UUID) (*models.Payment, error) {
	return s.transition(ctx, id, models.AuditPaymentCompleted, true, func(p *models.Payment) {
		p.MarkCompleted(s.clock.Now())
	})
}

// MarkPending resets a payment to fully unpaid
func (s *Service) MarkPending(ctx context.Context, id uuid.UUID) (*models.Payment, error) {
	return s.transition(ctx, id, models.AuditPaymentUpdated, true, func(p *models.Payment) {
		p.MarkPending()
	})
}

// Cancel moves a payment to the terminal cancelled state
func (s *Service) Cancel(ctx context.Context, id uuid.UUID) (*models.Payment, error) {
	return s.transition(ctx, id, models.AuditPaymentCancelled, true, func(p *models.Payment) {
		p.Cancel()
	})
}

// transition loads a payment, applies change and saves it. Explicit
// transitions skip the save hooks so the automatic recompute cannot
// override them.
func (s *Service) transition(ctx context.Context, id uuid.UUID, action models.AuditAction, explicit bool, change func(*models.Payment)) (*models.Payment, error) {
	var p models.Payment

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&p, "id = ?", id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return domain.NewNotFoundError("payment")
			}
			return fmt.Errorf("failed to load payment: %w", err)
		}
		if p.IsCancelled() {
			return domain.NewConflictError("Payment is cancelled and can no longer change")
		}

		old := paymentValues(&p)
		change(&p)

		save := tx
		if explicit {
			save = tx.Session(&gorm.Session{SkipHooks: true})
		}
		if err := save.Save(&p).Error; err != nil {
			return fmt.Errorf("failed to save payment: %w", err)
		}

		return s.audit.WithTx(tx).Log(ctx, audit.LogEntry{
			Action:        action,
			Description:   fmt.Sprintf("Payment %s is now %s", p.ID, p.Status),
			PartnerID:     &p.PartnerID,
			PaymentID:     &p.ID,
			PaymentAmount: &p.Amount,
			OldValues:     old,
			NewValues:     paymentValues(&p),
		})
	})
	if err != nil {
		return nil, err
	}

	s.metrics.RecordPaymentTransition(string(p.Status))
	s.log.Info("payment updated", "payment_id", p.ID, "status", p.Status, "remaining", p.RemainingAmount.StringFixed(2))

	return &p, nil
}

// UploadInput is a receipt for a payout already made
type UploadInput struct {
	PartnerID  uuid.UUID
	AmountPaid decimal.Decimal
	File       io.Reader
	Filename   string
	Notes      string
}

// UploadReceipt records a completed payment together with its receipt
// image. A storage failure is logged and the payment is still recorded
// without an image.
func (s *Service) UploadReceipt(ctx context.Context, in UploadInput) (*models.PaymentReceipt, error) {
	if !in.AmountPaid.IsPositive() {
		return nil, domain.NewValidationError("amount_paid", "Amount paid must be greater than zero")
	}

	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(in.Filename), "."))
	contentType, ok := receiptContentTypes[ext]
	if !ok {
		return nil, domain.NewValidationError("receipt_image", "Receipt must be a JPG or PNG image")
	}
	if in.File == nil {
		return nil, domain.NewValidationError("receipt_image", "Receipt image is required")
	}

	data, err := io.ReadAll(io.LimitReader(in.File, MaxReceiptSize+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read receipt: %w", err)
	}
	if len(data) > MaxReceiptSize {
		return nil, domain.NewValidationError("receipt_image", "Receipt image must not exceed 5 MB")
	}

	if err := partnerExists(s.db.WithContext(ctx), in.PartnerID); err != nil {
		return nil, err
	}

	now := s.clock.Now()
	key := storage.ReceiptKey(now, ext)
	if err := s.store.Put(ctx, key, bytes.NewReader(data), contentType); err != nil {
		s.log.Error("failed to store receipt image", "partner_id", in.PartnerID, "key", key, "error", err)
		key = ""
	}

	p := models.NewPayment(in.PartnerID, in.AmountPaid)
	p.MarkCompleted(now)
	p.Notes = in.Notes

	receipt := &models.PaymentReceipt{
		ReceiptImage: key,
		AmountPaid:   in.AmountPaid,
		Notes:        in.Notes,
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(p).Error; err != nil {
			return fmt.Errorf("failed to create payment: %w", err)
		}
		receipt.PaymentID = p.ID
		if err := tx.Create(receipt).Error; err != nil {
			return fmt.Errorf("failed to create receipt: %w", err)
		}
		return s.audit.WithTx(tx).Log(ctx, audit.LogEntry{
			Action:        models.AuditReceiptUploaded,
			Description:   fmt.Sprintf("Receipt of %s uploaded", in.AmountPaid.StringFixed(2)),
			PartnerID:     &p.PartnerID,
			PaymentID:     &p.ID,
			PaymentAmount: &p.Amount,
			NewValues:     map[string]interface{}{"receipt_image": key, "notes": in.Notes},
		})
	})
	if err != nil {
		if key != "" {
			if delErr := s.store.Delete(ctx, key); delErr != nil {
				s.log.Error("failed to remove orphaned receipt image", "key", key, "error", delErr)
			}
		}
		return nil, err
	}

	receipt.Payment = p
	s.metrics.RecordReceiptUploaded()
	s.metrics.RecordPaymentTransition(string(p.Status))
	s.log.Info("receipt uploaded", "payment_id", p.ID, "partner_id", p.PartnerID, "stored", key != "")

	return receipt, nil
}

// ListReceipts returns a partner's receipts, newest first
func (s *Service) ListReceipts(ctx context.Context, partnerID uuid.UUID) ([]models.PaymentReceipt, error) {
	var receipts []models.PaymentReceipt
	db := s.db.WithContext(ctx)
	err := db.
		Preload("Payment").
		Where("payment_id IN (?)", db.Model(&models.Payment{}).Select("id").Where("partner_id = ?", partnerID)).
		Order("created_at DESC").
		Find(&receipts).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list receipts: %w", err)
	}
	return receipts, nil
}

// ReceiptImage opens the stored image of a receipt
func (s *Service) ReceiptImage(ctx context.Context, receipt *models.PaymentReceipt) (io.ReadCloser, error) {
	if receipt.ReceiptImage == "" {
		return nil, domain.NewNotFoundError("receipt image")
	}
	return s.store.Get(ctx, receipt.ReceiptImage)
}

// Get returns a payment with its partner and receipt
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*models.Payment, error) {
	var p models.Payment
	err := s.db.WithContext(ctx).
		Preload("Partner").
		Preload("Receipt").
		First(&p, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.NewNotFoundError("payment")
		}
		return nil, fmt.Errorf("failed to load payment: %w", err)
	}
	return &p, nil
}

// Filter narrows a payment listing
type Filter struct {
	PartnerID *uuid.UUID
	Status    models.PaymentStatus
	From      *time.Time
	To        *time.Time
	Limit     int
}

// List returns payments matching f, newest first
func (s *Service) List(ctx context.Context, f Filter) ([]models.Payment, error) {
	query := s.db.WithContext(ctx).Model(&models.Payment{}).Preload("Partner")

	if f.PartnerID != nil {
		query = query.Where("partner_id = ?", *f.PartnerID)
	}
	if f.Status != "" {
		query = query.Where("status = ?", f.Status)
	}
	if f.From != nil {
		query = query.Where("created_at >= ?", f.From.UTC())
	}
	if f.To != nil {
		query = query.Where("created_at < ?", f.To.UTC())
	}
	if f.Limit > 0 {
		query = query.Limit(f.Limit)
	}

	var payments []models.Payment
	if err := query.Order("created_at DESC").Find(&payments).Error; err != nil {
		return nil, fmt.Errorf("failed to list payments: %w", err)
	}
	return payments, nil
}

// Totals sums payment amounts by status
func (s *Service) Totals(ctx context.Context) (map[models.PaymentStatus]decimal.Decimal, error) {
	rows, err := s.db.WithContext(ctx).
		Model(&models.Payment{}).
		Select("status, SUM(amount)").
		Group("status").
		Rows()
	if err != nil {
		return nil, fmt.Errorf("failed to sum payments: %w", err)
	}
	defer rows.Close()

	totals := map[models.PaymentStatus]decimal.Decimal{
		models.PaymentPending:   decimal.Zero,
		models.PaymentPartial:   decimal.Zero,
		models.PaymentCompleted: decimal.Zero,
		models.PaymentCancelled: decimal.Zero,
	}
	for rows.Next() {
		var status string
		var sum decimal.NullDecimal
		if err := rows.Scan(&status, &sum); err != nil {
			return nil, fmt.Errorf("failed to scan payment totals: %w", err)
		}
		if sum.Valid {
			totals[models.PaymentStatus(status)] = sum.Decimal
		}
	}
	return totals, rows.Err()
}

// TotalPaidByReceipts sums the receipts of a partner
func (s *Service) TotalPaidByReceipts(ctx context.Context, partnerID uuid.UUID) (decimal.Decimal, error) {
	var sum decimal.NullDecimal
	err := s.db.WithContext(ctx).
		Model(&models.PaymentReceipt{}).
		Joins("JOIN payments ON payments.id = payment_receipts.payment_id").
		Where("payments.partner_id = ?", partnerID).
		Select("SUM(payment_receipts.amount_paid)").
		Row().Scan(&sum)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to sum receipts: %w", err)
	}
	if !sum.Valid {
		return decimal.Zero, nil
	}
	return sum.Decimal, nil
}

func partnerExists(db *gorm.DB, partnerID uuid.UUID) error {
	var count int64
	if err := db.Model(&models.Partner{}).Where("id = ?", partnerID).Count(&count).Error; err != nil {
		return fmt.Errorf("failed to load partner: %w", err)
	}
	if count == 0 {
		return domain.NewNotFoundError("partner")
	}
	return nil
}

func paymentValues(p *models.Payment) map[string]interface{} {
	return map[string]interface{}{
		"amount":           p.Amount.StringFixed(2),
		"remaining_amount": p.RemainingAmount.StringFixed(2),
		"status":           string(p.Status),
	}
}
