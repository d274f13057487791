// Package partner onboards partners and manages their referral codes.
package partner

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/google/uuid"
	"github.com/jordanlanch/partnerdb/pkg/audit"
	"github.com/jordanlanch/partnerdb/pkg/auth"
	"github.com/jordanlanch/partnerdb/pkg/domain"
	"github.com/jordanlanch/partnerdb/pkg/logger"
	"github.com/jordanlanch/partnerdb/pkg/metrics"
	"github.com/jordanlanch/partnerdb/pkg/models"
	"github.com/jordanlanch/partnerdb/pkg/phone"
	"github.com/jordanlanch/partnerdb/pkg/student"
	"github.com/shopspring/decimal"
	qrcode "github.com/skip2/go-qrcode"
	"gorm.io/gorm"
)

const (
	// codeAttempts bounds id regeneration when a derived code is taken
	codeAttempts = 10
	qrSize       = 256
)

var errInvalidCredentials = domain.NewUnauthorizedError("Invalid email, code or password")

// RequestNotifier forwards partnership requests to the operators
type RequestNotifier interface {
	SendPartnershipRequest(ctx context.Context, req *models.PartnershipRequest) error
}

// Service handles partner accounts
type Service struct {
	db       *gorm.DB
	phones   *phone.Validator
	notifier RequestNotifier
	audit    *audit.Service
	metrics  *metrics.Metrics
	log      logger.Logger
}

// NewService creates a new partner service
func NewService(db *gorm.DB, phones *phone.Validator, notifier RequestNotifier, auditSvc *audit.Service, m *metrics.Metrics, log logger.Logger) *Service {
	return &Service{
		db:       db,
		phones:   phones,
		notifier: notifier,
		audit:    auditSvc,
		metrics:  m,
		log:      log,
	}
}

// CreateInput describes a new partner
type CreateInput struct {
	Name                 string
	PartnerType          models.PartnerType
	Email                string
	Phone                string
	ContactPerson        string
	Address              string
	CommissionPerStudent *decimal.Decimal
	Password             string
}

// Created is a new partner with its first referral code
type Created struct {
	Partner *models.Partner
	Code    *models.PartnershipCode
}

// Create registers a partner, hashes its password and issues its referral code
func (s *Service) Create(ctx context.Context, in CreateInput) (*Created, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, domain.NewValidationError("name", "Name is required")
	}
	email := strings.ToLower(strings.TrimSpace(in.Email))
	if email == "" {
		return nil, domain.NewValidationError("email", "Email is required")
	}
	if in.Password == "" {
		return nil, domain.NewValidationError("password", "Password is required")
	}

	partnerType := in.PartnerType
	if partnerType == "" {
		partnerType = models.PartnerTypeLibrary
	}
	if !partnerType.Valid() {
		return nil, domain.NewValidationError("partner_type", "Unknown partner type")
	}

	commission := models.DefaultCommissionPerStudent
	if in.CommissionPerStudent != nil {
		commission = *in.CommissionPerStudent
	}
	if commission.IsNegative() {
		return nil, domain.NewValidationError("commission_per_student", "Commission cannot be negative")
	}

	phoneNumber, err := s.normalizePhone(in.Phone)
	if err != nil {
		return nil, err
	}

	hash, err := auth.HashPassword(in.Password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	p := &models.Partner{
		Name:                 name,
		PartnerType:          partnerType,
		Email:                email,
		Phone:                phoneNumber,
		ContactPerson:        strings.TrimSpace(in.ContactPerson),
		Address:              strings.TrimSpace(in.Address),
		PasswordHash:         hash,
		CommissionPerStudent: commission,
		Status:               models.StatusActive,
	}
	var code *models.PartnershipCode

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var taken int64
		if err := tx.Model(&models.Partner{}).Where("email = ?", email).Count(&taken).Error; err != nil {
			return fmt.Errorf("failed to check email: %w", err)
		}
		if taken > 0 {
			return domain.NewConflictError("A partner with this email already exists")
		}

		if err := assignFreeCode(tx, p); err != nil {
			return err
		}
		if err := tx.Create(p).Error; err != nil {
			return fmt.Errorf("failed to create partner: %w", err)
		}

		code = &models.PartnershipCode{PartnerID: p.ID, Code: p.PartnerCode(), IsActive: true}
		if err := tx.Create(code).Error; err != nil {
			return fmt.Errorf("failed to create partnership code: %w", err)
		}

		return s.audit.WithTx(tx).Log(ctx, audit.LogEntry{
			Action:      models.AuditPartnerCreated,
			Description: fmt.Sprintf("Partner %s created with code %s", p.Name, code.Code),
			PartnerID:   &p.ID,
			NewValues: map[string]interface{}{
				"name":                   p.Name,
				"partner_type":           string(p.PartnerType),
				"commission_per_student": p.CommissionPerStudent.String(),
				"code":                   code.Code,
			},
		})
	})
	if err != nil {
		return nil, err
	}

	s.metrics.RecordPartnerOnboarded()
	s.log.Info("partner created", "partner_id", p.ID, "code", code.Code)

	return &Created{Partner: p, Code: code}, nil
}

// assignFreeCode picks an id whose derived code is not taken yet
func assignFreeCode(tx *gorm.DB, p *models.Partner) error {
	for i := 0; i < codeAttempts; i++ {
		p.ID = uuid.New()

		var taken int64
		err := tx.Model(&models.PartnershipCode{}).Where("code = ?", p.PartnerCode()).Count(&taken).Error
		if err != nil {
			return fmt.Errorf("failed to check partnership code: %w", err)
		}
		if taken == 0 {
			return nil
		}
	}
	return domain.NewConflictError("Could not allocate a free partner code")
}

func (s *Service) normalizePhone(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", nil
	}
	normalized, err := s.phones.Normalize(raw)
	if err != nil {
		return "", domain.NewValidationError("phone", "Phone number is not valid")
	}
	return normalized, nil
}

// Get returns a partner by id
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*models.Partner, error) {
	var p models.Partner
	if err := s.db.WithContext(ctx).First(&p, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.NewNotFoundError("partner")
		}
		return nil, fmt.Errorf("failed to load partner: %w", err)
	}
	return &p, nil
}

// GetByCode returns the partner owning a referral code, active or not
func (s *Service) GetByCode(ctx context.Context, code string) (*models.Partner, error) {
	var pc models.PartnershipCode
	err := s.db.WithContext(ctx).
		Preload("Partner").
		Where("code = ?", student.NormalizeCode(code)).
		First(&pc).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.NewNotFoundError("partner")
		}
		return nil, fmt.Errorf("failed to load partnership code: %w", err)
	}
	if pc.Partner == nil {
		return nil, domain.NewNotFoundError("partner")
	}
	return pc.Partner, nil
}

// ListActive returns active partners by name
func (s *Service) ListActive(ctx context.Context) ([]models.Partner, error) {
	var partners []models.Partner
	err := s.db.WithContext(ctx).
		Where("status = ?", models.StatusActive).
		Order("name ASC").
		Find(&partners).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list partners: %w", err)
	}
	return partners, nil
}

// CountActive returns the number of active partners
func (s *Service) CountActive(ctx context.Context) (int64, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&models.Partner{}).Where("status = ?", models.StatusActive).Count(&n).Error
	if err != nil {
		return 0, fmt.Errorf("failed to count partners: %w", err)
	}
	return n, nil
}

// ListCodes returns the active referral codes of a partner
func (s *Service) ListCodes(ctx context.Context, partnerID uuid.UUID) ([]models.PartnershipCode, error) {
	var codes []models.PartnershipCode
	err := s.db.WithContext(ctx).
		Where("partner_id = ? AND is_active = ?", partnerID, true).
		Order("created_at ASC").
		Find(&codes).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list codes: %w", err)
	}
	return codes, nil
}

// SetStatus activates, deactivates or suspends a partner
func (s *Service) SetStatus(ctx context.Context, id uuid.UUID, status models.Status) (*models.Partner, error) {
	if !status.Valid() {
		return nil, domain.NewValidationError("status", "Unknown status")
	}

	var p models.Partner
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&p, "id = ?", id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return domain.NewNotFoundError("partner")
			}
			return fmt.Errorf("failed to load partner: %w", err)
		}
		if p.Status == status {
			return nil
		}

		old := p.Status
		if err := tx.Model(&p).Update("status", status).Error; err != nil {
			return fmt.Errorf("failed to update partner: %w", err)
		}
		p.Status = status

		return s.audit.WithTx(tx).Log(ctx, audit.LogEntry{
			Action:      models.AuditPartnerUpdated,
			Description: fmt.Sprintf("Partner %s is now %s", p.Name, status),
			PartnerID:   &p.ID,
			OldValues:   map[string]interface{}{"status": string(old)},
			NewValues:   map[string]interface{}{"status": string(status)},
		})
	})
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// Authenticate checks partner login credentials. Every mismatch yields the
// same unauthorized error.
func (s *Service) Authenticate(ctx context.Context, email, code, password string) (*models.Partner, string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	code = student.NormalizeCode(code)
	if email == "" || code == "" || password == "" {
		return nil, "", domain.NewValidationError("credentials", "All fields are required")
	}

	var pc models.PartnershipCode
	err := s.db.WithContext(ctx).
		Preload("Partner").
		Where("code = ? AND is_active = ?", code, true).
		First(&pc).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, "", errInvalidCredentials
		}
		return nil, "", fmt.Errorf("failed to load partnership code: %w", err)
	}

	p := pc.Partner
	if p == nil || !strings.EqualFold(p.Email, email) || !auth.CheckPassword(p.PasswordHash, password) {
		return nil, "", errInvalidCredentials
	}
	return p, code, nil
}

// QRCode renders a base64 PNG QR code pointing at the registration form
// prefilled with code
func QRCode(code, baseURL string) (string, error) {
	target := strings.TrimRight(baseURL, "/") + "/register?code=" + url.QueryEscape(code)

	png, err := qrcode.Encode(target, qrcode.Low, qrSize)
	if err != nil {
		return "", fmt.Errorf("failed to encode qr code: %w", err)
	}
	return base64.StdEncoding.EncodeToString(png), nil
}
