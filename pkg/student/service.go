// Package student handles referral registrations and their confirmation.
package student

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jordanlanch/partnerdb/pkg/audit"
	"github.com/jordanlanch/partnerdb/pkg/clock"
	"github.com/jordanlanch/partnerdb/pkg/domain"
	"github.com/jordanlanch/partnerdb/pkg/logger"
	"github.com/jordanlanch/partnerdb/pkg/metrics"
	"github.com/jordanlanch/partnerdb/pkg/models"
	"github.com/jordanlanch/partnerdb/pkg/phone"
	"golang.org/x/text/unicode/norm"
	"gorm.io/gorm"
)

const notifyTimeout = 30 * time.Second

// Notifier sends the registration emails
type Notifier interface {
	SendStudentRegistration(ctx context.Context, student *models.Student) error
	SendPartnerNotification(ctx context.Context, student *models.Student, partner *models.Partner) error
	SendAdminNotification(ctx context.Context, student *models.Student, partner *models.Partner) error
}

// Service handles student registrations
type Service struct {
	db       *gorm.DB
	phones   *phone.Validator
	notifier Notifier
	audit    *audit.Service
	metrics  *metrics.Metrics
	clock    clock.Clock
	log      logger.Logger

	wg sync.WaitGroup
}

// NewService creates a new student service
func NewService(db *gorm.DB, phones *phone.Validator, notifier Notifier, auditSvc *audit.Service, m *metrics.Metrics, clk clock.Clock, log logger.Logger) *Service {
	return &Service{
		db:       db,
		phones:   phones,
		notifier: notifier,
		audit:    auditSvc,
		metrics:  m,
		clock:    clk,
		log:      log,
	}
}

// NormalizeCode canonicalizes a referral code as typed by a student
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(norm.NFKC.String(code)))
}

// RegisterInput is a registration form
type RegisterInput struct {
	FullName     string
	Email        string
	Phone        string
	ReferralCode string
	ProgramID    *uint
}

// Register creates a student attributed to the partner owning the
// referral code, then notifies the student, the partner and the operators
// in the background
func (s *Service) Register(ctx context.Context, in RegisterInput) (*models.Student, error) {
	code := NormalizeCode(in.ReferralCode)
	if code == "" {
		return nil, domain.NewValidationError("referral_code", "Partner code is required")
	}

	email := strings.ToLower(strings.TrimSpace(in.Email))
	if email == "" {
		return nil, domain.NewValidationError("email", "Email is required")
	}

	phoneNumber := strings.TrimSpace(in.Phone)
	if phoneNumber != "" {
		normalized, err := s.phones.Normalize(phoneNumber)
		if err != nil {
			return nil, domain.NewValidationError("phone", "Phone number is not valid")
		}
		phoneNumber = normalized
	}

	db := s.db.WithContext(ctx)

	var pc models.PartnershipCode
	err := db.
		Preload("Partner").
		Where("code = ? AND is_active = ?", code, true).
		Where("partner_id IN (?)", db.Model(&models.Partner{}).Select("id").Where("status = ?", models.StatusActive)).
		First(&pc).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.NewValidationError("referral_code", "Invalid or inactive partner code. Please check the code given by your partner.")
		}
		return nil, fmt.Errorf("failed to look up partner code: %w", err)
	}

	var program *models.Program
	if in.ProgramID != nil {
		program = &models.Program{}
		if err := db.Where("id = ? AND is_active = ?", *in.ProgramID, true).First(program).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, domain.NewValidationError("program_id", "Program is not available")
			}
			return nil, fmt.Errorf("failed to load program: %w", err)
		}
	}

	var existing int64
	if err := db.Model(&models.Student{}).Where("email = ?", email).Count(&existing).Error; err != nil {
		return nil, fmt.Errorf("failed to check email: %w", err)
	}
	if existing > 0 {
		return nil, domain.NewConflictError("A student with this email is already registered")
	}

	student := &models.Student{
		FullName:     strings.TrimSpace(in.FullName),
		Email:        email,
		Phone:        phoneNumber,
		PartnerID:    &pc.PartnerID,
		ReferralCode: code,
		ProgramID:    in.ProgramID,
	}

	err = db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(student).Error; err != nil {
			return fmt.Errorf("failed to create student: %w", err)
		}
		return s.audit.WithTx(tx).Log(ctx, audit.LogEntry{
			Action:      models.AuditStudentRegistered,
			Description: fmt.Sprintf("%s registered with code %s", student.FullName, code),
			StudentID:   &student.ID,
			PartnerID:   student.PartnerID,
			NewValues: map[string]interface{}{
				"email":         student.Email,
				"referral_code": code,
			},
		})
	})
	if err != nil {
		return nil, err
	}

	student.Partner = pc.Partner
	student.Program = program

	s.metrics.RecordStudentRegistered()
	s.log.Info("student registered", "student_id", student.ID, "partner_id", pc.PartnerID, "code", code)

	s.notify(student)

	return student, nil
}

// notify sends the three registration emails without blocking the caller.
// Failures are only logged.
func (s *Service) notify(student *models.Student) {
	if s.notifier == nil {
		return
	}

	sends := map[string]func(context.Context) error{
		"student_registration": func(ctx context.Context) error {
			return s.notifier.SendStudentRegistration(ctx, student)
		},
		"partner_notification": func(ctx context.Context) error {
			return s.notifier.SendPartnerNotification(ctx, student, student.Partner)
		},
		"admin_notification": func(ctx context.Context) error {
			return s.notifier.SendAdminNotification(ctx, student, student.Partner)
		},
	}

	for kind, send := range sends {
		s.wg.Add(1)
		go func(kind string, send func(context.Context) error) {
			defer s.wg.Done()

			ctx, cancel := context.WithTimeout(context.Background(), notifyTimeout)
			defer cancel()

			err := send(ctx)
			s.metrics.RecordNotification(kind, err == nil)
			if err != nil {
				s.log.Warn("registration email failed", "kind", kind, "student_id", student.ID, "error", err)
			}
		}(kind, send)
	}
}

// Wait blocks until pending notifications are done
func (s *Service) Wait() {
	s.wg.Wait()
}

// Confirm marks a student as confirmed. Confirming an already confirmed
// student writes nothing, so its confirmation time is kept.
func (s *Service) Confirm(ctx context.Context, id uuid.UUID) (*models.Student, error) {
	var student models.Student

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&student, "id = ?", id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return domain.NewNotFoundError("student")
			}
			return fmt.Errorf("failed to load student: %w", err)
		}
		if student.IsConfirmed {
			return nil
		}

		now := s.clock.Now()
		err := tx.Model(&student).Updates(map[string]interface{}{
			"is_confirmed": true,
			"updated_at":   now,
		}).Error
		if err != nil {
			return fmt.Errorf("failed to confirm student: %w", err)
		}
		student.IsConfirmed = true
		student.UpdatedAt = now

		s.metrics.RecordStudentConfirmed()
		return s.audit.WithTx(tx).Log(ctx, audit.LogEntry{
			Action:      models.AuditStudentConfirmed,
			Description: fmt.Sprintf("%s confirmed", student.FullName),
			StudentID:   &student.ID,
			PartnerID:   student.PartnerID,
			OldValues:   map[string]interface{}{"is_confirmed": false},
			NewValues:   map[string]interface{}{"is_confirmed": true},
		})
	})
	if err != nil {
		return nil, err
	}

	return &student, nil
}

// ListByPartner returns a partner's students, newest first. A non-nil
// confirmed narrows the list to that confirmation state.
func (s *Service) ListByPartner(ctx context.Context, partnerID uuid.UUID, confirmed *bool) ([]models.Student, error) {
	query := s.db.WithContext(ctx).
		Preload("Program").
		Where("partner_id = ?", partnerID)
	if confirmed != nil {
		query = query.Where("is_confirmed = ?", *confirmed)
	}

	var students []models.Student
	if err := query.Order("created_at DESC").Find(&students).Error; err != nil {
		return nil, fmt.Errorf("failed to list students: %w", err)
	}
	return students, nil
}

// ListRecent returns the latest registrations across partners
func (s *Service) ListRecent(ctx context.Context, limit int) ([]models.Student, error) {
	var students []models.Student
	err := s.db.WithContext(ctx).
		Preload("Partner").
		Preload("Program").
		Order("created_at DESC").
		Limit(limit).
		Find(&students).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list students: %w", err)
	}
	return students, nil
}

// Counts returns how many students are pending and confirmed overall
func (s *Service) Counts(ctx context.Context) (pending, confirmed int64, err error) {
	db := s.db.WithContext(ctx)
	if err = db.Model(&models.Student{}).Where("is_confirmed = ?", false).Count(&pending).Error; err != nil {
		return 0, 0, fmt.Errorf("failed to count students: %w", err)
	}
	if err = db.Model(&models.Student{}).Where("is_confirmed = ?", true).Count(&confirmed).Error; err != nil {
		return 0, 0, fmt.Errorf("failed to count students: %w", err)
	}
	return pending, confirmed, nil
}

// Get returns a student with its partner and program
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*models.Student, error) {
	var student models.Student
	err := s.db.WithContext(ctx).
		Preload("Partner").
		Preload("Program").
		First(&student, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.NewNotFoundError("student")
		}
		return nil, fmt.Errorf("failed to load student: %w", err)
	}
	return &student, nil
}

// ListPrograms returns the programs open for registration
func (s *Service) ListPrograms(ctx context.Context) ([]models.Program, error) {
	var programs []models.Program
	err := s.db.WithContext(ctx).
		Where("is_active = ?", true).
		Order("name ASC").
		Find(&programs).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list programs: %w", err)
	}
	return programs, nil
}
