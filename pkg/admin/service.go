// Package admin manages operator accounts.
package admin

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jordanlanch/partnerdb/pkg/auth"
	"github.com/jordanlanch/partnerdb/pkg/domain"
	"github.com/jordanlanch/partnerdb/pkg/logger"
	"github.com/jordanlanch/partnerdb/pkg/models"
	"gorm.io/gorm"
)

var errInvalidCredentials = domain.NewUnauthorizedError("Invalid username or password")

// Service handles operator accounts
type Service struct {
	db  *gorm.DB
	log logger.Logger
}

// NewService creates a new admin service
func NewService(db *gorm.DB, log logger.Logger) *Service {
	return &Service{db: db, log: log}
}

// Authenticate checks operator credentials
func (s *Service) Authenticate(ctx context.Context, username, password string) (*models.AdminUser, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return nil, domain.NewValidationError("credentials", "All fields are required")
	}

	var a models.AdminUser
	if err := s.db.WithContext(ctx).Where("username = ?", username).First(&a).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errInvalidCredentials
		}
		return nil, fmt.Errorf("failed to load admin: %w", err)
	}
	if !auth.CheckPassword(a.PasswordHash, password) {
		return nil, errInvalidCredentials
	}
	return &a, nil
}

// Get returns an operator by id
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*models.AdminUser, error) {
	var a models.AdminUser
	if err := s.db.WithContext(ctx).First(&a, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.NewNotFoundError("admin")
		}
		return nil, fmt.Errorf("failed to load admin: %w", err)
	}
	return &a, nil
}

// Ensure creates the operator account when it does not exist yet. An
// existing account is returned unchanged.
func (s *Service) Ensure(ctx context.Context, username, email, password string) (*models.AdminUser, bool, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return nil, false, domain.NewValidationError("username", "Username and password are required")
	}

	db := s.db.WithContext(ctx)

	var existing models.AdminUser
	err := db.Where("username = ?", username).First(&existing).Error
	if err == nil {
		return &existing, false, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, fmt.Errorf("failed to load admin: %w", err)
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return nil, false, fmt.Errorf("failed to hash password: %w", err)
	}

	a := &models.AdminUser{
		Username:     username,
		Email:        strings.ToLower(strings.TrimSpace(email)),
		PasswordHash: hash,
		IsSuperuser:  true,
	}
	if err := db.Create(a).Error; err != nil {
		return nil, false, fmt.Errorf("failed to create admin: %w", err)
	}

	s.log.Info("admin account created", "username", username)
	return a, true, nil
}
