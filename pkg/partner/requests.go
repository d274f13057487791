package partner

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jordanlanch/partnerdb/pkg/domain"
	"github.com/jordanlanch/partnerdb/pkg/models"
	"gorm.io/gorm"
)

// RequestInput is a partnership application from the contact page
type RequestInput struct {
	BusinessName string
	BusinessType models.PartnerType
	Email        string
	Phone        string
	Address      string
	Message      string
}

// SubmitRequest stores a partnership application and forwards it to the
// operators. A failed email does not reject the application.
func (s *Service) SubmitRequest(ctx context.Context, in RequestInput) (*models.PartnershipRequest, error) {
	if strings.TrimSpace(in.BusinessName) == "" {
		return nil, domain.NewValidationError("business_name", "Business name is required")
	}
	if strings.TrimSpace(in.Email) == "" {
		return nil, domain.NewValidationError("email", "Email is required")
	}
	if !in.BusinessType.Valid() {
		return nil, domain.NewValidationError("business_type", "Unknown business type")
	}

	phoneNumber, err := s.normalizePhone(in.Phone)
	if err != nil {
		return nil, err
	}
	if phoneNumber == "" {
		return nil, domain.NewValidationError("phone", "Phone number is required")
	}

	req := &models.PartnershipRequest{
		BusinessName: strings.TrimSpace(in.BusinessName),
		BusinessType: in.BusinessType,
		Email:        strings.ToLower(strings.TrimSpace(in.Email)),
		Phone:        phoneNumber,
		Address:      strings.TrimSpace(in.Address),
		Message:      strings.TrimSpace(in.Message),
	}
	if err := s.db.WithContext(ctx).Create(req).Error; err != nil {
		return nil, fmt.Errorf("failed to store partnership request: %w", err)
	}

	if s.notifier != nil {
		err := s.notifier.SendPartnershipRequest(ctx, req)
		s.metrics.RecordNotification("partnership_request", err == nil)
		if err != nil {
			s.log.Warn("partnership request email failed", "request_id", req.ID, "error", err)
		}
	}

	return req, nil
}

// ListRequests returns partnership requests, newest first. A non-nil
// processed narrows the list.
func (s *Service) ListRequests(ctx context.Context, processed *bool) ([]models.PartnershipRequest, error) {
	query := s.db.WithContext(ctx)
	if processed != nil {
		query = query.Where("is_processed = ?", *processed)
	}

	var reqs []models.PartnershipRequest
	if err := query.Order("created_at DESC").Find(&reqs).Error; err != nil {
		return nil, fmt.Errorf("failed to list partnership requests: %w", err)
	}
	return reqs, nil
}

// MarkRequestProcessed flags a request as handled
func (s *Service) MarkRequestProcessed(ctx context.Context, id uuid.UUID) (*models.PartnershipRequest, error) {
	var req models.PartnershipRequest
	db := s.db.WithContext(ctx)
	if err := db.First(&req, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.NewNotFoundError("partnership request")
		}
		return nil, fmt.Errorf("failed to load partnership request: %w", err)
	}
	if req.IsProcessed {
		return &req, nil
	}
	if err := db.Model(&req).Update("is_processed", true).Error; err != nil {
		return nil, fmt.Errorf("failed to update partnership request: %w", err)
	}
	req.IsProcessed = true
	return &req, nil
}
