package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
	Field   string `json:"field,omitempty"`
}

// SuccessResponse represents a success response
type SuccessResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

// AdminLoginRequest represents an operator login
type AdminLoginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// PartnerLoginRequest represents a partner login; all three fields must match
type PartnerLoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Code     string `json:"code" validate:"required,max=20"`
	Password string `json:"password" validate:"required"`
}

// AuthResponse carries the issued token
type AuthResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	Role      string    `json:"role"`
	Name      string    `json:"name,omitempty"`
}

// StudentRegistrationRequest is the public registration form
type StudentRegistrationRequest struct {
	FullName     string `json:"full_name" validate:"required,max=200"`
	Email        string `json:"email" validate:"required,email"`
	Phone        string `json:"phone" validate:"omitempty,max=20"`
	ReferralCode string `json:"referral_code" validate:"required,max=100"`
	ProgramID    *uint  `json:"program_id" validate:"required"`
}

// PartnerCreateRequest is the admin quick-create partner form
type PartnerCreateRequest struct {
	Name                 string           `json:"name" validate:"required,max=255"`
	PartnerType          string           `json:"partner_type" validate:"required,oneof=LIB JV SUP CAF BOO MAG IND"`
	Email                string           `json:"email" validate:"required,email"`
	Phone                string           `json:"phone" validate:"omitempty,max=20"`
	ContactPerson        string           `json:"contact_person" validate:"omitempty,max=255"`
	Address              string           `json:"address"`
	CommissionPerStudent *decimal.Decimal `json:"commission_per_student"`
	Password             string           `json:"password" validate:"required,min=8"`
}

// CheckpointCreateRequest records a manual payment checkpoint
type CheckpointCreateRequest struct {
	AmountPaid     *decimal.Decimal `json:"amount_paid" validate:"required"`
	Notes          string           `json:"notes"`
	CheckpointDate *time.Time       `json:"checkpoint_date"`
}

// PaymentCreateRequest creates a payment record
type PaymentCreateRequest struct {
	Amount          *decimal.Decimal `json:"amount" validate:"required"`
	RemainingAmount *decimal.Decimal `json:"remaining_amount"`
	Reference       string           `json:"reference" validate:"omitempty,max=100"`
	Notes           string           `json:"notes"`
}

// PartnershipRequestForm is the public contact form
type PartnershipRequestForm struct {
	BusinessName string `json:"business_name" validate:"required,max=255"`
	BusinessType string `json:"business_type" validate:"required,oneof=LIB JV SUP CAF BOO MAG IND"`
	Email        string `json:"email" validate:"required,email"`
	Phone        string `json:"phone" validate:"required,max=20"`
	Address      string `json:"address" validate:"required"`
	Message      string `json:"message" validate:"required"`
}

// PartnerStatusRequest activates, deactivates or suspends a partner
type PartnerStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=active inactive suspended"`
}

// PaymentPaidRequest records how much of a payment has been settled
type PaymentPaidRequest struct {
	PaidAmount *decimal.Decimal `json:"paid_amount" validate:"required"`
}
