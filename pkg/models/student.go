package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Program is a workshop or course a student can enroll in
type Program struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	Name        string    `gorm:"size:100;not null;uniqueIndex" json:"name"`
	Description string    `gorm:"type:text" json:"description,omitempty"`
	IsActive    bool      `gorm:"not null" json:"is_active"`
	CreatedAt   time.Time `json:"created_at"`
}

// Student is a registration attributed to a partner through a referral code.
// UpdatedAt doubles as the confirmation time when compared against checkpoints.
type Student struct {
	ID             uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	FullName       string     `gorm:"size:200" json:"full_name"`
	Email          string     `gorm:"size:255;not null;uniqueIndex" json:"email"`
	Phone          string     `gorm:"size:20" json:"phone,omitempty"`
	PartnerID      *uuid.UUID `gorm:"type:uuid;index" json:"partner_id,omitempty"`
	ReferralCode   string     `gorm:"size:100" json:"referral_code"`
	ProgramID      *uint      `gorm:"index" json:"program_id,omitempty"`
	Status         Status     `gorm:"size:20;not null;default:active" json:"status"`
	IsConfirmed    bool       `gorm:"not null;index" json:"is_confirmed"`
	EnrollmentDate time.Time  `gorm:"not null;index" json:"enrollment_date"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `gorm:"index" json:"updated_at"`

	Partner *Partner `gorm:"foreignKey:PartnerID" json:"partner,omitempty"`
	Program *Program `gorm:"foreignKey:ProgramID;constraint:OnDelete:SET NULL" json:"program,omitempty"`
}

// BeforeCreate assigns an id and the enrollment date
func (s *Student) BeforeCreate(tx *gorm.DB) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	if s.Status == "" {
		s.Status = StatusActive
	}
	if s.EnrollmentDate.IsZero() {
		s.EnrollmentDate = tx.NowFunc()
	}
	return nil
}

// BelongsTo reports whether the student is attributed to the given partner
func (s *Student) BelongsTo(partnerID uuid.UUID) bool {
	return s.PartnerID != nil && *s.PartnerID == partnerID
}
