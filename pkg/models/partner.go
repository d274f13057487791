package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// PartnerType classifies the business behind a partner account
type PartnerType string

const (
	PartnerTypeLibrary     PartnerType = "LIB"
	PartnerTypeGameStore   PartnerType = "JV"
	PartnerTypeSuperette   PartnerType = "SUP"
	PartnerTypeCafe        PartnerType = "CAF"
	PartnerTypeBookshop    PartnerType = "BOO"
	PartnerTypeGeneral     PartnerType = "MAG"
	PartnerTypeIndependent PartnerType = "IND"
)

// PartnerTypes lists every accepted partner type
var PartnerTypes = []PartnerType{
	PartnerTypeLibrary,
	PartnerTypeGameStore,
	PartnerTypeSuperette,
	PartnerTypeCafe,
	PartnerTypeBookshop,
	PartnerTypeGeneral,
	PartnerTypeIndependent,
}

// Valid reports whether t is a known partner type
func (t PartnerType) Valid() bool {
	for _, known := range PartnerTypes {
		if t == known {
			return true
		}
	}
	return false
}

// Status is shared by partners and students for soft deactivation
type Status string

const (
	StatusActive    Status = "active"
	StatusInactive  Status = "inactive"
	StatusSuspended Status = "suspended"
)

// Valid reports whether s is a known status
func (s Status) Valid() bool {
	return s == StatusActive || s == StatusInactive || s == StatusSuspended
}

// DefaultCommissionPerStudent is the commission applied when none is given (DA)
var DefaultCommissionPerStudent = decimal.NewFromInt(1000)

// Partner is a referring business earning a fixed commission per confirmed student
type Partner struct {
	ID                   uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	Name                 string          `gorm:"size:255;not null" json:"name"`
	PartnerType          PartnerType     `gorm:"size:3;not null;default:LIB" json:"partner_type"`
	Email                string          `gorm:"size:255;not null;uniqueIndex" json:"email"`
	Phone                string          `gorm:"size:20" json:"phone,omitempty"`
	ContactPerson        string          `gorm:"size:255" json:"contact_person,omitempty"`
	Address              string          `gorm:"type:text" json:"address,omitempty"`
	PasswordHash         string          `gorm:"size:255" json:"-"`
	CommissionPerStudent decimal.Decimal `gorm:"type:decimal(10,2);not null" json:"commission_per_student"`
	Status               Status          `gorm:"size:20;not null;default:active;index" json:"status"`
	CreatedAt            time.Time       `json:"created_at"`
	UpdatedAt            time.Time       `json:"updated_at"`

	Students    []Student           `gorm:"foreignKey:PartnerID;constraint:OnDelete:SET NULL" json:"-"`
	Checkpoints []PaymentCheckpoint `gorm:"foreignKey:PartnerID;constraint:OnDelete:CASCADE" json:"-"`
	Payments    []Payment           `gorm:"foreignKey:PartnerID;constraint:OnDelete:CASCADE" json:"-"`
	Codes       []PartnershipCode   `gorm:"foreignKey:PartnerID;constraint:OnDelete:CASCADE" json:"-"`
}

// BeforeCreate assigns an id and applies field defaults
func (p *Partner) BeforeCreate(tx *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	if p.PartnerType == "" {
		p.PartnerType = PartnerTypeLibrary
	}
	if p.Status == "" {
		p.Status = StatusActive
	}
	return nil
}

// PartnerCode derives the public code from the type prefix and the first
// three characters of the id
func (p *Partner) PartnerCode() string {
	return string(p.PartnerType) + strings.ToUpper(p.ID.String()[:3])
}

// IsActive reports whether the partnership is currently active
func (p *Partner) IsActive() bool {
	return p.Status == StatusActive
}

// PartnershipCode is a referral code students use to attribute their registration
type PartnershipCode struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	PartnerID uuid.UUID `gorm:"type:uuid;not null;index" json:"partner_id"`
	Code      string    `gorm:"size:20;not null;uniqueIndex" json:"code"`
	IsActive  bool      `gorm:"not null" json:"is_active"`
	CreatedAt time.Time `json:"created_at"`

	Partner *Partner `gorm:"foreignKey:PartnerID" json:"-"`
}

// BeforeCreate assigns an id and normalizes the code
func (c *PartnershipCode) BeforeCreate(tx *gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	c.Code = strings.ToUpper(strings.TrimSpace(c.Code))
	return nil
}

// PartnershipRequest is a partnership application sent from the contact page
type PartnershipRequest struct {
	ID           uuid.UUID   `gorm:"type:uuid;primaryKey" json:"id"`
	BusinessName string      `gorm:"size:255;not null" json:"business_name"`
	BusinessType PartnerType `gorm:"size:3;not null" json:"business_type"`
	Email        string      `gorm:"size:255;not null" json:"email"`
	Phone        string      `gorm:"size:20;not null" json:"phone"`
	Address      string      `gorm:"type:text;not null" json:"address"`
	Message      string      `gorm:"type:text;not null" json:"message"`
	IsProcessed  bool        `gorm:"not null;default:false" json:"is_processed"`
	CreatedAt    time.Time   `json:"created_at"`
}

// BeforeCreate assigns an id
func (r *PartnershipRequest) BeforeCreate(tx *gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return nil
}
