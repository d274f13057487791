// Package testdata generates realistic demo partners and students.
package testdata

import (
	"context"
	"fmt"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/jordanlanch/partnerdb/pkg/models"
	"github.com/jordanlanch/partnerdb/pkg/partner"
	"github.com/jordanlanch/partnerdb/pkg/student"
	"github.com/shopspring/decimal"
)

// Config configures demo data generation
type Config struct {
	Partners           int
	StudentsPerPartner int
	ConfirmChance      float64 // 0.0-1.0 (probability a student is confirmed)
	Password           string  // shared by every generated partner
	Seed               int64
}

// DefaultConfig returns a small demo data set
func DefaultConfig() Config {
	return Config{
		Partners:           5,
		StudentsPerPartner: 8,
		ConfirmChance:      0.6,
		Password:           "partner123",
		Seed:               42,
	}
}

var (
	businessPrefixes = map[models.PartnerType]string{
		models.PartnerTypeLibrary:     "Librairie",
		models.PartnerTypeGameStore:   "Game Zone",
		models.PartnerTypeSuperette:   "Superette",
		models.PartnerTypeCafe:        "Cybercafé",
		models.PartnerTypeBookshop:    "Papeterie",
		models.PartnerTypeGeneral:     "Magasin",
		models.PartnerTypeIndependent: "Agence",
	}
	cities         = []string{"Alger", "Oran", "Constantine", "Annaba", "Blida", "Sétif", "Tlemcen", "Béjaïa"}
	mobilePrefixes = []string{"0555", "0661", "0770"}
	commissions    = []int64{800, 1000, 1200, 1500}
)

// Generator builds service inputs from a seeded faker so runs are repeatable
type Generator struct {
	faker *gofakeit.Faker
}

// NewGenerator creates a generator with the given seed
func NewGenerator(seed int64) *Generator {
	return &Generator{faker: gofakeit.New(seed)}
}

// Phone returns an Algerian mobile number in national format
func (g *Generator) Phone() string {
	return g.faker.RandomString(mobilePrefixes) + g.faker.Numerify("######")
}

// PartnerInput returns a plausible partner
func (g *Generator) PartnerInput(password string) partner.CreateInput {
	partnerType := models.PartnerTypes[g.faker.Number(0, len(models.PartnerTypes)-1)]
	city := g.faker.RandomString(cities)
	commission := decimal.NewFromInt(commissions[g.faker.Number(0, len(commissions)-1)])

	return partner.CreateInput{
		Name:                 fmt.Sprintf("%s %s", businessPrefixes[partnerType], g.faker.LastName()),
		PartnerType:          partnerType,
		Email:                g.faker.Email(),
		Phone:                g.Phone(),
		ContactPerson:        g.faker.Name(),
		Address:              fmt.Sprintf("%s, %s", g.faker.Street(), city),
		CommissionPerStudent: &commission,
		Password:             password,
	}
}

// StudentInput returns a registration referred by code
func (g *Generator) StudentInput(code string, programID *uint) student.RegisterInput {
	return student.RegisterInput{
		FullName:     g.faker.Name(),
		Email:        g.faker.Email(),
		Phone:        g.Phone(),
		ReferralCode: code,
		ProgramID:    programID,
	}
}

// Confirm reports whether the next student should be confirmed
func (g *Generator) Confirm(chance float64) bool {
	return g.faker.Float64Range(0, 1) < chance
}

// Result summarizes a seeding run
type Result struct {
	Partners  int
	Students  int
	Confirmed int
	Codes     []string
}

// Seed creates partners and students through the domain services so every
// rule and audit entry applies to demo data too
func Seed(ctx context.Context, partners *partner.Service, students *student.Service, cfg Config) (*Result, error) {
	g := NewGenerator(cfg.Seed)
	res := &Result{}

	programs, err := students.ListPrograms(ctx)
	if err != nil {
		return nil, err
	}

	for i := 0; i < cfg.Partners; i++ {
		created, err := partners.Create(ctx, g.PartnerInput(cfg.Password))
		if err != nil {
			return res, fmt.Errorf("failed to create partner %d: %w", i+1, err)
		}
		res.Partners++
		res.Codes = append(res.Codes, created.Code.Code)

		for j := 0; j < cfg.StudentsPerPartner; j++ {
			var programID *uint
			if len(programs) > 0 {
				programID = &programs[g.faker.Number(0, len(programs)-1)].ID
			}

			st, err := students.Register(ctx, g.StudentInput(created.Code.Code, programID))
			if err != nil {
				return res, fmt.Errorf("failed to register student: %w", err)
			}
			res.Students++

			if g.Confirm(cfg.ConfirmChance) {
				if _, err := students.Confirm(ctx, st.ID); err != nil {
					return res, fmt.Errorf("failed to confirm student: %w", err)
				}
				res.Confirmed++
			}
		}
	}

	return res, nil
}
