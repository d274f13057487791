package main

import (
	"context"
	"flag"
	"os"

	"github.com/jordanlanch/partnerdb/config"
	"github.com/jordanlanch/partnerdb/pkg/audit"
	"github.com/jordanlanch/partnerdb/pkg/clock"
	"github.com/jordanlanch/partnerdb/pkg/database"
	"github.com/jordanlanch/partnerdb/pkg/logger"
	"github.com/jordanlanch/partnerdb/pkg/partner"
	"github.com/jordanlanch/partnerdb/pkg/phone"
	"github.com/jordanlanch/partnerdb/pkg/student"
	"github.com/jordanlanch/partnerdb/pkg/testdata"
)

func main() {
	defaults := testdata.DefaultConfig()
	partners := flag.Int("partners", defaults.Partners, "number of partners to create")
	perPartner := flag.Int("students", defaults.StudentsPerPartner, "students registered per partner")
	confirm := flag.Float64("confirm", defaults.ConfirmChance, "probability a student is confirmed")
	password := flag.String("password", defaults.Password, "password shared by generated partners")
	seed := flag.Int64("seed", defaults.Seed, "random seed")
	flag.Parse()

	cfg := config.Load()
	log := logger.New(cfg.LogLevel)

	var (
		db  *database.Client
		err error
	)
	if cfg.DBDriver == "sqlite" {
		db, err = database.NewSQLiteClient(cfg.DatabaseURL, log)
	} else {
		db, err = database.NewClient(cfg.DatabaseURL, log)
	}
	if err != nil {
		log.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	ctx := context.Background()
	if err := db.Migrate(ctx); err != nil {
		log.Error("failed to migrate database", "error", err)
		os.Exit(1)
	}

	phones := phone.NewValidator(cfg.DefaultPhoneRegion)
	auditLogger := audit.NewService(db.DB)
	partnerService := partner.NewService(db.DB, phones, nil, auditLogger, nil, log)
	studentService := student.NewService(db.DB, phones, nil, auditLogger, nil, clock.Real{}, log)

	res, err := testdata.Seed(ctx, partnerService, studentService, testdata.Config{
		Partners:           *partners,
		StudentsPerPartner: *perPartner,
		ConfirmChance:      *confirm,
		Password:           *password,
		Seed:               *seed,
	})
	if err != nil {
		log.Error("seeding failed", "error", err)
		os.Exit(1)
	}
	studentService.Wait()

	log.Info("demo data created",
		"partners", res.Partners,
		"students", res.Students,
		"confirmed", res.Confirmed,
		"codes", res.Codes,
	)
}
