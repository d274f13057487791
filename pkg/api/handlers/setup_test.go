package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jordanlanch/partnerdb/config"
	"github.com/jordanlanch/partnerdb/pkg/admin"
	apimw "github.com/jordanlanch/partnerdb/pkg/api/middleware"
	"github.com/jordanlanch/partnerdb/pkg/audit"
	"github.com/jordanlanch/partnerdb/pkg/auth"
	"github.com/jordanlanch/partnerdb/pkg/checkpoint"
	"github.com/jordanlanch/partnerdb/pkg/clock"
	"github.com/jordanlanch/partnerdb/pkg/database"
	"github.com/jordanlanch/partnerdb/pkg/ledger"
	"github.com/jordanlanch/partnerdb/pkg/logger"
	"github.com/jordanlanch/partnerdb/pkg/metrics"
	"github.com/jordanlanch/partnerdb/pkg/models"
	"github.com/jordanlanch/partnerdb/pkg/partner"
	"github.com/jordanlanch/partnerdb/pkg/payment"
	"github.com/jordanlanch/partnerdb/pkg/phone"
	"github.com/jordanlanch/partnerdb/pkg/storage"
	"github.com/jordanlanch/partnerdb/pkg/student"
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

const (
	testSecret   = "test-secret-key-minimum-32-characters-long"
	testPassword = "partner-pass-123"
)

var testNow = time.Date(2026, 4, 15, 12, 0, 0, 0, time.UTC)

// testEnv wires every service over one in-memory database
type testEnv struct {
	db          *gorm.DB
	client      *database.Client
	cfg         *config.Config
	clock       *clock.Fake
	metrics     *metrics.Metrics
	audit       *audit.Service
	partners    *partner.Service
	students    *student.Service
	checkpoints *checkpoint.Service
	payments    *payment.Service
	ledger      *ledger.Service
	admins      *admin.Service
	limiter     *auth.LoginLimiter
}

func setupTestEnv(t *testing.T) *testEnv {
	client, err := database.NewSQLiteClient(database.MemoryDSN(uuid.NewString()), logger.Discard())
	require.NoError(t, err)
	require.NoError(t, client.Migrate(context.Background()))
	t.Cleanup(func() { client.Close() })

	store, err := storage.NewLocalStore(t.TempDir())
	require.NoError(t, err)

	db := client.DB
	clk := clock.NewFake(testNow)
	m := metrics.New(prometheus.NewRegistry())
	auditSvc := audit.NewService(db)
	phones := phone.NewValidator(phone.DefaultRegion)
	log := logger.Discard()

	students := student.NewService(db, phones, nil, auditSvc, m, clk, log)
	t.Cleanup(students.Wait)

	return &testEnv{
		db:     db,
		client: client,
		cfg: &config.Config{
			JWTSecret:          testSecret,
			JWTExpirationHours: 1,
			PublicBaseURL:      "https://partners.example.dz",
		},
		clock:       clk,
		metrics:     m,
		audit:       auditSvc,
		partners:    partner.NewService(db, phones, nil, auditSvc, m, log),
		students:    students,
		checkpoints: checkpoint.NewService(db, auditSvc, m, clk, log),
		payments:    payment.NewService(db, store, auditSvc, m, clk, log),
		ledger:      ledger.NewService(db),
		admins:      admin.NewService(db, log),
		limiter:     auth.NewLoginLimiter(auth.NewMemoryAttemptStore(), clk, auth.DefaultMaxAttempts, auth.DefaultLockout),
	}
}

func (env *testEnv) createPartner(t *testing.T, name, email string) *partner.Created {
	commission := decimal.NewFromInt(1000)
	created, err := env.partners.Create(context.Background(), partner.CreateInput{
		Name:                 name,
		PartnerType:          models.PartnerTypeLibrary,
		Email:                email,
		CommissionPerStudent: &commission,
		Password:             testPassword,
	})
	require.NoError(t, err)
	return created
}

func (env *testEnv) createProgram(t *testing.T) *models.Program {
	program := &models.Program{Name: "Robotics", IsActive: true}
	require.NoError(t, env.db.Create(program).Error)
	return program
}

func (env *testEnv) registerStudent(t *testing.T, code, email string, programID uint) *models.Student {
	s, err := env.students.Register(context.Background(), student.RegisterInput{
		FullName:     "Test Student",
		Email:        email,
		ReferralCode: code,
		ProgramID:    &programID,
	})
	require.NoError(t, err)
	return s
}

// newContext builds an echo context for a JSON request
func newContext(method, target string, body interface{}) (echo.Context, *httptest.ResponseRecorder) {
	var r io.Reader
	if body != nil {
		data, _ := json.Marshal(body)
		r = bytes.NewReader(data)
	}

	e := echo.New()
	req := httptest.NewRequest(method, target, r)
	if body != nil {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}

func asAdmin(c echo.Context) {
	apimw.SetClaims(c, "token", &auth.Claims{Role: auth.RoleAdmin, Name: "operator"})
}

func asPartner(c echo.Context, created *partner.Created) {
	claims := &auth.Claims{Role: auth.RolePartner, Name: created.Partner.Name, PartnerCode: created.Code.Code}
	claims.Subject = created.Partner.ID.String()
	apimw.SetClaims(c, "token", claims)
}

func withParam(c echo.Context, name, value string) {
	c.SetParamNames(name)
	c.SetParamValues(value)
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}
