package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jordanlanch/partnerdb/config"
	"github.com/jordanlanch/partnerdb/pkg/admin"
	"github.com/jordanlanch/partnerdb/pkg/api/errors"
	apimw "github.com/jordanlanch/partnerdb/pkg/api/middleware"
	"github.com/jordanlanch/partnerdb/pkg/auth"
	"github.com/jordanlanch/partnerdb/pkg/domain"
	"github.com/jordanlanch/partnerdb/pkg/logger"
	"github.com/jordanlanch/partnerdb/pkg/metrics"
	"github.com/jordanlanch/partnerdb/pkg/models"
	"github.com/jordanlanch/partnerdb/pkg/partner"
	"github.com/jordanlanch/partnerdb/pkg/session"
	"github.com/labstack/echo/v4"
)

// AuthHandler handles partner and operator logins
type AuthHandler struct {
	config    *config.Config
	partners  *partner.Service
	admins    *admin.Service
	limiter   *auth.LoginLimiter
	blacklist *auth.TokenBlacklist
	metrics   *metrics.Metrics
	log       logger.Logger
	validator *validator.Validate
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(cfg *config.Config, partners *partner.Service, admins *admin.Service, limiter *auth.LoginLimiter, blacklist *auth.TokenBlacklist, m *metrics.Metrics, log logger.Logger) *AuthHandler {
	return &AuthHandler{
		config:    cfg,
		partners:  partners,
		admins:    admins,
		limiter:   limiter,
		blacklist: blacklist,
		metrics:   m,
		log:       log,
		validator: validator.New(),
	}
}

// identity is what a successful login puts in the token
type identity struct {
	subject     string
	name        string
	partnerCode string
}

// PartnerLogin godoc
// @Summary Partner login
// @Description Authenticate with email, partnership code and password. Five failures lock the client session out for fifteen minutes.
// @Tags Authentication
// @Accept json
// @Produce json
// @Param request body models.PartnerLoginRequest true "Credentials"
// @Success 200 {object} models.AuthResponse
// @Failure 400 {object} models.ErrorResponse
// @Failure 401 {object} models.ErrorResponse
// @Failure 429 {object} models.ErrorResponse
// @Router /partner/login [post]
func (h *AuthHandler) PartnerLogin(c echo.Context) error {
	return h.login(c, auth.RolePartner, func(ctx context.Context) (*identity, error) {
		var req models.PartnerLoginRequest
		if err := c.Bind(&req); err != nil {
			return nil, domain.NewBadRequestError("Invalid request body")
		}
		if err := h.validator.Struct(req); err != nil {
			return nil, domain.NewValidationError("credentials", "All fields are required")
		}

		p, code, err := h.partners.Authenticate(ctx, req.Email, req.Code, req.Password)
		if err != nil {
			return nil, err
		}
		return &identity{subject: p.ID.String(), name: p.Name, partnerCode: code}, nil
	})
}

// AdminLogin godoc
// @Summary Operator login
// @Tags Authentication
// @Accept json
// @Produce json
// @Param request body models.AdminLoginRequest true "Credentials"
// @Success 200 {object} models.AuthResponse
// @Failure 401 {object} models.ErrorResponse
// @Failure 429 {object} models.ErrorResponse
// @Router /admin/login [post]
func (h *AuthHandler) AdminLogin(c echo.Context) error {
	return h.login(c, auth.RoleAdmin, func(ctx context.Context) (*identity, error) {
		var req models.AdminLoginRequest
		if err := c.Bind(&req); err != nil {
			return nil, domain.NewBadRequestError("Invalid request body")
		}
		if err := h.validator.Struct(req); err != nil {
			return nil, domain.NewValidationError("credentials", "All fields are required")
		}

		a, err := h.admins.Authenticate(ctx, req.Username, req.Password)
		if err != nil {
			return nil, err
		}
		return &identity{subject: a.ID.String(), name: a.Username}, nil
	})
}

// login runs authenticate under the per-session lockout. Every rejected
// attempt, malformed ones included, counts as a failure.
func (h *AuthHandler) login(c echo.Context, role auth.Role, authenticate func(context.Context) (*identity, error)) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()

	key := string(role) + ":" + session.ID(c)

	if err := h.limiter.Check(ctx, key); err != nil {
		if domain.IsTooManyAttempts(err) {
			h.metrics.RecordLoginAttempt(string(role), "locked")
		}
		return errors.Respond(c, h.log, err)
	}

	id, err := authenticate(ctx)
	if err != nil {
		de, ok := domain.As(err)
		if !ok {
			return errors.Respond(c, h.log, err)
		}

		h.metrics.RecordLoginAttempt(string(role), "failed")
		locked, ferr := h.limiter.Fail(ctx, key)
		if ferr != nil {
			h.log.Error("failed to record login attempt", "role", role, "error", ferr)
		}
		if locked {
			h.metrics.RecordLockout(string(role))
			h.log.Warn("login locked out", "role", role, "ip", c.RealIP())
		}
		return errors.Respond(c, h.log, de)
	}

	if err := h.limiter.Succeed(ctx, key); err != nil {
		h.log.Error("failed to reset login attempts", "role", role, "error", err)
	}
	h.metrics.RecordLoginAttempt(string(role), "success")

	token, err := auth.GenerateJWT(id.subject, role, id.name, id.partnerCode, h.config.JWTSecret, h.config.JWTExpirationHours)
	if err != nil {
		return errors.InternalError(c, h.log, err)
	}

	return c.JSON(http.StatusOK, models.AuthResponse{
		Token:     token,
		ExpiresAt: time.Now().Add(time.Duration(h.config.JWTExpirationHours) * time.Hour),
		Role:      string(role),
		Name:      id.name,
	})
}

// Logout godoc
// @Summary Revoke the current token
// @Tags Authentication
// @Security BearerAuth
// @Produce json
// @Success 200 {object} models.SuccessResponse
// @Router /partner/logout [post]
func (h *AuthHandler) Logout(c echo.Context) error {
	claims, ok := apimw.ClaimsFrom(c)
	if !ok {
		return errors.UnauthorizedError(c)
	}

	if h.blacklist != nil {
		ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
		defer cancel()

		if err := h.blacklist.Add(ctx, apimw.TokenFrom(c), claims.RemainingLifetime(time.Now())); err != nil {
			return errors.InternalError(c, h.log, err)
		}
	}

	return c.JSON(http.StatusOK, models.SuccessResponse{
		Success: true,
		Message: "Logged out",
	})
}
