package middleware

import (
	"net/http"

	apimw "github.com/jordanlanch/partnerdb/pkg/api/middleware"
	"github.com/jordanlanch/partnerdb/pkg/auth"
	"github.com/jordanlanch/partnerdb/pkg/models"
	"github.com/labstack/echo/v4"
)

// RequireAdmin ensures the authenticated caller is an operator.
// Apply AFTER the JWT middleware.
func RequireAdmin() echo.MiddlewareFunc {
	return requireRole(auth.RoleAdmin, "Admin access required")
}

// RequirePartner ensures the authenticated caller is a partner.
// Apply AFTER the JWT middleware.
func RequirePartner() echo.MiddlewareFunc {
	return requireRole(auth.RolePartner, "Partner access required")
}

func requireRole(role auth.Role, message string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			claims, ok := apimw.ClaimsFrom(c)
			if !ok {
				return c.JSON(http.StatusUnauthorized, models.ErrorResponse{
					Error:   "unauthorized",
					Message: "Authentication required",
				})
			}

			if claims.Role != role {
				return c.JSON(http.StatusForbidden, models.ErrorResponse{
					Error:   "insufficient_permissions",
					Message: message,
				})
			}

			return next(c)
		}
	}
}
