package errors

import (
	"net/http"
	"strconv"

	"github.com/jordanlanch/partnerdb/pkg/domain"
	"github.com/jordanlanch/partnerdb/pkg/logger"
	"github.com/jordanlanch/partnerdb/pkg/models"
	"github.com/labstack/echo/v4"
)

// Respond writes the JSON error matching err. Domain errors keep their
// message; anything else is logged and reported as a generic 500.
func Respond(c echo.Context, log logger.Logger, err error) error {
	de, ok := domain.As(err)
	if !ok {
		return InternalError(c, log, err)
	}

	switch de.Code {
	case domain.ErrCodeValidation:
		return c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error:   "validation_error",
			Message: de.Message,
			Field:   de.Field,
		})
	case domain.ErrCodeBadRequest:
		return c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error:   "bad_request",
			Message: de.Message,
		})
	case domain.ErrCodeNotFound:
		return c.JSON(http.StatusNotFound, models.ErrorResponse{
			Error:   "not_found",
			Message: de.Message,
		})
	case domain.ErrCodeUnauthorized:
		return c.JSON(http.StatusUnauthorized, models.ErrorResponse{
			Error:   "unauthorized",
			Message: de.Message,
		})
	case domain.ErrCodeForbidden:
		return c.JSON(http.StatusForbidden, models.ErrorResponse{
			Error:   "forbidden",
			Message: de.Message,
		})
	case domain.ErrCodeConflict:
		return c.JSON(http.StatusConflict, models.ErrorResponse{
			Error:   "conflict",
			Message: de.Message,
		})
	case domain.ErrCodeTooManyAttempts:
		if de.RetryAfter > 0 {
			c.Response().Header().Set("Retry-After", strconv.Itoa(int(de.RetryAfter.Seconds())))
		}
		return c.JSON(http.StatusTooManyRequests, models.ErrorResponse{
			Error:   "too_many_attempts",
			Message: de.Message,
		})
	default:
		return InternalError(c, log, err)
	}
}

// ValidationError returns a generic validation error without exposing internal details
func ValidationError(c echo.Context, log logger.Logger, err error) error {
	log.Warn("request validation failed", "path", c.Request().URL.Path, "error", err)

	return c.JSON(http.StatusBadRequest, models.ErrorResponse{
		Error:   "validation_error",
		Message: "Invalid request data. Please check your input and try again.",
	})
}

// InternalError returns a generic internal server error
func InternalError(c echo.Context, log logger.Logger, err error) error {
	log.Error("request failed", "path", c.Request().URL.Path, "error", err)

	return c.JSON(http.StatusInternalServerError, models.ErrorResponse{
		Error:   "internal_error",
		Message: "An internal error occurred. Please try again later.",
	})
}

// UnauthorizedError returns a generic unauthorized error
func UnauthorizedError(c echo.Context) error {
	return c.JSON(http.StatusUnauthorized, models.ErrorResponse{
		Error:   "unauthorized",
		Message: "You are not authorized to access this resource.",
	})
}

// ForbiddenError returns a generic forbidden error
func ForbiddenError(c echo.Context) error {
	return c.JSON(http.StatusForbidden, models.ErrorResponse{
		Error:   "forbidden",
		Message: "You do not have permission to access this resource.",
	})
}
