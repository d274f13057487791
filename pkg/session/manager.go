// Package session gives every API client a stable anonymous session id,
// carried in a cookie, used to key login throttling.
package session

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

const (
	CookieName = "partnerdb_session"
	contextKey = "session_id"
)

// Manager issues session cookies
type Manager struct {
	sessionTTL time.Duration
	secure     bool
}

// NewManager creates a new session manager
func NewManager(sessionTTL time.Duration, secure bool) *Manager {
	return &Manager{
		sessionTTL: sessionTTL,
		secure:     secure,
	}
}

// Middleware reuses the client's session cookie or issues a new one
func (m *Manager) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			id := ""
			if cookie, err := c.Cookie(CookieName); err == nil {
				if _, err := uuid.Parse(cookie.Value); err == nil {
					id = cookie.Value
				}
			}

			if id == "" {
				id = uuid.NewString()
				c.SetCookie(&http.Cookie{
					Name:     CookieName,
					Value:    id,
					Path:     "/",
					MaxAge:   int(m.sessionTTL.Seconds()),
					HttpOnly: true,
					Secure:   m.secure,
					SameSite: http.SameSiteLaxMode,
				})
			}

			c.Set(contextKey, id)
			return next(c)
		}
	}
}

// ID returns the session id set by the middleware, falling back to the
// client IP when the middleware did not run
func ID(c echo.Context) string {
	if id, ok := c.Get(contextKey).(string); ok && id != "" {
		return id
	}
	return "ip:" + c.RealIP()
}
