package audit

import (
	"context"

	"github.com/labstack/echo/v4"
)

// RequestInfo identifies who triggered an audited change
type RequestInfo struct {
	Actor     string
	IPAddress string
	UserAgent string
}

type requestInfoKey struct{}

// WithRequestInfo stores info in ctx for later audit entries
func WithRequestInfo(ctx context.Context, info RequestInfo) context.Context {
	return context.WithValue(ctx, requestInfoKey{}, info)
}

// RequestInfoFrom returns the info stored in ctx, or the zero value
func RequestInfoFrom(ctx context.Context) RequestInfo {
	info, _ := ctx.Value(requestInfoKey{}).(RequestInfo)
	return info
}

// GetIPAddress extracts the real IP address from request
func GetIPAddress(c echo.Context) string {
	if ip := c.Request().Header.Get("X-Forwarded-For"); ip != "" {
		return ip
	}
	if ip := c.Request().Header.Get("X-Real-IP"); ip != "" {
		return ip
	}
	return c.RealIP()
}

// GetUserAgent extracts the user agent string
func GetUserAgent(c echo.Context) string {
	return c.Request().UserAgent()
}

// ContextFrom builds a request context carrying the audit info of c
func ContextFrom(ctx context.Context, c echo.Context, actor string) context.Context {
	return WithRequestInfo(ctx, RequestInfo{
		Actor:     actor,
		IPAddress: GetIPAddress(c),
		UserAgent: GetUserAgent(c),
	})
}
