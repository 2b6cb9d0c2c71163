package router // package router defines how HTTP routes are registered for the API

import (
	"database/sql"

	"github.com/labstack/echo/v4" // import the Echo web framework to handle routing
	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/blog-auth-service/internal/handler"    // handlers implementing the auth flows
	"github.com/iliyamo/blog-auth-service/internal/middleware" // JWT, role and CSRF middleware
	"github.com/iliyamo/blog-auth-service/internal/model"
	"github.com/iliyamo/blog-auth-service/internal/token"
)

// RegisterRoutes registers routes that do not require authentication on
// the provided Echo instance. Currently it exposes only the health
// check, which reports on the two stores the auth flows depend on.
func RegisterRoutes(e *echo.Echo, db *sql.DB, rdb *redis.Client) {
	e.GET("/healthz", handler.Health(db, rdb))
}

// RegisterAuth registers all authentication-related routes and applies
// the necessary middleware. Unauthenticated operations live under
// /v1/auth, bearer-protected endpoints under /v1 and admin-only
// operations under /v1/admin. Every state change authenticated by the
// refresh cookie additionally carries the CSRF double-submit guard.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler, issuer *token.Issuer, rdb *redis.Client) {
	csrf := middleware.CSRFGuard(a.Cfg.CSRFCookieName, a.Cfg.CSRFHeaderName)

	// Credential exchange endpoints. None of these carry a session yet,
	// so no CSRF guard applies. The token bucket sits in front as a
	// blunt per-address shield; the finer anti-abuse rules live in the
	// OTP engine and the login throttle.
	g := e.Group("/v1/auth")
	g.Use(middleware.NewTokenBucket(a.Cfg.RateLimit, rdb))
	g.POST("/admin/login", a.AdminLogin)
	g.POST("/otp/request", a.RequestOTP)
	g.POST("/otp/verify", a.VerifyOTP)
	// Cookie-authenticated state changes: the browser attaches the
	// refresh cookie on its own, so these require the echoed CSRF seed.
	g.POST("/refresh", a.Refresh, csrf)
	g.POST("/logout", a.Logout, csrf)

	// Bearer-protected endpoints. JWTAuth validates the access token and
	// RequireRole rejects tokens carrying a role this API never issued.
	auth := e.Group("/v1")
	auth.Use(middleware.JWTAuth(issuer))
	auth.Use(middleware.RequireRole(model.RoleUser, model.RoleAdmin))
	auth.GET("/me", a.Me)
	// Account deletion changes cookie-backed state too, so it needs both
	// the bearer token and the CSRF echo.
	auth.DELETE("/auth/account", a.DeleteAccount, csrf)

	// Admin-only operations.
	admin := auth.Group("/admin")
	admin.Use(middleware.RequireRole(model.RoleAdmin))
	admin.POST("/sessions/revoke", a.RevokeSessions)
}
