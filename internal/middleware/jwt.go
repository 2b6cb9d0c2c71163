package middleware // middleware provides shared request processing for handlers

import (
	"net/http" // HTTP status codes for responses
	"strings"  // string utilities for prefix checking and trimming

	"github.com/labstack/echo/v4" // Echo framework used for defining middleware and handlers

	"github.com/iliyamo/blog-auth-service/internal/token"
)

// JWTAuth returns an Echo middleware that validates a Bearer access token
// and injects the token's subject and role claims into the request
// context. Verification is fully stateless: signature, expiry and the
// issued-after cutoff are checked without touching any store. This
// middleware should wrap protected routes so that handlers can access
// authenticated user information via `c.Get("user_id")` and
// `c.Get("role")`; the full claims are available under `c.Get("claims")`.
func JWTAuth(issuer *token.Issuer) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			// A valid header starts with "Bearer " followed by the JWT.
			auth := c.Request().Header.Get("Authorization")
			if !strings.HasPrefix(auth, "Bearer ") {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "missing bearer token"})
			}
			raw := strings.TrimPrefix(auth, "Bearer ")

			// One uniform rejection for bad signatures, expiry and tokens
			// minted before the configured cutoff.
			claims, err := issuer.VerifyAccess(raw)
			if err != nil {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid token"})
			}

			c.Set("user_id", claims.Subject)
			c.Set("role", claims.Role)
			c.Set("claims", claims)
			return next(c)
		}
	}
}
