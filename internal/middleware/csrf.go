package middleware // middleware provides shared request processing for handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/blog-auth-service/internal/utils"
)

// CSRFGuard returns a middleware enforcing the double-submit contract on
// cookie-authenticated state changes: the value of the CSRF seed cookie
// must be echoed byte for byte in the request header. The comparison is
// constant-time, and a missing cookie, a missing header and a mismatch
// all produce the same 401 so a probing client learns nothing about
// which part failed.
func CSRFGuard(cookieName, headerName string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			cookie, err := c.Cookie(cookieName)
			if err != nil || cookie.Value == "" {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
			}
			header := c.Request().Header.Get(headerName)
			if header == "" || !utils.SecureEqual(cookie.Value, header) {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
			}
			return next(c)
		}
	}
}
