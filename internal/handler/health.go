package handler // declare the package name; contains HTTP handlers

import (
	"context"
	"database/sql"
	"net/http"
	"time"

	"github.com/labstack/echo/v4" // echo is the web framework used for this project
	"github.com/redis/go-redis/v9"
)

// Health returns a health-check endpoint used by load balancers and
// monitoring systems. It pings the session database and the Redis
// instance backing the OTP and throttle state; either one failing turns
// the whole check red, since the auth flows cannot run without them.
func Health(db *sql.DB, rdb *redis.Client) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
		defer cancel()

		status := http.StatusOK
		dbState, redisState := "ok", "ok"
		if err := db.PingContext(ctx); err != nil {
			dbState = "down"
			status = http.StatusServiceUnavailable
		}
		if err := rdb.Ping(ctx).Err(); err != nil {
			redisState = "down"
			status = http.StatusServiceUnavailable
		}
		return c.JSON(status, echo.Map{"db": dbState, "redis": redisState})
	}
}
