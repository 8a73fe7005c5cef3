package middleware

import (
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/yunusgulbuz/gizlimesaj-sub005/internal/apperr"
	"github.com/yunusgulbuz/gizlimesaj-sub005/internal/ratelimit"
)

// RateLimit throttles requests per client under the name bucket. Store
// errors fail open.
func RateLimit(name string, policy ratelimit.Policy, logger *slog.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			key := name + ":" + ratelimit.ClientIdentifier(c.Request())

			res, err := policy.Allow(c.Request().Context(), key)
			if err != nil {
				logger.Error("rate limiter unavailable", "limiter", name, "error", err)
				return next(c)
			}

			h := c.Response().Header()
			h.Set("X-RateLimit-Limit", strconv.Itoa(res.Limit))
			h.Set("X-RateLimit-Remaining", strconv.Itoa(res.Remaining))
			h.Set("X-RateLimit-Reset", strconv.FormatInt(res.ResetAt.Unix(), 10))

			if !res.Allowed {
				retryAfter := int(math.Ceil(time.Until(res.ResetAt).Seconds()))
				if retryAfter < 1 {
					retryAfter = 1
				}
				h.Set("Retry-After", strconv.Itoa(retryAfter))
				return fmt.Errorf("%s limit exceeded: %w", name, apperr.ErrRateLimited)
			}

			return next(c)
		}
	}
}
