package middleware

import (
	"fmt"
	"math"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"golang.org/x/time/rate"

	"visaconnect/internal/infrastructure/ratelimit"
	"visaconnect/pkg/logger"
)

// GeneralRateLimit limits every caller by IP to perMinute requests.
func GeneralRateLimit(perMinute int) echo.MiddlewareFunc {
	if perMinute <= 0 {
		perMinute = 60
	}
	store := echomw.NewRateLimiterMemoryStoreWithConfig(echomw.RateLimiterMemoryStoreConfig{
		Rate:      rate.Limit(float64(perMinute) / 60),
		Burst:     perMinute,
		ExpiresIn: 3 * time.Minute,
	})

	return echomw.RateLimiterWithConfig(echomw.RateLimiterConfig{
		Store: store,
		IdentifierExtractor: func(c echo.Context) (string, error) {
			return c.RealIP(), nil
		},
		DenyHandler: func(c echo.Context, identifier string, err error) error {
			logger.Warn("RATE LIMIT: blocked request from %s", identifier)
			return echo.NewHTTPError(http.StatusTooManyRequests, "Rate limit exceeded")
		},
	})
}

// ActionRateLimit throttles an action per authenticated user. It must run
// after Authenticate.
func ActionRateLimit(limiter *ratelimit.RateLimiter, action string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			uid, _ := c.Get(ContextUID).(string)
			if uid == "" {
				return next(c)
			}

			allowed, retryAfter := limiter.Allow(uid, action)
			if !allowed {
				seconds := int(math.Ceil(retryAfter.Seconds()))
				logger.Warn("RATE LIMIT: %s exceeded %s", uid, action)
				c.Response().Header().Set("Retry-After", fmt.Sprint(seconds))
				return echo.NewHTTPError(http.StatusTooManyRequests,
					fmt.Sprintf("Too many requests, retry in %d seconds", seconds))
			}
			return next(c)
		}
	}
}
