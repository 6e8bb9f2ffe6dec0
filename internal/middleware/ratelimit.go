package middleware

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

// idleBucketTTL is how long an unused bucket is kept before the store drops it.
const idleBucketTTL = 3 * time.Minute

// KeyFunc picks the bucket a request is counted against.
type KeyFunc func(c echo.Context) string

// ByIP keys on the client address.
func ByIP(c echo.Context) string { return c.RealIP() }

// ByUser keys on the authenticated caller, falling back to the address.
func ByUser(c echo.Context) string {
	if id := UserID(c); id != "" {
		return id
	}
	return c.RealIP()
}

// RateLimit allows perSecond requests per key with the given burst, on echo's
// in-memory token bucket store.
func RateLimit(perSecond float64, burst int, key KeyFunc, log *logrus.Logger) echo.MiddlewareFunc {
	if burst < 1 {
		burst = 1
	}
	store := echomw.NewRateLimiterMemoryStoreWithConfig(echomw.RateLimiterMemoryStoreConfig{
		Rate:      rate.Limit(perSecond),
		Burst:     burst,
		ExpiresIn: idleBucketTTL,
	})

	return echomw.RateLimiterWithConfig(echomw.RateLimiterConfig{
		Store: store,
		IdentifierExtractor: func(c echo.Context) (string, error) {
			return key(c), nil
		},
		DenyHandler: func(c echo.Context, identifier string, _ error) error {
			log.WithFields(logrus.Fields{
				"key":    identifier,
				"path":   c.Path(),
				"method": c.Request().Method,
			}).Warn("rate limit exceeded")
			return c.JSON(http.StatusTooManyRequests, echo.Map{"error": "too many requests"})
		},
		ErrorHandler: func(c echo.Context, _ error) error {
			return c.JSON(http.StatusForbidden, echo.Map{"error": "request cannot be identified"})
		},
	})
}
