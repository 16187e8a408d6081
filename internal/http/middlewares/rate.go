package middlewares

import (
	"net/http"
	"strconv"
	"time"

	"github.com/dropDatabas3/authority/internal/http/errors"
	"github.com/dropDatabas3/authority/internal/observability/logger"
	"github.com/dropDatabas3/authority/internal/rate"
)

// RateKeyFunc define cómo generar la clave de rate limiting.
type RateKeyFunc func(r *http.Request) string

// IPOnlyRateKey genera una clave basada solo en IP.
func IPOnlyRateKey(r *http.Request) string {
	return clientIP(r)
}

// IPPathRateKey separa límites por endpoint sin leer el body.
func IPPathRateKey(r *http.Request) string {
	return clientIP(r) + "|" + r.URL.Path
}

// RateLimitConfig configura el middleware de rate limiting.
type RateLimitConfig struct {
	Limiter rate.Limiter
	KeyFunc RateKeyFunc
	// Now permite fijar el reloj en tests.
	Now func() time.Time
}

// WithRateLimit rechaza con 429 cuando el limiter lo indica. Un error del
// limiter (ej. Redis caído) deja pasar el request.
func WithRateLimit(cfg RateLimitConfig) Middleware {
	if cfg.Limiter == nil {
		return nil
	}
	if cfg.KeyFunc == nil {
		cfg.KeyFunc = IPPathRateKey
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			res, err := cfg.Limiter.Allow(r.Context(), cfg.KeyFunc(r))
			if err != nil {
				logger.From(r.Context()).Warn("rate limiter unavailable",
					logger.Layer("middleware"), logger.Op("WithRateLimit"), logger.Err(err))
				next.ServeHTTP(w, r)
				return
			}

			h := w.Header()
			h.Set("X-RateLimit-Remaining", strconv.FormatInt(res.Remaining, 10))
			if res.WindowTTL > 0 {
				h.Set("X-RateLimit-Reset", strconv.FormatInt(cfg.Now().Add(res.WindowTTL).Unix(), 10))
			}

			if !res.Allowed {
				secs := int(res.RetryAfter.Seconds())
				if secs < 1 {
					secs = 1
				}
				h.Set("Retry-After", strconv.Itoa(secs))
				errors.WriteError(w, errors.ErrTooManyRequests)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
