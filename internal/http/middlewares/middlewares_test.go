package middlewares

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/dropDatabas3/authority/internal/clock"
	jwtx "github.com/dropDatabas3/authority/internal/jwt"
	"github.com/dropDatabas3/authority/internal/rate"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
}

func TestChain_Order(t *testing.T) {
	var order []string
	mark := func(name string) Middleware {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				order = append(order, name)
				next.ServeHTTP(w, r)
			})
		}
	}
	h := Chain(okHandler(), mark("a"), nil, mark("b"))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, []string{"a", "b"}, order)
}

func TestWithRequestID(t *testing.T) {
	var seen string
	h := Chain(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = GetRequestID(r.Context())
	}), WithRequestID())

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	require.NotEmpty(t, seen)
	require.Equal(t, seen, rec.Header().Get("X-Request-ID"))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-ID", "abc-123")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, "abc-123", seen)
}

func TestWithRecover(t *testing.T) {
	h := Chain(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}), WithRecover())
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	require.Contains(t, rec.Body.String(), "INTERNAL_SERVER_ERROR")
}

func TestWithLogging_RecordsStatus(t *testing.T) {
	h := Chain(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
		_, _ = w.Write([]byte("x"))
	}), WithRequestID(), WithLogging())
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/brew", nil))
	require.Equal(t, http.StatusTeapot, rec.Code)
}

func TestSecurityAndNoStore(t *testing.T) {
	h := Chain(okHandler(), WithSecurityHeaders(), WithNoStore())
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Forwarded-Proto", "https")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, "no-store", rec.Header().Get("Cache-Control"))
	require.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	require.NotEmpty(t, rec.Header().Get("Strict-Transport-Security"))
}

func newSigner(t *testing.T) (*jwtx.Signer, *clock.Fixed) {
	t.Helper()
	priv, err := jwtx.GenerateKey()
	require.NoError(t, err)
	clk := clock.NewFixed(time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC))
	s, err := jwtx.NewSigner("https://auth.test", priv, clk)
	require.NoError(t, err)
	return s, clk
}

func TestRequireAuth(t *testing.T) {
	signer, clk := newSigner(t)

	var gotUser string
	h := Chain(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUser = GetUserID(r.Context())
		w.WriteHeader(http.StatusOK)
	}), RequireAuth(signer))

	do := func(authz string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/userinfo", nil)
		if authz != "" {
			req.Header.Set("Authorization", authz)
		}
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec
	}

	t.Run("missing", func(t *testing.T) {
		rec := do("")
		require.Equal(t, http.StatusUnauthorized, rec.Code)
		require.Contains(t, rec.Header().Get("WWW-Authenticate"), "invalid_token")
	})

	t.Run("access token", func(t *testing.T) {
		at, _, err := signer.Issue("user-1", time.Minute, map[string]any{"token_use": "access"})
		require.NoError(t, err)
		rec := do("Bearer " + at)
		require.Equal(t, http.StatusOK, rec.Code)
		require.Equal(t, "user-1", gotUser)
	})

	t.Run("refresh token rejected", func(t *testing.T) {
		rt, _, err := signer.Issue("user-1", time.Minute, map[string]any{"token_use": "refresh"})
		require.NoError(t, err)
		require.Equal(t, http.StatusUnauthorized, do("Bearer "+rt).Code)
	})

	t.Run("expired", func(t *testing.T) {
		at, _, err := signer.Issue("user-1", time.Minute, map[string]any{"token_use": "access"})
		require.NoError(t, err)
		clk.Advance(2 * time.Minute)
		rec := do("bearer " + at)
		require.Equal(t, http.StatusUnauthorized, rec.Code)
		require.Contains(t, rec.Body.String(), "TOKEN_EXPIRED")
	})

	t.Run("garbage", func(t *testing.T) {
		require.Equal(t, http.StatusUnauthorized, do("Bearer not.a.jwt").Code)
	})
}

type failingLimiter struct{}

func (failingLimiter) Allow(context.Context, string) (rate.Result, error) {
	return rate.Result{}, errors.New("redis down")
}

func TestWithRateLimit(t *testing.T) {
	h := Chain(okHandler(), WithRateLimit(RateLimitConfig{
		Limiter: rate.NewMemoryLimiter(1, time.Hour),
		KeyFunc: IPOnlyRateKey,
	}))

	req := func() *httptest.ResponseRecorder {
		r := httptest.NewRequest(http.MethodPost, "/oauth2/token", nil)
		r.RemoteAddr = "10.0.0.1:5555"
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, r)
		return rec
	}

	first := req()
	require.Equal(t, http.StatusNoContent, first.Code)
	require.Equal(t, "0", first.Header().Get("X-RateLimit-Remaining"))

	second := req()
	require.Equal(t, http.StatusTooManyRequests, second.Code)
	require.NotEmpty(t, second.Header().Get("Retry-After"))
}

func TestWithRateLimit_FailsOpen(t *testing.T) {
	h := Chain(okHandler(), WithRateLimit(RateLimitConfig{Limiter: failingLimiter{}}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusNoContent, rec.Code)

	require.Nil(t, WithRateLimit(RateLimitConfig{}))
}

func TestWithCORS(t *testing.T) {
	require.Nil(t, WithCORS(nil))

	h := Chain(okHandler(), WithCORS([]string{"https://app.example.com/"}))

	req := httptest.NewRequest(http.MethodOptions, "/oauth2/token", nil)
	req.Header.Set("Origin", "https://app.example.com")
	req.Header.Set("Access-Control-Request-Method", "POST")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusNoContent, rec.Code)
	require.Equal(t, "https://app.example.com", rec.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}
