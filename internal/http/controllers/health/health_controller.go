// Package health contiene los endpoints de liveness y readiness.
package health

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/dropDatabas3/authority/internal/observability/logger"
)

// Pinger es implementado por store.AdapterConnection.
type Pinger interface {
	Ping(ctx context.Context) error
}

// TokenSigner permite el self-check de firma.
type TokenSigner interface {
	Issue(subject string, ttl time.Duration, extra map[string]any) (string, time.Time, error)
	Parse(token string) (map[string]any, error)
	KeyID() string
}

type Deps struct {
	Store   Pinger
	Signer  TokenSigner
	Redis   func(ctx context.Context) error // opcional
	Version string
	Timeout time.Duration
}

// HealthController expone /healthz y /readyz.
type HealthController struct {
	deps Deps
}

func NewHealthController(d Deps) *HealthController {
	if d.Timeout <= 0 {
		d.Timeout = 2 * time.Second
	}
	return &HealthController{deps: d}
}

type readyResponse struct {
	Status  string            `json:"status"`
	Version string            `json:"version,omitempty"`
	Checks  map[string]string `json:"checks"`
}

// Live handles GET /healthz.
func (c *HealthController) Live(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}

// Ready handles GET /readyz: ping al store, redis (si aplica) y un
// sign/verify efímero con la clave activa.
func (c *HealthController) Ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), c.deps.Timeout)
	defer cancel()
	log := logger.From(ctx).With(logger.Layer("controller"), logger.Op("health.ready"))

	resp := readyResponse{Status: "ok", Version: c.deps.Version, Checks: map[string]string{}}
	fail := func(name string, err error) {
		log.Warn("readiness check failed", logger.Component(name), logger.Err(err))
		resp.Status = "unavailable"
		resp.Checks[name] = "down"
	}

	if c.deps.Store != nil {
		if err := c.deps.Store.Ping(ctx); err != nil {
			fail("store", err)
		} else {
			resp.Checks["store"] = "up"
		}
	}
	if c.deps.Redis != nil {
		if err := c.deps.Redis(ctx); err != nil {
			fail("redis", err)
		} else {
			resp.Checks["redis"] = "up"
		}
	}
	if c.deps.Signer != nil {
		if err := c.selfCheck(); err != nil {
			fail("signer", err)
		} else {
			resp.Checks["signer"] = "up"
			w.Header().Set("X-JWKS-KID", c.deps.Signer.KeyID())
		}
	}

	status := http.StatusOK
	if resp.Status != "ok" {
		status = http.StatusServiceUnavailable
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(resp)
}

func (c *HealthController) selfCheck() error {
	signed, _, err := c.deps.Signer.Issue("selfcheck", time.Minute, map[string]any{"aud": "health"})
	if err != nil {
		return err
	}
	_, err = c.deps.Signer.Parse(signed)
	return err
}
