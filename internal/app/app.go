// Package app arma services, controllers y router a partir de dependencias ya
// construidas. No lee configuración ni abre conexiones (ver http/server).
package app

import (
	"context"
	"net/http"

	"github.com/dropDatabas3/authority/internal/clock"
	authctrl "github.com/dropDatabas3/authority/internal/http/controllers/auth"
	healthctrl "github.com/dropDatabas3/authority/internal/http/controllers/health"
	oauthctrl "github.com/dropDatabas3/authority/internal/http/controllers/oauth"
	"github.com/dropDatabas3/authority/internal/http/router"
	authsvc "github.com/dropDatabas3/authority/internal/http/services/auth"
	"github.com/dropDatabas3/authority/internal/http/services/oauth"
	"github.com/dropDatabas3/authority/internal/http/services/verification"
	jwtx "github.com/dropDatabas3/authority/internal/jwt"
	"github.com/dropDatabas3/authority/internal/notify"
	"github.com/dropDatabas3/authority/internal/rate"
	"github.com/dropDatabas3/authority/internal/security/password"
	tokens "github.com/dropDatabas3/authority/internal/security/token"
	"github.com/dropDatabas3/authority/internal/store"
)

// Deps holds raw dependencies required to build the app.
type Deps struct {
	Store    store.AdapterConnection
	Signer   *jwtx.Signer
	Hasher   password.Hasher
	Policy   password.Policy
	Notifier notify.Gateway
	Clock    clock.Clock
	Random   tokens.RandomSource

	TokenTTLs        oauth.TokenTTLs
	RotateRefresh    bool
	VerificationTTLs verification.TTLs
	FrontendBaseURL  string
	DefaultRoles     []string

	// Opcionales
	TokenLimiter rate.Limiter
	AuthLimiter  rate.Limiter
	RedisPing    func(ctx context.Context) error
	CORSOrigins  []string
	Metrics      http.Handler
	Version      string
}

// App represents the wired application.
type App struct {
	Handler      http.Handler
	OAuth        oauth.Services
	Auth         *authsvc.Service
	Verification *verification.Service
}

// New creates and wires the application.
func New(d Deps) *App {
	if d.Clock == nil {
		d.Clock = clock.System{}
	}
	if d.Random == nil {
		d.Random = tokens.NewCryptoSource()
	}

	// 1. Services
	oauthSvcs := oauth.NewServices(oauth.Deps{
		DAL:           d.Store,
		Signer:        d.Signer,
		Hasher:        d.Hasher,
		Random:        d.Random,
		Clock:         d.Clock,
		TTLs:          d.TokenTTLs,
		RotateRefresh: d.RotateRefresh,
	})
	verif := verification.NewService(verification.Deps{
		DAL:             d.Store,
		Signer:          d.Signer,
		Hasher:          d.Hasher,
		Random:          d.Random,
		Clock:           d.Clock,
		Notifier:        d.Notifier,
		TTLs:            d.VerificationTTLs,
		FrontendBaseURL: d.FrontendBaseURL,
	})
	auth := authsvc.NewService(authsvc.Deps{
		DAL:          d.Store,
		Hasher:       d.Hasher,
		Policy:       d.Policy,
		Verifier:     verif,
		Notifier:     d.Notifier,
		DefaultRoles: d.DefaultRoles,
	})

	// 2. Controllers
	oauthControllers := oauthctrl.NewControllers(oauthSvcs.Grants, auth, d.Signer)
	authControllers := authctrl.NewControllers(auth, verif)
	health := healthctrl.NewHealthController(healthctrl.Deps{
		Store:   d.Store,
		Signer:  d.Signer,
		Redis:   d.RedisPing,
		Version: d.Version,
	})

	// 3. Routes
	handler := router.New(router.Deps{
		OAuth:        oauthControllers,
		Auth:         authControllers,
		Health:       health,
		Tokens:       d.Signer,
		TokenLimiter: d.TokenLimiter,
		AuthLimiter:  d.AuthLimiter,
		CORSOrigins:  d.CORSOrigins,
		Metrics:      d.Metrics,
	})

	return &App{
		Handler:      handler,
		OAuth:        oauthSvcs,
		Auth:         auth,
		Verification: verif,
	}
}
