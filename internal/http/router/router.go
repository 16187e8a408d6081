// Package router arma el árbol de rutas (go-chi) y sus middlewares.
package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	authctrl "github.com/dropDatabas3/authority/internal/http/controllers/auth"
	healthctrl "github.com/dropDatabas3/authority/internal/http/controllers/health"
	oauthctrl "github.com/dropDatabas3/authority/internal/http/controllers/oauth"
	httperrors "github.com/dropDatabas3/authority/internal/http/errors"
	mw "github.com/dropDatabas3/authority/internal/http/middlewares"
	"github.com/dropDatabas3/authority/internal/rate"
)

// Deps contiene todo lo que necesita el router.
type Deps struct {
	OAuth  *oauthctrl.Controllers
	Auth   *authctrl.Controllers
	Health *healthctrl.HealthController

	// Tokens valida los bearer de /oauth2/authorize, userinfo y /api/profile.
	Tokens mw.TokenParser

	// Opcionales: sin limiter no hay rate limiting.
	TokenLimiter rate.Limiter
	AuthLimiter  rate.Limiter

	// CORSOrigins vacío => sin CORS.
	CORSOrigins []string

	// Metrics es el handler de /metrics (promhttp); nil lo deshabilita.
	Metrics http.Handler
}

// New crea el handler raíz.
func New(d Deps) http.Handler {
	r := chi.NewRouter()
	use(r,
		mw.WithCORS(d.CORSOrigins),
		mw.WithRequestID(),
		mw.WithLogging(),
		mw.WithRecover(),
		mw.WithSecurityHeaders(),
	)

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		httperrors.WriteError(w, httperrors.ErrNotFound)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		httperrors.WriteError(w, httperrors.ErrMethodNotAllowed)
	})

	registerHealthRoutes(r, d)
	registerOAuthRoutes(r, d)
	registerAuthRoutes(r, d)
	return r
}

// use agrega los middlewares no nulos.
func use(r chi.Router, mws ...mw.Middleware) {
	for _, m := range mws {
		if m != nil {
			r.Use(m)
		}
	}
}
