package router

import (
	"github.com/go-chi/chi/v5"

	mw "github.com/dropDatabas3/authority/internal/http/middlewares"
)

// registerOAuthRoutes registra /oauth2/* y el JWKS.
func registerOAuthRoutes(r chi.Router, d Deps) {
	c := d.OAuth

	r.With(mw.WithCacheControl("public, max-age=300")).
		Get("/.well-known/jwks.json", c.JWKS.JWKS)

	r.Route("/oauth2", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			use(r,
				mw.WithNoStore(),
				mw.WithMaxBody(64<<10),
				mw.WithRateLimit(mw.RateLimitConfig{Limiter: d.TokenLimiter, KeyFunc: mw.IPOnlyRateKey}),
			)
			// POST /oauth2/token - Token endpoint (RFC 6749)
			r.Post("/token", c.Token.Token)
			// POST /oauth2/revoke - Token revocation (RFC 7009)
			r.Post("/revoke", c.Revoke.Revoke)
		})

		r.Group(func(r chi.Router) {
			use(r, mw.WithNoStore(), mw.RequireAuth(d.Tokens))
			r.Get("/authorize", c.Authorize.Authorize)
			r.Get("/userinfo", c.UserInfo.UserInfo)
		})
	})
}
