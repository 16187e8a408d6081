package router

import (
	"github.com/go-chi/chi/v5"

	mw "github.com/dropDatabas3/authority/internal/http/middlewares"
)

// registerAuthRoutes registra /api/auth (públicas, con rate limit) y
// /api/profile (bearer).
func registerAuthRoutes(r chi.Router, d Deps) {
	c := d.Auth

	r.Route("/api/auth", func(r chi.Router) {
		use(r,
			mw.WithNoStore(),
			mw.WithRateLimit(mw.RateLimitConfig{Limiter: d.AuthLimiter, KeyFunc: mw.IPPathRateKey}),
		)
		r.Post("/signup", c.SignUp.SignUp)
		r.Post("/verify-email", c.Verification.VerifyEmail)
		r.Post("/verify-phone", c.Verification.VerifyPhone)
		r.Post("/resend-verification", c.Verification.Resend)
		r.Post("/forgot-password", c.Verification.ForgotPassword)
		r.Post("/reset-password", c.Verification.ResetPassword)
	})

	r.Route("/api/profile", func(r chi.Router) {
		use(r, mw.WithNoStore(), mw.RequireAuth(d.Tokens))
		r.Get("/", c.Profile.Get)
		r.Patch("/", c.Profile.Update)
		r.Post("/change-password", c.Profile.ChangePassword)
	})
}
