package middlewares

import (
	"net/http"
	"strings"
)

// WithCORS habilita CORS para los orígenes dados ("*" acepta cualquiera).
// Sin orígenes configurados retorna nil (Chain y el router lo ignoran).
func WithCORS(allowed []string) Middleware {
	origins := make(map[string]struct{}, len(allowed))
	wildcard := false
	for _, v := range allowed {
		v = strings.ToLower(strings.TrimRight(strings.TrimSpace(v), "/"))
		switch v {
		case "":
		case "*":
			wildcard = true
		default:
			origins[v] = struct{}{}
		}
	}
	if !wildcard && len(origins) == 0 {
		return nil
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := strings.TrimRight(strings.TrimSpace(r.Header.Get("Origin")), "/")
			h := w.Header()
			h.Add("Vary", "Origin")

			_, ok := origins[strings.ToLower(origin)]
			if origin != "" && (ok || wildcard) {
				h.Set("Access-Control-Allow-Origin", origin)
				h.Set("Access-Control-Allow-Methods", "GET,POST,PATCH,OPTIONS")
				h.Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Request-ID")
				h.Set("Access-Control-Expose-Headers", "X-Request-ID, X-RateLimit-Remaining, X-RateLimit-Reset, Retry-After, WWW-Authenticate, Location")
				h.Set("Access-Control-Max-Age", "600")
			}

			if r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != "" {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
