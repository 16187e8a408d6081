package middlewares

import (
	stdErrors "errors"
	"net/http"
	"strings"

	"github.com/dropDatabas3/authority/internal/http/errors"
	jwtx "github.com/dropDatabas3/authority/internal/jwt"
)

// TokenParser valida un JWT firmado por el authority y retorna sus claims.
type TokenParser interface {
	Parse(token string) (map[string]any, error)
}

// BearerToken extrae el token de "Authorization: Bearer <t>".
func BearerToken(r *http.Request) (string, bool) {
	ah := strings.TrimSpace(r.Header.Get("Authorization"))
	if len(ah) < len("bearer ") || !strings.EqualFold(ah[:len("bearer ")], "bearer ") {
		return "", false
	}
	raw := strings.TrimSpace(ah[len("bearer "):])
	return raw, raw != ""
}

func challenge(w http.ResponseWriter, desc string) {
	w.Header().Set("WWW-Authenticate", `Bearer realm="authority", error="invalid_token", error_description="`+desc+`"`)
}

// RequireAuth valida Authorization: Bearer <access token> y guarda claims y
// subject en el contexto. Los refresh tokens no son aceptados.
func RequireAuth(parser TokenParser) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw, ok := BearerToken(r)
			if !ok {
				challenge(w, "missing bearer token")
				errors.WriteError(w, errors.ErrTokenMissing)
				return
			}

			claims, err := parser.Parse(raw)
			if err != nil {
				if stdErrors.Is(err, jwtx.ErrExpired) {
					challenge(w, "token expired")
					errors.WriteError(w, errors.ErrTokenExpired)
					return
				}
				challenge(w, "invalid token")
				errors.WriteError(w, errors.ErrTokenInvalid)
				return
			}
			if ClaimString(claims, "token_use") != "access" {
				challenge(w, "not an access token")
				errors.WriteError(w, errors.ErrTokenInvalid)
				return
			}
			sub := ClaimString(claims, "sub")
			if sub == "" {
				challenge(w, "missing subject")
				errors.WriteError(w, errors.ErrTokenInvalid)
				return
			}

			ctx := WithClaims(r.Context(), claims)
			ctx = WithUserID(ctx, sub)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
