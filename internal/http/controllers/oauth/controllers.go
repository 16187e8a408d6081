// Package oauth contiene los controllers de /oauth2/* y el JWKS.
package oauth

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-jose/go-jose/v4"

	"github.com/dropDatabas3/authority/internal/domain/repository"
	dto "github.com/dropDatabas3/authority/internal/http/dto/oauth"
	svc "github.com/dropDatabas3/authority/internal/http/services/oauth"
)

// GrantService es lo que consumen token, authorize y revoke.
type GrantService interface {
	Token(ctx context.Context, req svc.GrantRequest) (*svc.TokenResponse, error)
	Authorize(ctx context.Context, req svc.AuthorizeRequest, userID string) (string, error)
	Revoke(ctx context.Context, token, hint string) error
}

// ProfileReader resuelve el usuario del access token para userinfo.
type ProfileReader interface {
	Profile(ctx context.Context, userID string) (*repository.User, error)
}

// KeySet expone las claves públicas de firma.
type KeySet interface {
	JWKS() jose.JSONWebKeySet
}

// Controllers agrupa todos los controllers del dominio oauth.
type Controllers struct {
	Token     *TokenController
	Authorize *AuthorizeController
	Revoke    *RevokeController
	UserInfo  *UserInfoController
	JWKS      *JWKSController
}

// NewControllers crea el agregador de controllers oauth.
func NewControllers(grants GrantService, profiles ProfileReader, keys KeySet) *Controllers {
	return &Controllers{
		Token:     NewTokenController(grants),
		Authorize: NewAuthorizeController(grants),
		Revoke:    NewRevokeController(grants),
		UserInfo:  NewUserInfoController(profiles),
		JWKS:      NewJWKSController(keys),
	}
}

// oauthStatus: server_error => 500, el resto => 400 (RFC 6749 §5.2).
func oauthStatus(code string) int {
	if code == "server_error" {
		return http.StatusInternalServerError
	}
	return http.StatusBadRequest
}

// writeOAuthError escribe {error, error_description}. La descripción de un
// server_error nunca incluye la causa.
func writeOAuthError(w http.ResponseWriter, err error) {
	code := svc.ErrorCode(err)
	desc := err.Error()
	if i := strings.LastIndex(desc, ": "); i >= 0 {
		desc = desc[i+2:]
	}
	if code == "server_error" {
		desc = "an unexpected error occurred"
	}
	writeJSON(w, oauthStatus(code), dto.ErrorResponse{Error: code, ErrorDescription: desc})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
