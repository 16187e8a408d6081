package oauth

import (
	"net/http"
	"strings"

	"github.com/dropDatabas3/authority/internal/observability/logger"

	svc "github.com/dropDatabas3/authority/internal/http/services/oauth"
)

const maxFormBody = 64 << 10

// TokenController handles POST /oauth2/token.
type TokenController struct {
	service GrantService
}

func NewTokenController(s GrantService) *TokenController {
	return &TokenController{service: s}
}

// Token implementa los grants password, authorization_code (PKCE) y refresh_token.
func (c *TokenController) Token(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.From(ctx).With(logger.Layer("controller"), logger.Op("oauth.token"))

	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("Pragma", "no-cache")

	r.Body = http.MaxBytesReader(w, r.Body, maxFormBody)
	if err := r.ParseForm(); err != nil {
		log.Warn("failed to parse form", logger.Err(err))
		writeOAuthError(w, svc.ErrInvalidRequest)
		return
	}

	req, err := grantRequestFromForm(r)
	if err != nil {
		writeOAuthError(w, err)
		return
	}

	resp, err := c.service.Token(ctx, req)
	if err != nil {
		if svc.ErrorCode(err) == "server_error" {
			log.Error("token endpoint error", logger.Err(err))
		}
		writeOAuthError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// grantRequestFromForm arma la variante de GrantRequest según grant_type.
// client_id puede venir en el form o como usuario de Basic auth.
func grantRequestFromForm(r *http.Request) (svc.GrantRequest, error) {
	form := r.PostForm
	gt, err := svc.ParseGrantType(form.Get("grant_type"))
	if err != nil {
		return nil, err
	}

	clientID := strings.TrimSpace(form.Get("client_id"))
	if clientID == "" {
		if u, _, ok := r.BasicAuth(); ok {
			clientID = u
		}
	}

	switch gt {
	case svc.GrantPassword:
		return svc.PasswordGrant{
			Username: form.Get("username"),
			Password: form.Get("password"),
			Scope:    form.Get("scope"),
			ClientID: clientID,
		}, nil
	case svc.GrantAuthorizationCode:
		return svc.AuthorizationCodeGrant{
			Code:         form.Get("code"),
			RedirectURI:  form.Get("redirect_uri"),
			ClientID:     clientID,
			CodeVerifier: form.Get("code_verifier"),
		}, nil
	default:
		return svc.RefreshTokenGrant{RefreshToken: form.Get("refresh_token")}, nil
	}
}
