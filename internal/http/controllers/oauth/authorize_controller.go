package oauth

import (
	"net/http"

	mw "github.com/dropDatabas3/authority/internal/http/middlewares"
	svc "github.com/dropDatabas3/authority/internal/http/services/oauth"
	"github.com/dropDatabas3/authority/internal/observability/logger"
)

// AuthorizeController handles GET /oauth2/authorize. El usuario ya viene
// autenticado por RequireAuth; no hay pantalla de consentimiento.
type AuthorizeController struct {
	service GrantService
}

func NewAuthorizeController(s GrantService) *AuthorizeController {
	return &AuthorizeController{service: s}
}

func (c *AuthorizeController) Authorize(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := mw.GetUserID(ctx)
	log := logger.From(ctx).With(logger.Layer("controller"), logger.Op("oauth.authorize"), logger.UserID(userID))

	q := r.URL.Query()
	req := svc.AuthorizeRequest{
		ResponseType:        q.Get("response_type"),
		ClientID:            q.Get("client_id"),
		RedirectURI:         q.Get("redirect_uri"),
		Scope:               q.Get("scope"),
		State:               q.Get("state"),
		CodeChallenge:       q.Get("code_challenge"),
		CodeChallengeMethod: q.Get("code_challenge_method"),
		Nonce:               q.Get("nonce"),
	}

	// Los errores no redirigen: redirect_uri no está validada contra un registro de clientes.
	location, err := c.service.Authorize(ctx, req, userID)
	if err != nil {
		if svc.ErrorCode(err) == "server_error" {
			log.Error("authorize failed", logger.Err(err))
		}
		writeOAuthError(w, err)
		return
	}

	w.Header().Set("Cache-Control", "no-store")
	http.Redirect(w, r, location, http.StatusFound)
}
