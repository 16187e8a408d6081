package oauth

import (
	"net/http"
	"strings"

	dto "github.com/dropDatabas3/authority/internal/http/dto/oauth"
	svc "github.com/dropDatabas3/authority/internal/http/services/oauth"
)

// RevokeController handles POST /oauth2/revoke.
type RevokeController struct {
	service GrantService
}

func NewRevokeController(s GrantService) *RevokeController {
	return &RevokeController{service: s}
}

func (c *RevokeController) Revoke(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxFormBody)
	if err := r.ParseForm(); err != nil {
		writeOAuthError(w, svc.ErrInvalidRequest)
		return
	}

	token := strings.TrimSpace(r.PostForm.Get("token"))
	if token == "" {
		writeOAuthError(w, svc.ErrInvalidRequest)
		return
	}

	if err := c.service.Revoke(r.Context(), token, r.PostForm.Get("token_type_hint")); err != nil {
		writeOAuthError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.RevokeResponse{Result: true})
}
