package oauth

import "net/http"

// JWKSController handles GET /.well-known/jwks.json.
type JWKSController struct {
	keys KeySet
}

func NewJWKSController(k KeySet) *JWKSController {
	return &JWKSController{keys: k}
}

func (c *JWKSController) JWKS(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Cache-Control", "public, max-age=300")
	writeJSON(w, http.StatusOK, c.keys.JWKS())
}
