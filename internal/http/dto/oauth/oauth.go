package oauth

// ErrorResponse es el cuerpo de error OAuth2 (RFC 6749 §5.2).
type ErrorResponse struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description,omitempty"`
}

// RevokeResponse es la respuesta de POST /oauth2/revoke.
type RevokeResponse struct {
	Result bool `json:"result"`
}

// UserInfoResponse es la respuesta de GET /oauth2/userinfo (claims OIDC estándar).
type UserInfoResponse struct {
	Sub                 string `json:"sub"`
	Email               string `json:"email,omitempty"`
	EmailVerified       bool   `json:"email_verified"`
	GivenName           string `json:"given_name,omitempty"`
	FamilyName          string `json:"family_name,omitempty"`
	Name                string `json:"name,omitempty"`
	Picture             string `json:"picture,omitempty"`
	PhoneNumber         string `json:"phone_number,omitempty"`
	PhoneNumberVerified bool   `json:"phone_number_verified,omitempty"`
	UpdatedAt           int64  `json:"updated_at,omitempty"`
}
