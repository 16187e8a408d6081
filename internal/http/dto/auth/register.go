package auth

// SignUpRequest es el body de POST /api/auth/signup.
type SignUpRequest struct {
	Email           string `json:"email"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirm_password"`
	GivenName       string `json:"given_name"`
	FamilyName      string `json:"family_name"`
	// PhoneNumber es opcional; si viene se inicia la verificación por SMS.
	PhoneNumber string `json:"phone_number,omitempty"`
}

// SignUpResponse devuelve el usuario creado (sin tokens: debe verificar el email).
type SignUpResponse struct {
	UserID        string `json:"user_id"`
	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`
}
