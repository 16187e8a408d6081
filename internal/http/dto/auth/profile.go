package auth

// ChangePasswordRequest es el body de POST /api/profile/change-password.
// OldPassword es obligatorio si el usuario ya tiene password.
type ChangePasswordRequest struct {
	OldPassword     string `json:"old_password"`
	NewPassword     string `json:"new_password"`
	ConfirmPassword string `json:"confirm_password"`
}

// UpdateProfileRequest es el body de PATCH /api/profile. Campos nulos no se tocan.
type UpdateProfileRequest struct {
	GivenName   *string `json:"given_name,omitempty"`
	FamilyName  *string `json:"family_name,omitempty"`
	Picture     *string `json:"picture,omitempty"`
	PhoneNumber *string `json:"phone_number,omitempty"`
}

// ProfileResponse es la vista pública del usuario.
type ProfileResponse struct {
	ID            string   `json:"id"`
	Email         string   `json:"email"`
	EmailVerified bool     `json:"email_verified"`
	GivenName     string   `json:"given_name"`
	FamilyName    string   `json:"family_name"`
	PhoneNumber   string   `json:"phone_number,omitempty"`
	PhoneVerified bool     `json:"phone_number_verified"`
	Picture       string   `json:"picture,omitempty"`
	Roles         []string `json:"roles"`
	Providers     []string `json:"providers"`
}
