package auth

// VerifyEmailRequest es el body de POST /api/auth/verify-email.
type VerifyEmailRequest struct {
	Email string `json:"email"`
	Token string `json:"token"`
}

// VerifyPhoneRequest es el body de POST /api/auth/verify-phone.
type VerifyPhoneRequest struct {
	PhoneNumber string `json:"phone_number"`
	Code        string `json:"code"`
}

// ResendVerificationRequest: Type es "EMAIL" o "SMS".
type ResendVerificationRequest struct {
	Email string `json:"email"`
	Type  string `json:"type"`
}

type ForgotPasswordRequest struct {
	Email string `json:"email"`
}

type ResetPasswordRequest struct {
	Email           string `json:"email"`
	Token           string `json:"token"`
	NewPassword     string `json:"new_password"`
	ConfirmPassword string `json:"confirm_password"`
}

// ResultResponse es la respuesta genérica {"result": true}.
type ResultResponse struct {
	Result bool `json:"result"`
}
