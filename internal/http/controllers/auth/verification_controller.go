package auth

import (
	"net/http"
	"strings"

	"github.com/dropDatabas3/authority/internal/domain/repository"
	dto "github.com/dropDatabas3/authority/internal/http/dto/auth"
	httperrors "github.com/dropDatabas3/authority/internal/http/errors"
	authsvc "github.com/dropDatabas3/authority/internal/http/services/auth"
	"github.com/dropDatabas3/authority/internal/http/services/verification"
	"github.com/dropDatabas3/authority/internal/observability/logger"
)

// VerificationController agrupa los flujos de action tokens:
// verify-email, verify-phone, resend, forgot y reset.
type VerificationController struct {
	service *verification.Service
	auth    *authsvc.Service
}

func NewVerificationController(s *verification.Service, auth *authsvc.Service) *VerificationController {
	return &VerificationController{service: s, auth: auth}
}

var okResult = dto.ResultResponse{Result: true}

// VerifyEmail handles POST /api/auth/verify-email. Cualquier fallo es el
// mismo 400 genérico.
func (c *VerificationController) VerifyEmail(w http.ResponseWriter, r *http.Request) {
	var req dto.VerifyEmailRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if !c.service.VerifyEmail(r.Context(), strings.TrimSpace(req.Email), req.Token) {
		httperrors.WriteError(w, httperrors.ErrVerificationFailed)
		return
	}
	writeJSON(w, http.StatusOK, okResult)
}

// VerifyPhone handles POST /api/auth/verify-phone.
func (c *VerificationController) VerifyPhone(w http.ResponseWriter, r *http.Request) {
	var req dto.VerifyPhoneRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if !c.service.VerifyPhone(r.Context(), strings.TrimSpace(req.PhoneNumber), strings.TrimSpace(req.Code)) {
		httperrors.WriteError(w, httperrors.ErrVerificationFailed)
		return
	}
	writeJSON(w, http.StatusOK, okResult)
}

// Resend handles POST /api/auth/resend-verification.
func (c *VerificationController) Resend(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.From(ctx).With(logger.Layer("controller"), logger.Op("VerificationController.Resend"))

	var req dto.ResendVerificationRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	var t repository.ActionType
	switch strings.ToUpper(strings.TrimSpace(req.Type)) {
	case "EMAIL":
		t = repository.ActionEmailVerification
	case "SMS":
		t = repository.ActionSMSVerification
	default:
		httperrors.WriteError(w, httperrors.ErrBadRequest.WithDetail("type must be EMAIL or SMS"))
		return
	}

	if err := c.service.ResendVerification(ctx, strings.TrimSpace(req.Email), t); err != nil {
		writeServiceError(w, err, log)
		return
	}
	writeJSON(w, http.StatusOK, okResult)
}

// ForgotPassword handles POST /api/auth/forgot-password. Siempre responde
// {"result":true} para no revelar qué emails existen.
func (c *VerificationController) ForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req dto.ForgotPasswordRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if email := strings.TrimSpace(req.Email); email != "" {
		c.service.StartPasswordReset(r.Context(), email)
	}
	writeJSON(w, http.StatusOK, okResult)
}

// ResetPassword handles POST /api/auth/reset-password.
func (c *VerificationController) ResetPassword(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.From(ctx).With(logger.Layer("controller"), logger.Op("VerificationController.ResetPassword"))

	var req dto.ResetPasswordRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := c.auth.CheckNewPassword(req.NewPassword, req.ConfirmPassword); err != nil {
		writeServiceError(w, err, log)
		return
	}
	if !c.service.CompletePasswordReset(ctx, strings.TrimSpace(req.Email), req.Token, req.NewPassword) {
		httperrors.WriteError(w, httperrors.ErrVerificationFailed)
		return
	}
	writeJSON(w, http.StatusOK, okResult)
}
