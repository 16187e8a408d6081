package auth

import (
	"net/http"

	dto "github.com/dropDatabas3/authority/internal/http/dto/auth"
	authsvc "github.com/dropDatabas3/authority/internal/http/services/auth"
	"github.com/dropDatabas3/authority/internal/observability/logger"
)

// SignUpController handles POST /api/auth/signup.
type SignUpController struct {
	service *authsvc.Service
}

func NewSignUpController(s *authsvc.Service) *SignUpController {
	return &SignUpController{service: s}
}

func (c *SignUpController) SignUp(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.From(ctx).With(logger.Layer("controller"), logger.Op("SignUpController.SignUp"))

	var req dto.SignUpRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	user, err := c.service.SignUp(ctx, req)
	if err != nil {
		writeServiceError(w, err, log)
		return
	}

	writeJSON(w, http.StatusCreated, dto.SignUpResponse{
		UserID:        user.ID,
		Email:         user.Email,
		EmailVerified: user.EmailVerified,
	})
}
