// Package auth contiene los controllers de /api/auth y /api/profile.
package auth

import (
	"encoding/json"
	stdErrors "errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/dropDatabas3/authority/internal/domain/repository"
	httperrors "github.com/dropDatabas3/authority/internal/http/errors"
	authsvc "github.com/dropDatabas3/authority/internal/http/services/auth"
	"github.com/dropDatabas3/authority/internal/http/services/verification"
	"github.com/dropDatabas3/authority/internal/observability/logger"
	"github.com/dropDatabas3/authority/internal/security/password"
)

const maxJSONBody = 64 << 10

// Controllers agrupa todos los controllers del dominio auth.
type Controllers struct {
	SignUp       *SignUpController
	Verification *VerificationController
	Profile      *ProfileController
}

// NewControllers crea el agregador de controllers auth.
func NewControllers(auth *authsvc.Service, verif *verification.Service) *Controllers {
	return &Controllers{
		SignUp:       NewSignUpController(auth),
		Verification: NewVerificationController(verif, auth),
		Profile:      NewProfileController(auth),
	}
}

// decodeJSON lee el body limitado; escribe el error y retorna false si falla.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBody)
	defer r.Body.Close()

	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		var tooLarge *http.MaxBytesError
		if stdErrors.As(err, &tooLarge) {
			httperrors.WriteError(w, httperrors.ErrBodyTooLarge)
			return false
		}
		httperrors.WriteError(w, httperrors.ErrInvalidJSON)
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeServiceError maps service errors to HTTP responses.
func writeServiceError(w http.ResponseWriter, err error, log *zap.Logger) {
	var weak *password.PolicyError
	switch {
	case stdErrors.As(err, &weak):
		httperrors.WriteError(w, httperrors.ErrWeakPassword.WithDetail(weak.Error()))
	case stdErrors.Is(err, password.ErrWeakPassword):
		httperrors.WriteError(w, httperrors.ErrWeakPassword)
	case stdErrors.Is(err, authsvc.ErrPasswordMismatch):
		httperrors.WriteError(w, httperrors.ErrPasswordMismatch)
	case stdErrors.Is(err, authsvc.ErrUserExists):
		httperrors.WriteError(w, httperrors.ErrAlreadyExists)
	case stdErrors.Is(err, authsvc.ErrInvalidCredentials):
		httperrors.WriteError(w, httperrors.ErrInvalidCredentials)
	case stdErrors.Is(err, authsvc.ErrInvalidInput):
		httperrors.WriteError(w, httperrors.ErrBadRequest.WithDetail(err.Error()))
	case stdErrors.Is(err, verification.ErrUserNotFound):
		httperrors.WriteError(w, httperrors.ErrUserNotFound)
	case stdErrors.Is(err, verification.ErrAlreadyVerified):
		httperrors.WriteError(w, httperrors.ErrAlreadyVerified)
	case stdErrors.Is(err, verification.ErrInvalidState):
		httperrors.WriteError(w, httperrors.ErrInvalidState)
	case stdErrors.Is(err, repository.ErrNoDatabase):
		httperrors.WriteError(w, httperrors.ErrServiceUnavailable)
	default:
		log.Error("unexpected error", logger.Err(err))
		httperrors.WriteError(w, httperrors.ErrInternalServerError.WithCause(err))
	}
}
