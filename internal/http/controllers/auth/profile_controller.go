package auth

import (
	"net/http"

	"github.com/dropDatabas3/authority/internal/domain/repository"
	dto "github.com/dropDatabas3/authority/internal/http/dto/auth"
	httperrors "github.com/dropDatabas3/authority/internal/http/errors"
	mw "github.com/dropDatabas3/authority/internal/http/middlewares"
	authsvc "github.com/dropDatabas3/authority/internal/http/services/auth"
	"github.com/dropDatabas3/authority/internal/observability/logger"
)

// ProfileController handles /api/profile. Requiere RequireAuth.
type ProfileController struct {
	service *authsvc.Service
}

func NewProfileController(s *authsvc.Service) *ProfileController {
	return &ProfileController{service: s}
}

func toProfileResponse(u *repository.User) dto.ProfileResponse {
	return dto.ProfileResponse{
		ID:            u.ID,
		Email:         u.Email,
		EmailVerified: u.EmailVerified,
		GivenName:     u.GivenName,
		FamilyName:    u.FamilyName,
		PhoneNumber:   u.Phone,
		PhoneVerified: u.PhoneVerified,
		Picture:       u.Picture,
		Roles:         nonNil(u.Roles),
		Providers:     nonNil(u.Providers),
	}
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

// Get handles GET /api/profile.
func (c *ProfileController) Get(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := mw.GetUserID(ctx)
	if userID == "" {
		httperrors.WriteError(w, httperrors.ErrUnauthorized)
		return
	}
	log := logger.From(ctx).With(logger.Layer("controller"), logger.Op("ProfileController.Get"), logger.UserID(userID))

	u, err := c.service.Profile(ctx, userID)
	if err != nil {
		writeServiceError(w, err, log)
		return
	}
	writeJSON(w, http.StatusOK, toProfileResponse(u))
}

// Update handles PATCH /api/profile.
func (c *ProfileController) Update(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := mw.GetUserID(ctx)
	if userID == "" {
		httperrors.WriteError(w, httperrors.ErrUnauthorized)
		return
	}
	log := logger.From(ctx).With(logger.Layer("controller"), logger.Op("ProfileController.Update"), logger.UserID(userID))

	var req dto.UpdateProfileRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	u, err := c.service.UpdateProfile(ctx, userID, req)
	if err != nil {
		writeServiceError(w, err, log)
		return
	}
	writeJSON(w, http.StatusOK, toProfileResponse(u))
}

// ChangePassword handles POST /api/profile/change-password.
func (c *ProfileController) ChangePassword(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := mw.GetUserID(ctx)
	if userID == "" {
		httperrors.WriteError(w, httperrors.ErrUnauthorized)
		return
	}
	log := logger.From(ctx).With(logger.Layer("controller"), logger.Op("ProfileController.ChangePassword"), logger.UserID(userID))

	var req dto.ChangePasswordRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := c.service.ChangePassword(ctx, userID, req); err != nil {
		writeServiceError(w, err, log)
		return
	}
	writeJSON(w, http.StatusOK, okResult)
}
