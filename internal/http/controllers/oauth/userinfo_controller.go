package oauth

import (
	"net/http"
	"strings"

	dto "github.com/dropDatabas3/authority/internal/http/dto/oauth"
	httperrors "github.com/dropDatabas3/authority/internal/http/errors"
	mw "github.com/dropDatabas3/authority/internal/http/middlewares"
	"github.com/dropDatabas3/authority/internal/observability/logger"
)

// UserInfoController handles GET /oauth2/userinfo (OIDC Core §5.3).
type UserInfoController struct {
	profiles ProfileReader
}

func NewUserInfoController(p ProfileReader) *UserInfoController {
	return &UserInfoController{profiles: p}
}

func (c *UserInfoController) UserInfo(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := mw.GetUserID(ctx)

	u, err := c.profiles.Profile(ctx, userID)
	if err != nil {
		logger.From(ctx).Warn("userinfo lookup failed",
			logger.Layer("controller"), logger.Op("oauth.userinfo"), logger.UserID(userID), logger.Err(err))
		httperrors.WriteError(w, httperrors.ErrTokenInvalid)
		return
	}

	resp := dto.UserInfoResponse{
		Sub:           u.ID,
		Email:         u.Email,
		EmailVerified: u.EmailVerified,
		GivenName:     u.GivenName,
		FamilyName:    u.FamilyName,
		Name:          strings.TrimSpace(u.GivenName + " " + u.FamilyName),
		Picture:       u.Picture,
		PhoneNumber:   u.Phone,
		UpdatedAt:     u.UpdatedAt.Unix(),
	}
	if u.Phone != "" {
		resp.PhoneNumberVerified = u.PhoneVerified
	}
	w.Header().Set("Cache-Control", "no-store")
	writeJSON(w, http.StatusOK, resp)
}
