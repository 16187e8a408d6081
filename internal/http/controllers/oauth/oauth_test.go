package oauth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/go-jose/go-jose/v4"
	"github.com/stretchr/testify/require"

	"github.com/dropDatabas3/authority/internal/domain/repository"
	dto "github.com/dropDatabas3/authority/internal/http/dto/oauth"
	mw "github.com/dropDatabas3/authority/internal/http/middlewares"
	svc "github.com/dropDatabas3/authority/internal/http/services/oauth"
)

type fakeGrants struct {
	got       svc.GrantRequest
	tokenErr  error
	authzReq  svc.AuthorizeRequest
	authzUser string
	revoked   string
	revokeErr error
}

func (f *fakeGrants) Token(_ context.Context, req svc.GrantRequest) (*svc.TokenResponse, error) {
	f.got = req
	if f.tokenErr != nil {
		return nil, f.tokenErr
	}
	return &svc.TokenResponse{AccessToken: "at", RefreshToken: "rt", TokenType: "Bearer", ExpiresIn: 600, Scope: "openid"}, nil
}

func (f *fakeGrants) Authorize(_ context.Context, req svc.AuthorizeRequest, userID string) (string, error) {
	f.authzReq, f.authzUser = req, userID
	if req.ResponseType != "code" {
		return "", svc.ErrUnsupportedResponseType
	}
	return req.RedirectURI + "?code=abc&state=" + url.QueryEscape(req.State), nil
}

func (f *fakeGrants) Revoke(_ context.Context, token, _ string) error {
	f.revoked = token
	return f.revokeErr
}

func postForm(h http.HandlerFunc, form url.Values) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/oauth2/token", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	h(rec, req)
	return rec
}

func decodeErr(t *testing.T, rec *httptest.ResponseRecorder) dto.ErrorResponse {
	t.Helper()
	var out dto.ErrorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&out))
	return out
}

func TestToken_PasswordGrant(t *testing.T) {
	g := &fakeGrants{}
	c := NewTokenController(g)

	rec := postForm(c.Token, url.Values{
		"grant_type": {"password"},
		"username":   {"ana@example.com"},
		"password":   {"secret"},
		"scope":      {"openid email"},
		"client_id":  {"web"},
	})
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "no-store", rec.Header().Get("Cache-Control"))
	require.Equal(t, svc.PasswordGrant{Username: "ana@example.com", Password: "secret", Scope: "openid email", ClientID: "web"}, g.got)

	var resp svc.TokenResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.Equal(t, "Bearer", resp.TokenType)
	require.EqualValues(t, 600, resp.ExpiresIn)
}

func TestToken_AuthorizationCodeGrantWithBasicClient(t *testing.T) {
	g := &fakeGrants{}
	c := NewTokenController(g)

	form := url.Values{
		"grant_type":    {"authorization_code"},
		"code":          {"the-code"},
		"redirect_uri":  {"https://app/cb"},
		"code_verifier": {"v"},
	}
	req := httptest.NewRequest(http.MethodPost, "/oauth2/token", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.SetBasicAuth("web", "")
	rec := httptest.NewRecorder()
	c.Token(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, svc.AuthorizationCodeGrant{Code: "the-code", RedirectURI: "https://app/cb", ClientID: "web", CodeVerifier: "v"}, g.got)
}

func TestToken_Errors(t *testing.T) {
	cases := []struct {
		name     string
		form     url.Values
		svcErr   error
		status   int
		code     string
		noDetail bool
	}{
		{"missing grant", url.Values{}, nil, http.StatusBadRequest, "invalid_request", false},
		{"unknown grant", url.Values{"grant_type": {"client_credentials"}}, nil, http.StatusBadRequest, "unsupported_grant_type", false},
		{"invalid grant", url.Values{"grant_type": {"refresh_token"}}, fmt.Errorf("%w: expired", svc.ErrInvalidGrant), http.StatusBadRequest, "invalid_grant", false},
		{"server error", url.Values{"grant_type": {"refresh_token"}}, fmt.Errorf("%w: %w", svc.ErrServerError, errors.New("db exploded")), http.StatusInternalServerError, "server_error", true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c := NewTokenController(&fakeGrants{tokenErr: tc.svcErr})
			rec := postForm(c.Token, tc.form)
			require.Equal(t, tc.status, rec.Code)
			out := decodeErr(t, rec)
			require.Equal(t, tc.code, out.Error)
			if tc.noDetail {
				require.NotContains(t, out.ErrorDescription, "db exploded")
			}
		})
	}
}

func TestAuthorize(t *testing.T) {
	g := &fakeGrants{}
	c := NewAuthorizeController(g)

	q := url.Values{
		"response_type":         {"code"},
		"client_id":             {"web"},
		"redirect_uri":          {"https://app/cb"},
		"state":                 {"xyz"},
		"code_challenge":        {"ch"},
		"code_challenge_method": {"S256"},
	}
	req := httptest.NewRequest(http.MethodGet, "/oauth2/authorize?"+q.Encode(), nil)
	req = req.WithContext(mw.WithUserID(req.Context(), "user-1"))
	rec := httptest.NewRecorder()
	c.Authorize(rec, req)

	require.Equal(t, http.StatusFound, rec.Code)
	require.Equal(t, "https://app/cb?code=abc&state=xyz", rec.Header().Get("Location"))
	require.Equal(t, "user-1", g.authzUser)
	require.Equal(t, "S256", g.authzReq.CodeChallengeMethod)

	q.Set("response_type", "token")
	req = httptest.NewRequest(http.MethodGet, "/oauth2/authorize?"+q.Encode(), nil)
	rec = httptest.NewRecorder()
	c.Authorize(rec, req)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, "unsupported_response_type", decodeErr(t, rec).Error)
}

func TestRevoke(t *testing.T) {
	g := &fakeGrants{}
	c := NewRevokeController(g)

	rec := postForm(c.Revoke, url.Values{})
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = postForm(c.Revoke, url.Values{"token": {"rt-1"}, "token_type_hint": {"refresh_token"}})
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"result":true}`, rec.Body.String())
	require.Equal(t, "rt-1", g.revoked)

	g.revokeErr = fmt.Errorf("%w: unknown refresh token", svc.ErrInvalidToken)
	rec = postForm(c.Revoke, url.Values{"token": {"rt-1"}})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, "invalid_token", decodeErr(t, rec).Error)
}

type fakeProfiles map[string]*repository.User

func (f fakeProfiles) Profile(_ context.Context, id string) (*repository.User, error) {
	if u, ok := f[id]; ok {
		return u, nil
	}
	return nil, errors.New("user not found")
}

func TestUserInfo(t *testing.T) {
	c := NewUserInfoController(fakeProfiles{"u1": {
		ID: "u1", Email: "ana@example.com", EmailVerified: true,
		GivenName: "Ana", FamilyName: "García", UpdatedAt: time.Unix(1700000000, 0),
	}})

	req := httptest.NewRequest(http.MethodGet, "/oauth2/userinfo", nil)
	req = req.WithContext(mw.WithUserID(req.Context(), "u1"))
	rec := httptest.NewRecorder()
	c.UserInfo(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var out dto.UserInfoResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&out))
	require.Equal(t, "u1", out.Sub)
	require.Equal(t, "Ana García", out.Name)
	require.True(t, out.EmailVerified)

	req = httptest.NewRequest(http.MethodGet, "/oauth2/userinfo", nil)
	req = req.WithContext(mw.WithUserID(req.Context(), "ghost"))
	rec = httptest.NewRecorder()
	c.UserInfo(rec, req)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

type staticKeys struct{}

func (staticKeys) JWKS() jose.JSONWebKeySet {
	return jose.JSONWebKeySet{Keys: []jose.JSONWebKey{}}
}

func TestJWKS(t *testing.T) {
	c := NewJWKSController(staticKeys{})
	rec := httptest.NewRecorder()
	c.JWKS(rec, httptest.NewRequest(http.MethodGet, "/.well-known/jwks.json", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"keys":[]}`, rec.Body.String())
}
