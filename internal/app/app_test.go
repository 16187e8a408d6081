package app

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/dropDatabas3/authority/internal/clock"
	jwtx "github.com/dropDatabas3/authority/internal/jwt"
	"github.com/dropDatabas3/authority/internal/security/password"
	"github.com/dropDatabas3/authority/internal/store/adapters/memory"
)

const (
	frontend      = "https://app.example.com"
	testRedirect  = "https://app.example.com/callback"
	testVerifier  = "dBjftJeZ4CVP-mB92K27uhbUJU1p1r_wW1gFWFOEjXk"
	testChallenge = "E9Melhoa2OwvFrEMTJguCHaoeK1t8URWbuGJSstw-cM"
)

type outbox struct {
	mu    sync.Mutex
	links map[string]string
	sms   []string
}

func (o *outbox) put(kind, v string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.links == nil {
		o.links = map[string]string{}
	}
	o.links[kind] = v
}

func (o *outbox) SendEmailVerification(_ context.Context, _, _, link string, _ time.Duration) {
	o.put("verify", link)
}

func (o *outbox) SendPasswordReset(_ context.Context, _, _, link string, _ time.Duration) {
	o.put("reset", link)
}

func (o *outbox) SendWelcome(context.Context, string, string) {}

func (o *outbox) SendSMS(_ context.Context, _, body string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.sms = append(o.sms, body)
}

// tokenFrom extrae el query param token del último link del tipo dado.
func (o *outbox) tokenFrom(t *testing.T, kind string) string {
	t.Helper()
	o.mu.Lock()
	link := o.links[kind]
	o.mu.Unlock()
	require.NotEmpty(t, link, "no %s link sent", kind)
	require.True(t, strings.HasPrefix(link, frontend))
	u, err := url.Parse(link)
	require.NoError(t, err)
	return u.Query().Get("token")
}

type harness struct {
	srv    *httptest.Server
	client *http.Client
	mail   *outbox
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	clk := clock.NewFixed(time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC))
	key, err := jwtx.GenerateKey()
	require.NoError(t, err)
	signer, err := jwtx.NewSigner("https://auth.example.com", key, clk)
	require.NoError(t, err)

	mail := &outbox{}
	a := New(Deps{
		Store:           memory.New(),
		Signer:          signer,
		Hasher:          password.NewArgon2id(password.Params{Memory: 1024, Time: 1}),
		Policy:          password.Policy{MinLength: 8, RequireDigit: true},
		Notifier:        mail,
		Clock:           clk,
		RotateRefresh:   true,
		FrontendBaseURL: frontend,
		DefaultRoles:    []string{"USER"},
	})
	srv := httptest.NewServer(a.Handler)
	t.Cleanup(srv.Close)

	client := srv.Client()
	client.CheckRedirect = func(*http.Request, []*http.Request) error { return http.ErrUseLastResponse }
	return &harness{srv: srv, client: client, mail: mail}
}

func (h *harness) do(t *testing.T, method, path, bearer, contentType string, body io.Reader) (int, map[string]any, http.Header) {
	t.Helper()
	req, err := http.NewRequest(method, h.srv.URL+path, body)
	require.NoError(t, err)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	resp, err := h.client.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var out map[string]any
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	if len(raw) > 0 && strings.HasPrefix(resp.Header.Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(raw, &out))
	}
	return resp.StatusCode, out, resp.Header
}

func (h *harness) json(t *testing.T, method, path, bearer string, body any) (int, map[string]any) {
	t.Helper()
	b, err := json.Marshal(body)
	require.NoError(t, err)
	status, out, _ := h.do(t, method, path, bearer, "application/json", bytes.NewReader(b))
	return status, out
}

func (h *harness) form(t *testing.T, path string, v url.Values) (int, map[string]any) {
	t.Helper()
	status, out, _ := h.do(t, http.MethodPost, path, "", "application/x-www-form-urlencoded", strings.NewReader(v.Encode()))
	return status, out
}

func (h *harness) signUp(t *testing.T, email, pass string) {
	t.Helper()
	status, out := h.json(t, http.MethodPost, "/api/auth/signup", "", map[string]any{
		"email":            email,
		"password":         pass,
		"confirm_password": pass,
		"given_name":       "Ana",
		"family_name":      "García",
	})
	require.Equal(t, http.StatusCreated, status, out)
	require.Equal(t, false, out["email_verified"])
}

func (h *harness) login(t *testing.T, email, pass, scope string) map[string]any {
	t.Helper()
	status, out := h.form(t, "/oauth2/token", url.Values{
		"grant_type": {"password"},
		"username":   {email},
		"password":   {pass},
		"scope":      {scope},
		"client_id":  {"web"},
	})
	require.Equal(t, http.StatusOK, status, out)
	return out
}

func TestSignUpVerifyAndLogin(t *testing.T) {
	h := newHarness(t)
	h.signUp(t, "ana@example.com", "passw0rd!")

	// duplicado
	status, out := h.json(t, http.MethodPost, "/api/auth/signup", "", map[string]any{
		"email": "ana@example.com", "password": "passw0rd!", "confirm_password": "passw0rd!",
	})
	require.Equal(t, http.StatusConflict, status)
	require.Equal(t, "ALREADY_EXISTS", out["code"])

	// token inválido => 400 genérico
	status, out = h.json(t, http.MethodPost, "/api/auth/verify-email", "", map[string]any{"email": "ana@example.com", "token": "nope"})
	require.Equal(t, http.StatusBadRequest, status)
	require.Equal(t, "VERIFICATION_FAILED", out["code"])

	token := h.mail.tokenFrom(t, "verify")
	status, out = h.json(t, http.MethodPost, "/api/auth/verify-email", "", map[string]any{"email": "ana@example.com", "token": token})
	require.Equal(t, http.StatusOK, status, out)
	require.Equal(t, true, out["result"])

	// single-use
	status, _ = h.json(t, http.MethodPost, "/api/auth/verify-email", "", map[string]any{"email": "ana@example.com", "token": token})
	require.Equal(t, http.StatusBadRequest, status)

	status, out = h.json(t, http.MethodPost, "/api/auth/resend-verification", "", map[string]any{"email": "ana@example.com", "type": "EMAIL"})
	require.Equal(t, http.StatusConflict, status)
	require.Equal(t, "ALREADY_VERIFIED", out["code"])

	tok := h.login(t, "ana@example.com", "passw0rd!", "openid email")
	require.Equal(t, "Bearer", tok["token_type"])
	require.EqualValues(t, 600, tok["expires_in"])
	require.NotEmpty(t, tok["id_token"])

	status, info, _ := h.do(t, http.MethodGet, "/oauth2/userinfo", tok["access_token"].(string), "", nil)
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, "ana@example.com", info["email"])
	require.Equal(t, true, info["email_verified"])

	// el refresh no sirve como bearer
	status, _, hdr := h.do(t, http.MethodGet, "/oauth2/userinfo", tok["refresh_token"].(string), "", nil)
	require.Equal(t, http.StatusUnauthorized, status)
	require.Contains(t, hdr.Get("WWW-Authenticate"), "invalid_token")
}

func TestPasswordGrantRejectsBadCredentials(t *testing.T) {
	h := newHarness(t)
	h.signUp(t, "ana@example.com", "passw0rd!")

	for _, user := range []string{"ana@example.com", "ghost@example.com"} {
		status, out := h.form(t, "/oauth2/token", url.Values{
			"grant_type": {"password"},
			"username":   {user},
			"password":   {"wrong-pass1"},
		})
		require.Equal(t, http.StatusBadRequest, status)
		require.Equal(t, "invalid_grant", out["error"])
	}

	status, out := h.form(t, "/oauth2/token", url.Values{"grant_type": {"client_credentials"}})
	require.Equal(t, http.StatusBadRequest, status)
	require.Equal(t, "unsupported_grant_type", out["error"])
}

func TestAuthorizationCodeFlowWithPKCE(t *testing.T) {
	h := newHarness(t)
	h.signUp(t, "ana@example.com", "passw0rd!")
	at := h.login(t, "ana@example.com", "passw0rd!", "openid")["access_token"].(string)

	q := url.Values{
		"response_type":         {"code"},
		"client_id":             {"web"},
		"redirect_uri":          {testRedirect},
		"scope":                 {"openid profile"},
		"state":                 {"st-1"},
		"code_challenge":        {testChallenge},
		"code_challenge_method": {"S256"},
	}

	status, _, _ := h.do(t, http.MethodGet, "/oauth2/authorize?"+q.Encode(), "", "", nil)
	require.Equal(t, http.StatusUnauthorized, status)

	status, _, hdr := h.do(t, http.MethodGet, "/oauth2/authorize?"+q.Encode(), at, "", nil)
	require.Equal(t, http.StatusFound, status)
	loc, err := url.Parse(hdr.Get("Location"))
	require.NoError(t, err)
	require.Equal(t, "st-1", loc.Query().Get("state"))
	code := loc.Query().Get("code")
	require.NotEmpty(t, code)

	exchange := url.Values{
		"grant_type":    {"authorization_code"},
		"code":          {code},
		"redirect_uri":  {testRedirect},
		"client_id":     {"web"},
		"code_verifier": {testVerifier},
	}
	status, out := h.form(t, "/oauth2/token", exchange)
	require.Equal(t, http.StatusOK, status, out)
	require.Equal(t, "openid profile", out["scope"])

	// replay
	status, out = h.form(t, "/oauth2/token", exchange)
	require.Equal(t, http.StatusBadRequest, status)
	require.Equal(t, "invalid_grant", out["error"])
}

func TestRefreshRotationAndRevoke(t *testing.T) {
	h := newHarness(t)
	h.signUp(t, "ana@example.com", "passw0rd!")
	first := h.login(t, "ana@example.com", "passw0rd!", "")

	status, second := h.form(t, "/oauth2/token", url.Values{
		"grant_type":    {"refresh_token"},
		"refresh_token": {first["refresh_token"].(string)},
	})
	require.Equal(t, http.StatusOK, status, second)
	require.NotEqual(t, first["refresh_token"], second["refresh_token"])

	// el viejo quedó consumido
	status, out := h.form(t, "/oauth2/token", url.Values{
		"grant_type":    {"refresh_token"},
		"refresh_token": {first["refresh_token"].(string)},
	})
	require.Equal(t, http.StatusBadRequest, status)
	require.Equal(t, "invalid_token", out["error"])

	status, out = h.form(t, "/oauth2/revoke", url.Values{"token": {second["refresh_token"].(string)}})
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, true, out["result"])

	status, _ = h.form(t, "/oauth2/token", url.Values{
		"grant_type":    {"refresh_token"},
		"refresh_token": {second["refresh_token"].(string)},
	})
	require.Equal(t, http.StatusBadRequest, status)
}

func TestForgotAndResetPassword(t *testing.T) {
	h := newHarness(t)
	h.signUp(t, "ana@example.com", "passw0rd!")
	session := h.login(t, "ana@example.com", "passw0rd!", "")

	// email desconocido: misma respuesta
	status, out := h.json(t, http.MethodPost, "/api/auth/forgot-password", "", map[string]any{"email": "ghost@example.com"})
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, true, out["result"])

	status, _ = h.json(t, http.MethodPost, "/api/auth/forgot-password", "", map[string]any{"email": "ana@example.com"})
	require.Equal(t, http.StatusOK, status)
	token := h.mail.tokenFrom(t, "reset")

	status, out = h.json(t, http.MethodPost, "/api/auth/reset-password", "", map[string]any{
		"email": "ana@example.com", "token": token, "new_password": "n3w-secret", "confirm_password": "other",
	})
	require.Equal(t, http.StatusBadRequest, status)
	require.Equal(t, "PASSWORD_MISMATCH", out["code"])

	status, out = h.json(t, http.MethodPost, "/api/auth/reset-password", "", map[string]any{
		"email": "ana@example.com", "token": token, "new_password": "n3w-secret", "confirm_password": "n3w-secret",
	})
	require.Equal(t, http.StatusOK, status, out)

	h.login(t, "ana@example.com", "n3w-secret", "")

	// las sesiones previas quedaron revocadas
	status, _ = h.form(t, "/oauth2/token", url.Values{
		"grant_type":    {"refresh_token"},
		"refresh_token": {session["refresh_token"].(string)},
	})
	require.Equal(t, http.StatusBadRequest, status)
}

func TestProfileAndChangePassword(t *testing.T) {
	h := newHarness(t)
	h.signUp(t, "ana@example.com", "passw0rd!")
	at := h.login(t, "ana@example.com", "passw0rd!", "")["access_token"].(string)

	status, out := h.json(t, http.MethodPatch, "/api/profile", at, map[string]any{
		"given_name":   "Anita",
		"phone_number": "+5491122223333",
	})
	require.Equal(t, http.StatusOK, status, out)
	require.Equal(t, "Anita", out["given_name"])
	require.Equal(t, false, out["phone_number_verified"])
	require.Len(t, h.mail.sms, 1)

	status, out = h.json(t, http.MethodPost, "/api/profile/change-password", at, map[string]any{
		"old_password": "wrong", "new_password": "0ther-pass", "confirm_password": "0ther-pass",
	})
	require.Equal(t, http.StatusUnauthorized, status)
	require.Equal(t, "INVALID_CREDENTIALS", out["code"])

	status, out = h.json(t, http.MethodPost, "/api/profile/change-password", at, map[string]any{
		"old_password": "passw0rd!", "new_password": "short", "confirm_password": "short",
	})
	require.Equal(t, http.StatusBadRequest, status)
	require.Equal(t, "WEAK_PASSWORD", out["code"])

	status, _ = h.json(t, http.MethodPost, "/api/profile/change-password", at, map[string]any{
		"old_password": "passw0rd!", "new_password": "0ther-pass", "confirm_password": "0ther-pass",
	})
	require.Equal(t, http.StatusOK, status)
	h.login(t, "ana@example.com", "0ther-pass", "")

	status, _ = h.json(t, http.MethodPatch, "/api/profile", "", map[string]any{"given_name": "x"})
	require.Equal(t, http.StatusUnauthorized, status)
}

func TestInfraRoutes(t *testing.T) {
	h := newHarness(t)

	status, out, _ := h.do(t, http.MethodGet, "/readyz", "", "", nil)
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, "ok", out["status"])

	status, out, _ = h.do(t, http.MethodGet, "/.well-known/jwks.json", "", "", nil)
	require.Equal(t, http.StatusOK, status)
	require.Len(t, out["keys"], 1)

	status, out, hdr := h.do(t, http.MethodGet, "/nope", "", "", nil)
	require.Equal(t, http.StatusNotFound, status)
	require.Equal(t, "NOT_FOUND", out["code"])
	require.NotEmpty(t, hdr.Get("X-Request-ID"))

	status, _, _ = h.do(t, http.MethodGet, "/oauth2/token", "", "", nil)
	require.Equal(t, http.StatusMethodNotAllowed, status)
}
