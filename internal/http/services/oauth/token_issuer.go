package oauth

import (
	"context"
	"crypto/subtle"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/dropDatabas3/authority/internal/clock"
	"github.com/dropDatabas3/authority/internal/domain/repository"
	"github.com/dropDatabas3/authority/internal/observability/logger"
	tokens "github.com/dropDatabas3/authority/internal/security/token"
	"github.com/dropDatabas3/authority/internal/store"
)

const (
	// DefaultScope se usa cuando el request no pide scope.
	DefaultScope = "openid profile email"

	TokenUseAccess  = "access"
	TokenUseRefresh = "refresh"

	// AccessTTL es fijo: expires_in siempre vale 600.
	AccessTTL = 600 * time.Second

	DefaultRefreshTTL = 720 * time.Hour
	DefaultIDTokenTTL = 60 * time.Minute
)

// Signer firma y valida JWT. Lo implementa *jwt.Signer.
type Signer interface {
	Issue(subject string, ttl time.Duration, extra map[string]any) (string, time.Time, error)
	Parse(token string) (map[string]any, error)
}

// TokenResponse es la respuesta estándar de /oauth2/token.
type TokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	IDToken      string `json:"id_token,omitempty"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"`
	Scope        string `json:"scope"`
}

// IssueOptions parametriza la emisión de un set de tokens.
type IssueOptions struct {
	Scope    string
	Nonce    string
	ClientID string
}

// TokenTTLs agrupa las vidas configurables. Ceros => defaults.
type TokenTTLs struct {
	Refresh time.Duration
	IDToken time.Duration
}

// TokenIssuer emite access/refresh/id tokens y administra los refresh persistidos.
type TokenIssuer struct {
	data   store.Repositories
	signer Signer
	rnd    tokens.RandomSource
	clock  clock.Clock
	ttls   TokenTTLs
}

func NewTokenIssuer(data store.Repositories, signer Signer, rnd tokens.RandomSource, clk clock.Clock, ttls TokenTTLs) *TokenIssuer {
	if ttls.Refresh <= 0 {
		ttls.Refresh = DefaultRefreshTTL
	}
	if ttls.IDToken <= 0 {
		ttls.IDToken = DefaultIDTokenTTL
	}
	return &TokenIssuer{data: data, signer: signer, rnd: rnd, clock: clk, ttls: ttls}
}

// IssueForGrant emite el set completo para user. El refresh queda persistido
// (hash) antes de devolver la respuesta.
func (t *TokenIssuer) IssueForGrant(ctx context.Context, user *repository.User, opts IssueOptions) (*TokenResponse, error) {
	log := logger.From(ctx).With(logger.Layer("service"), logger.Op("oauth.tokens.issue"), logger.UserID(user.ID))
	scope := normalizeScope(opts.Scope, DefaultScope)

	access, _, err := t.signer.Issue(user.ID, AccessTTL, map[string]any{
		"email":       user.Email,
		"given_name":  user.GivenName,
		"family_name": user.FamilyName,
		"roles":       rolesOrEmpty(user.Roles),
		"token_use":   TokenUseAccess,
	})
	if err != nil {
		log.Error("sign access token failed", logger.Err(err))
		return nil, serverError(err)
	}

	refresh, err := t.issueRefresh(ctx, user.ID, opts.ClientID)
	if err != nil {
		log.Error("issue refresh token failed", logger.Err(err))
		return nil, serverError(err)
	}

	resp := &TokenResponse{
		AccessToken:  access,
		RefreshToken: refresh,
		TokenType:    "Bearer",
		ExpiresIn:    int64(AccessTTL / time.Second),
		Scope:        scope,
	}

	if hasScope(scope, "openid") {
		idt, _, err := t.signer.Issue(user.ID, t.ttls.IDToken, t.idTokenClaims(user, scope, opts))
		if err != nil {
			log.Error("sign id token failed", logger.Err(err))
			return nil, serverError(err)
		}
		resp.IDToken = idt
	}
	return resp, nil
}

func (t *TokenIssuer) issueRefresh(ctx context.Context, userID, clientID string) (string, error) {
	id, err := tokens.NewID(t.rnd)
	if err != nil {
		return "", err
	}
	raw, exp, err := t.signer.Issue(userID, t.ttls.Refresh, map[string]any{
		"jti":       id,
		"token_use": TokenUseRefresh,
	})
	if err != nil {
		return "", err
	}
	rec := &repository.RefreshToken{
		ID:        id,
		UserID:    userID,
		ClientID:  clientID,
		TokenHash: tokens.SHA256Base64URL(raw),
		IssuedAt:  t.clock.Now(),
		ExpiresAt: exp,
	}
	if err := t.data.RefreshTokens().Create(ctx, rec); err != nil {
		return "", err
	}
	return raw, nil
}

func (t *TokenIssuer) idTokenClaims(user *repository.User, scope string, opts IssueOptions) map[string]any {
	c := map[string]any{
		"auth_time": t.clock.Now().Unix(),
	}
	if opts.ClientID != "" {
		c["aud"] = opts.ClientID
	}
	if opts.Nonce != "" {
		c["nonce"] = opts.Nonce
	}
	if hasScope(scope, "email") {
		c["email"] = user.Email
		c["email_verified"] = user.EmailVerified
	}
	if hasScope(scope, "profile") {
		c["given_name"] = user.GivenName
		c["family_name"] = user.FamilyName
		c["updated_at"] = user.UpdatedAt.Unix()
		if user.Picture != "" {
			c["picture"] = user.Picture
		}
	}
	if hasScope(scope, "phone") && user.Phone != "" {
		c["phone_number"] = user.Phone
		c["phone_number_verified"] = user.PhoneVerified
	}
	return c
}

// ValidateRefresh verifica firma/expiración, token_use y el registro persistido.
// Cualquier discrepancia es ErrInvalidToken.
func (t *TokenIssuer) ValidateRefresh(ctx context.Context, raw string) (*repository.User, *repository.RefreshToken, error) {
	if raw == "" {
		return nil, nil, invalidRequest("refresh_token is required")
	}
	claims, err := t.signer.Parse(raw)
	if err != nil {
		return nil, nil, invalidToken(err.Error())
	}
	if use, _ := claims["token_use"].(string); use != TokenUseRefresh {
		return nil, nil, invalidToken("not a refresh token")
	}
	jti, _ := claims["jti"].(string)
	if _, err := uuid.Parse(jti); err != nil {
		return nil, nil, invalidToken("malformed jti")
	}
	sub, _ := claims["sub"].(string)

	rec, err := t.data.RefreshTokens().GetByID(ctx, jti)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, nil, invalidToken("refresh token revoked or unknown")
		}
		return nil, nil, serverError(err)
	}
	if rec.UserID != sub {
		return nil, nil, invalidToken("subject mismatch")
	}
	if subtle.ConstantTimeCompare([]byte(rec.TokenHash), []byte(tokens.SHA256Base64URL(raw))) != 1 {
		return nil, nil, invalidToken("hash mismatch")
	}
	if rec.ExpiresAt.Before(t.clock.Now()) {
		return nil, nil, invalidToken("refresh token expired")
	}

	user, err := t.data.Users().GetByID(ctx, rec.UserID)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, nil, invalidToken("user not found")
		}
		return nil, nil, serverError(err)
	}
	return user, rec, nil
}

// Consume borra el registro del refresh en forma atómica (rotación).
// Si otro request ya lo consumió devuelve ErrInvalidToken.
func (t *TokenIssuer) Consume(ctx context.Context, id string) error {
	if _, err := t.data.RefreshTokens().Consume(ctx, id); err != nil {
		if repository.IsNotFound(err) {
			return invalidToken("refresh token already used")
		}
		return serverError(err)
	}
	return nil
}

// Revoke borra el registro del refresh token presentado.
func (t *TokenIssuer) Revoke(ctx context.Context, raw string) error {
	if raw == "" {
		return invalidRequest("token is required")
	}
	if err := t.data.RefreshTokens().DeleteByHash(ctx, tokens.SHA256Base64URL(raw)); err != nil {
		if repository.IsNotFound(err) {
			return invalidToken("unknown token")
		}
		return serverError(err)
	}
	return nil
}

// RevokeAllForUser termina todas las sesiones del usuario.
func (t *TokenIssuer) RevokeAllForUser(ctx context.Context, userID string) (int, error) {
	return t.data.RefreshTokens().DeleteByUser(ctx, userID)
}

// PurgeExpired borra refresh tokens vencidos.
func (t *TokenIssuer) PurgeExpired(ctx context.Context) (int, error) {
	return t.data.RefreshTokens().DeleteExpired(ctx, t.clock.Now())
}

func normalizeScope(scope, def string) string {
	s := strings.Join(strings.Fields(scope), " ")
	if s == "" {
		return def
	}
	return s
}

func hasScope(scope, want string) bool {
	return slices.Contains(strings.Fields(scope), want)
}

func rolesOrEmpty(r []string) []string {
	if r == nil {
		return []string{}
	}
	return r
}
