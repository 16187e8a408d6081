package oauth

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/dropDatabas3/authority/internal/audit"
	"github.com/dropDatabas3/authority/internal/domain/repository"
	"github.com/dropDatabas3/authority/internal/metrics"
	"github.com/dropDatabas3/authority/internal/observability/logger"
	"github.com/dropDatabas3/authority/internal/security/password"
	"github.com/dropDatabas3/authority/internal/validation"
)

// GrantType es el valor de grant_type en /oauth2/token.
type GrantType string

const (
	GrantPassword          GrantType = "password"
	GrantAuthorizationCode GrantType = "authorization_code"
	GrantRefreshToken      GrantType = "refresh_token"
)

// ParseGrantType mapea el valor del wire. Desconocido => ErrUnsupportedGrantType.
func ParseGrantType(s string) (GrantType, error) {
	switch g := GrantType(strings.TrimSpace(s)); g {
	case GrantPassword, GrantAuthorizationCode, GrantRefreshToken:
		return g, nil
	case "":
		return "", invalidRequest("grant_type is required")
	default:
		return "", ErrUnsupportedGrantType
	}
}

// GrantRequest es uno de PasswordGrant, AuthorizationCodeGrant o RefreshTokenGrant.
type GrantRequest interface {
	GrantType() GrantType
	validate() error
}

type PasswordGrant struct {
	Username string
	Password string
	Scope    string
	ClientID string
}

type AuthorizationCodeGrant struct {
	Code         string
	RedirectURI  string
	ClientID     string
	CodeVerifier string
}

type RefreshTokenGrant struct {
	RefreshToken string
}

func (PasswordGrant) GrantType() GrantType          { return GrantPassword }
func (AuthorizationCodeGrant) GrantType() GrantType { return GrantAuthorizationCode }
func (RefreshTokenGrant) GrantType() GrantType      { return GrantRefreshToken }

func (g PasswordGrant) validate() error {
	if g.Username == "" || g.Password == "" {
		return invalidRequest("username and password are required")
	}
	return nil
}

func (g AuthorizationCodeGrant) validate() error {
	if g.Code == "" || g.RedirectURI == "" || g.ClientID == "" {
		return invalidRequest("code, redirect_uri and client_id are required")
	}
	return nil
}

func (g RefreshTokenGrant) validate() error {
	if g.RefreshToken == "" {
		return invalidRequest("refresh_token is required")
	}
	return nil
}

// AuthorizeRequest son los parámetros de /oauth2/authorize.
type AuthorizeRequest struct {
	ResponseType        string
	ClientID            string
	RedirectURI         string
	Scope               string
	State               string
	CodeChallenge       string
	CodeChallengeMethod string
	Nonce               string
}

// GrantService despacha los grants y el endpoint de authorize.
type GrantService struct {
	users         repository.UserRepository
	hasher        password.Hasher
	codes         *AuthCodeManager
	issuer        *TokenIssuer
	rotateRefresh bool

	dummyOnce sync.Once
	dummyHash string
}

type GrantDeps struct {
	Users         repository.UserRepository
	Hasher        password.Hasher
	Codes         *AuthCodeManager
	Issuer        *TokenIssuer
	RotateRefresh bool
}

func NewGrantService(d GrantDeps) *GrantService {
	return &GrantService{
		users:         d.Users,
		hasher:        d.Hasher,
		codes:         d.Codes,
		issuer:        d.Issuer,
		rotateRefresh: d.RotateRefresh,
	}
}

// Token resuelve un grant y devuelve el set de tokens.
func (s *GrantService) Token(ctx context.Context, req GrantRequest) (*TokenResponse, error) {
	if req == nil {
		return nil, invalidRequest("grant_type is required")
	}
	gt := string(req.GrantType())
	log := logger.From(ctx).With(logger.Layer("service"), logger.Op("oauth.token"), logger.GrantType(gt))

	resp, err := s.dispatch(ctx, req)
	metrics.GrantsTotal.WithLabelValues(gt, metrics.Result(err)).Inc()
	if err != nil {
		log.Info("grant rejected", logger.String("error_code", ErrorCode(err)), logger.Err(err))
		return nil, err
	}
	return resp, nil
}

func (s *GrantService) dispatch(ctx context.Context, req GrantRequest) (*TokenResponse, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}
	switch g := req.(type) {
	case PasswordGrant:
		return s.password(ctx, g)
	case AuthorizationCodeGrant:
		return s.authorizationCode(ctx, g)
	case RefreshTokenGrant:
		return s.refresh(ctx, g)
	default:
		return nil, ErrUnsupportedGrantType
	}
}

func (s *GrantService) password(ctx context.Context, g PasswordGrant) (*TokenResponse, error) {
	scope, err := checkScope(g.Scope)
	if err != nil {
		return nil, err
	}
	user, err := s.users.GetByEmail(ctx, strings.TrimSpace(g.Username))
	if err != nil {
		if repository.IsNotFound(err) {
			s.verifyDummy(g.Password)
			return nil, invalidGrant("invalid credentials")
		}
		return nil, serverError(err)
	}
	if !user.HasPassword() {
		s.verifyDummy(g.Password)
		return nil, invalidGrant("invalid credentials")
	}
	if !s.hasher.Verify(g.Password, user.PasswordHash) {
		return nil, invalidGrant("invalid credentials")
	}
	return s.issuer.IssueForGrant(ctx, user, IssueOptions{Scope: scope, ClientID: g.ClientID})
}

func (s *GrantService) authorizationCode(ctx context.Context, g AuthorizationCodeGrant) (*TokenResponse, error) {
	redeemed, err := s.codes.Redeem(ctx, RedeemCodeInput{
		Code:         g.Code,
		ClientID:     g.ClientID,
		RedirectURI:  g.RedirectURI,
		CodeVerifier: g.CodeVerifier,
	})
	if err != nil {
		return nil, err
	}
	user, err := s.users.GetByID(ctx, redeemed.UserID)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, invalidGrant("user no longer exists")
		}
		return nil, serverError(err)
	}
	return s.issuer.IssueForGrant(ctx, user, IssueOptions{
		Scope:    redeemed.Scope,
		Nonce:    redeemed.Nonce,
		ClientID: redeemed.ClientID,
	})
}

func (s *GrantService) refresh(ctx context.Context, g RefreshTokenGrant) (*TokenResponse, error) {
	user, rec, err := s.issuer.ValidateRefresh(ctx, g.RefreshToken)
	if err != nil {
		return nil, err
	}
	if s.rotateRefresh {
		if err := s.issuer.Consume(ctx, rec.ID); err != nil {
			return nil, err
		}
	}
	return s.issuer.IssueForGrant(ctx, user, IssueOptions{Scope: DefaultScope, ClientID: rec.ClientID})
}

// verifyDummy corre argon2 contra un hash fijo: sin usuario (o sin password)
// el grant tarda lo mismo que con una password incorrecta.
func (s *GrantService) verifyDummy(plain string) {
	s.dummyOnce.Do(func() {
		s.dummyHash, _ = s.hasher.Hash("dummy-password-for-timing")
	})
	if s.dummyHash != "" {
		_ = s.hasher.Verify(plain, s.dummyHash)
	}
}

// Authorize emite un code para el usuario autenticado y devuelve la URL de redirect.
func (s *GrantService) Authorize(ctx context.Context, req AuthorizeRequest, userID string) (string, error) {
	if req.ResponseType != "code" {
		return "", ErrUnsupportedResponseType
	}
	if userID == "" {
		return "", invalidRequest("authentication required")
	}
	if req.ClientID == "" || req.RedirectURI == "" {
		return "", invalidRequest("client_id and redirect_uri are required")
	}
	scope, err := checkScope(req.Scope)
	if err != nil {
		return "", err
	}
	return s.codes.Issue(ctx, IssueCodeInput{
		UserID:              userID,
		ClientID:            req.ClientID,
		RedirectURI:         req.RedirectURI,
		Scope:               scope,
		State:               req.State,
		CodeChallenge:       req.CodeChallenge,
		CodeChallengeMethod: req.CodeChallengeMethod,
		Nonce:               req.Nonce,
	})
}

// checkScope valida y deduplica el scope pedido.
func checkScope(raw string) (string, error) {
	scope, err := validation.NormalizeScope(raw)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}
	return scope, nil
}

// Revoke revoca un refresh token. hint se acepta por compatibilidad (RFC 7009)
// pero sólo los refresh tokens son revocables.
func (s *GrantService) Revoke(ctx context.Context, token, hint string) error {
	log := logger.From(ctx).With(logger.Layer("service"), logger.Op("oauth.revoke"), logger.String("hint", hint))
	if err := s.issuer.Revoke(ctx, token); err != nil {
		log.Info("revoke rejected", logger.Err(err))
		return err
	}
	audit.Log(ctx, audit.TokenRevoked)
	return nil
}
