package oauth

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/dropDatabas3/authority/internal/clock"
	"github.com/dropDatabas3/authority/internal/domain/repository"
	"github.com/dropDatabas3/authority/internal/metrics"
	"github.com/dropDatabas3/authority/internal/observability/logger"
	"github.com/dropDatabas3/authority/internal/security/pkce"
	tokens "github.com/dropDatabas3/authority/internal/security/token"
)

const (
	// AuthCodeTTL es la vida de un authorization code.
	AuthCodeTTL   = 600 * time.Second
	authCodeBytes = 32
)

// IssueCodeInput son los datos del request de /authorize ya autenticado.
type IssueCodeInput struct {
	UserID              string
	ClientID            string
	RedirectURI         string
	Scope               string
	State               string
	CodeChallenge       string
	CodeChallengeMethod string
	Nonce               string
}

// RedeemCodeInput son los datos del grant authorization_code.
type RedeemCodeInput struct {
	Code         string
	ClientID     string
	RedirectURI  string
	CodeVerifier string
}

// RedeemedCode es lo que queda de un code canjeado con éxito.
type RedeemedCode struct {
	UserID   string
	ClientID string
	Scope    string
	Nonce    string
}

// AuthCodeManager emite y canjea authorization codes de un solo uso.
type AuthCodeManager struct {
	codes repository.AuthorizationCodeRepository
	rnd   tokens.RandomSource
	clock clock.Clock
}

func NewAuthCodeManager(codes repository.AuthorizationCodeRepository, rnd tokens.RandomSource, clk clock.Clock) *AuthCodeManager {
	return &AuthCodeManager{codes: codes, rnd: rnd, clock: clk}
}

// Issue persiste un code nuevo y devuelve la URL de redirect con code y state.
func (m *AuthCodeManager) Issue(ctx context.Context, in IssueCodeInput) (string, error) {
	log := logger.From(ctx).With(logger.Layer("service"), logger.Op("oauth.authcode.issue"), logger.ClientID(in.ClientID))

	if in.UserID == "" || in.ClientID == "" || in.RedirectURI == "" {
		return "", invalidRequest("client_id and redirect_uri are required")
	}
	u, err := url.Parse(in.RedirectURI)
	if err != nil || !u.IsAbs() || u.Fragment != "" || strings.Contains(in.RedirectURI, "#") {
		return "", invalidRequest("invalid redirect_uri")
	}

	method := ""
	if in.CodeChallenge != "" {
		method, err = pkce.NormalizeMethod(in.CodeChallengeMethod)
		if err != nil {
			return "", fmt.Errorf("%w: %w", ErrInvalidRequest, err)
		}
	} else if in.CodeChallengeMethod != "" {
		if _, err := pkce.NormalizeMethod(in.CodeChallengeMethod); err != nil {
			return "", fmt.Errorf("%w: %w", ErrInvalidRequest, err)
		}
	}

	code, err := tokens.GenerateOpaqueToken(m.rnd, authCodeBytes)
	if err != nil {
		log.Error("random source failed", logger.Err(err))
		return "", serverError(err)
	}

	now := m.clock.Now()
	rec := &repository.AuthorizationCode{
		CodeHash:            tokens.SHA256Base64URL(code),
		UserID:              in.UserID,
		ClientID:            in.ClientID,
		RedirectURI:         in.RedirectURI,
		Scope:               normalizeScope(in.Scope, ""),
		CodeChallenge:       in.CodeChallenge,
		CodeChallengeMethod: method,
		Nonce:               in.Nonce,
		State:               in.State,
		ExpiresAt:           now.Add(AuthCodeTTL),
		CreatedAt:           now,
	}
	if err := m.codes.Create(ctx, rec); err != nil {
		log.Error("persist authorization code failed", logger.Err(err))
		return "", serverError(err)
	}

	log.Debug("authorization code issued", logger.UserID(in.UserID))
	return redirectWithCode(in.RedirectURI, code, in.State), nil
}

func redirectWithCode(redirectURI, code, state string) string {
	sep := "?"
	if strings.Contains(redirectURI, "?") {
		sep = "&"
	}
	var b strings.Builder
	b.WriteString(redirectURI)
	b.WriteString(sep)
	b.WriteString("code=")
	b.WriteString(url.QueryEscape(code))
	if state != "" {
		b.WriteString("&state=")
		b.WriteString(url.QueryEscape(state))
	}
	return b.String()
}

// Redeem valida y consume un code. Entre canjes concurrentes del mismo code
// sólo uno tiene éxito; el resto recibe ErrAlreadyUsed.
func (m *AuthCodeManager) Redeem(ctx context.Context, in RedeemCodeInput) (*RedeemedCode, error) {
	log := logger.From(ctx).With(logger.Layer("service"), logger.Op("oauth.authcode.redeem"), logger.ClientID(in.ClientID))
	res, err := m.redeem(ctx, in)
	outcome := "ok"
	if err != nil {
		outcome = redeemOutcome(err)
		log.Warn("authorization code rejected", logger.Outcome(outcome), logger.Err(err))
	}
	metrics.CodeRedemptionsTotal.WithLabelValues(outcome).Inc()
	return res, err
}

func (m *AuthCodeManager) redeem(ctx context.Context, in RedeemCodeInput) (*RedeemedCode, error) {
	if in.Code == "" {
		return nil, invalidRequest("code is required")
	}
	hash := tokens.SHA256Base64URL(in.Code)

	rec, err := m.codes.GetByHash(ctx, hash)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, invalidGrant("unknown authorization code")
		}
		return nil, serverError(err)
	}

	now := m.clock.Now()
	switch {
	case rec.Used:
		return nil, ErrAlreadyUsed
	case rec.Expired(now):
		return nil, invalidGrant("authorization code expired")
	case rec.ClientID != in.ClientID:
		return nil, invalidGrant("client_id mismatch")
	case rec.RedirectURI != in.RedirectURI:
		return nil, invalidGrant("redirect_uri mismatch")
	}

	if rec.CodeChallenge != "" {
		if err := pkce.Verify(in.CodeVerifier, rec.CodeChallengeMethod, rec.CodeChallenge); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidRequest, err)
		}
	}

	if err := m.codes.MarkUsed(ctx, hash, now); err != nil {
		if repository.IsAlreadyUsed(err) {
			return nil, ErrAlreadyUsed
		}
		return nil, serverError(err)
	}

	return &RedeemedCode{
		UserID:   rec.UserID,
		ClientID: rec.ClientID,
		Scope:    rec.Scope,
		Nonce:    rec.Nonce,
	}, nil
}

// PurgeExpired borra los codes vencidos.
func (m *AuthCodeManager) PurgeExpired(ctx context.Context) (int, error) {
	return m.codes.DeleteExpired(ctx, m.clock.Now())
}

func redeemOutcome(err error) string {
	switch {
	case errors.Is(err, ErrAlreadyUsed):
		return "already_used"
	case errors.Is(err, pkce.ErrVerifierRequired), errors.Is(err, pkce.ErrMismatch):
		return "pkce_failed"
	case errors.Is(err, ErrServerError):
		return "error"
	default:
		return "rejected"
	}
}
