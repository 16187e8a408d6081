// Package verification administra los action tokens: verificación de email,
// verificación de teléfono por SMS y reset de password. Los tokens son de un
// solo uso, vencen, y sólo se persiste su hash.
package verification

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/dropDatabas3/authority/internal/audit"
	"github.com/dropDatabas3/authority/internal/clock"
	"github.com/dropDatabas3/authority/internal/domain/repository"
	jwtx "github.com/dropDatabas3/authority/internal/jwt"
	"github.com/dropDatabas3/authority/internal/metrics"
	"github.com/dropDatabas3/authority/internal/notify"
	"github.com/dropDatabas3/authority/internal/observability/logger"
	"github.com/dropDatabas3/authority/internal/security/password"
	tokens "github.com/dropDatabas3/authority/internal/security/token"
	"github.com/dropDatabas3/authority/internal/store"
)

const smsCodeDigits = 6

// Signer firma y valida los tokens de email/reset.
type Signer interface {
	Issue(subject string, ttl time.Duration, extra map[string]any) (string, time.Time, error)
	Parse(token string) (map[string]any, error)
}

// TTLs de cada tipo de action token. Ceros => defaults.
type TTLs struct {
	Email time.Duration
	SMS   time.Duration
	Reset time.Duration
}

type Deps struct {
	DAL             store.DataAccess
	Signer          Signer
	Hasher          password.Hasher
	Random          tokens.RandomSource
	Clock           clock.Clock
	Notifier        notify.Gateway
	TTLs            TTLs
	FrontendBaseURL string
}

// Service implementa el ciclo de vida de los action tokens.
type Service struct {
	dal      store.DataAccess
	signer   Signer
	hasher   password.Hasher
	rnd      tokens.RandomSource
	clock    clock.Clock
	notifier notify.Gateway
	ttls     TTLs
	baseURL  string
}

func NewService(d Deps) *Service {
	if d.TTLs.Email <= 0 {
		d.TTLs.Email = 24 * time.Hour
	}
	if d.TTLs.SMS <= 0 {
		d.TTLs.SMS = 10 * time.Minute
	}
	if d.TTLs.Reset <= 0 {
		d.TTLs.Reset = 24 * time.Hour
	}
	if d.Clock == nil {
		d.Clock = clock.System{}
	}
	if d.Random == nil {
		d.Random = tokens.NewCryptoSource()
	}
	return &Service{
		dal:      d.DAL,
		signer:   d.Signer,
		hasher:   d.Hasher,
		rnd:      d.Random,
		clock:    d.Clock,
		notifier: d.Notifier,
		ttls:     d.TTLs,
		baseURL:  strings.TrimRight(d.FrontendBaseURL, "/"),
	}
}

func (s *Service) log(ctx context.Context, op string) *zap.Logger {
	return logger.From(ctx).With(logger.Layer("service"), logger.Op(op))
}

// StartEmailVerification reemplaza cualquier token previo y envía el link.
func (s *Service) StartEmailVerification(ctx context.Context, user *repository.User) error {
	token, err := s.startSigned(ctx, user, repository.ActionEmailVerification, s.ttls.Email)
	metrics.ActionTokensTotal.WithLabelValues("start_email", metrics.Result(err)).Inc()
	if err != nil {
		return err
	}
	s.notifier.SendEmailVerification(ctx, user.Email, user.GivenName, s.link("/verify-email", user.Email, token), s.ttls.Email)
	return nil
}

// StartPasswordReset no revela si el email existe: un email desconocido es no-op.
func (s *Service) StartPasswordReset(ctx context.Context, email string) {
	log := s.log(ctx, "verification.reset.start")
	user, err := s.dal.Users().GetByEmail(ctx, email)
	if err != nil {
		if !repository.IsNotFound(err) {
			log.Error("lookup user failed", logger.Err(err))
		}
		return
	}
	token, err := s.startSigned(ctx, user, repository.ActionPasswordReset, s.ttls.Reset)
	metrics.ActionTokensTotal.WithLabelValues("start_reset", metrics.Result(err)).Inc()
	if err != nil {
		log.Error("start password reset failed", logger.UserID(user.ID), logger.Err(err))
		return
	}
	s.notifier.SendPasswordReset(ctx, user.Email, user.GivenName, s.link("/reset-password", user.Email, token), s.ttls.Reset)
}

// StartSmsVerification genera un código numérico y lo envía por SMS.
func (s *Service) StartSmsVerification(ctx context.Context, user *repository.User) error {
	if user.Phone == "" {
		return ErrInvalidState
	}
	code, err := s.startSMS(ctx, user)
	metrics.ActionTokensTotal.WithLabelValues("start_sms", metrics.Result(err)).Inc()
	if err != nil {
		return err
	}
	body := fmt.Sprintf("Tu código de verificación es %s. Vence en %d minutos.", code, int(s.ttls.SMS/time.Minute))
	s.notifier.SendSMS(ctx, user.Phone, body)
	return nil
}

func (s *Service) startSigned(ctx context.Context, user *repository.User, t repository.ActionType, ttl time.Duration) (string, error) {
	id, err := tokens.NewID(s.rnd)
	if err != nil {
		return "", err
	}
	token, exp, err := s.signer.Issue(user.ID, ttl, map[string]any{
		"action_type": string(t),
		"user_id":     user.ID,
		"email":       user.Email,
		"token_id":    id,
	})
	if err != nil {
		return "", fmt.Errorf("sign action token: %w", err)
	}
	if err := s.replace(ctx, user.ID, &repository.ActionToken{
		ID:        id,
		UserID:    user.ID,
		Type:      t,
		TokenHash: tokens.SHA256Hex(token),
		ExpiresAt: exp,
	}); err != nil {
		return "", err
	}
	return token, nil
}

func (s *Service) startSMS(ctx context.Context, user *repository.User) (string, error) {
	code, err := tokens.NumericCode(s.rnd, smsCodeDigits)
	if err != nil {
		return "", err
	}
	id, err := tokens.NewID(s.rnd)
	if err != nil {
		return "", err
	}
	if err := s.replace(ctx, user.ID, &repository.ActionToken{
		ID:        id,
		UserID:    user.ID,
		Type:      repository.ActionSMSVerification,
		TokenHash: tokens.SHA256Hex(code),
		ExpiresAt: s.clock.Now().Add(s.ttls.SMS),
	}); err != nil {
		return "", err
	}
	return code, nil
}

// replace borra los tokens previos del mismo tipo y crea el nuevo en una transacción.
func (s *Service) replace(ctx context.Context, userID string, tok *repository.ActionToken) error {
	tok.CreatedAt = s.clock.Now()
	return s.dal.InTx(ctx, func(tx store.Repositories) error {
		if _, err := tx.ActionTokens().DeleteByUserAndType(ctx, userID, tok.Type); err != nil {
			return fmt.Errorf("delete previous action tokens: %w", err)
		}
		if err := tx.ActionTokens().Create(ctx, tok); err != nil {
			return fmt.Errorf("persist action token: %w", err)
		}
		return nil
	})
}

func (s *Service) link(path, email, token string) string {
	q := url.Values{}
	q.Set("email", email)
	q.Set("token", token)
	return s.baseURL + path + "?" + q.Encode()
}

// VerifyEmail marca el email como verificado si el token es válido.
func (s *Service) VerifyEmail(ctx context.Context, email, token string) bool {
	out := s.redeemSigned(ctx, email, token, repository.ActionEmailVerification, func(tx store.Repositories, userID string) error {
		return tx.Users().SetEmailVerified(ctx, userID, true)
	})
	return s.report(ctx, "verification.email.verify", "verify_email", out)
}

// CompletePasswordReset guarda la nueva password y cierra las sesiones del usuario.
func (s *Service) CompletePasswordReset(ctx context.Context, email, token, newPassword string) bool {
	hash, err := s.hasher.Hash(newPassword)
	if err != nil {
		s.log(ctx, "verification.reset.complete").Warn("hash password failed", logger.Err(err))
		return s.report(ctx, "verification.reset.complete", "complete_reset", outcomeStoreError)
	}
	var userID string
	out := s.redeemSigned(ctx, email, token, repository.ActionPasswordReset, func(tx store.Repositories, uid string) error {
		userID = uid
		return tx.Users().SetPassword(ctx, uid, hash)
	})
	if out == outcomeOK {
		if n, err := s.dal.RefreshTokens().DeleteByUser(ctx, userID); err != nil {
			s.log(ctx, "verification.reset.complete").Error("revoke sessions failed", logger.UserID(userID), logger.Err(err))
		} else if n > 0 {
			s.log(ctx, "verification.reset.complete").Info("sessions revoked", logger.UserID(userID), logger.Count(n))
		}
	}
	return s.report(ctx, "verification.reset.complete", "complete_reset", out)
}

// redeemSigned: firma/exp -> claims -> hash -> vigencia -> mark used + apply en tx.
func (s *Service) redeemSigned(ctx context.Context, email, token string, t repository.ActionType, apply func(tx store.Repositories, userID string) error) verifyOutcome {
	if token == "" || email == "" {
		return outcomeBadToken
	}
	claims, err := s.signer.Parse(token)
	if err != nil {
		if errors.Is(err, jwtx.ErrExpired) {
			return outcomeExpired
		}
		return outcomeBadToken
	}
	at, _ := claims["action_type"].(string)
	claimEmail, _ := claims["email"].(string)
	userID, _ := claims["user_id"].(string)
	if at != string(t) || userID == "" || !strings.EqualFold(claimEmail, strings.TrimSpace(email)) {
		return outcomeClaimsMismatch
	}
	rec, err := s.dal.ActionTokens().FindUnused(ctx, tokens.SHA256Hex(token), t, userID)
	if err != nil {
		if repository.IsNotFound(err) {
			return outcomeNotFound
		}
		return outcomeStoreError
	}
	return s.consume(ctx, rec, apply)
}

// VerifyPhone marca el teléfono como verificado si el código es del usuario y está vigente.
func (s *Service) VerifyPhone(ctx context.Context, phone, code string) bool {
	return s.report(ctx, "verification.phone.verify", "verify_phone", s.verifyPhone(ctx, phone, code))
}

func (s *Service) verifyPhone(ctx context.Context, phone, code string) verifyOutcome {
	if phone == "" || code == "" {
		return outcomeBadToken
	}
	user, err := s.dal.Users().GetByPhone(ctx, phone)
	if err != nil {
		if repository.IsNotFound(err) {
			return outcomeUserNotFound
		}
		return outcomeStoreError
	}
	rec, err := s.dal.ActionTokens().FindUnused(ctx, tokens.SHA256Hex(code), repository.ActionSMSVerification, user.ID)
	if err != nil {
		if repository.IsNotFound(err) {
			return outcomeNotFound
		}
		return outcomeStoreError
	}
	return s.consume(ctx, rec, func(tx store.Repositories, userID string) error {
		return tx.Users().SetPhoneVerified(ctx, userID, true)
	})
}

func (s *Service) consume(ctx context.Context, rec *repository.ActionToken, apply func(tx store.Repositories, userID string) error) verifyOutcome {
	now := s.clock.Now()
	if rec.Expired(now) {
		return outcomeExpired
	}
	err := s.dal.InTx(ctx, func(tx store.Repositories) error {
		if err := tx.ActionTokens().MarkUsed(ctx, rec.ID, now); err != nil {
			return err
		}
		return apply(tx, rec.UserID)
	})
	switch {
	case err == nil:
		audit.Log(ctx, audit.ActionRedeemed, logger.UserID(rec.UserID), logger.ActionType(string(rec.Type)))
		return outcomeOK
	case repository.IsAlreadyUsed(err):
		return outcomeAlreadyUsed
	case repository.IsNotFound(err):
		return outcomeUserNotFound
	default:
		s.log(ctx, "verification.consume").Error("consume action token failed", logger.Err(err))
		return outcomeStoreError
	}
}

func (s *Service) report(ctx context.Context, op, action string, out verifyOutcome) bool {
	ok := out == outcomeOK
	result := "ok"
	if !ok {
		result = out.String()
		s.log(ctx, op).Info("verification rejected", logger.Outcome(result))
	}
	metrics.ActionTokensTotal.WithLabelValues(action, result).Inc()
	return ok
}

// ResendVerification vuelve a iniciar la verificación de email o SMS.
func (s *Service) ResendVerification(ctx context.Context, email string, t repository.ActionType) error {
	user, err := s.dal.Users().GetByEmail(ctx, email)
	if err != nil {
		if repository.IsNotFound(err) {
			return ErrUserNotFound
		}
		return err
	}
	switch t {
	case repository.ActionEmailVerification:
		if user.EmailVerified {
			return ErrAlreadyVerified
		}
		return s.StartEmailVerification(ctx, user)
	case repository.ActionSMSVerification:
		if user.Phone == "" {
			return ErrInvalidState
		}
		if user.PhoneVerified {
			return ErrAlreadyVerified
		}
		return s.StartSmsVerification(ctx, user)
	default:
		return ErrInvalidState
	}
}

// CleanupExpired borra action tokens, authorization codes y refresh tokens vencidos.
func (s *Service) CleanupExpired(ctx context.Context) (int, error) {
	now := s.clock.Now()
	var errs []error
	total := 0
	for _, del := range []func(context.Context, time.Time) (int, error){
		s.dal.ActionTokens().DeleteExpired,
		s.dal.AuthCodes().DeleteExpired,
		s.dal.RefreshTokens().DeleteExpired,
	} {
		n, err := del(ctx, now)
		total += n
		if err != nil {
			errs = append(errs, err)
		}
	}
	metrics.CleanupDeletedTotal.Add(float64(total))
	return total, errors.Join(errs...)
}
