// Package auth contiene los services de cuenta: registro, cambio de password
// y perfil. Las verificaciones se delegan al service de verification.
package auth

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"

	"go.uber.org/zap"

	"github.com/dropDatabas3/authority/internal/audit"
	"github.com/dropDatabas3/authority/internal/domain/repository"
	dto "github.com/dropDatabas3/authority/internal/http/dto/auth"
	"github.com/dropDatabas3/authority/internal/http/services/verification"
	"github.com/dropDatabas3/authority/internal/notify"
	"github.com/dropDatabas3/authority/internal/observability/logger"
	"github.com/dropDatabas3/authority/internal/security/password"
	"github.com/dropDatabas3/authority/internal/store"
)

var (
	ErrUserExists         = errors.New("user already exists")
	ErrPasswordMismatch   = errors.New("passwords do not match")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidInput       = errors.New("invalid input")
	ErrUserNotFound       = verification.ErrUserNotFound
)

// Verifier es la parte de verification.Service que usa el registro.
type Verifier interface {
	StartEmailVerification(ctx context.Context, user *repository.User) error
	StartSmsVerification(ctx context.Context, user *repository.User) error
}

type Deps struct {
	DAL          store.DataAccess
	Hasher       password.Hasher
	Policy       password.Policy
	Verifier     Verifier
	Notifier     notify.Gateway
	DefaultRoles []string
}

type Service struct {
	dal          store.DataAccess
	hasher       password.Hasher
	policy       password.Policy
	verifier     Verifier
	notifier     notify.Gateway
	defaultRoles []string
}

func NewService(d Deps) *Service {
	roles := d.DefaultRoles
	if len(roles) == 0 {
		roles = []string{"USER"}
	}
	return &Service{
		dal:          d.DAL,
		hasher:       d.Hasher,
		policy:       d.Policy,
		verifier:     d.Verifier,
		notifier:     d.Notifier,
		defaultRoles: roles,
	}
}

func (s *Service) log(ctx context.Context, op string) *zap.Logger {
	return logger.From(ctx).With(logger.Layer("service"), logger.Op(op))
}

// CheckNewPassword valida confirmación y política de una password nueva.
func (s *Service) CheckNewPassword(newPassword, confirm string) error {
	if newPassword != confirm {
		return ErrPasswordMismatch
	}
	return s.policy.Validate(newPassword)
}

// SignUp crea un usuario local e inicia las verificaciones. Los envíos no
// bloquean el registro.
func (s *Service) SignUp(ctx context.Context, in dto.SignUpRequest) (*repository.User, error) {
	log := s.log(ctx, "auth.signup")

	email := strings.ToLower(strings.TrimSpace(in.Email))
	if email == "" || in.Password == "" {
		return nil, fmt.Errorf("%w: email and password are required", ErrInvalidInput)
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, fmt.Errorf("%w: invalid email", ErrInvalidInput)
	}
	if err := s.CheckNewPassword(in.Password, in.ConfirmPassword); err != nil {
		return nil, err
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	user, err := s.dal.Users().Create(ctx, repository.CreateUserInput{
		Email:        email,
		GivenName:    strings.TrimSpace(in.GivenName),
		FamilyName:   strings.TrimSpace(in.FamilyName),
		Phone:        strings.TrimSpace(in.PhoneNumber),
		PasswordHash: hash,
		Roles:        s.defaultRoles,
		Providers:    []string{repository.ProviderLocal},
	})
	if err != nil {
		if repository.IsConflict(err) {
			return nil, ErrUserExists
		}
		return nil, err
	}
	log = log.With(logger.UserID(user.ID))

	if err := s.verifier.StartEmailVerification(ctx, user); err != nil {
		log.Error("start email verification failed", logger.Err(err))
	}
	if user.Phone != "" {
		if err := s.verifier.StartSmsVerification(ctx, user); err != nil {
			log.Error("start sms verification failed", logger.Err(err))
		}
	}
	s.notifier.SendWelcome(ctx, user.Email, user.GivenName)

	audit.Log(ctx, audit.UserSignedUp, logger.UserID(user.ID), logger.Email(user.Email))
	return user, nil
}

// Profile devuelve el usuario autenticado.
func (s *Service) Profile(ctx context.Context, userID string) (*repository.User, error) {
	u, err := s.dal.Users().GetByID(ctx, userID)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return u, nil
}

// ChangePassword exige la password actual si existe y cierra las sesiones abiertas.
func (s *Service) ChangePassword(ctx context.Context, userID string, in dto.ChangePasswordRequest) error {
	log := s.log(ctx, "auth.change_password").With(logger.UserID(userID))

	user, err := s.Profile(ctx, userID)
	if err != nil {
		return err
	}
	if user.HasPassword() && !s.hasher.Verify(in.OldPassword, user.PasswordHash) {
		return ErrInvalidCredentials
	}
	if err := s.CheckNewPassword(in.NewPassword, in.ConfirmPassword); err != nil {
		return err
	}
	hash, err := s.hasher.Hash(in.NewPassword)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	if err := s.dal.Users().SetPassword(ctx, userID, hash); err != nil {
		return err
	}
	n, err := s.dal.RefreshTokens().DeleteByUser(ctx, userID)
	if err != nil {
		log.Error("revoke sessions failed", logger.Err(err))
	}
	audit.Log(ctx, audit.PasswordChanged, logger.UserID(userID), logger.Int("sessions_revoked", n))
	return nil
}

// UpdateProfile aplica los cambios; un teléfono nuevo queda sin verificar y
// dispara la verificación por SMS.
func (s *Service) UpdateProfile(ctx context.Context, userID string, in dto.UpdateProfileRequest) (*repository.User, error) {
	log := s.log(ctx, "auth.update_profile").With(logger.UserID(userID))

	before, err := s.Profile(ctx, userID)
	if err != nil {
		return nil, err
	}
	upd := repository.UpdateUserInput{
		GivenName:  trimPtr(in.GivenName),
		FamilyName: trimPtr(in.FamilyName),
		Picture:    trimPtr(in.Picture),
		Phone:      trimPtr(in.PhoneNumber),
	}
	after, err := s.dal.Users().Update(ctx, userID, upd)
	if err != nil {
		if repository.IsConflict(err) {
			return nil, ErrUserExists
		}
		return nil, err
	}
	if after.Phone != "" && after.Phone != before.Phone {
		if err := s.verifier.StartSmsVerification(ctx, after); err != nil {
			log.Error("start sms verification failed", logger.Err(err))
		}
	}
	return after, nil
}

func trimPtr(p *string) *string {
	if p == nil {
		return nil
	}
	v := strings.TrimSpace(*p)
	return &v
}
