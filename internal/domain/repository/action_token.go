package repository

import (
	"context"
	"time"
)

// ActionType indica el propósito de un action token.
type ActionType string

const (
	ActionEmailVerification ActionType = "EMAIL_VERIFICATION"
	ActionSMSVerification   ActionType = "SMS_VERIFICATION"
	ActionPasswordReset     ActionType = "PASSWORD_RESET"
)

// Valid indica si el tipo es conocido.
func (t ActionType) Valid() bool {
	switch t {
	case ActionEmailVerification, ActionSMSVerification, ActionPasswordReset:
		return true
	}
	return false
}

// ActionToken es un token de un solo uso para verificación o reset.
// Solo se persiste el hash (SHA256 hex) de la representación externa.
type ActionToken struct {
	ID        string
	UserID    string
	Type      ActionType
	TokenHash string
	ExpiresAt time.Time
	Used      bool
	UsedAt    *time.Time
	CreatedAt time.Time
}

// Expired indica si el token venció respecto de now. En now == ExpiresAt
// todavía es válido.
func (t *ActionToken) Expired(now time.Time) bool { return t.ExpiresAt.Before(now) }

// ActionTokenRepository define operaciones sobre action tokens.
type ActionTokenRepository interface {
	Create(ctx context.Context, token *ActionToken) error

	// DeleteByUserAndType borra los tokens previos del usuario para ese tipo.
	DeleteByUserAndType(ctx context.Context, userID string, t ActionType) (int, error)

	// FindUnused busca un token sin usar por hash y tipo.
	// Si userID no está vacío, el token debe pertenecer a ese usuario.
	// Retorna ErrNotFound si no hay coincidencia.
	FindUnused(ctx context.Context, tokenHash string, t ActionType, userID string) (*ActionToken, error)

	// MarkUsed marca el token como usado solo si sigue sin usar y vigente.
	// Retorna ErrAlreadyUsed si ninguna fila cambió.
	MarkUsed(ctx context.Context, id string, now time.Time) error

	// DeleteExpired elimina tokens con expires_at < now.
	DeleteExpired(ctx context.Context, now time.Time) (int, error)
}
