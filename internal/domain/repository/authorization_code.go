package repository

import (
	"context"
	"time"
)

// AuthorizationCode es un código de autorización OAuth2 de un solo uso.
// El código en claro nunca se persiste: CodeHash = SHA256 base64url.
type AuthorizationCode struct {
	CodeHash            string
	UserID              string
	ClientID            string
	RedirectURI         string
	Scope               string
	CodeChallenge       string
	CodeChallengeMethod string
	Nonce               string
	State               string
	ExpiresAt           time.Time
	Used                bool
	UsedAt              *time.Time
	CreatedAt           time.Time
}

// Expired indica si el código venció respecto de now (ExpiresAt < now).
func (c *AuthorizationCode) Expired(now time.Time) bool { return c.ExpiresAt.Before(now) }

// AuthorizationCodeRepository define operaciones sobre códigos de autorización.
type AuthorizationCodeRepository interface {
	Create(ctx context.Context, code *AuthorizationCode) error

	// GetByHash retorna ErrNotFound si no existe.
	GetByHash(ctx context.Context, codeHash string) (*AuthorizationCode, error)

	// MarkUsed marca el código como usado solo si sigue sin usar y vigente.
	// Retorna ErrAlreadyUsed si ninguna fila cambió.
	MarkUsed(ctx context.Context, codeHash string, now time.Time) error

	// DeleteExpired elimina códigos vencidos y retorna cuántos borró.
	DeleteExpired(ctx context.Context, now time.Time) (int, error)
}
