package repository

import (
	"context"
	"time"
)

// RefreshToken es el registro persistido de un refresh token emitido.
// ID viaja como claim "jti" dentro del token firmado.
type RefreshToken struct {
	ID        string
	UserID    string
	ClientID  string
	TokenHash string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// RefreshTokenRepository define operaciones sobre refresh tokens.
type RefreshTokenRepository interface {
	// Create retorna ErrConflict si el ID ya existe.
	Create(ctx context.Context, token *RefreshToken) error

	// GetByID retorna ErrNotFound si no existe.
	GetByID(ctx context.Context, id string) (*RefreshToken, error)

	// Consume borra el registro y lo devuelve en una sola operación.
	// Solo una llamada concurrente obtiene el registro; las demás reciben ErrNotFound.
	Consume(ctx context.Context, id string) (*RefreshToken, error)

	// DeleteByHash revoca un token por hash. Retorna ErrNotFound si no había registro.
	DeleteByHash(ctx context.Context, tokenHash string) error

	// DeleteByUser revoca todos los tokens del usuario.
	DeleteByUser(ctx context.Context, userID string) (int, error)

	DeleteExpired(ctx context.Context, now time.Time) (int, error)
}
