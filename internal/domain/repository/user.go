package repository

import (
	"context"
	"slices"
	"time"
)

// ProviderLocal marca a los usuarios que tienen password propia.
const ProviderLocal = "local"

// User representa un usuario del sistema.
type User struct {
	ID            string
	Email         string
	EmailVerified bool
	GivenName     string
	FamilyName    string
	Phone         string
	PhoneVerified bool
	PasswordHash  string
	Picture       string
	Roles         []string
	Providers     []string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// HasPassword indica si el usuario puede autenticarse con password.
func (u *User) HasPassword() bool { return u.PasswordHash != "" }

// HasProvider indica si el usuario tiene el provider dado.
func (u *User) HasProvider(p string) bool { return slices.Contains(u.Providers, p) }

// CreateUserInput contiene los datos para crear un usuario.
type CreateUserInput struct {
	Email        string
	GivenName    string
	FamilyName   string
	Phone        string
	PasswordHash string
	Roles        []string
	Providers    []string
}

// UpdateUserInput contiene los campos actualizables del perfil.
// Un cambio de Phone resetea PhoneVerified.
type UpdateUserInput struct {
	GivenName  *string
	FamilyName *string
	Picture    *string
	Phone      *string
}

// UserRepository define operaciones sobre usuarios.
type UserRepository interface {
	// Create crea un usuario. Retorna ErrConflict si el email o teléfono ya existen.
	Create(ctx context.Context, input CreateUserInput) (*User, error)

	// GetByID retorna ErrNotFound si no existe.
	GetByID(ctx context.Context, id string) (*User, error)

	// GetByEmail busca por email (normalizado en minúsculas).
	GetByEmail(ctx context.Context, email string) (*User, error)

	// GetByPhone busca por número de teléfono.
	GetByPhone(ctx context.Context, phone string) (*User, error)

	// Update aplica los campos no nulos. Retorna ErrConflict si el teléfono ya está en uso.
	Update(ctx context.Context, id string, input UpdateUserInput) (*User, error)

	SetEmailVerified(ctx context.Context, id string, verified bool) error
	SetPhoneVerified(ctx context.Context, id string, verified bool) error

	// SetPassword guarda el hash y agrega el provider local si falta.
	SetPassword(ctx context.Context, id, passwordHash string) error
}
