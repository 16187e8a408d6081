package repository

import "errors"

var (
	// ErrNotFound indica que el recurso solicitado no existe.
	ErrNotFound = errors.New("not found")

	// ErrConflict indica un duplicado (email o teléfono ya registrado, id repetido).
	ErrConflict = errors.New("conflict")

	// ErrAlreadyUsed indica que un token de un solo uso ya fue consumido
	// (o expiró entre la lectura y el update condicional).
	ErrAlreadyUsed = errors.New("already used")

	// ErrNoDatabase indica que no hay base de datos configurada.
	ErrNoDatabase = errors.New("no database configured")
)

// IsNotFound verifica si el error es ErrNotFound.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsConflict verifica si el error es ErrConflict.
func IsConflict(err error) bool {
	return errors.Is(err, ErrConflict)
}

// IsAlreadyUsed verifica si el error es ErrAlreadyUsed.
func IsAlreadyUsed(err error) bool {
	return errors.Is(err, ErrAlreadyUsed)
}
