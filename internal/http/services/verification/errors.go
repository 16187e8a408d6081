package verification

import "errors"

var (
	ErrUserNotFound    = errors.New("user not found")
	ErrAlreadyVerified = errors.New("already verified")
	// ErrInvalidState: la operación no aplica al estado del usuario (ej. SMS sin teléfono).
	ErrInvalidState = errors.New("invalid state")
)

// verifyOutcome enumera por qué falló (o no) una verificación. Los métodos
// públicos sólo devuelven bool; el motivo queda en el log.
type verifyOutcome int

const (
	outcomeOK verifyOutcome = iota
	outcomeBadToken
	outcomeExpired
	outcomeClaimsMismatch
	outcomeNotFound
	outcomeAlreadyUsed
	outcomeUserNotFound
	outcomeStoreError
)

func (o verifyOutcome) String() string {
	switch o {
	case outcomeOK:
		return "ok"
	case outcomeBadToken:
		return "bad_token"
	case outcomeExpired:
		return "expired"
	case outcomeClaimsMismatch:
		return "claims_mismatch"
	case outcomeNotFound:
		return "not_found"
	case outcomeAlreadyUsed:
		return "already_used"
	case outcomeUserNotFound:
		return "user_not_found"
	default:
		return "store_error"
	}
}
