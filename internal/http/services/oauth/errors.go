package oauth

import (
	"errors"
	"fmt"
)

// Errores OAuth2. Los específicos envuelven al genérico para que errors.Is
// funcione contra ambos.
var (
	ErrInvalidRequest = errors.New("invalid_request")
	ErrInvalidGrant   = errors.New("invalid_grant")
	ErrInvalidToken   = errors.New("invalid_token")
	ErrServerError    = errors.New("server_error")

	ErrUnsupportedGrantType    = fmt.Errorf("%w: unsupported_grant_type", ErrInvalidRequest)
	ErrUnsupportedResponseType = fmt.Errorf("%w: unsupported_response_type", ErrInvalidRequest)
	ErrAlreadyUsed             = fmt.Errorf("%w: authorization code already used", ErrInvalidGrant)
)

func invalidRequest(msg string) error { return fmt.Errorf("%w: %s", ErrInvalidRequest, msg) }
func invalidGrant(msg string) error   { return fmt.Errorf("%w: %s", ErrInvalidGrant, msg) }
func invalidToken(msg string) error   { return fmt.Errorf("%w: %s", ErrInvalidToken, msg) }
func serverError(err error) error     { return fmt.Errorf("%w: %w", ErrServerError, err) }

// ErrorCode devuelve el código OAuth2 ("invalid_grant", ...) de err.
func ErrorCode(err error) string {
	switch {
	case errors.Is(err, ErrUnsupportedGrantType):
		return "unsupported_grant_type"
	case errors.Is(err, ErrUnsupportedResponseType):
		return "unsupported_response_type"
	case errors.Is(err, ErrInvalidRequest):
		return "invalid_request"
	case errors.Is(err, ErrInvalidGrant):
		return "invalid_grant"
	case errors.Is(err, ErrInvalidToken):
		return "invalid_token"
	default:
		return "server_error"
	}
}
