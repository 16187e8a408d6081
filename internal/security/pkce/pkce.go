// Package pkce implementa la derivación y verificación de code challenges (RFC 7636).
package pkce

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"strings"
)

const (
	MethodPlain = "plain"
	MethodS256  = "S256"
)

var (
	// ErrUnsupportedMethod: el método no es plain ni S256.
	ErrUnsupportedMethod = errors.New("unsupported code_challenge_method")
	// ErrVerifierRequired: hay challenge almacenado y no se envió verifier.
	ErrVerifierRequired = errors.New("code_verifier required")
	// ErrMismatch: el challenge derivado no coincide con el almacenado.
	ErrMismatch = errors.New("code_verifier does not match code_challenge")
)

// NormalizeMethod devuelve el método canónico. Vacío equivale a S256.
func NormalizeMethod(method string) (string, error) {
	switch strings.TrimSpace(method) {
	case "", MethodS256:
		return MethodS256, nil
	case MethodPlain:
		return MethodPlain, nil
	default:
		return "", ErrUnsupportedMethod
	}
}

// Challenge deriva el code challenge del verifier según el método.
func Challenge(verifier, method string) (string, error) {
	m, err := NormalizeMethod(method)
	if err != nil {
		return "", err
	}
	if m == MethodPlain {
		return verifier, nil
	}
	sum := sha256.Sum256([]byte(verifier))
	return base64.RawURLEncoding.EncodeToString(sum[:]), nil
}

// Verify compara el challenge derivado contra el almacenado en tiempo constante.
func Verify(verifier, method, stored string) error {
	if verifier == "" {
		return ErrVerifierRequired
	}
	got, err := Challenge(verifier, method)
	if err != nil {
		return err
	}
	if subtle.ConstantTimeCompare([]byte(got), []byte(stored)) != 1 {
		return ErrMismatch
	}
	return nil
}
