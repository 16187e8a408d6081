package jwt

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/go-jose/go-jose/v4"

	"github.com/dropDatabas3/authority/internal/util/atomicwrite"
)

// GenerateKey crea una clave Ed25519 nueva.
func GenerateKey() (ed25519.PrivateKey, error) {
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	return priv, err
}

// MarshalPrivateJWK serializa la clave privada como JWK (JSON).
func MarshalPrivateJWK(priv ed25519.PrivateKey) ([]byte, error) {
	return json.MarshalIndent(jose.JSONWebKey{Key: priv, Algorithm: Algorithm, Use: "sig"}, "", "  ")
}

// ParsePrivateJWK lee una clave privada Ed25519 en formato JWK.
func ParsePrivateJWK(b []byte) (ed25519.PrivateKey, error) {
	var jwk jose.JSONWebKey
	if err := json.Unmarshal(b, &jwk); err != nil {
		return nil, fmt.Errorf("jwt: parse jwk: %w", err)
	}
	priv, ok := jwk.Key.(ed25519.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("jwt: jwk is %T, want ed25519 private key", jwk.Key)
	}
	return priv, nil
}

// LoadOrGenerateKey lee la clave de path; si no existe la genera y la persiste (0600).
// Path vacío => clave efímera en memoria.
func LoadOrGenerateKey(path string) (ed25519.PrivateKey, bool, error) {
	if path == "" {
		priv, err := GenerateKey()
		return priv, true, err
	}
	b, err := os.ReadFile(filepath.Clean(path))
	if err == nil {
		priv, err := ParsePrivateJWK(b)
		return priv, false, err
	}
	if !errors.Is(err, os.ErrNotExist) {
		return nil, false, err
	}
	priv, err := GenerateKey()
	if err != nil {
		return nil, false, err
	}
	if err := WriteKeyFile(path, priv); err != nil {
		return nil, false, err
	}
	return priv, true, nil
}

// WriteKeyFile persiste la clave como JWK con permisos 0600 (escritura atómica).
func WriteKeyFile(path string, priv ed25519.PrivateKey) error {
	b, err := MarshalPrivateJWK(priv)
	if err != nil {
		return err
	}
	return atomicwrite.WriteFile(path, b, 0o600)
}
