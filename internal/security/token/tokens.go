// Package tokens genera secretos aleatorios y los hashes que se guardan en DB.
package tokens

import (
	"bytes"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"math/big"

	"github.com/google/uuid"
)

// RandomSource es la fuente criptográfica de aleatoriedad. Se inyecta para
// poder fijarla en tests; la implementación por defecto usa crypto/rand.
type RandomSource interface {
	// Bytes devuelve n bytes aleatorios.
	Bytes(n int) ([]byte, error)
	// Intn devuelve un entero uniforme en [0, n).
	Intn(n int) (int, error)
}

// ErrRandomUnavailable indica que la fuente de aleatoriedad falló.
var ErrRandomUnavailable = errors.New("secure random source unavailable")

// CryptoSource implementa RandomSource sobre un io.Reader (crypto/rand.Reader por defecto).
// Es segura para uso concurrente si el reader lo es.
type CryptoSource struct {
	Reader io.Reader
}

// NewCryptoSource usa crypto/rand.
func NewCryptoSource() *CryptoSource { return &CryptoSource{Reader: rand.Reader} }

func (s *CryptoSource) reader() io.Reader {
	if s == nil || s.Reader == nil {
		return rand.Reader
	}
	return s.Reader
}

func (s *CryptoSource) Bytes(n int) ([]byte, error) {
	b := make([]byte, n)
	if _, err := io.ReadFull(s.reader(), b); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRandomUnavailable, err)
	}
	return b, nil
}

func (s *CryptoSource) Intn(n int) (int, error) {
	if n <= 0 {
		return 0, fmt.Errorf("tokens: invalid bound %d", n)
	}
	v, err := rand.Int(s.reader(), big.NewInt(int64(n)))
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrRandomUnavailable, err)
	}
	return int(v.Int64()), nil
}

// GenerateOpaqueToken genera un token opaco (base64url sin padding) de nBytes de entropía.
func GenerateOpaqueToken(src RandomSource, nBytes int) (string, error) {
	b, err := src.Bytes(nBytes)
	if err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// NewID genera un UUIDv4 con 16 bytes de src.
func NewID(src RandomSource) (string, error) {
	b, err := src.Bytes(16)
	if err != nil {
		return "", err
	}
	id, err := uuid.NewRandomFromReader(bytes.NewReader(b))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrRandomUnavailable, err)
	}
	return id.String(), nil
}

// NumericCode genera un código decimal de digits dígitos con ceros a la izquierda.
func NumericCode(src RandomSource, digits int) (string, error) {
	bound := 1
	for i := 0; i < digits; i++ {
		bound *= 10
	}
	n, err := src.Intn(bound)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%0*d", digits, n), nil
}

// SHA256Base64URL devuelve sha256(input) en base64url sin padding.
func SHA256Base64URL(s string) string {
	sum := sha256.Sum256([]byte(s))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}

// SHA256Hex devuelve sha256(input) en hexadecimal.
func SHA256Hex(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}
