// Package password hashea y valida passwords (argon2id, formato PHC).
package password

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
)

// Hasher es el contrato que consumen los servicios.
type Hasher interface {
	Hash(plain string) (string, error)
	Verify(plain, encoded string) bool
}

// Params de argon2id.
type Params struct {
	Memory      uint32 // KiB
	Time        uint32
	Parallelism uint8
	SaltLen     uint32
	KeyLen      uint32
}

// Default sigue la recomendación OWASP para argon2id.
var Default = Params{Memory: 64 * 1024, Time: 3, Parallelism: 1, SaltLen: 16, KeyLen: 32}

var ErrEmptyPassword = errors.New("empty password")

// Argon2id implementa Hasher.
type Argon2id struct {
	Params Params
}

// NewArgon2id crea un Hasher; parámetros en cero toman Default.
func NewArgon2id(p Params) *Argon2id {
	if p.Memory == 0 {
		p.Memory = Default.Memory
	}
	if p.Time == 0 {
		p.Time = Default.Time
	}
	if p.Parallelism == 0 {
		p.Parallelism = Default.Parallelism
	}
	if p.SaltLen == 0 {
		p.SaltLen = Default.SaltLen
	}
	if p.KeyLen == 0 {
		p.KeyLen = Default.KeyLen
	}
	return &Argon2id{Params: p}
}

// Hash devuelve $argon2id$v=19$m=...,t=...,p=...$<salt>$<key>.
func (h *Argon2id) Hash(plain string) (string, error) {
	if plain == "" {
		return "", ErrEmptyPassword
	}
	p := h.Params
	salt := make([]byte, p.SaltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("password: salt: %w", err)
	}
	dk := argon2.IDKey([]byte(plain), salt, p.Time, p.Memory, p.Parallelism, p.KeyLen)
	return fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version, p.Memory, p.Time, p.Parallelism,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(dk),
	), nil
}

// Verify compara en tiempo constante. Hash malformado o vacío => false.
func (h *Argon2id) Verify(plain, encoded string) bool {
	parts := strings.Split(encoded, "$")
	// "", "argon2id", "v=19", "m=..,t=..,p=..", salt, key
	if len(parts) != 6 || parts[1] != "argon2id" {
		return false
	}
	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil || version != argon2.Version {
		return false
	}
	var m, t uint32
	var par uint8
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &m, &t, &par); err != nil {
		return false
	}
	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return false
	}
	want, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil || len(want) == 0 {
		return false
	}
	got := argon2.IDKey([]byte(plain), salt, t, m, par, uint32(len(want)))
	return subtle.ConstantTimeCompare(got, want) == 1
}
