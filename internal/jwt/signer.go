// Package jwt firma y valida los JWT emitidos por el servidor (EdDSA / Ed25519).
package jwt

import (
	"crypto"
	"crypto/ed25519"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"github.com/go-jose/go-jose/v4"
	jwtv5 "github.com/golang-jwt/jwt/v5"

	"github.com/dropDatabas3/authority/internal/clock"
)

// Algorithm es el único alg que emitimos y aceptamos.
const Algorithm = "EdDSA"

var (
	ErrInvalidToken = errors.New("invalid_jwt")
	ErrExpired      = errors.New("expired")
)

// Signer firma con una clave Ed25519 y expone su JWKS.
type Signer struct {
	Issuer string

	kid   string
	priv  ed25519.PrivateKey
	pub   ed25519.PublicKey
	clock clock.Clock
}

// NewSigner crea un Signer. El kid es el thumbprint RFC 7638 de la clave pública.
func NewSigner(issuer string, priv ed25519.PrivateKey, clk clock.Clock) (*Signer, error) {
	if len(priv) != ed25519.PrivateKeySize {
		return nil, fmt.Errorf("jwt: invalid ed25519 private key size %d", len(priv))
	}
	if clk == nil {
		clk = clock.System{}
	}
	pub := priv.Public().(ed25519.PublicKey)
	tp, err := (&jose.JSONWebKey{Key: pub}).Thumbprint(crypto.SHA256)
	if err != nil {
		return nil, fmt.Errorf("jwt: thumbprint: %w", err)
	}
	return &Signer{
		Issuer: issuer,
		kid:    base64.RawURLEncoding.EncodeToString(tp),
		priv:   priv,
		pub:    pub,
		clock:  clk,
	}, nil
}

func (s *Signer) KeyID() string                { return s.kid }
func (s *Signer) PublicKey() ed25519.PublicKey { return s.pub }

// Issue firma un token para subject con iss/sub/iat/nbf/exp y los claims extra.
// Los claims extra no pueden pisar los registrados.
func (s *Signer) Issue(subject string, ttl time.Duration, extra map[string]any) (string, time.Time, error) {
	now := s.clock.Now()
	exp := now.Add(ttl)
	claims := jwtv5.MapClaims{}
	for k, v := range extra {
		claims[k] = v
	}
	claims["iss"] = s.Issuer
	claims["sub"] = subject
	claims["iat"] = now.Unix()
	claims["nbf"] = now.Unix()
	claims["exp"] = exp.Unix()

	signed, err := s.SignRaw(claims)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, exp, nil
}

// SignRaw firma claims arbitrarios seteando kid/typ en el header.
func (s *Signer) SignRaw(claims jwtv5.MapClaims) (string, error) {
	tk := jwtv5.NewWithClaims(jwtv5.SigningMethodEdDSA, claims)
	tk.Header["kid"] = s.kid
	tk.Header["typ"] = "JWT"
	signed, err := tk.SignedString(s.priv)
	if err != nil {
		return "", fmt.Errorf("jwt: sign: %w", err)
	}
	return signed, nil
}

// Parse valida firma, alg, iss, exp y nbf (con el reloj del Signer) y devuelve las claims.
func (s *Signer) Parse(token string) (map[string]any, error) {
	keyfunc := func(t *jwtv5.Token) (any, error) {
		if kid, _ := t.Header["kid"].(string); kid != "" && kid != s.kid {
			return nil, fmt.Errorf("unknown kid %q", kid)
		}
		return s.pub, nil
	}
	tok, err := jwtv5.Parse(token, keyfunc,
		jwtv5.WithValidMethods([]string{Algorithm}),
		jwtv5.WithIssuer(s.Issuer),
		jwtv5.WithExpirationRequired(),
		jwtv5.WithTimeFunc(s.clock.Now),
	)
	if err != nil {
		if errors.Is(err, jwtv5.ErrTokenExpired) {
			return nil, ErrExpired
		}
		return nil, ErrInvalidToken
	}
	claims, ok := tok.Claims.(jwtv5.MapClaims)
	if !ok || !tok.Valid {
		return nil, ErrInvalidToken
	}
	return map[string]any(claims), nil
}
