package jwt

import (
	"encoding/json"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-jose/go-jose/v4"
	jwtv5 "github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"

	"github.com/dropDatabas3/authority/internal/clock"
)

func newTestSigner(t *testing.T) (*Signer, *clock.Fixed) {
	t.Helper()
	priv, err := GenerateKey()
	require.NoError(t, err)
	clk := clock.NewFixed(time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC))
	s, err := NewSigner("https://auth.example.com", priv, clk)
	require.NoError(t, err)
	return s, clk
}

func TestSigner_IssueAndParse(t *testing.T) {
	s, clk := newTestSigner(t)

	tok, exp, err := s.Issue("user-1", 10*time.Minute, map[string]any{"email": "a@b.c", "sub": "spoofed"})
	require.NoError(t, err)
	require.Equal(t, clk.Now().Add(10*time.Minute), exp)

	claims, err := s.Parse(tok)
	require.NoError(t, err)
	require.Equal(t, "user-1", claims["sub"])
	require.Equal(t, "a@b.c", claims["email"])
	require.Equal(t, "https://auth.example.com", claims["iss"])

	clk.Advance(10*time.Minute + time.Second)
	_, err = s.Parse(tok)
	require.ErrorIs(t, err, ErrExpired)
}

func TestSigner_RejectsForeignKeyAndTampering(t *testing.T) {
	s, _ := newTestSigner(t)
	other, _ := newTestSigner(t)

	tok, _, err := other.Issue("user-1", time.Minute, nil)
	require.NoError(t, err)
	_, err = s.Parse(tok)
	require.ErrorIs(t, err, ErrInvalidToken)

	tok, _, err = s.Issue("user-1", time.Minute, nil)
	require.NoError(t, err)
	_, err = s.Parse(tok + "x")
	require.ErrorIs(t, err, ErrInvalidToken)

	// alg none / HS256 no se aceptan
	hs := jwtv5.NewWithClaims(jwtv5.SigningMethodHS256, jwtv5.MapClaims{"iss": s.Issuer, "sub": "x", "exp": time.Now().Add(time.Hour).Unix()})
	raw, err := hs.SignedString([]byte("secret"))
	require.NoError(t, err)
	_, err = s.Parse(raw)
	require.True(t, errors.Is(err, ErrInvalidToken))
}

func TestSigner_JWKS(t *testing.T) {
	s, _ := newTestSigner(t)
	b, err := json.Marshal(s.JWKS())
	require.NoError(t, err)

	var set jose.JSONWebKeySet
	require.NoError(t, json.Unmarshal(b, &set))
	keys := set.Key(s.KeyID())
	require.Len(t, keys, 1)
	require.Equal(t, "EdDSA", keys[0].Algorithm)
	require.True(t, keys[0].IsPublic())
}

func TestLoadOrGenerateKey_Persists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "keys", "signing.jwk")
	k1, created, err := LoadOrGenerateKey(path)
	require.NoError(t, err)
	require.True(t, created)

	k2, created, err := LoadOrGenerateKey(path)
	require.NoError(t, err)
	require.False(t, created)
	require.Equal(t, k1, k2)
}
