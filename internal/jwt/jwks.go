package jwt

import "github.com/go-jose/go-jose/v4"

// JWKS devuelve el key set público para /.well-known/jwks.json.
func (s *Signer) JWKS() jose.JSONWebKeySet {
	return jose.JSONWebKeySet{Keys: []jose.JSONWebKey{{
		Key:       s.pub,
		KeyID:     s.kid,
		Algorithm: Algorithm,
		Use:       "sig",
	}}}
}
