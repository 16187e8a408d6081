// Package oauth contiene los services del dominio OAuth2/OIDC: authorization
// codes, emisión de tokens y despacho de grants.
package oauth

import (
	"github.com/dropDatabas3/authority/internal/clock"
	"github.com/dropDatabas3/authority/internal/security/password"
	tokens "github.com/dropDatabas3/authority/internal/security/token"
	"github.com/dropDatabas3/authority/internal/store"
)

// Deps contiene las dependencias para crear los services OAuth.
type Deps struct {
	DAL           store.DataAccess
	Signer        Signer
	Hasher        password.Hasher
	Random        tokens.RandomSource
	Clock         clock.Clock
	TTLs          TokenTTLs
	RotateRefresh bool
}

// Services agrupa los services del dominio OAuth.
type Services struct {
	Codes  *AuthCodeManager
	Tokens *TokenIssuer
	Grants *GrantService
}

// NewServices crea el agregador de services OAuth.
func NewServices(d Deps) Services {
	if d.Clock == nil {
		d.Clock = clock.System{}
	}
	if d.Random == nil {
		d.Random = tokens.NewCryptoSource()
	}
	codes := NewAuthCodeManager(d.DAL.AuthCodes(), d.Random, d.Clock)
	issuer := NewTokenIssuer(d.DAL, d.Signer, d.Random, d.Clock, d.TTLs)
	return Services{
		Codes:  codes,
		Tokens: issuer,
		Grants: NewGrantService(GrantDeps{
			Users:         d.DAL.Users(),
			Hasher:        d.Hasher,
			Codes:         codes,
			Issuer:        issuer,
			RotateRefresh: d.RotateRefresh,
		}),
	}
}
