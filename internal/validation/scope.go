// Package validation valida valores que llegan del wire antes de persistirlos.
package validation

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// MaxScopes acota la cantidad de scopes por request.
const MaxScopes = 32

var ErrInvalidScope = errors.New("invalid scope")

// minúsculas, empieza y termina alfanumérico, 1..64 chars, permite ":_.-" en el medio
var scopeNameRe = regexp.MustCompile(`^[a-z0-9](?:[a-z0-9:_\.-]{0,62}[a-z0-9])?$`)

// ValidScopeName reporta si name es un scope individual válido.
func ValidScopeName(name string) bool {
	return scopeNameRe.MatchString(name)
}

// NormalizeScope valida un scope separado por espacios y lo devuelve sin
// duplicados, en el orden original. Vacío es válido y devuelve "".
func NormalizeScope(raw string) (string, error) {
	fields := strings.Fields(raw)
	if len(fields) > MaxScopes {
		return "", fmt.Errorf("%w: more than %d scopes", ErrInvalidScope, MaxScopes)
	}
	seen := make(map[string]struct{}, len(fields))
	out := fields[:0]
	for _, f := range fields {
		if !ValidScopeName(f) {
			return "", fmt.Errorf("%w: %q", ErrInvalidScope, f)
		}
		if _, dup := seen[f]; dup {
			continue
		}
		seen[f] = struct{}{}
		out = append(out, f)
	}
	return strings.Join(out, " "), nil
}
