package password

import (
	"bufio"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"unicode"
)

// ErrWeakPassword agrupa las violaciones de la política.
var ErrWeakPassword = errors.New("weak password")

// PolicyError lista las reglas incumplidas ("too_short", "missing_digit", ...).
type PolicyError struct {
	Reasons []string
}

func (e *PolicyError) Error() string {
	return "weak password: " + strings.Join(e.Reasons, ", ")
}

func (e *PolicyError) Unwrap() error { return ErrWeakPassword }

// Policy define los requisitos mínimos de una password nueva.
type Policy struct {
	MinLength     int
	RequireUpper  bool
	RequireLower  bool
	RequireDigit  bool
	RequireSymbol bool

	// Blacklist de passwords comunes (minúsculas).
	Blacklist map[string]struct{}
}

// Validate retorna *PolicyError si la password no cumple.
func (p Policy) Validate(s string) error {
	var reasons []string
	if len([]rune(s)) < p.MinLength {
		reasons = append(reasons, "too_short")
	}
	var hasU, hasL, hasD, hasS bool
	for _, r := range s {
		switch {
		case unicode.IsUpper(r):
			hasU = true
		case unicode.IsLower(r):
			hasL = true
		case unicode.IsDigit(r):
			hasD = true
		case unicode.IsPunct(r) || unicode.IsSymbol(r):
			hasS = true
		}
	}
	if p.RequireUpper && !hasU {
		reasons = append(reasons, "missing_upper")
	}
	if p.RequireLower && !hasL {
		reasons = append(reasons, "missing_lower")
	}
	if p.RequireDigit && !hasD {
		reasons = append(reasons, "missing_digit")
	}
	if p.RequireSymbol && !hasS {
		reasons = append(reasons, "missing_symbol")
	}
	if _, bad := p.Blacklist[strings.ToLower(strings.TrimSpace(s))]; bad {
		reasons = append(reasons, "blacklisted")
	}
	if len(reasons) > 0 {
		return &PolicyError{Reasons: reasons}
	}
	return nil
}

// LoadBlacklist lee un archivo con una password por línea ("#" comenta).
// Path vacío => blacklist vacía.
func LoadBlacklist(path string) (map[string]struct{}, error) {
	out := map[string]struct{}{}
	if strings.TrimSpace(path) == "" {
		return out, nil
	}
	f, err := os.Open(filepath.Clean(path))
	if err != nil {
		return nil, err
	}
	defer f.Close()
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		s := strings.ToLower(strings.TrimSpace(sc.Text()))
		if s != "" && !strings.HasPrefix(s, "#") {
			out[s] = struct{}{}
		}
	}
	return out, sc.Err()
}
