// Package util junta helpers chicos sin dependencias del dominio.
package util

import "strings"

// MaskEmail deja sólo la primera letra del usuario y del dominio:
// "ana@example.com" => "a…@e….com". Sin "@" enmascara el valor completo.
func MaskEmail(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	user, domain, ok := strings.Cut(s, "@")
	if !ok || user == "" {
		return maskToken(s)
	}
	labels := strings.Split(domain, ".")
	labels[0] = firstRune(labels[0])
	return firstRune(user) + "@" + strings.Join(labels, ".")
}

// MaskPhone deja visibles los últimos 4 dígitos: "+5491122223333" => "***3333".
func MaskPhone(s string) string {
	s = strings.TrimSpace(s)
	if len(s) <= 4 {
		return strings.Repeat("*", len(s))
	}
	return "***" + s[len(s)-4:]
}

func maskToken(s string) string {
	switch {
	case s == "":
		return ""
	case len(s) <= 3:
		return "***"
	default:
		return s[:1] + "…" + s[len(s)-1:]
	}
}

func firstRune(s string) string {
	r := []rune(s)
	if len(r) <= 1 {
		return s
	}
	return string(r[0]) + "…"
}
