package pkce

import (
	"errors"
	"testing"
)

// Vector del apéndice B de RFC 7636.
const (
	rfcVerifier  = "dBjftJeZ4CVP-mB92K27uhbUJU1p1r_wW1gFWFOEjXk"
	rfcChallenge = "E9Melhoa2OwvFrEMTJguCHaoeK1t8URWbuGJSstw-cM"
)

func TestChallenge(t *testing.T) {
	cases := []struct {
		name, verifier, method, want string
		err                          error
	}{
		{"s256 rfc vector", rfcVerifier, "S256", rfcChallenge, nil},
		{"empty method defaults to s256", rfcVerifier, "", rfcChallenge, nil},
		{"plain", "abc", "plain", "abc", nil},
		{"unsupported", "abc", "md5", "", ErrUnsupportedMethod},
		{"lowercase s256 is not accepted", "abc", "s256", "", ErrUnsupportedMethod},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Challenge(tc.verifier, tc.method)
			if !errors.Is(err, tc.err) {
				t.Fatalf("err = %v, want %v", err, tc.err)
			}
			if got != tc.want {
				t.Fatalf("challenge = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestVerify(t *testing.T) {
	if err := Verify(rfcVerifier, "S256", rfcChallenge); err != nil {
		t.Fatalf("rfc vector should verify: %v", err)
	}
	if err := Verify("wrong-verifier", "S256", rfcChallenge); !errors.Is(err, ErrMismatch) {
		t.Fatalf("expected ErrMismatch, got %v", err)
	}
	if err := Verify("", "S256", rfcChallenge); !errors.Is(err, ErrVerifierRequired) {
		t.Fatalf("expected ErrVerifierRequired, got %v", err)
	}
	if err := Verify("abc", "plain", "abc"); err != nil {
		t.Fatalf("plain should verify: %v", err)
	}
}
