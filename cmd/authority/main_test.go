package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	jwtx "github.com/dropDatabas3/authority/internal/jwt"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(append([]string{"--env-file", filepath.Join(t.TempDir(), "missing.env")}, args...))
	err := cmd.Execute()
	return out.String(), err
}

func TestKeysGenerate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "keys", "signing.jwk")

	out, err := run(t, "keys", "generate", "--out", path)
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(out, "kid="))

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	_, err = jwtx.ParsePrivateJWK(b)
	require.NoError(t, err)

	_, err = run(t, "keys", "generate", "--out", path)
	require.ErrorContains(t, err, "ya existe")

	_, err = run(t, "keys", "generate", "--out", path, "--force")
	require.NoError(t, err)
}

func TestCleanup_MemoryStore(t *testing.T) {
	out, err := run(t, "cleanup")
	require.NoError(t, err)
	require.Contains(t, out, "deleted 0 expired records")
}

func TestMigrate_MemoryHasNoMigrations(t *testing.T) {
	_, err := run(t, "migrate")
	require.ErrorContains(t, err, "has no migrations")
}

func TestVersion(t *testing.T) {
	out, err := run(t, "version")
	require.NoError(t, err)
	require.Equal(t, "dev\n", out)
}
