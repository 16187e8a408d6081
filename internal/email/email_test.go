package email

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDefaultTemplates_Render(t *testing.T) {
	tpl, err := DefaultTemplates()
	require.NoError(t, err)

	subject, html, text, err := tpl.Render(KindVerifyEmail, Vars{
		UserEmail: "ana@example.com",
		Link:      "https://app.example.com/verify-email?email=ana%40example.com&token=abc",
		TTL:       "24h0m0s",
	})
	require.NoError(t, err)
	require.Equal(t, "Verificá tu email", subject)
	require.Contains(t, text, "Hola ana@example.com")
	require.Contains(t, text, "token=abc")
	// html/template escapa el & del href
	require.Contains(t, html, "token=abc")
	require.Contains(t, html, "24h0m0s")

	_, _, _, err = tpl.Render(Kind("nope"), Vars{})
	require.Error(t, err)
}

func TestLoadTemplates_FromDir(t *testing.T) {
	dir := t.TempDir()
	for kind := range subjects {
		require.NoError(t, os.WriteFile(filepath.Join(dir, string(kind)+".html"), []byte("<b>{{.Name}}</b>"), 0o600))
		require.NoError(t, os.WriteFile(filepath.Join(dir, string(kind)+".txt"), []byte("custom {{.Name}}"), 0o600))
	}
	tpl, err := LoadTemplates(dir)
	require.NoError(t, err)

	_, html, text, err := tpl.Render(KindWelcome, Vars{Name: "<Ana>"})
	require.NoError(t, err)
	require.Equal(t, "custom <Ana>", text)
	require.Equal(t, "<b>&lt;Ana&gt;</b>", html)

	_, err = LoadTemplates(filepath.Join(dir, "missing"))
	require.Error(t, err)
}

func TestSMTPSender_Message(t *testing.T) {
	s := NewSMTPSender(SMTPConfig{Host: "smtp.example.com", From: "no-reply@example.com"})
	require.Equal(t, 587, s.cfg.Port)
	require.Equal(t, "auto", s.cfg.TLSMode)

	var buf bytes.Buffer
	_, err := s.message("ana@example.com", "Hi", "<p>hi</p>", "hi").WriteTo(&buf)
	require.NoError(t, err)
	raw := buf.String()
	require.Contains(t, raw, "multipart/alternative")
	require.True(t, strings.Contains(raw, "To: ana@example.com"))
	require.Contains(t, raw, "Subject: Hi")
}
