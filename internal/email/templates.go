package email

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io/fs"
	"os"
	"path/filepath"
	texttpl "text/template"
)

//go:embed templates/*.html templates/*.txt
var defaultFS embed.FS

// Kind identifica un template de email.
type Kind string

const (
	KindVerifyEmail   Kind = "verify_email"
	KindResetPassword Kind = "reset_password"
	KindWelcome       Kind = "welcome"
)

var subjects = map[Kind]string{
	KindVerifyEmail:   "Verificá tu email",
	KindResetPassword: "Restablecer contraseña",
	KindWelcome:       "Bienvenido",
}

// Vars son las variables disponibles en todos los templates.
type Vars struct {
	UserEmail string
	Name      string
	Link      string
	TTL       string
}

type pair struct {
	html *template.Template
	text *texttpl.Template
}

// Templates mantiene los templates parseados por Kind.
type Templates struct {
	byKind map[Kind]pair
}

// DefaultTemplates carga los templates embebidos.
func DefaultTemplates() (*Templates, error) {
	sub, err := fs.Sub(defaultFS, "templates")
	if err != nil {
		return nil, err
	}
	return parseTemplates(sub)
}

// LoadTemplates lee <kind>.html y <kind>.txt de dir. Dir vacío => embebidos.
func LoadTemplates(dir string) (*Templates, error) {
	if dir == "" {
		return DefaultTemplates()
	}
	if _, err := os.Stat(filepath.Clean(dir)); err != nil {
		return nil, fmt.Errorf("email templates dir: %w", err)
	}
	return parseTemplates(os.DirFS(dir))
}

func parseTemplates(fsys fs.FS) (*Templates, error) {
	t := &Templates{byKind: make(map[Kind]pair, len(subjects))}
	for kind := range subjects {
		h, err := template.ParseFS(fsys, string(kind)+".html")
		if err != nil {
			return nil, fmt.Errorf("parse %s html: %w", kind, err)
		}
		x, err := texttpl.ParseFS(fsys, string(kind)+".txt")
		if err != nil {
			return nil, fmt.Errorf("parse %s txt: %w", kind, err)
		}
		t.byKind[kind] = pair{html: h, text: x}
	}
	return t, nil
}

// Render devuelve subject, html y texto plano para kind.
func (t *Templates) Render(kind Kind, vars Vars) (subject, html, text string, err error) {
	p, ok := t.byKind[kind]
	if !ok {
		return "", "", "", fmt.Errorf("unknown email template %q", kind)
	}
	if vars.Name == "" {
		vars.Name = vars.UserEmail
	}
	var hb, tb bytes.Buffer
	if err := p.html.Execute(&hb, vars); err != nil {
		return "", "", "", fmt.Errorf("render %s html: %w", kind, err)
	}
	if err := p.text.Execute(&tb, vars); err != nil {
		return "", "", "", fmt.Errorf("render %s txt: %w", kind, err)
	}
	return subjects[kind], hb.String(), tb.String(), nil
}
