package email

import (
	"crypto/tls"
	"fmt"

	mail "github.com/go-mail/mail"

	"github.com/dropDatabas3/authority/internal/observability/logger"
)

// Sender envía un email con cuerpo HTML y texto plano.
type Sender interface {
	Send(to, subject, htmlBody, textBody string) error
}

// SMTPConfig es la configuración del servidor SMTP.
type SMTPConfig struct {
	Host               string `yaml:"host" env:"HOST"`
	Port               int    `yaml:"port" env:"PORT"`
	From               string `yaml:"from" env:"FROM"`
	Username           string `yaml:"username" env:"USERNAME"`
	Password           string `yaml:"password" env:"PASSWORD"`
	TLSMode            string `yaml:"tls_mode" env:"TLS_MODE"` // auto | starttls | ssl | none
	InsecureSkipVerify bool   `yaml:"insecure_skip_verify" env:"INSECURE_SKIP_VERIFY"`
}

// SMTPSender implementa Sender con go-mail.
type SMTPSender struct {
	cfg SMTPConfig
}

func NewSMTPSender(cfg SMTPConfig) *SMTPSender {
	if cfg.TLSMode == "" {
		cfg.TLSMode = "auto"
	}
	if cfg.Port == 0 {
		cfg.Port = 587
	}
	return &SMTPSender{cfg: cfg}
}

func (s *SMTPSender) message(to, subject, htmlBody, textBody string) *mail.Message {
	m := mail.NewMessage()
	m.SetHeader("From", s.cfg.From)
	m.SetHeader("To", to)
	m.SetHeader("Subject", subject)

	// multipart/alternative cuando hay txt + html
	switch {
	case textBody != "" && htmlBody != "":
		m.SetBody("text/plain", textBody)
		m.AddAlternative("text/html", htmlBody)
	case htmlBody != "":
		m.SetBody("text/html", htmlBody)
	default:
		m.SetBody("text/plain", textBody)
	}
	return m
}

func (s *SMTPSender) dialer() *mail.Dialer {
	d := mail.NewDialer(s.cfg.Host, s.cfg.Port, s.cfg.Username, s.cfg.Password)
	d.TLSConfig = &tls.Config{ServerName: s.cfg.Host, InsecureSkipVerify: s.cfg.InsecureSkipVerify} //nolint:gosec // solo dev
	switch s.cfg.TLSMode {
	case "ssl":
		d.SSL = true
	case "none":
		d.StartTLSPolicy = mail.NoStartTLS
	case "starttls":
		d.StartTLSPolicy = mail.MandatoryStartTLS
	}
	return d
}

func (s *SMTPSender) Send(to, subject, htmlBody, textBody string) error {
	log := logger.L().With(
		logger.Component("smtp"),
		logger.String("host", s.cfg.Host),
		logger.Int("port", s.cfg.Port),
	)
	if err := s.dialer().DialAndSend(s.message(to, subject, htmlBody, textBody)); err != nil {
		log.Error("smtp send failed", logger.Err(err))
		return fmt.Errorf("smtp send: %w", err)
	}
	log.Debug("email sent", logger.String("subject", subject))
	return nil
}
