// Package notify despacha notificaciones (email y SMS) fuera del request.
// Los envíos son fire-and-forget: los errores sólo se loguean.
package notify

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/dropDatabas3/authority/internal/email"
	"github.com/dropDatabas3/authority/internal/observability/logger"
)

// Gateway es lo que consumen los servicios.
type Gateway interface {
	SendEmailVerification(ctx context.Context, to, name, link string, ttl time.Duration)
	SendPasswordReset(ctx context.Context, to, name, link string, ttl time.Duration)
	SendWelcome(ctx context.Context, to, name string)
	SendSMS(ctx context.Context, phone, body string)
}

// SMSSender entrega un SMS.
type SMSSender interface {
	Send(ctx context.Context, phone, body string) error
}

// Dispatcher implementa Gateway enviando en goroutines con timeout propio.
type Dispatcher struct {
	Mail      email.Sender
	Templates *email.Templates
	SMS       SMSSender
	Timeout   time.Duration
	// SMSLimit acota los SMS salientes por segundo (nil = sin límite).
	SMSLimit *rate.Limiter

	wg sync.WaitGroup
}

func NewDispatcher(mail email.Sender, tpl *email.Templates, sms SMSSender) *Dispatcher {
	return &Dispatcher{Mail: mail, Templates: tpl, SMS: sms, Timeout: 15 * time.Second}
}

func (d *Dispatcher) SendEmailVerification(ctx context.Context, to, name, link string, ttl time.Duration) {
	d.sendEmail(ctx, email.KindVerifyEmail, to, email.Vars{UserEmail: to, Name: name, Link: link, TTL: ttl.String()})
}

func (d *Dispatcher) SendPasswordReset(ctx context.Context, to, name, link string, ttl time.Duration) {
	d.sendEmail(ctx, email.KindResetPassword, to, email.Vars{UserEmail: to, Name: name, Link: link, TTL: ttl.String()})
}

func (d *Dispatcher) SendWelcome(ctx context.Context, to, name string) {
	d.sendEmail(ctx, email.KindWelcome, to, email.Vars{UserEmail: to, Name: name})
}

func (d *Dispatcher) SendSMS(ctx context.Context, phone, body string) {
	log := logger.From(ctx).With(logger.Component("notify"), logger.String("channel", "sms"), logger.Phone(phone))
	if d.SMS == nil {
		log.Warn("sms sender not configured, dropping message")
		return
	}
	d.goSend(func() {
		sctx, cancel := context.WithTimeout(context.Background(), d.Timeout)
		defer cancel()
		if d.SMSLimit != nil {
			if err := d.SMSLimit.Wait(sctx); err != nil {
				log.Warn("sms throttled, dropping message", logger.Err(err))
				return
			}
		}
		if err := d.SMS.Send(sctx, phone, body); err != nil {
			log.Error("sms send failed", logger.Err(err))
		}
	})
}

func (d *Dispatcher) sendEmail(ctx context.Context, kind email.Kind, to string, vars email.Vars) {
	log := logger.From(ctx).With(logger.Component("notify"), logger.String("channel", "email"), logger.String("template", string(kind)), logger.Email(to))
	if d.Mail == nil || d.Templates == nil {
		log.Warn("email sender not configured, dropping message")
		return
	}
	subject, html, text, err := d.Templates.Render(kind, vars)
	if err != nil {
		log.Error("render email failed", logger.Err(err))
		return
	}
	d.goSend(func() {
		if err := d.Mail.Send(to, subject, html, text); err != nil {
			log.Error("email send failed", logger.Err(err))
		}
	})
}

func (d *Dispatcher) goSend(fn func()) {
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				logger.L().Error("notify: panic in sender", logger.Any("panic", r))
			}
		}()
		fn()
	}()
}

// Wait bloquea hasta que terminen los envíos en curso (shutdown y tests).
func (d *Dispatcher) Wait() { d.wg.Wait() }
