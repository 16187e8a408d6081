// Package server construye el runtime completo (store, firma, notificaciones,
// rate limiting, métricas) a partir de la config y corre el servidor HTTP.
package server

import (
	"context"
	"crypto/ed25519"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"
	xrate "golang.org/x/time/rate"

	"github.com/dropDatabas3/authority/internal/app"
	"github.com/dropDatabas3/authority/internal/clock"
	"github.com/dropDatabas3/authority/internal/config"
	"github.com/dropDatabas3/authority/internal/email"
	"github.com/dropDatabas3/authority/internal/http/services/oauth"
	"github.com/dropDatabas3/authority/internal/http/services/verification"
	jwtx "github.com/dropDatabas3/authority/internal/jwt"
	"github.com/dropDatabas3/authority/internal/metrics"
	"github.com/dropDatabas3/authority/internal/notify"
	"github.com/dropDatabas3/authority/internal/observability/logger"
	"github.com/dropDatabas3/authority/internal/rate"
	"github.com/dropDatabas3/authority/internal/security/password"
	"github.com/dropDatabas3/authority/internal/store"

	// registra memory, postgres y sqlite
	_ "github.com/dropDatabas3/authority/internal/store/adapters/dal"
)

// Options son los parámetros que no vienen de la config.
type Options struct {
	Version  string
	// Registry nil => prometheus.DefaultRegisterer / DefaultGatherer.
	Registry *prometheus.Registry
	Clock    clock.Clock
}

// Runtime es la aplicación cableada junto con los recursos que hay que cerrar.
type Runtime struct {
	Config   *config.Config
	Store    store.AdapterConnection
	Signer   *jwtx.Signer
	Notifier *notify.Dispatcher
	App      *app.App
	Server   *http.Server

	redis *redis.Client
}

// Build abre el store, carga la clave de firma y arma el handler.
// Ante error libera lo que ya se haya abierto.
func Build(ctx context.Context, cfg *config.Config, opts Options) (_ *Runtime, err error) {
	log := logger.L().With(logger.Component("server"))
	if opts.Clock == nil {
		opts.Clock = clock.System{}
	}

	rt := &Runtime{Config: cfg}
	defer func() {
		if err != nil {
			_ = rt.Close()
		}
	}()

	rt.Store, err = OpenStore(ctx, cfg.Storage)
	if err != nil {
		return nil, err
	}
	log.Info("store ready", logger.String("driver", rt.Store.Name()))

	rt.Signer, err = LoadSigner(cfg.JWT, opts.Clock)
	if err != nil {
		return nil, err
	}

	rt.Notifier, err = buildNotifier(cfg)
	if err != nil {
		return nil, err
	}

	policy, err := buildPolicy(cfg.Auth)
	if err != nil {
		return nil, err
	}

	var tokenLimiter, authLimiter rate.Limiter
	var redisPing func(context.Context) error
	if cfg.Rate.Enabled {
		switch cfg.Rate.Backend {
		case "redis":
			rt.redis = redis.NewClient(&redis.Options{
				Addr:     cfg.Rate.Redis.Addr,
				DB:       cfg.Rate.Redis.DB,
				Password: cfg.Rate.Redis.Password,
			})
			prefix := cfg.Rate.Redis.Prefix
			tokenLimiter = rate.NewRedisLimiter(rt.redis, prefix+"token:", cfg.Rate.Token.Limit, cfg.Rate.Token.Window)
			authLimiter = rate.NewRedisLimiter(rt.redis, prefix+"auth:", cfg.Rate.Auth.Limit, cfg.Rate.Auth.Window)
			redisPing = func(ctx context.Context) error { return rt.redis.Ping(ctx).Err() }
		default:
			tokenLimiter = rate.NewMemoryLimiter(cfg.Rate.Token.Limit, cfg.Rate.Token.Window)
			authLimiter = rate.NewMemoryLimiter(cfg.Rate.Auth.Limit, cfg.Rate.Auth.Window)
		}
		log.Info("rate limiting enabled", logger.String("backend", cfg.Rate.Backend))
	}

	metricsHandler, err := buildMetrics(opts.Registry)
	if err != nil {
		return nil, err
	}

	rt.App = app.New(app.Deps{
		Store:    rt.Store,
		Signer:   rt.Signer,
		Hasher:   password.NewArgon2id(password.Default),
		Policy:   policy,
		Notifier: rt.Notifier,
		Clock:    opts.Clock,
		TokenTTLs: oauth.TokenTTLs{
			Refresh: cfg.JWT.RefreshTTL,
			IDToken: cfg.JWT.IDTokenTTL,
		},
		RotateRefresh: cfg.JWT.RotateRefresh,
		VerificationTTLs: verification.TTLs{
			Email: cfg.Verification.EmailTTL,
			SMS:   cfg.Verification.SMSTTL,
			Reset: cfg.Verification.ResetTTL,
		},
		FrontendBaseURL: cfg.Verification.FrontendBaseURL,
		DefaultRoles:    cfg.Auth.DefaultRoles,
		TokenLimiter:    tokenLimiter,
		AuthLimiter:     authLimiter,
		RedisPing:       redisPing,
		CORSOrigins:     cfg.Server.CORSAllowedOrigins,
		Metrics:         metricsHandler,
		Version:         opts.Version,
	})

	rt.Server = &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      rt.App.Handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}
	return rt, nil
}

// OpenStore abre el adapter configurado (aplica migraciones si AutoMigrate).
func OpenStore(ctx context.Context, sc config.StorageConfig) (store.AdapterConnection, error) {
	conn, err := store.OpenAdapter(ctx, store.AdapterConfig{
		Name:            sc.Driver,
		DSN:             sc.DSN,
		MaxOpenConns:    sc.MaxOpenConns,
		MaxIdleConns:    sc.MaxIdleConns,
		ConnMaxLifetime: sc.ConnMaxLifetime,
		AutoMigrate:     sc.AutoMigrate,
	})
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	return conn, nil
}

// LoadSigner usa la clave de jwt.key_file (creándola si falta) o una efímera.
func LoadSigner(jc config.JWTConfig, clk clock.Clock) (*jwtx.Signer, error) {
	log := logger.L().With(logger.Component("keys"))

	var (
		priv    ed25519.PrivateKey
		created bool
		err     error
	)
	if path := strings.TrimSpace(jc.KeyFile); path != "" {
		priv, created, err = jwtx.LoadOrGenerateKey(path)
		if err != nil {
			return nil, fmt.Errorf("load signing key: %w", err)
		}
		if created {
			log.Info("signing key generated", logger.String("path", path))
		}
	} else {
		priv, err = jwtx.GenerateKey()
		if err != nil {
			return nil, fmt.Errorf("generate signing key: %w", err)
		}
		log.Warn("jwt.key_file not set, using ephemeral signing key")
	}

	signer, err := jwtx.NewSigner(jc.Issuer, priv, clk)
	if err != nil {
		return nil, err
	}
	log.Info("signer ready", logger.String("kid", signer.KeyID()))
	return signer, nil
}

func buildNotifier(cfg *config.Config) (*notify.Dispatcher, error) {
	tpl, err := email.DefaultTemplates()
	if dir := strings.TrimSpace(cfg.Verification.TemplatesDir); dir != "" {
		tpl, err = email.LoadTemplates(dir)
	}
	if err != nil {
		return nil, fmt.Errorf("email templates: %w", err)
	}

	var sms notify.SMSSender = notify.LogSMSSender{}
	if cfg.SMS.Driver == "webhook" {
		sms = notify.NewWebhookSMSSender(cfg.SMS.WebhookURL, cfg.SMS.WebhookToken)
	}

	var mail email.Sender
	if cfg.SMTP.Host != "" {
		mail = email.NewSMTPSender(cfg.SMTP)
	} else {
		logger.L().Warn("smtp.host not set, emails are disabled")
	}

	d := notify.NewDispatcher(mail, tpl, sms)
	if cfg.SMS.RatePerSecond > 0 {
		d.SMSLimit = xrate.NewLimiter(xrate.Limit(cfg.SMS.RatePerSecond), 1)
	}
	return d, nil
}

func buildPolicy(ac config.AuthConfig) (password.Policy, error) {
	bl, err := password.LoadBlacklist(ac.PasswordBlacklistPath)
	if err != nil {
		return password.Policy{}, fmt.Errorf("password blacklist: %w", err)
	}
	pp := ac.PasswordPolicy
	return password.Policy{
		MinLength:     pp.MinLength,
		RequireUpper:  pp.RequireUpper,
		RequireLower:  pp.RequireLower,
		RequireDigit:  pp.RequireDigit,
		RequireSymbol: pp.RequireSymbol,
		Blacklist:     bl,
	}, nil
}

func buildMetrics(reg *prometheus.Registry) (http.Handler, error) {
	if reg == nil {
		if err := metrics.Register(nil); err != nil {
			return nil, fmt.Errorf("register metrics: %w", err)
		}
		return promhttp.Handler(), nil
	}
	if err := metrics.Register(reg); err != nil {
		return nil, fmt.Errorf("register metrics: %w", err)
	}
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{}), nil
}

// Close espera los envíos pendientes y cierra redis y el store.
func (rt *Runtime) Close() error {
	var errs []error
	if rt.Notifier != nil {
		rt.Notifier.Wait()
	}
	if rt.redis != nil {
		errs = append(errs, rt.redis.Close())
	}
	if rt.Store != nil {
		errs = append(errs, rt.Store.Close())
	}
	return errors.Join(errs...)
}

// Serve corre el servidor HTTP hasta que ctx se cancela y luego hace un
// shutdown ordenado con server.shutdown_timeout.
func (rt *Runtime) Serve(ctx context.Context) error {
	log := logger.L().With(logger.Component("server"))
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info("http server listening", logger.String("addr", rt.Server.Addr))
		if err := rt.Server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		timeout := rt.Config.Server.ShutdownTimeout
		if timeout <= 0 {
			timeout = 15 * time.Second
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		log.Info("shutting down http server")
		if err := rt.Server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		return nil
	})

	return g.Wait()
}
