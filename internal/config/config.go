// Package config carga la configuración: defaults, luego YAML, luego
// variables de entorno AUTHORITY_*.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"

	"github.com/dropDatabas3/authority/internal/email"
	"github.com/dropDatabas3/authority/internal/observability/logger"
)

// EnvPrefix es el prefijo de todas las variables de entorno.
const EnvPrefix = "AUTHORITY_"

type Config struct {
	App struct {
		// dev | staging | prod
		Env string `yaml:"env" env:"ENV"`
	} `yaml:"app" envPrefix:"APP_"`

	Log logger.Config `yaml:"log" envPrefix:"LOG_"`

	Server       ServerConfig       `yaml:"server" envPrefix:"SERVER_"`
	Storage      StorageConfig      `yaml:"storage" envPrefix:"STORAGE_"`
	Rate         RateConfig         `yaml:"rate" envPrefix:"RATE_"`
	JWT          JWTConfig          `yaml:"jwt" envPrefix:"JWT_"`
	Verification VerificationConfig `yaml:"verification" envPrefix:"VERIFICATION_"`
	SMTP         email.SMTPConfig   `yaml:"smtp" envPrefix:"SMTP_"`
	SMS          SMSConfig          `yaml:"sms" envPrefix:"SMS_"`
	Cleanup      CleanupConfig      `yaml:"cleanup" envPrefix:"CLEANUP_"`
	Auth         AuthConfig         `yaml:"auth" envPrefix:"AUTH_"`
}

type ServerConfig struct {
	Addr            string        `yaml:"addr" env:"ADDR"`
	ReadTimeout     time.Duration `yaml:"read_timeout" env:"READ_TIMEOUT"`
	WriteTimeout    time.Duration `yaml:"write_timeout" env:"WRITE_TIMEOUT"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"SHUTDOWN_TIMEOUT"`
	// CORSAllowedOrigins vacío => sin CORS.
	CORSAllowedOrigins []string `yaml:"cors_allowed_origins" env:"CORS_ALLOWED_ORIGINS" envSeparator:","`
}

type StorageConfig struct {
	// memory | postgres | sqlite
	Driver          string        `yaml:"driver" env:"DRIVER"`
	DSN             string        `yaml:"dsn" env:"DSN"`
	MaxOpenConns    int           `yaml:"max_open_conns" env:"MAX_OPEN_CONNS"`
	MaxIdleConns    int           `yaml:"max_idle_conns" env:"MAX_IDLE_CONNS"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime" env:"CONN_MAX_LIFETIME"`
	AutoMigrate     bool          `yaml:"auto_migrate" env:"AUTO_MIGRATE"`
}

type Limit struct {
	Limit  int           `yaml:"limit" env:"LIMIT"`
	Window time.Duration `yaml:"window" env:"WINDOW"`
}

type RateConfig struct {
	Enabled bool `yaml:"enabled" env:"ENABLED"`
	// memory | redis
	Backend string `yaml:"backend" env:"BACKEND"`
	Redis   struct {
		Addr     string `yaml:"addr" env:"ADDR"`
		DB       int    `yaml:"db" env:"DB"`
		Password string `yaml:"password" env:"PASSWORD"`
		Prefix   string `yaml:"prefix" env:"PREFIX"`
	} `yaml:"redis" envPrefix:"REDIS_"`

	// /oauth2/token
	Token Limit `yaml:"token" envPrefix:"TOKEN_"`
	// /api/auth/* (verificación, reset, signup)
	Auth Limit `yaml:"auth" envPrefix:"AUTH_"`
}

type JWTConfig struct {
	Issuer string `yaml:"issuer" env:"ISSUER"`
	// Clave Ed25519 en formato JWK. Vacío => clave efímera.
	KeyFile string `yaml:"key_file" env:"KEY_FILE"`
	// El access token no se configura: vive 600s fijos.
	RefreshTTL    time.Duration `yaml:"refresh_ttl" env:"REFRESH_TTL"`
	IDTokenTTL    time.Duration `yaml:"id_token_ttl" env:"ID_TOKEN_TTL"`
	RotateRefresh bool          `yaml:"rotate_refresh" env:"ROTATE_REFRESH"`
}

type VerificationConfig struct {
	EmailTTL        time.Duration `yaml:"email_ttl" env:"EMAIL_TTL"`
	SMSTTL          time.Duration `yaml:"sms_ttl" env:"SMS_TTL"`
	ResetTTL        time.Duration `yaml:"reset_ttl" env:"RESET_TTL"`
	FrontendBaseURL string        `yaml:"frontend_base_url" env:"FRONTEND_BASE_URL"`
	TemplatesDir    string        `yaml:"templates_dir" env:"TEMPLATES_DIR"`
}

type SMSConfig struct {
	// log | webhook
	Driver        string  `yaml:"driver" env:"DRIVER"`
	WebhookURL    string  `yaml:"webhook_url" env:"WEBHOOK_URL"`
	WebhookToken  string  `yaml:"webhook_token" env:"WEBHOOK_TOKEN"`
	RatePerSecond float64 `yaml:"rate_per_second" env:"RATE_PER_SECOND"`
}

type CleanupConfig struct {
	Enabled  bool   `yaml:"enabled" env:"ENABLED"`
	Schedule string `yaml:"schedule" env:"SCHEDULE"`
}

type AuthConfig struct {
	DefaultRoles   []string `yaml:"default_roles" env:"DEFAULT_ROLES" envSeparator:","`
	PasswordPolicy struct {
		MinLength     int  `yaml:"min_length" env:"MIN_LENGTH"`
		RequireUpper  bool `yaml:"require_upper" env:"REQUIRE_UPPER"`
		RequireLower  bool `yaml:"require_lower" env:"REQUIRE_LOWER"`
		RequireDigit  bool `yaml:"require_digit" env:"REQUIRE_DIGIT"`
		RequireSymbol bool `yaml:"require_symbol" env:"REQUIRE_SYMBOL"`
	} `yaml:"password_policy" envPrefix:"PASSWORD_POLICY_"`
	PasswordBlacklistPath string `yaml:"password_blacklist_path" env:"PASSWORD_BLACKLIST_PATH"`
}

// Default devuelve la configuración base; YAML y env sólo pisan lo que definen.
func Default() *Config {
	c := &Config{}
	c.App.Env = "dev"
	c.Log = logger.Config{Env: "dev", Level: "info"}

	c.Server = ServerConfig{
		Addr:            ":8080",
		ReadTimeout:     10 * time.Second,
		WriteTimeout:    30 * time.Second,
		ShutdownTimeout: 15 * time.Second,
	}
	c.Storage = StorageConfig{Driver: "memory", ConnMaxLifetime: 30 * time.Minute}

	c.Rate.Enabled = true
	c.Rate.Backend = "memory"
	c.Rate.Redis.Prefix = "rl:"
	c.Rate.Token = Limit{Limit: 20, Window: time.Minute}
	c.Rate.Auth = Limit{Limit: 10, Window: time.Minute}

	c.JWT = JWTConfig{
		Issuer:        "http://localhost:8080",
		RefreshTTL:    720 * time.Hour,
		IDTokenTTL:    60 * time.Minute,
		RotateRefresh: true,
	}
	c.Verification = VerificationConfig{
		EmailTTL:        24 * time.Hour,
		SMSTTL:          10 * time.Minute,
		ResetTTL:        24 * time.Hour,
		FrontendBaseURL: "http://localhost:3000",
	}
	c.SMTP = email.SMTPConfig{Port: 587, TLSMode: "auto"}
	c.SMS = SMSConfig{Driver: "log", RatePerSecond: 5}
	c.Cleanup = CleanupConfig{Enabled: true, Schedule: "@every 1h"}

	c.Auth.DefaultRoles = []string{"USER"}
	c.Auth.PasswordPolicy.MinLength = 8
	return c
}

// Load arma la config: defaults, YAML en path (opcional) y env AUTHORITY_*.
func Load(path string) (*Config, error) {
	c := Default()
	if path != "" {
		b, err := os.ReadFile(filepath.Clean(path))
		if err != nil {
			return nil, err
		}
		if err := yaml.Unmarshal(b, c); err != nil {
			return nil, fmt.Errorf("config: yaml: %w", err)
		}
		// ruta de blacklist relativa al YAML
		if p := strings.TrimSpace(c.Auth.PasswordBlacklistPath); p != "" && !filepath.IsAbs(p) {
			c.Auth.PasswordBlacklistPath = filepath.Join(filepath.Dir(path), p)
		}
	}
	if err := c.ApplyEnv(); err != nil {
		return nil, err
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// ApplyEnv pisa la config con las variables AUTHORITY_*.
func (c *Config) ApplyEnv() error {
	if err := env.ParseWithOptions(c, env.Options{Prefix: EnvPrefix}); err != nil {
		return fmt.Errorf("config: env: %w", err)
	}
	c.App.Env = strings.ToLower(strings.TrimSpace(c.App.Env))
	return nil
}

func (c *Config) IsProd() bool { return c.App.Env == "prod" }

func (c *Config) Validate() error {
	var errs []error
	switch c.Storage.Driver {
	case "memory":
	case "postgres", "sqlite":
		if strings.TrimSpace(c.Storage.DSN) == "" {
			errs = append(errs, fmt.Errorf("storage.dsn is required for driver %q", c.Storage.Driver))
		}
	default:
		errs = append(errs, fmt.Errorf("storage.driver: unknown %q", c.Storage.Driver))
	}

	switch c.Rate.Backend {
	case "memory":
	case "redis":
		if c.Rate.Enabled && c.Rate.Redis.Addr == "" {
			errs = append(errs, errors.New("rate.redis.addr is required for redis backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("rate.backend: unknown %q", c.Rate.Backend))
	}
	if c.Rate.Enabled {
		for name, l := range map[string]Limit{"token": c.Rate.Token, "auth": c.Rate.Auth} {
			if l.Limit <= 0 || l.Window <= 0 {
				errs = append(errs, fmt.Errorf("rate.%s: limit and window must be > 0", name))
			}
		}
	}

	if strings.TrimSpace(c.JWT.Issuer) == "" {
		errs = append(errs, errors.New("jwt.issuer is required"))
	}
	for name, d := range map[string]time.Duration{
		"jwt.refresh_ttl":        c.JWT.RefreshTTL,
		"jwt.id_token_ttl":       c.JWT.IDTokenTTL,
		"verification.email_ttl": c.Verification.EmailTTL,
		"verification.sms_ttl":   c.Verification.SMSTTL,
		"verification.reset_ttl": c.Verification.ResetTTL,
	} {
		if d <= 0 {
			errs = append(errs, fmt.Errorf("%s must be > 0", name))
		}
	}

	switch c.SMS.Driver {
	case "log":
	case "webhook":
		if c.SMS.WebhookURL == "" {
			errs = append(errs, errors.New("sms.webhook_url is required for webhook driver"))
		}
	default:
		errs = append(errs, fmt.Errorf("sms.driver: unknown %q", c.SMS.Driver))
	}

	if c.Cleanup.Enabled {
		if _, err := cron.ParseStandard(c.Cleanup.Schedule); err != nil {
			errs = append(errs, fmt.Errorf("cleanup.schedule: %w", err))
		}
	}
	return errors.Join(errs...)
}
