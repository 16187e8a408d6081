package logger

import (
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config configura el logger.
type Config struct {
	// Env: "dev" (consola con colores) o "prod" (JSON). Default "dev".
	Env string `yaml:"env" env:"ENV"`
	// Level: "debug", "info", "warn", "error". Default "info".
	Level string `yaml:"level" env:"LEVEL"`

	ServiceName string `yaml:"-"`
	Version     string `yaml:"-"`
}

func build(cfg Config) *zap.Logger {
	var zcfg zap.Config
	opts := []zap.Option{zap.AddCaller()}

	if strings.EqualFold(strings.TrimSpace(cfg.Env), "prod") {
		zcfg = zap.NewProductionConfig()
		zcfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
		opts = append(opts, zap.AddStacktrace(zapcore.ErrorLevel))
	} else {
		zcfg = zap.NewDevelopmentConfig()
		zcfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		zcfg.EncoderConfig.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05.000")
		zcfg.DisableStacktrace = true
	}
	zcfg.Level = zap.NewAtomicLevelAt(parseLevel(cfg.Level))
	zcfg.EncoderConfig.EncodeCaller = zapcore.ShortCallerEncoder

	var base []zap.Field
	if cfg.ServiceName != "" {
		base = append(base, zap.String("service", cfg.ServiceName))
	}
	if cfg.Version != "" {
		base = append(base, zap.String("version", cfg.Version))
	}
	if len(base) > 0 {
		opts = append(opts, zap.Fields(base...))
	}

	l, err := zcfg.Build(opts...)
	if err != nil {
		// fallback mínimo si la config es inválida
		return zap.NewExample()
	}
	return l
}

func parseLevel(lvl string) zapcore.Level {
	lvl = strings.ToLower(strings.TrimSpace(lvl))
	if lvl == "" {
		return zapcore.InfoLevel
	}
	var l zapcore.Level
	if err := l.UnmarshalText([]byte(lvl)); err != nil {
		return zapcore.InfoLevel
	}
	return l
}
