package logger

import (
	"time"

	"go.uber.org/zap"

	"github.com/dropDatabas3/authority/internal/util"
)

// ─── HTTP ───

func RequestID(v string) zap.Field       { return zap.String("request_id", v) }
func Method(v string) zap.Field          { return zap.String("method", v) }
func Path(v string) zap.Field            { return zap.String("path", v) }
func Status(v int) zap.Field             { return zap.Int("status", v) }
func Duration(v time.Duration) zap.Field { return zap.Duration("duration", v) }
func ClientIP(v string) zap.Field        { return zap.String("client_ip", v) }
func Bytes(v int) zap.Field              { return zap.Int("bytes", v) }
func DurationMs(v int64) zap.Field       { return zap.Int64("duration_ms", v) }

// ─── Negocio ───

// UserID identifica al usuario afectado por la operación.
func UserID(v string) zap.Field { return zap.String("user_id", v) }

// ClientID identifica al cliente OAuth.
func ClientID(v string) zap.Field { return zap.String("client_id", v) }

// GrantType identifica el grant OAuth2 procesado.
func GrantType(v string) zap.Field { return zap.String("grant_type", v) }

// ActionType identifica el tipo de action token (EMAIL_VERIFICATION, ...).
func ActionType(v string) zap.Field { return zap.String("action_type", v) }

// Outcome registra el resultado de una verificación.
func Outcome(v string) zap.Field { return zap.String("outcome", v) }

// Email se loguea enmascarado (a…@e….com).
func Email(v string) zap.Field { return zap.String("email", util.MaskEmail(v)) }

// Phone se loguea enmascarado (***1234).
func Phone(v string) zap.Field { return zap.String("phone", util.MaskPhone(v)) }

// ─── Sistema ───

func Component(v string) zap.Field { return zap.String("component", v) }
func Op(v string) zap.Field        { return zap.String("op", v) }
func Layer(v string) zap.Field     { return zap.String("layer", v) }
func Err(err error) zap.Field      { return zap.Error(err) }
func Count(v int) zap.Field        { return zap.Int("count", v) }

// ─── Genéricos ───

func String(key, v string) zap.Field    { return zap.String(key, v) }
func Int(key string, v int) zap.Field   { return zap.Int(key, v) }
func Bool(key string, v bool) zap.Field { return zap.Bool(key, v) }
func Any(key string, v any) zap.Field   { return zap.Any(key, v) }
