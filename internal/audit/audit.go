// Package audit registra eventos de seguridad con un campo "event" estable,
// para poder filtrarlos del resto de los logs.
package audit

import (
	"context"

	"go.uber.org/zap"

	"github.com/dropDatabas3/authority/internal/observability/logger"
)

type Event string

const (
	UserSignedUp    Event = "user.signed_up"
	PasswordChanged Event = "user.password_changed"
	ActionRedeemed  Event = "action_token.redeemed"
	TokenRevoked    Event = "refresh_token.revoked"
)

// Log escribe el evento en el logger del contexto (incluye request_id si lo hay).
func Log(ctx context.Context, ev Event, fields ...zap.Field) {
	fs := make([]zap.Field, 0, len(fields)+2)
	fs = append(fs, logger.Component("audit"), zap.String("event", string(ev)))
	fs = append(fs, fields...)
	logger.From(ctx).Info("audit", fs...)
}
