package audit

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/dropDatabas3/authority/internal/observability/logger"
)

func TestLog(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	ctx := logger.ToContext(context.Background(), zap.New(core).With(logger.RequestID("req-1")))

	Log(ctx, PasswordChanged, logger.UserID("u-1"))

	entries := logs.All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	require.Equal(t, "audit", entries[0].Message)
	require.Equal(t, "user.password_changed", fields["event"])
	require.Equal(t, "u-1", fields["user_id"])
	require.Equal(t, "req-1", fields["request_id"])
}
