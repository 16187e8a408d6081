package middlewares

import "context"

type ctxKey int

const (
	ctxClaims ctxKey = iota
	ctxUserID
	ctxRequestID
)

// WithClaims guarda las claims del access token en el contexto.
func WithClaims(ctx context.Context, claims map[string]any) context.Context {
	return context.WithValue(ctx, ctxClaims, claims)
}

// WithUserID guarda el subject autenticado en el contexto.
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, ctxUserID, userID)
}

func setRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, ctxRequestID, requestID)
}

// GetClaims retorna las claims o nil si el request no pasó por RequireAuth.
func GetClaims(ctx context.Context) map[string]any {
	if v, ok := ctx.Value(ctxClaims).(map[string]any); ok {
		return v
	}
	return nil
}

// GetUserID retorna el subject autenticado o "".
func GetUserID(ctx context.Context) string {
	if v, ok := ctx.Value(ctxUserID).(string); ok {
		return v
	}
	return ""
}

// GetRequestID retorna el request id asignado por WithRequestID.
func GetRequestID(ctx context.Context) string {
	if v, ok := ctx.Value(ctxRequestID).(string); ok {
		return v
	}
	return ""
}

// ClaimString lee un claim string; "" si falta o tiene otro tipo.
func ClaimString(claims map[string]any, key string) string {
	if claims == nil {
		return ""
	}
	if s, ok := claims[key].(string); ok {
		return s
	}
	return ""
}
