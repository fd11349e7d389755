package httpx

import "context"

type ctxKey string

const (
	CtxKeyAdmin    ctxKey = "admin"
	CtxKeyClientIP ctxKey = "client_ip"
)

// IsAdmin reports whether AdminAuthMiddleware authenticated the request.
func IsAdmin(ctx context.Context) bool {
	v, _ := ctx.Value(CtxKeyAdmin).(bool)
	return v
}

// ClientIPFromContext returns the address recorded by AdminAuthMiddleware.
func ClientIPFromContext(ctx context.Context) string {
	v, _ := ctx.Value(CtxKeyClientIP).(string)
	return v
}
