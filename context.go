package authcore

import "context"

type contextKey uint8

const clientIPKey contextKey = 1

// WithClientIP attaches the caller's IP to the context. The engine uses it
// for audit events and, when enabled, IP throttling. It never influences
// authorization decisions.
func WithClientIP(ctx context.Context, ip string) context.Context {
	return context.WithValue(ctx, clientIPKey, ip)
}

func clientIPFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	ip, _ := ctx.Value(clientIPKey).(string)
	return ip
}
