package auth

import "context"

// ctxKey scopes context values owned by this package.
type ctxKey int

const (
	ctxPrincipal ctxKey = iota
	ctxBearer
)

// ContextWithPrincipal records the resolved caller identity for downstream
// handlers and the audit recorder.
func ContextWithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, ctxPrincipal, p)
}

// PrincipalFromContext reports the caller identity, if one was resolved.
func PrincipalFromContext(ctx context.Context) (Principal, bool) {
	if ctx == nil {
		return Principal{}, false
	}
	p, ok := ctx.Value(ctxPrincipal).(Principal)
	return p, ok
}

// ContextWithToken keeps the raw bearer string alongside the principal so a
// handler can forward the caller's credential when it has to.
func ContextWithToken(ctx context.Context, token string) context.Context {
	if token == "" {
		return ctx
	}
	return context.WithValue(ctx, ctxBearer, token)
}

// TokenFromContext returns the forwarded bearer string.
func TokenFromContext(ctx context.Context) (string, bool) {
	if ctx == nil {
		return "", false
	}
	tok, ok := ctx.Value(ctxBearer).(string)
	if !ok || tok == "" {
		return "", false
	}
	return tok, true
}
