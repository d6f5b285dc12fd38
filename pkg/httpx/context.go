package httpx

import (
	"context"

	"github.com/aussiebroadwan/xs2a/pkg/jwtx"
)

type ctxKey string

const (
	CtxKeyTppID  ctxKey = "tpp_id"
	CtxKeyRoles  ctxKey = "roles"
	CtxKeyClaims ctxKey = "claims"
)

// TppIDFromContext returns the authenticated TPP's authorisation number.
func TppIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(CtxKeyTppID).(string)
	return id
}

// ClaimsFromContext returns the full token claims of the calling TPP.
func ClaimsFromContext(ctx context.Context) (jwtx.Claims, bool) {
	c, ok := ctx.Value(CtxKeyClaims).(jwtx.Claims)
	return c, ok
}

// ContextWithTpp injects the TPP identity into ctx.
func ContextWithTpp(ctx context.Context, c jwtx.Claims) context.Context {
	ctx = context.WithValue(ctx, CtxKeyTppID, c.Subject)
	ctx = context.WithValue(ctx, CtxKeyRoles, c.Roles)
	ctx = context.WithValue(ctx, CtxKeyClaims, c)
	return ctx
}

func rolesFromCtx(ctx context.Context) []string {
	if v, ok := ctx.Value(CtxKeyRoles).([]string); ok {
		return v
	}
	return nil
}
