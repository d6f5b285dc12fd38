package httpx

import (
	"errors"
	"net/http"
	"strings"

	"github.com/aussiebroadwan/xs2a/pkg/jwtx"
	"github.com/aussiebroadwan/xs2a/pkg/slogx"
)

// AuthnMiddleware authenticates the TPP from its bearer access token.
func AuthnMiddleware(v jwtx.Verifier) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			log := slogx.FromContext(ctx)

			authz := r.Header.Get("Authorization")
			if authz == "" || !strings.HasPrefix(authz, "Bearer ") {
				writeBearerError(w, "TOKEN_INVALID", "missing bearer token")
				return
			}
			raw := strings.TrimSpace(strings.TrimPrefix(authz, "Bearer"))

			claims, err := v.Verify(raw)
			if err != nil {
				log.Warn("tpp token verify failed", "err", err)
				if errors.Is(err, jwtx.ErrExpired) {
					writeBearerError(w, "TOKEN_EXPIRED", "token expired")
					return
				}
				writeBearerError(w, "TOKEN_INVALID", "token verification failed")
				return
			}
			if claims.Subject == "" {
				writeBearerError(w, "TOKEN_INVALID", "token has no subject")
				return
			}

			ctx = ContextWithTpp(ctx, claims)
			ctx = slogx.WithContext(ctx, log.With("tpp_id", claims.Subject))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RFC 6750 challenge header plus a tppMessages body.
func writeBearerError(w http.ResponseWriter, code, desc string) {
	w.Header().Set("WWW-Authenticate", `Bearer error="invalid_token", error_description="`+desc+`"`)
	WriteTppError(w, http.StatusUnauthorized, code, desc)
}
