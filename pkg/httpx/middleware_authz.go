package httpx

import (
	"net/http"
	"slices"
	"strings"
)

// RequireAnyRole requires the TPP to hold at least one of the PSD2 roles.
func RequireAnyRole(required ...string) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			for _, role := range rolesFromCtx(r.Context()) {
				if slices.Contains(required, role) {
					next.ServeHTTP(w, r)
					return
				}
			}

			w.Header().
				Set("WWW-Authenticate", `Bearer error="insufficient_scope", scope="`+strings.Join(required, " ")+`"`)
			WriteTppError(w, http.StatusUnauthorized, "ROLE_INVALID",
				"TPP does not hold role "+strings.Join(required, " or "))
		})
	}
}
