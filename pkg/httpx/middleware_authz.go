package httpx

import (
	"net/http"
	"strings"
)

// RequireAnyRole admits callers whose token role is one of roles.
func RequireAnyRole(roles ...string) Middleware {
	want := make(map[string]struct{}, len(roles))
	for _, r := range roles {
		want[r] = struct{}{}
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, ok := want[RoleFromContext(r.Context())]; ok {
				next.ServeHTTP(w, r)
				return
			}
			writeInsufficientRole(w, roles...)
		})
	}
}

func writeInsufficientRole(w http.ResponseWriter, roles ...string) {
	w.Header().Set("WWW-Authenticate", `Bearer error="insufficient_scope", error_description="requires role `+strings.Join(roles, " or ")+`"`)
	WriteJSON(w, http.StatusForbidden, ErrorBody{Success: false, Error: "insufficient_role"})
}
