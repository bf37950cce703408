// Package auth resolves request identity. Authentication itself happens in
// a fronting proxy; this package trusts the identity header that proxy
// injects and loads the matching user record.
package auth

import (
	"net/http"
	"strings"

	"github.com/hearthlabs/hearth/internal/store"
)

// RemoteHeader returns middleware that resolves the user named by the
// configured proxy header. Requests without the header, or naming an
// unknown user, are rejected before reaching the DAV core.
func RemoteHeader(users store.UserRepository, header string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			email := strings.TrimSpace(r.Header.Get(header))
			if email == "" {
				w.Header().Set("WWW-Authenticate", `Basic realm="hearth"`)
				http.Error(w, "missing identity", http.StatusUnauthorized)
				return
			}
			user, err := users.GetByEmail(r.Context(), email)
			if err != nil {
				if err == store.ErrNotFound {
					http.Error(w, "unknown user", http.StatusForbidden)
					return
				}
				http.Error(w, "failed to resolve user", http.StatusInternalServerError)
				return
			}
			_ = users.TouchLastActive(r.Context(), user.ID)
			next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), user)))
		})
	}
}
