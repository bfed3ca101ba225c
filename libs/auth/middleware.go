package auth

import (
	"encoding/json"
	"net/http"
	"strings"
)

// RequireUser rejects requests without a valid bearer token and stores the Principal in the
// request context. Expired tokens get a distinct error code so clients route to sign-in
// instead of retrying.
func RequireUser(v *Verifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if !strings.HasPrefix(authHeader, "Bearer ") {
				writeAuthError(w, "missing_token", "missing or invalid Authorization header")
				return
			}
			p, err := v.Verify(r.Context(), strings.TrimPrefix(authHeader, "Bearer "))
			if err != nil {
				if IsExpired(err) {
					writeAuthError(w, "session_expired", "session expired, please sign in again")
					return
				}
				writeAuthError(w, "invalid_token", "invalid token")
				return
			}
			next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), p)))
		})
	}
}

func writeAuthError(w http.ResponseWriter, code, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": code, "message": msg})
}
