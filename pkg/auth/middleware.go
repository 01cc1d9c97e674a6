package auth

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
)

// Middleware returns HTTP middleware that verifies the Bearer token in the
// Authorization header and injects the resulting user ID into the request
// context. Requests without a valid credential get a 401 JSON error.
func Middleware(v *Verifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var token string
			authHeader := r.Header.Get("Authorization")
			if strings.HasPrefix(authHeader, "Bearer ") {
				token = strings.TrimPrefix(authHeader, "Bearer ")
			}

			userID, err := v.Verify(token)
			if err != nil {
				unauthorized(w, err)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithUserID(r.Context(), userID)))
		})
	}
}

func unauthorized(w http.ResponseWriter, err error) {
	msg := "invalid authentication token"
	switch {
	case errors.Is(err, ErrMissingToken):
		msg = "missing authentication token"
	case errors.Is(err, ErrTokenExpired):
		msg = "token expired"
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
